// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/browser/bridge"
	"github.com/xkilldash9x/e2e-harness/internal/config"
)

// Manager owns the browser process and its single page for the whole run.
type Manager struct {
	cfg       *config.Config
	logger    *zap.Logger
	navigator *Navigator

	mu sync.Mutex
	// allocatorCtx manages the browser process. The session's tab context derives from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	session         *Session
}

// NewManager creates a manager. No browser is started until Start.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		logger:    logger.Named("browser_manager"),
		navigator: NewNavigator(cfg.Navigator, logger),
	}
}

// Session returns the live session, or nil before Start and after Shutdown.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Start launches one headless browser, opens one page and installs the query
// bridge, then confirms the test server answers at the base URL. If it never
// does, the browser is shut down and a *PreconditionError is returned: the run
// should abort rather than fail test by test.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrSessionActive
	}

	script, err := bridge.Build(bridge.Config{TestIDAttribute: m.cfg.Query.TestIDAttribute})
	if err != nil {
		return nil, fmt.Errorf("failed to build query bridge: %w", err)
	}

	session, err := m.launch(ctx, script)
	if err != nil {
		return nil, err
	}
	m.session = session

	if err := session.prepare(ctx); err != nil {
		m.shutdownLocked(ctx)
		return nil, fmt.Errorf("failed to prepare page: %w", err)
	}

	baseURL := m.cfg.Server.BaseURL
	m.logger.Info("Waiting for test server.",
		zap.String("url", baseURL),
		zap.Int("max_attempts", m.cfg.Navigator.MaxAttempts),
		zap.Duration("backoff", m.cfg.Navigator.Backoff))

	if !m.navigator.AttemptGoto(ctx, session, baseURL) {
		m.shutdownLocked(ctx)
		err := &PreconditionError{BaseURL: baseURL, Attempts: m.cfg.Navigator.MaxAttempts, Err: ErrServerUnreachable}
		m.logger.Error("Test server precondition failed.", zap.Error(err))
		return nil, err
	}

	m.logger.Info("Browser session ready.", zap.String("session_id", session.ID()))
	return session, nil
}

// launch starts the browser process and verifies it responds within the launch timeout.
func (m *Manager) launch(ctx context.Context, script string) (*Session, error) {
	m.logger.Info("Launching browser...", zap.Bool("headless", m.cfg.Browser.Headless))

	// The browser must outlive the caller's context; only Shutdown ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), buildAllocatorOptions(m.cfg.Browser)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, m.contextOptions()...)

	// The first Run on the tab context allocates the browser and must receive the
	// tab context itself, so the launch timeout is enforced from outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	timer := time.NewTimer(m.cfg.Browser.LaunchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", m.cfg.Browser.LaunchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.allocatorCtx = allocCtx
	m.allocatorCancel = allocCancel
	m.logger.Info("Browser launched successfully and is responsive.")
	return newSession(tabCtx, tabCancel, m.cfg.Browser, script, m.logger), nil
}

func (m *Manager) contextOptions() []chromedp.ContextOption {
	cdpLogger := m.logger.Named("cdp")
	opts := []chromedp.ContextOption{
		chromedp.WithErrorf(cdpLogger.Sugar().Errorf),
	}
	if m.cfg.Browser.Debug {
		opts = append(opts,
			chromedp.WithLogf(cdpLogger.Sugar().Infof),
			chromedp.WithDebugf(cdpLogger.Sugar().Debugf),
		)
	}
	return opts
}

// Shutdown closes the page and terminates the browser. It runs unconditionally,
// is safe to call more than once and safe to call when Start failed.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdownLocked(ctx)
}

func (m *Manager) shutdownLocked(ctx context.Context) error {
	var err error
	if m.session != nil {
		if closeErr := m.session.Close(ctx); closeErr != nil {
			m.logger.Warn("Error while closing session.", zap.Error(closeErr))
			err = closeErr
		}
		m.session = nil
	}

	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down browser process...")
		m.allocatorCancel()
		select {
		case <-m.allocatorCtx.Done():
		case <-ctx.Done():
			m.logger.Warn("Shutdown deadline exceeded while waiting for browser exit.", zap.Error(ctx.Err()))
		}
		m.allocatorCancel = nil
		m.allocatorCtx = nil
	}
	return err
}

// allocatorFlags computes the command-line flags layered over chromedp's defaults.
func allocatorFlags(cfg config.BrowserConfig, goos string) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":                  cfg.Headless,
		"ignore-certificate-errors": cfg.IgnoreTLSErrors,
		"disable-extensions":        true,
		"disable-gpu":               cfg.Headless,
		"hide-scrollbars":           true,
		"mute-audio":                true,
	}

	// Running inside containers (e.g., Docker on Linux).
	if goos == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-setuid-sandbox"] = true
	}

	// Custom arguments from configuration override everything above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}

// buildAllocatorOptions assembles the exec allocator configuration.
func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := allocatorFlags(cfg, runtime.GOOS)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
