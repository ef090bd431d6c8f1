// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/config"
	"github.com/xkilldash9x/e2e-harness/internal/query"
)

// Session is the single page of the run. It is owned by the Manager; everything
// else borrows it and issues calls sequentially.
type Session struct {
	id     string
	ctx    context.Context // chromedp tab context; carries the CDP target.
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	bridgeScript string

	closeOnce sync.Once
	closed    chan struct{}
}

// Compile-time checks.
var (
	_ Page      = (*Session)(nil)
	_ Navigable = (*Session)(nil)
)

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, bridgeScript string, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:           id,
		ctx:          tabCtx,
		cancel:       cancel,
		cfg:          cfg,
		logger:       logger.Named("session").With(zap.String("session_id", id)),
		bridgeScript: bridgeScript,
		closed:       make(chan struct{}),
	}
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// RunActions executes chromedp actions on the page, bounded by both the caller's
// context and the configured action timeout.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	return s.run(ctx, s.cfg.ActionTimeout, actions...)
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	select {
	case <-s.closed:
		return ErrNoSession
	default:
	}

	// Values (the CDP target) come from the session context; cancellation from both.
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	opCtx, cancelOp := context.WithTimeout(combined, timeout)
	defer cancelOp()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("browser operation timed out after %s: %w", timeout, err)
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the load event. Failed navigations
// (connection refused, DNS) are returned as errors.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression in the current document and decodes
// its by-value result into res (which may be nil).
func (s *Session) Evaluate(ctx context.Context, expression string, res interface{}) error {
	return s.RunActions(ctx, chromedp.Evaluate(expression, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
	}))
}

// Press sends each key as a full keyDown/keyUp sequence to the focused element.
// Use the constants in github.com/chromedp/chromedp/kb for special keys.
func (s *Session) Press(ctx context.Context, keys ...string) error {
	actions := make([]chromedp.Action, 0, len(keys))
	for _, k := range keys {
		actions = append(actions, chromedp.KeyEvent(k))
	}
	if err := s.RunActions(ctx, actions...); err != nil {
		return fmt.Errorf("failed to press keys: %w", err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.RunActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// InjectScriptPersistently adds a script that runs in every new document of the page.
func (s *Session) InjectScriptPersistently(ctx context.Context, script string) error {
	var scriptID page.ScriptIdentifier
	err := s.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		scriptID, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not inject persistent script: %w", err)
	}
	s.logger.Debug("Injected persistent script.", zap.String("scriptID", string(scriptID)))
	return nil
}

// prepare readies a freshly opened page: focus events fire even though a headless
// window never has OS focus, and the bridge is registered for future documents
// and evaluated into the current one.
func (s *Session) prepare(ctx context.Context) error {
	if err := s.RunActions(ctx, emulation.SetFocusEmulationEnabled(true)); err != nil {
		return fmt.Errorf("failed to enable focus emulation: %w", err)
	}
	if err := s.InjectScriptPersistently(ctx, s.bridgeScript); err != nil {
		return err
	}
	return s.installBridgeInDocument(ctx)
}

func (s *Session) installBridgeInDocument(ctx context.Context) error {
	if err := s.Evaluate(ctx, s.bridgeScript, nil); err != nil {
		return fmt.Errorf("failed to evaluate query bridge: %w", err)
	}
	return nil
}

// Transport returns the query transport bound to this page.
func (s *Session) Transport() query.Transport {
	return &cdpTransport{session: s}
}

// Close closes the page. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.logger.Debug("Closing session.")

		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		s.cancel()
	})
	return err
}
