// internal/harness/harness.go
package harness

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/browser"
	"github.com/xkilldash9x/e2e-harness/internal/config"
	"github.com/xkilldash9x/e2e-harness/internal/query"
)

// Page is the part of a browser session scenarios drive.
type Page interface {
	browser.Page
	Press(ctx context.Context, keys ...string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Transport() query.Transport
}

// Lifecycle starts and stops the browser behind a Harness.
type Lifecycle interface {
	Start(ctx context.Context) (Page, error)
	Shutdown(ctx context.Context) error
}

// managerLifecycle adapts *browser.Manager to Lifecycle.
type managerLifecycle struct {
	m *browser.Manager
}

func (l managerLifecycle) Start(ctx context.Context) (Page, error) {
	s, err := l.m.Start(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (l managerLifecycle) Shutdown(ctx context.Context) error { return l.m.Shutdown(ctx) }

// Harness wires one browser session, the fixture loader and the query screen
// for a test binary. It is set up once in TestMain and shared by every test;
// tests use it sequentially.
type Harness struct {
	cfg       *config.Config
	logger    *zap.Logger
	lifecycle Lifecycle

	mu     sync.Mutex
	page   Page
	loader *browser.Loader
	screen *query.Screen
}

// New creates a harness backed by a real headless browser.
func New(cfg *config.Config, logger *zap.Logger) *Harness {
	return NewWithLifecycle(cfg, managerLifecycle{m: browser.NewManager(cfg, logger)}, logger)
}

// NewWithLifecycle creates a harness with a custom lifecycle.
func NewWithLifecycle(cfg *config.Config, lifecycle Lifecycle, logger *zap.Logger) *Harness {
	return &Harness{
		cfg:       cfg,
		logger:    logger.Named("harness"),
		lifecycle: lifecycle,
	}
}

// Config returns the harness configuration.
func (h *Harness) Config() *config.Config { return h.cfg }

// Setup starts the browser and confirms the test server is reachable.
func (h *Harness) Setup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.page != nil {
		return browser.ErrSessionActive
	}

	page, err := h.lifecycle.Start(ctx)
	if err != nil {
		return fmt.Errorf("harness setup failed: %w", err)
	}
	h.page = page
	h.loader = browser.NewLoader(h.cfg, page, h.logger)
	h.screen = query.NewScreen(page.Transport(), h.cfg.Query, h.logger)
	return nil
}

// Teardown shuts the browser down. It always calls the lifecycle, even when
// Setup failed or never ran.
func (h *Harness) Teardown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.page = nil
	h.loader = nil
	h.screen = nil
	if err := h.lifecycle.Shutdown(ctx); err != nil {
		return fmt.Errorf("harness teardown failed: %w", err)
	}
	return nil
}

// Render loads the fixture and returns a screen for querying it. Element handles
// obtained before the call are stale afterwards.
func (h *Harness) Render(ctx context.Context, ref browser.FixtureRef) (*query.Screen, error) {
	h.mu.Lock()
	loader, screen := h.loader, h.screen
	h.mu.Unlock()

	if loader == nil {
		return nil, browser.ErrNoSession
	}
	if err := loader.Load(ctx, ref); err != nil {
		return nil, err
	}
	return screen, nil
}

// Screen returns the query screen of the live session, or nil before Setup.
func (h *Harness) Screen() *query.Screen {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.screen
}

// Page returns the live page, or nil before Setup.
func (h *Harness) Page() Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page
}

// Press sends keys to the focused element.
func (h *Harness) Press(ctx context.Context, keys ...string) error {
	page := h.Page()
	if page == nil {
		return browser.ErrNoSession
	}
	return page.Press(ctx, keys...)
}
