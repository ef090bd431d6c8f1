// internal/browser/fixture.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/browser/wait"
	"github.com/xkilldash9x/e2e-harness/internal/config"
)

// FixtureRef identifies an isolated UI scenario on the test server,
// e.g. "FocusTrap/OpenFocusTrap".
type FixtureRef string

// Page is the slice of a browser page the fixture loader needs.
type Page interface {
	Navigable
	Evaluate(ctx context.Context, expression string, res interface{}) error
}

// Readiness states reported by the in-page probe.
const (
	readyStateMissing = "missing"
	readyStateBusy    = "busy"
	readyStateReady   = "ready"
)

var errRootMissing = errors.New("fixture root node not rendered")

// FixtureURL builds {base}{prefix}{ref}#{flag}. Path segments of ref are escaped;
// an empty flag produces no fragment.
func FixtureURL(base, prefix string, ref FixtureRef, flag string) string {
	segments := strings.Split(strings.Trim(string(ref), "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/")
	if p := strings.Trim(prefix, "/"); p != "" {
		b.WriteString(p)
		b.WriteString("/")
	}
	b.WriteString(strings.Join(segments, "/"))
	if flag != "" {
		b.WriteString("#")
		b.WriteString(flag)
	}
	return b.String()
}

// Loader mounts fixtures into a page and waits for them to report ready.
type Loader struct {
	page        Page
	baseURL     string
	cfg         config.FixtureConfig
	readyScript string
	logger      *zap.Logger
}

// NewLoader creates a fixture loader for page using the server, fixture and
// query sections of cfg.
func NewLoader(cfg *config.Config, page Page, logger *zap.Logger) *Loader {
	return &Loader{
		page:        page,
		baseURL:     cfg.Server.BaseURL,
		cfg:         cfg.Fixture,
		readyScript: readinessScript(cfg.Query.TestIDAttribute, cfg.Fixture.RootTestID, cfg.Fixture.BusyAttribute),
		logger:      logger.Named("fixture"),
	}
}

// URL returns the address the loader will navigate to for ref.
func (l *Loader) URL(ref FixtureRef) string {
	return FixtureURL(l.baseURL, l.cfg.PathPrefix, ref, l.cfg.Flag)
}

// Load navigates to the fixture and blocks until its root node exists and is no
// longer busy. The page is first reset to about:blank so handles from the
// previous fixture cannot resolve against the new one. Navigation is not
// retried: the server is known to be up by the time fixtures load.
func (l *Loader) Load(ctx context.Context, ref FixtureRef) error {
	target := l.URL(ref)
	start := time.Now()
	log := l.logger.With(zap.String("fixture", string(ref)), zap.String("url", target))

	if err := l.page.Navigate(ctx, "about:blank"); err != nil {
		return &FixtureError{Ref: ref, URL: target, Err: fmt.Errorf("failed to reset page: %w", err)}
	}
	if err := l.page.Navigate(ctx, target); err != nil {
		return &FixtureError{Ref: ref, URL: target, Err: fmt.Errorf("navigation failed: %w", err)}
	}

	err := wait.Until(ctx, l.cfg.PollInterval, l.cfg.ReadyTimeout, l.isReady)
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrFixtureNotReady, err)
		}
		log.Error("Fixture failed to mount.", zap.Error(err))
		return &FixtureError{Ref: ref, URL: target, Err: err}
	}

	log.Debug("Fixture ready.", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (l *Loader) isReady(ctx context.Context) (bool, error) {
	var state string
	if err := l.page.Evaluate(ctx, l.readyScript, &state); err != nil {
		return false, fmt.Errorf("readiness probe failed: %w", err)
	}
	switch state {
	case readyStateReady:
		return true, nil
	case readyStateMissing:
		return false, errRootMissing
	default:
		return false, nil
	}
}

// readinessScript returns an expression evaluating to one of the readyState* values.
func readinessScript(testIDAttr, rootID, busyAttr string) string {
	selector := fmt.Sprintf("[%s=%s]", testIDAttr, jsString(rootID))
	return fmt.Sprintf(`(() => {
	const root = document.querySelector(%s);
	if (!root) return %s;
	return root.getAttribute(%s) === "true" ? %s : %s;
})()`,
		jsString(selector), jsString(readyStateMissing), jsString(busyAttr),
		jsString(readyStateBusy), jsString(readyStateReady))
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail.
		return `""`
	}
	return string(b)
}
