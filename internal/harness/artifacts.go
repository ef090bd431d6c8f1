// internal/harness/artifacts.go
package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/browser"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// TB is the subset of testing.TB CaptureOnFailure needs.
type TB interface {
	Name() string
	Failed() bool
	Cleanup(func())
	Logf(format string, args ...any)
}

// CaptureOnFailure registers a cleanup that saves a screenshot of the page
// to the artifacts directory if the test failed.
func (h *Harness) CaptureOnFailure(t TB) {
	t.Cleanup(func() {
		if !t.Failed() || !h.cfg.Artifacts.ScreenshotOnFailure {
			return
		}
		path, err := h.SaveScreenshot(context.Background(), t.Name())
		if err != nil {
			t.Logf("could not capture failure screenshot: %v", err)
			return
		}
		t.Logf("failure screenshot saved to %s", path)
	})
}

// SaveScreenshot writes a PNG of the page to the artifacts directory and returns its path.
func (h *Harness) SaveScreenshot(ctx context.Context, name string) (string, error) {
	page := h.Page()
	if page == nil {
		return "", browser.ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Browser.ActionTimeout)
	defer cancel()
	buf, err := page.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(h.cfg.Artifacts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	filename := fmt.Sprintf("%s-%s.png", unsafeFileChars.ReplaceAllString(name, "_"), time.Now().Format("20060102-150405"))
	path := filepath.Join(h.cfg.Artifacts.Dir, filename)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	h.logger.Info("Saved screenshot.", zap.String("path", path))
	return path, nil
}
