// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from ctx1 that is also cancelled when ctx2 is done.
// Values come from ctx1 only; for chromedp that is the tab context carrying the CDP
// target, while ctx2 is the caller's operational context. If ctx2 carries an earlier
// deadline than ctx1, the combined context adopts it so callers see DeadlineExceeded.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	base, cancelBase := context.WithCancel(ctx1)

	combined, cancelDeadline := base, context.CancelFunc(func() {})
	if d2, ok := ctx2.Deadline(); ok {
		if d1, ok := ctx1.Deadline(); !ok || d2.Before(d1) {
			combined, cancelDeadline = context.WithDeadline(base, d2)
		}
	}

	go func() {
		select {
		case <-ctx2.Done():
			cancelBase()
		case <-combined.Done():
		}
	}()

	return combined, func() {
		cancelDeadline()
		cancelBase()
	}
}

// valueOnlyContext keeps the parent's values but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is never cancelled by it.
// Cleanup calls that must outlive a cancelled test context (closing the tab, a last
// screenshot) run on a detached copy with their own timeout.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
