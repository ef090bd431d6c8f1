// internal/browser/wait/wait.go
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned by Until when the condition never held within the timeout.
var ErrTimeout = errors.New("condition not met before timeout")

// Condition reports whether the awaited state has been reached. A non-nil error
// does not stop polling; it is remembered and attached to the timeout error.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then at most once per interval until it
// returns true, the timeout elapses or ctx is cancelled. When the next check
// would fall past the deadline, a final check runs at the deadline instead, so
// a condition that holds at any point inside the window is observed.
//
// Each check receives a context bounded one interval past the deadline.
//
// On timeout the returned error wraps ErrTimeout and, when present, the last
// error reported by cond. Cancellation of ctx returns ctx.Err() unchanged.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		return fmt.Errorf("wait: interval must be positive, got %s", interval)
	}
	if timeout <= 0 {
		return fmt.Errorf("wait: timeout must be positive, got %s", timeout)
	}

	start := time.Now()
	deadline := start.Add(timeout)
	checkCtx, cancel := context.WithDeadline(ctx, deadline.Add(interval))
	defer cancel()

	// Burst of one: the first check runs immediately, the rest are paced.
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()

	var lastErr error
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempts++
		ok, err := cond(checkCtx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			return timeoutError(time.Since(start), attempts, lastErr)
		}

		r := limiter.Reserve()
		delay := r.Delay()
		if delay > remaining {
			r.Cancel()
			delay = remaining
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func timeoutError(elapsed time.Duration, attempts int, lastErr error) error {
	elapsed = elapsed.Round(time.Millisecond)
	if lastErr != nil {
		return fmt.Errorf("%w after %s (%d checks): last error: %w", ErrTimeout, elapsed, attempts, lastErr)
	}
	return fmt.Errorf("%w after %s (%d checks)", ErrTimeout, elapsed, attempts)
}
