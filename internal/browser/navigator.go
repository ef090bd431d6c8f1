// internal/browser/navigator.go
package browser

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/config"
)

// Navigable is anything that can be pointed at a URL. *Session satisfies it.
type Navigable interface {
	Navigate(ctx context.Context, url string) error
}

// Navigator retries navigation with a fixed backoff to absorb the race between
// harness startup and an external server becoming reachable.
type Navigator struct {
	maxAttempts int
	backoff     time.Duration
	sleep       Sleeper
	logger      *zap.Logger
}

// NewNavigator creates a navigator from the retry configuration.
func NewNavigator(cfg config.NavigatorConfig, logger *zap.Logger) *Navigator {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Navigator{
		maxAttempts: maxAttempts,
		backoff:     cfg.Backoff,
		sleep:       Delay,
		logger:      logger.Named("navigator"),
	}
}

// WithSleeper replaces the backoff primitive. Intended for tests.
func (n *Navigator) WithSleeper(s Sleeper) *Navigator {
	n.sleep = s
	return n
}

// MaxWait is the upper bound on backoff time spent by a fully failing AttemptGoto,
// excluding the time the navigations themselves take.
func (n *Navigator) MaxWait() time.Duration {
	return time.Duration(n.maxAttempts-1) * n.backoff
}

// AttemptGoto navigates page to url, retrying every failure after the backoff.
// It returns true as soon as one attempt succeeds and false once every attempt
// has failed. Failure causes are not distinguished and never returned.
//
// Cancelling ctx stops further attempts; an attempt already in flight is bounded
// only by the page's own navigation timeout.
func (n *Navigator) AttemptGoto(ctx context.Context, page Navigable, url string) bool {
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			n.logger.Debug("Navigation abandoned, context done.",
				zap.String("url", url), zap.Int("attempt", attempt), zap.Error(ctx.Err()))
			return false
		}

		err := page.Navigate(ctx, url)
		if err == nil {
			n.logger.Debug("Navigation succeeded.", zap.String("url", url), zap.Int("attempt", attempt))
			return true
		}

		n.logger.Debug("Navigation attempt failed.",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", n.maxAttempts),
			zap.Error(err))

		// No backoff after the last attempt.
		if attempt < n.maxAttempts {
			n.sleep(n.backoff)
		}
	}

	n.logger.Warn("Navigation failed on every attempt.",
		zap.String("url", url), zap.Int("attempts", n.maxAttempts))
	return false
}
