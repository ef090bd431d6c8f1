// internal/browser/delay.go
package browser

import "time"

// Sleeper blocks the calling goroutine for a duration. Retry loops take one so
// tests can record backoff without real waiting.
type Sleeper func(time.Duration)

// Delay blocks for at least d. It cannot fail and cannot be interrupted;
// callers bound their total wait by bounding how often they call it.
func Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	time.Sleep(d)
}
