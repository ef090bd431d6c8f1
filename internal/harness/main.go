// internal/harness/main.go
package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// Runner is satisfied by *testing.M.
type Runner interface {
	Run() int
}

// stderr is where run-level failures are reported.
var stderr io.Writer = os.Stderr

// Main runs the test binary around a single browser session and returns the exit code:
//
//	func TestMain(m *testing.M) {
//		os.Exit(harness.Main(m, h))
//	}
//
// A failed Setup aborts the whole run with exit code 1 without running any test.
// Teardown runs on every path, including a panic inside m.Run.
func Main(m Runner, h *Harness) (code int) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic during test run.", zap.Any("panic", r), zap.Stack("stack"))
			fmt.Fprintf(stderr, "e2e: panic during test run: %v\n", r)
			code = 1
		}

		timeout := h.cfg.Browser.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := h.Teardown(ctx); err != nil {
			h.logger.Warn("Teardown reported an error.", zap.Error(err))
		}
	}()

	if err := h.Setup(context.Background()); err != nil {
		h.logger.Error("Aborting test run.", zap.Error(err))
		fmt.Fprintf(stderr, "e2e: aborting test run: %v\n", err)
		return 1
	}
	return m.Run()
}
