// internal/browser/errors.go
package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrServerUnreachable means the startup navigation never reached the base address.
	ErrServerUnreachable = errors.New("test server unreachable")
	// ErrSessionActive is returned when Start is called while a session is already live.
	ErrSessionActive = errors.New("a browser session is already active")
	// ErrNoSession is returned by operations that need a live session.
	ErrNoSession = errors.New("no active browser session")
	// ErrFixtureNotReady means the readiness marker never reached its ready value.
	ErrFixtureNotReady = errors.New("fixture did not become ready")
	// ErrBridgeUnavailable means the in-page bridge script is not installed in the current document.
	ErrBridgeUnavailable = errors.New("query bridge is not installed in the current document")
)

// PreconditionError reports that the run cannot start, typically because the
// test server or fixture host was never started.
type PreconditionError struct {
	BaseURL  string
	Attempts int
	Err      error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf(
		"precondition failed: could not reach %s after %d attempts (is the test server running and the test build served?): %v",
		e.BaseURL, e.Attempts, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// FixtureError reports a fixture that could not be loaded or never mounted.
// It is a hard failure and is never retried.
type FixtureError struct {
	Ref FixtureRef
	URL string
	Err error
}

func (e *FixtureError) Error() string {
	return fmt.Sprintf("fixture %q (%s): %v", string(e.Ref), e.URL, e.Err)
}

func (e *FixtureError) Unwrap() error { return e.Err }
