// internal/query/errors.go
package query

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch means a query found no element.
	ErrNoMatch = errors.New("no matching element")
	// ErrMultipleMatches means a single-element query found more than one element.
	ErrMultipleMatches = errors.New("multiple matching elements")
	// ErrStaleElement means the handle's node was removed or belongs to a previous document.
	ErrStaleElement = errors.New("element is stale")
)

// QueryError reports a cardinality failure for a query.
type QueryError struct {
	Kind    Kind
	Matcher string
	Count   int
	Err     error
}

func (e *QueryError) Error() string {
	if errors.Is(e.Err, ErrMultipleMatches) {
		return fmt.Sprintf("found %d elements by %s matching %s, expected exactly one", e.Count, e.Kind, e.Matcher)
	}
	return fmt.Sprintf("unable to find an element by %s matching %s", e.Kind, e.Matcher)
}

func (e *QueryError) Unwrap() error { return e.Err }

// RemoteError is an error raised inside the browser context.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge error (%s): %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrStaleElement) see through stale remote errors.
func (e *RemoteError) Is(target error) bool {
	return target == ErrStaleElement && e.Code == CodeStale
}
