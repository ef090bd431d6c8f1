// internal/query/protocol.go
package query

import (
	"context"

	json "github.com/json-iterator/go"
)

// Kind selects which accessible property a query matches against.
type Kind string

const (
	KindLabel  Kind = "label"
	KindRole   Kind = "role"
	KindText   Kind = "text"
	KindTestID Kind = "testid"
)

// Op names a request understood by the in-page bridge.
type Op string

const (
	OpCollect       Op = "collect"
	OpActiveElement Op = "activeElement"
	OpClick         Op = "click"
	OpFocus         Op = "focus"
	OpAttribute     Op = "attribute"
	OpTextContent   Op = "textContent"
	OpInnerHTML     Op = "innerHTML"
	OpIsFocused     Op = "isFocused"
)

// Error codes reported by the bridge.
const (
	CodeStale       = "stale"
	CodeException   = "exception"
	CodeUnavailable = "unavailable"
	CodeBadRequest  = "bad_request"
)

// Handle references a DOM node inside the browser. Doc identifies the document
// the node was registered in; a handle is only valid inside that document.
type Handle struct {
	ID  int64  `json:"id"`
	Doc string `json:"doc"`
}

// CollectOptions are the refinements evaluated browser-side while collecting candidates.
// Everything else about matching happens in Go.
type CollectOptions struct {
	Selector        string `json:"selector,omitempty"`
	Ignore          string `json:"ignore,omitempty"`
	Hidden          bool   `json:"hidden,omitempty"`
	TestIDAttribute string `json:"testIdAttribute,omitempty"`
}

// Request is the single message type sent across the boundary.
type Request struct {
	Op      Op              `json:"op"`
	Kind    Kind            `json:"kind,omitempty"`
	Handle  *Handle         `json:"handle,omitempty"`
	Options *CollectOptions `json:"options,omitempty"`
	Args    []string        `json:"args,omitempty"`
}

// Candidate is one element the bridge considered for a query. Text holds the
// property matched for the query kind: label text, role, own text or test id.
// Name is the accessible name and is only filled for role queries.
type Candidate struct {
	Handle Handle `json:"handle"`
	Tag    string `json:"tag"`
	Text   string `json:"text"`
	Name   string `json:"name,omitempty"`
}

// Response is the bridge's reply. Exactly one of Candidates/Value/Error is meaningful
// depending on the request's Op.
type Response struct {
	Candidates []Candidate     `json:"candidates,omitempty"`
	Value      json.RawMessage `json:"value,omitempty"`
	Error      *RemoteError    `json:"error,omitempty"`
}

// Transport carries requests to the browser context and back.
type Transport interface {
	Call(ctx context.Context, req Request) (*Response, error)
}
