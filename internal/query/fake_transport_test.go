// internal/query/fake_transport_test.go
package query

import (
	"context"
	"sync"

	json "github.com/json-iterator/go"
)

// fakeNode is a DOM node as the bridge would describe it.
type fakeNode struct {
	tag     string
	labels  []string
	role    string
	name    string
	text    string
	testID  string
	attrs   map[string]string
	html    string
	hidden  bool
	removed bool
}

// fakeTransport answers bridge requests from an in-memory document.
type fakeTransport struct {
	mu       sync.Mutex
	doc      string
	nodes    []*fakeNode
	focused  int
	requests []Request
	err      error
}

func newFakeTransport(nodes ...*fakeNode) *fakeTransport {
	return &fakeTransport{doc: "doc-1", nodes: nodes, focused: -1}
}

// reload simulates navigation: a new document token, old handles go stale.
func (f *fakeTransport) reload(nodes ...*fakeNode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = "doc-2"
	f.nodes = nodes
	f.focused = -1
}

func (f *fakeTransport) handle(i int) Handle { return Handle{ID: int64(i + 1), Doc: f.doc} }

func (f *fakeTransport) Call(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	switch req.Op {
	case OpCollect:
		return &Response{Candidates: f.collect(req)}, nil
	case OpActiveElement:
		if f.focused < 0 {
			return &Response{Candidates: []Candidate{{Handle: Handle{ID: 999, Doc: f.doc}, Tag: "body"}}}, nil
		}
		n := f.nodes[f.focused]
		return &Response{Candidates: []Candidate{{Handle: f.handle(f.focused), Tag: n.tag}}}, nil
	}

	idx, errResp := f.resolve(req.Handle)
	if errResp != nil {
		return errResp, nil
	}
	n := f.nodes[idx]
	switch req.Op {
	case OpClick, OpFocus:
		f.focused = idx
		return &Response{Value: raw(nil)}, nil
	case OpAttribute:
		if v, ok := n.attrs[req.Args[0]]; ok {
			return &Response{Value: raw(v)}, nil
		}
		return &Response{Value: raw(nil)}, nil
	case OpTextContent:
		return &Response{Value: raw(n.text)}, nil
	case OpInnerHTML:
		return &Response{Value: raw(n.html)}, nil
	case OpIsFocused:
		return &Response{Value: raw(f.focused == idx)}, nil
	}
	return &Response{Error: &RemoteError{Code: CodeBadRequest, Message: "unknown op " + string(req.Op)}}, nil
}

func (f *fakeTransport) collect(req Request) []Candidate {
	var out []Candidate
	for i, n := range f.nodes {
		if n.removed {
			continue
		}
		h := f.handle(i)
		switch req.Kind {
		case KindLabel:
			for _, l := range n.labels {
				out = append(out, Candidate{Handle: h, Tag: n.tag, Text: l})
			}
		case KindRole:
			if n.role != "" && (!n.hidden || req.Options.Hidden) {
				out = append(out, Candidate{Handle: h, Tag: n.tag, Text: n.role, Name: n.name})
			}
		case KindText:
			if n.text != "" {
				out = append(out, Candidate{Handle: h, Tag: n.tag, Text: n.text})
			}
		case KindTestID:
			if n.testID != "" {
				out = append(out, Candidate{Handle: h, Tag: n.tag, Text: n.testID})
			}
		}
	}
	return out
}

func (f *fakeTransport) resolve(h *Handle) (int, *Response) {
	stale := func(msg string) *Response {
		return &Response{Error: &RemoteError{Code: CodeStale, Message: msg}}
	}
	if h == nil {
		return 0, &Response{Error: &RemoteError{Code: CodeBadRequest, Message: "missing handle"}}
	}
	if h.Doc != f.doc {
		return 0, stale("handle belongs to a different document")
	}
	idx := int(h.ID) - 1
	if idx < 0 || idx >= len(f.nodes) || f.nodes[idx].removed {
		return 0, stale("element is detached")
	}
	return idx, nil
}

func raw(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
