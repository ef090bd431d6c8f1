// internal/query/element.go
package query

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
)

// Element is a remote handle to a DOM node. It stays valid only while its
// document is loaded; every method is one round-trip and fails with
// ErrStaleElement once the node is gone.
type Element struct {
	screen *Screen
	handle Handle
	tag    string
}

// Handle returns the wire handle.
func (e *Element) Handle() Handle { return e.handle }

// Tag returns the lowercase tag name captured when the element was found.
func (e *Element) Tag() string { return e.tag }

// Equal reports whether both elements reference the same node.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.handle == other.handle
}

func (e *Element) String() string {
	return fmt.Sprintf("<%s #%d>", e.tag, e.handle.ID)
}

// Click dispatches the pointer sequence and click on the element, focusing it
// first when it is focusable.
func (e *Element) Click(ctx context.Context) error {
	_, err := e.do(ctx, OpClick)
	return err
}

// Focus moves focus to the element.
func (e *Element) Focus(ctx context.Context) error {
	_, err := e.do(ctx, OpFocus)
	return err
}

// Attribute returns the attribute's value and whether it is present.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	resp, err := e.do(ctx, OpAttribute, name)
	if err != nil {
		return "", false, err
	}
	var value *string
	if err := decodeValue(resp, &value); err != nil {
		return "", false, e.wrap(OpAttribute, err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// TextContent returns the node's textContent.
func (e *Element) TextContent(ctx context.Context) (string, error) {
	return e.stringValue(ctx, OpTextContent)
}

// InnerHTML returns the node's serialized children.
func (e *Element) InnerHTML(ctx context.Context) (string, error) {
	return e.stringValue(ctx, OpInnerHTML)
}

// IsFocused reports whether the element is document.activeElement.
func (e *Element) IsFocused(ctx context.Context) (bool, error) {
	resp, err := e.do(ctx, OpIsFocused)
	if err != nil {
		return false, err
	}
	var focused bool
	if err := decodeValue(resp, &focused); err != nil {
		return false, e.wrap(OpIsFocused, err)
	}
	return focused, nil
}

func (e *Element) stringValue(ctx context.Context, op Op) (string, error) {
	resp, err := e.do(ctx, op)
	if err != nil {
		return "", err
	}
	var s string
	if err := decodeValue(resp, &s); err != nil {
		return "", e.wrap(op, err)
	}
	return s, nil
}

func (e *Element) do(ctx context.Context, op Op, args ...string) (*Response, error) {
	h := e.handle
	resp, err := e.screen.call(ctx, Request{Op: op, Handle: &h, Args: args})
	if err != nil {
		return nil, e.wrap(op, err)
	}
	return resp, nil
}

func (e *Element) wrap(op Op, err error) error {
	return fmt.Errorf("%s on %s: %w", op, e, err)
}

func decodeValue(resp *Response, v interface{}) error {
	if len(resp.Value) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	if err := json.Unmarshal(resp.Value, v); err != nil {
		return fmt.Errorf("failed to decode bridge value: %w", err)
	}
	return nil
}
