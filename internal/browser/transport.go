// internal/browser/transport.go
package browser

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/e2e-harness/internal/browser/bridge"
	"github.com/xkilldash9x/e2e-harness/internal/query"
)

// cdpTransport carries query requests into the page through Runtime.evaluate.
// The request crosses as a JSON string and the bridge answers with one.
type cdpTransport struct {
	session *Session
}

var unavailableResponse = fmt.Sprintf(`{"error":{"code":%q,"message":"bridge not installed"}}`, query.CodeUnavailable)

// dispatchExpression wraps a serialized request in a call to the bridge, falling
// back to an "unavailable" reply when the bridge is missing from the document.
func dispatchExpression(payload string) string {
	return fmt.Sprintf("window.%[1]s ? window.%[1]s.dispatch(%[2]s) : %[3]s",
		bridge.GlobalName, jsString(payload), jsString(unavailableResponse))
}

// Call sends req to the bridge. A document that lost the bridge gets it
// reinstalled once before the request is retried.
func (t *cdpTransport) Call(ctx context.Context, req query.Request) (*query.Response, error) {
	payload, err := json.MarshalToString(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bridge request: %w", err)
	}
	expr := dispatchExpression(payload)

	resp, err := t.roundTrip(ctx, expr)
	if err != nil {
		return nil, err
	}
	if !isUnavailable(resp) {
		return resp, nil
	}

	t.session.logger.Debug("Query bridge missing from document, reinstalling.")
	if err := t.session.installBridgeInDocument(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridgeUnavailable, err)
	}
	resp, err = t.roundTrip(ctx, expr)
	if err != nil {
		return nil, err
	}
	if isUnavailable(resp) {
		return nil, ErrBridgeUnavailable
	}
	return resp, nil
}

func (t *cdpTransport) roundTrip(ctx context.Context, expr string) (*query.Response, error) {
	var raw string
	if err := t.session.Evaluate(ctx, expr, &raw); err != nil {
		return nil, fmt.Errorf("bridge evaluation failed: %w", err)
	}
	return decodeResponse(raw)
}

func decodeResponse(raw string) (*query.Response, error) {
	var resp query.Response
	if err := json.UnmarshalFromString(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return &resp, nil
}

func isUnavailable(resp *query.Response) bool {
	return resp.Error != nil && resp.Error.Code == query.CodeUnavailable
}
