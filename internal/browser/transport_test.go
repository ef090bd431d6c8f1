// internal/browser/transport_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/e2e-harness/internal/query"
)

func TestDispatchExpression(t *testing.T) {
	expr := dispatchExpression(`{"op":"collect","kind":"text"}`)

	assert.Contains(t, expr, "window.__e2eBridge ? window.__e2eBridge.dispatch(")
	// The payload crosses as a JS string literal, not as an object literal.
	assert.Contains(t, expr, `"{\"op\":\"collect\",\"kind\":\"text\"}"`)
	assert.Contains(t, expr, query.CodeUnavailable)
}

func TestDecodeResponse(t *testing.T) {
	t.Run("Candidates", func(t *testing.T) {
		resp, err := decodeResponse(`{"candidates":[{"handle":{"id":3,"doc":"d1"},"tag":"button","text":"ok","name":"ok"}]}`)
		require.NoError(t, err)
		require.Len(t, resp.Candidates, 1)
		assert.Equal(t, query.Handle{ID: 3, Doc: "d1"}, resp.Candidates[0].Handle)
		assert.Equal(t, "button", resp.Candidates[0].Tag)
		assert.Nil(t, resp.Error)
	})

	t.Run("Value", func(t *testing.T) {
		resp, err := decodeResponse(`{"value":"-1"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `"-1"`, string(resp.Value))
	})

	t.Run("StaleError", func(t *testing.T) {
		resp, err := decodeResponse(`{"error":{"code":"stale","message":"element is detached"}}`)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.ErrorIs(t, resp.Error, query.ErrStaleElement)
		assert.False(t, isUnavailable(resp))
	})

	t.Run("Unavailable", func(t *testing.T) {
		resp, err := decodeResponse(unavailableResponse)
		require.NoError(t, err)
		assert.True(t, isUnavailable(resp))
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := decodeResponse(`not json`)
		assert.Error(t, err)
	})
}
