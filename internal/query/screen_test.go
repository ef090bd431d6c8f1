// internal/query/screen_test.go
package query

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/e2e-harness/internal/browser/wait"
	"github.com/xkilldash9x/e2e-harness/internal/config"
)

func focusTrapDocument() []*fakeNode {
	return []*fakeNode{
		{tag: "div", testID: "root", attrs: map[string]string{"tabindex": "-1"}},
		{tag: "button", role: "button", name: "x", text: "x"},
		{tag: "button", role: "button", name: "cancel", text: "cancel"},
		{tag: "button", role: "button", name: "ok", text: "ok"},
		{tag: "input", role: "textbox", name: "Email", labels: []string{"Email", "Work email"}, attrs: map[string]string{"type": "email"}},
		{tag: "p", text: "  Press   Tab\n to cycle ", html: "Press <kbd>Tab</kbd> to cycle"},
		{tag: "button", role: "button", name: "hidden close", hidden: true},
	}
}

func newTestScreen(t *testing.T, nodes ...*fakeNode) (*Screen, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport(nodes...)
	cfg := config.NewDefaultConfig().Query
	cfg.FindTimeout = 100 * time.Millisecond
	cfg.FindInterval = 5 * time.Millisecond
	return NewScreen(ft, cfg, zaptest.NewLogger(t)), ft
}

func TestGetByCardinality(t *testing.T) {
	ctx := context.Background()
	screen, _ := newTestScreen(t, focusTrapDocument()...)

	t.Run("ExactlyOne", func(t *testing.T) {
		el, err := screen.GetByTestID(ctx, Exact("root"))
		require.NoError(t, err)
		assert.Equal(t, "div", el.Tag())
	})

	t.Run("None", func(t *testing.T) {
		_, err := screen.GetByText(ctx, Exact("apply"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoMatch)
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, KindText, qe.Kind)
		assert.Contains(t, err.Error(), `"apply"`)
	})

	t.Run("Multiple", func(t *testing.T) {
		_, err := screen.GetByRole(ctx, Exact("button"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMultipleMatches)
		var qe *QueryError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, 3, qe.Count, "hidden elements are excluded by default")
	})

	t.Run("AllMatches", func(t *testing.T) {
		els, err := screen.GetAllByRole(ctx, Exact("button"))
		require.NoError(t, err)
		assert.Len(t, els, 3)

		_, err = screen.GetAllByRole(ctx, Exact("dialog"))
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("QueryReturnsNilOnNone", func(t *testing.T) {
		el, err := screen.QueryByTestID(ctx, Exact("missing"))
		require.NoError(t, err)
		assert.Nil(t, el)

		_, err = screen.QueryByRole(ctx, Exact("button"))
		assert.ErrorIs(t, err, ErrMultipleMatches)
	})
}

func TestQueryKinds(t *testing.T) {
	ctx := context.Background()
	screen, ft := newTestScreen(t, focusTrapDocument()...)

	t.Run("RoleWithName", func(t *testing.T) {
		el, err := screen.GetByRole(ctx, Exact("button"), WithName(Exact("cancel")))
		require.NoError(t, err)
		text, err := el.TextContent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "cancel", text)
	})

	t.Run("RoleHidden", func(t *testing.T) {
		els, err := screen.GetAllByRole(ctx, Exact("button"), WithHidden(true))
		require.NoError(t, err)
		assert.Len(t, els, 4)
	})

	t.Run("LabelDeduplicatesByElement", func(t *testing.T) {
		el, err := screen.GetByLabelText(ctx, Regexp(`(?i)email`))
		require.NoError(t, err, "two labels on one input must resolve to one element")
		assert.Equal(t, "input", el.Tag())
	})

	t.Run("TextIsNormalized", func(t *testing.T) {
		_, err := screen.GetByText(ctx, Exact("Press Tab to cycle"))
		require.NoError(t, err)
	})

	t.Run("InexactIsCaseInsensitiveSubstring", func(t *testing.T) {
		_, err := screen.GetByText(ctx, Exact("press tab"), WithExact(false))
		require.NoError(t, err)

		_, err = screen.GetByText(ctx, Exact("press tab"))
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("CustomNormalizer", func(t *testing.T) {
		_, err := screen.GetByText(ctx, Exact("PRESS TAB TO CYCLE"), WithNormalizer(func(s string) string {
			return strings.ToUpper(DefaultNormalizer(s))
		}))
		require.NoError(t, err)
	})

	t.Run("FuncMatcher", func(t *testing.T) {
		el, err := screen.GetByText(ctx, Func("two-letter text", func(s string) bool { return len(s) == 2 }))
		require.NoError(t, err)
		got, err := el.TextContent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	})

	t.Run("PatternMatcher", func(t *testing.T) {
		els, err := screen.GetAllByText(ctx, Pattern(regexp.MustCompile(`^(ok|cancel)$`)))
		require.NoError(t, err)
		assert.Len(t, els, 2)
	})

	t.Run("CollectOptionsCrossTheWire", func(t *testing.T) {
		ft.requests = nil
		_, _ = screen.QueryByText(ctx, Exact("x"), WithSelector("button"), WithIgnore(""))
		require.Len(t, ft.requests, 1)
		want := &CollectOptions{Selector: "button", TestIDAttribute: "data-testid"}
		if diff := cmp.Diff(want, ft.requests[0].Options); diff != "" {
			t.Errorf("collect options mismatch (-want +got):\n%s", diff)
		}

		ft.requests = nil
		_, _ = screen.QueryByText(ctx, Exact("x"))
		assert.Equal(t, "script, style", ft.requests[0].Options.Ignore)
	})
}

func TestFindBy(t *testing.T) {
	ctx := context.Background()

	t.Run("WaitsForElement", func(t *testing.T) {
		screen, ft := newTestScreen(t)
		go func() {
			time.Sleep(20 * time.Millisecond)
			ft.mu.Lock()
			ft.nodes = append(ft.nodes, &fakeNode{tag: "div", role: "dialog", name: "Confirm"})
			ft.mu.Unlock()
		}()

		el, err := screen.FindByRole(ctx, Exact("dialog"))
		require.NoError(t, err)
		assert.Equal(t, "div", el.Tag())
	})

	t.Run("TimesOutWithCardinalityError", func(t *testing.T) {
		screen, _ := newTestScreen(t)
		_, err := screen.FindByLabelText(ctx, Exact("Password"))
		assert.ErrorIs(t, err, wait.ErrTimeout)
		assert.ErrorIs(t, err, ErrNoMatch)
	})
}

func TestTransportErrors(t *testing.T) {
	screen, ft := newTestScreen(t, focusTrapDocument()...)
	ft.err = errors.New("websocket closed")

	_, err := screen.GetByTestID(context.Background(), Exact("root"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect request failed")
	assert.NotErrorIs(t, err, ErrNoMatch)
}
