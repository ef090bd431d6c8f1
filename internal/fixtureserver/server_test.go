// internal/fixtureserver/server_test.go
package fixtureserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/e2e-harness/internal/config"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Embedded(), config.NewDefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// findByAttr walks the parsed document for the first element with attr=value.
func findByAttr(n *html.Node, attr, value string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == attr && a.Val == value {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByAttr(c, attr, value); found != nil {
			return found
		}
	}
	return nil
}

func attrOf(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func TestFixturePage(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/e2e/FocusTrap/OpenFocusTrap")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)

	root := findByAttr(doc, "data-testid", "testcase")
	require.NotNil(t, root, "the page must render the readiness root")
	busy, ok := attrOf(root, "aria-busy")
	require.True(t, ok)
	assert.Equal(t, "true", busy, "the root starts busy")

	trap := findByAttr(root, "data-testid", "root")
	require.NotNil(t, trap, "fixture markup must be nested inside the readiness root")
	tabindex, _ := attrOf(trap, "tabindex")
	assert.Equal(t, "-1", tabindex)

	assert.Contains(t, body, `window.__E2E_NO_DEV = window.location.hash === "#no-dev"`)
	assert.Contains(t, body, `root.setAttribute("aria-busy", 'false')`)
}

func TestFixtureRouting(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"Known", "/e2e/TextField/TextFieldWithOnClick", http.StatusOK},
		{"Unknown", "/e2e/Nope/Missing", http.StatusNotFound},
		{"Empty", "/e2e/", http.StatusNotFound},
		{"Traversal", "/e2e/../server.go", http.StatusNotFound},
		{"OutsidePrefix", "/FocusTrap/OpenFocusTrap", http.StatusNotFound},
		{"Health", "/healthz", http.StatusOK},
		{"Index", "/", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestIndexListsFixtures(t *testing.T) {
	s, ts := newTestServer(t)

	refs, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Broken/NeverReady", "FocusTrap/OpenFocusTrap", "TextField/TextFieldWithOnClick"}, refs)

	_, body := get(t, ts.URL+"/")
	for _, ref := range refs {
		assert.Contains(t, body, `href="/e2e/`+ref+`#no-dev"`)
	}
}

func TestCustomFixtureFS(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Fixture.PathPrefix = "/fixtures/"
	cfg.Fixture.BusyAttribute = "data-busy"
	fsys := fstest.MapFS{
		"Menu/Basic.html": &fstest.MapFile{Data: []byte(`<ul role="menu"><li role="menuitem">One</li></ul>`)},
		"notes.txt":       &fstest.MapFile{Data: []byte("ignored")},
	}
	s, err := New(fsys, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	refs, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Menu/Basic"}, refs)

	page, err := s.Render("Menu/Basic")
	require.NoError(t, err)
	doc, err := html.Parse(strings.NewReader(string(page)))
	require.NoError(t, err)
	root := findByAttr(doc, "data-busy", "true")
	require.NotNil(t, root)
	testid, _ := attrOf(root, "data-testid")
	assert.Equal(t, "testcase", testid)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fixtures/Menu/Basic", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = s.Render("notes")
	assert.ErrorIs(t, err, ErrFixtureNotFound)
}

func TestRootPathPrefix(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Fixture.PathPrefix = "/"
	s, err := New(Embedded(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := html.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	link := findByAttr(doc, "href", "/FocusTrap/OpenFocusTrap#no-dev")
	require.NotNil(t, link, "index links must stay host-relative under a root prefix")
	assert.NotContains(t, rec.Body.String(), `href="//`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/FocusTrap/OpenFocusTrap", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCleanRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"FocusTrap/OpenFocusTrap", "FocusTrap/OpenFocusTrap", true},
		{"/FocusTrap/OpenFocusTrap/", "FocusTrap/OpenFocusTrap", true},
		{"", "", false},
		{"../secret", "", false},
		{"a/../../b", "", false},
		{"a//b", "", false},
	}
	for _, tt := range tests {
		got, ok := cleanRef(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestServeListenerShutsDown(t *testing.T) {
	s, err := New(Embedded(), config.NewDefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
