// internal/fixtureserver/server.go
package fixtureserver

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/e2e-harness/internal/config"
)

const fixtureExt = ".html"

//go:embed fixtures
var embedded embed.FS

//go:embed shell.html
var shellTemplate string

// Embedded returns the fixtures compiled into the binary, rooted at the fixtures directory.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "fixtures")
	if err != nil {
		// fs.Sub only fails for invalid paths.
		panic(err)
	}
	return sub
}

// ErrFixtureNotFound is returned when no fixture exists for a reference.
var ErrFixtureNotFound = errors.New("fixture not found")

// Server hosts fixtures behind the readiness protocol: every page wraps its
// fixture in a root node that stays busy until the fixture has mounted.
type Server struct {
	fixtures fs.FS
	cfg      *config.Config
	shell    *template.Template
	logger   *zap.Logger
}

type shellData struct {
	Name      string
	RootAttrs template.HTMLAttr
	Body      template.HTML
	NoDevHash string
	BusyAttr  string
}

// New creates a fixture server reading fixtures from fixtures (see Embedded).
func New(fixtures fs.FS, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	shell, err := template.New("shell").Parse(shellTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture shell: %w", err)
	}
	return &Server{
		fixtures: fixtures,
		cfg:      cfg,
		shell:    shell,
		logger:   logger.Named("fixtureserver"),
	}, nil
}

// Handler returns the HTTP routes of the fixture host.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.NoCache)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get(s.routePrefix()+"/*", s.handleFixture)
	return r
}

// routePrefix is the fixture path prefix without a trailing slash; a root
// prefix yields "".
func (s *Server) routePrefix() string {
	prefix := strings.Trim(s.cfg.Fixture.PathPrefix, "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}

// List returns every fixture reference, sorted.
func (s *Server) List() ([]string, error) {
	var refs []string
	err := fs.WalkDir(s.fixtures, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, fixtureExt) {
			refs = append(refs, strings.TrimSuffix(p, fixtureExt))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	sort.Strings(refs)
	return refs, nil
}

// Render returns the full page for ref.
func (s *Server) Render(ref string) ([]byte, error) {
	name, ok := cleanRef(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFixtureNotFound, ref)
	}
	body, err := fs.ReadFile(s.fixtures, name+fixtureExt)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrFixtureNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read fixture %q: %w", ref, err)
	}

	fc := s.cfg.Fixture
	rootAttrs := fmt.Sprintf(`%s="%s" %s="true"`,
		html.EscapeString(s.cfg.Query.TestIDAttribute), html.EscapeString(fc.RootTestID),
		html.EscapeString(fc.BusyAttribute))

	var buf bytes.Buffer
	err = s.shell.Execute(&buf, shellData{
		Name: name,
		// Attribute names come from validated configuration, values are escaped.
		RootAttrs: template.HTMLAttr(rootAttrs),
		// Fixtures are trusted content shipped with the test build.
		Body:      template.HTML(body),
		NoDevHash: "#" + fc.Flag,
		BusyAttr:  fc.BusyAttribute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render fixture %q: %w", ref, err)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleFixture(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "*")
	page, err := s.Render(ref)
	if err != nil {
		if errors.Is(err, ErrFixtureNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("Failed to render fixture.", zap.String("fixture", ref), zap.Error(err))
		http.Error(w, "failed to render fixture", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8" /><title>e2e fixtures</title></head>
<body>
  <h1>Fixtures</h1>
  <ul>
  {{- range .Refs}}
    <li><a href="{{$.Prefix}}/{{.}}#{{$.Flag}}">{{.}}</a></li>
  {{- end}}
  </ul>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	refs, err := s.List()
	if err != nil {
		s.logger.Error("Failed to list fixtures.", zap.Error(err))
		http.Error(w, "failed to list fixtures", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTemplate.Execute(w, map[string]interface{}{
		"Refs":   refs,
		"Prefix": s.routePrefix(),
		"Flag":   s.cfg.Fixture.Flag,
	})
	if err != nil {
		s.logger.Warn("Failed to write fixture index.", zap.Error(err))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served.",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Serve listens on addr and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Serving fixtures.", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("fixture server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// cleanRef normalizes a fixture reference and rejects anything escaping the fixture root.
func cleanRef(ref string) (string, bool) {
	ref = strings.Trim(ref, "/")
	if ref == "" {
		return "", false
	}
	cleaned := path.Clean(ref)
	if cleaned != ref || strings.HasPrefix(cleaned, "..") || !fs.ValidPath(cleaned) {
		return "", false
	}
	return cleaned, true
}
