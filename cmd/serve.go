// File: cmd/serve.go
package cmd

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/fixtureserver"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve fixtures behind the readiness protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.listen_addr)")
	cmd.Flags().String("dir", "", "serve fixtures from this directory instead of the built-in set")
	_ = a.v.BindPFlag("server.listen_addr", cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("server.fixture_dir", cmd.Flags().Lookup("dir"))
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	srv, err := newFixtureServer(a)
	if err != nil {
		return err
	}
	a.logger.Info("Starting fixture host.",
		zap.String("addr", a.cfg.Server.ListenAddr),
		zap.String("fixture_dir", a.cfg.Server.FixtureDir))
	return srv.Serve(ctx, a.cfg.Server.ListenAddr)
}

// newFixtureServer builds a server over the configured fixture directory, or the built-in fixtures.
func newFixtureServer(a *app) (*fixtureserver.Server, error) {
	var fixtures fs.FS = fixtureserver.Embedded()
	if dir := a.cfg.Server.FixtureDir; dir != "" {
		fixtures = os.DirFS(dir)
	}
	return fixtureserver.New(fixtures, a.cfg, a.logger)
}
