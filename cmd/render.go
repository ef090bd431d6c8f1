// File: cmd/render.go
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/e2e-harness/internal/browser"
)

type renderOptions struct {
	screenshot string
	serve      bool
}

func newRenderCommand(a *app) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <fixture>",
		Short: "Load one fixture in the headless browser and wait until it is ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), a, cmd, browser.FixtureRef(args[0]), opts)
		},
	}
	cmd.Flags().StringVar(&opts.screenshot, "screenshot", "", "write a PNG of the ready fixture to this path")
	cmd.Flags().BoolVar(&opts.serve, "serve", false, "host the fixtures in-process on an ephemeral port")
	return cmd
}

func runRender(ctx context.Context, a *app, cmd *cobra.Command, ref browser.FixtureRef, opts *renderOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if opts.serve {
		srv, err := newFixtureServer(a)
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		a.cfg.Server.BaseURL = "http://" + ln.Addr().String()
		g.Go(func() error { return srv.ServeListener(gctx, ln) })
	}

	g.Go(func() error {
		// Stops the in-process server once rendering is done.
		defer cancel()
		return renderFixture(gctx, a, cmd, ref, opts)
	})
	return g.Wait()
}

func renderFixture(ctx context.Context, a *app, cmd *cobra.Command, ref browser.FixtureRef, opts *renderOptions) error {
	m := browser.NewManager(a.cfg, a.logger)
	defer shutdownManager(a, m)

	session, err := m.Start(ctx)
	if err != nil {
		return err
	}

	loader := browser.NewLoader(a.cfg, session, a.logger)
	if err := loader.Load(ctx, ref); err != nil {
		return err
	}

	if opts.screenshot != "" {
		buf, err := session.Screenshot(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.screenshot, buf, 0o644); err != nil {
			return fmt.Errorf("failed to save screenshot: %w", err)
		}
		a.logger.Info("Saved screenshot.", zap.String("path", opts.screenshot))
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is ready at %s\n", ref, loader.URL(ref))
	return err
}
