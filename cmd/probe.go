// File: cmd/probe.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/e2e-harness/internal/browser"
)

func newProbeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Launch the browser and check that the test server is reachable",
		Long: `probe performs the same startup check a test run does: it launches the
headless browser and retries navigation to the base URL. It exits non-zero when
the server never answers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), a, cmd)
		},
	}
}

func runProbe(ctx context.Context, a *app, cmd *cobra.Command) error {
	m := browser.NewManager(a.cfg, a.logger)
	defer shutdownManager(a, m)

	if _, err := m.Start(ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is reachable\n", a.cfg.Server.BaseURL)
	return err
}

func shutdownManager(a *app, m *browser.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Browser.ShutdownTimeout)
	defer cancel()
	_ = m.Shutdown(ctx)
}
