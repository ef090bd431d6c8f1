// File: cmd/root.go
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/config"
	"github.com/xkilldash9x/e2e-harness/internal/observability"
)

// app carries the state resolved before any subcommand runs.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCommand builds the command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "e2e-harness",
		Short: "Browser end-to-end test harness and fixture host.",
		Long: `e2e-harness drives a headless Chromium against a fixture host.

It serves isolated UI fixtures behind a readiness protocol, checks that a test
server is reachable and renders single fixtures for debugging. Test suites use
the harness package directly from TestMain.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./e2e.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "test server base URL (overrides server.base_url)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides logger.level)")
	_ = a.v.BindPFlag("server.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = a.v.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newVersionCommand(),
		newServeCommand(a),
		newProbeCommand(a),
		newRenderCommand(a),
	)
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	err := NewRootCommand().Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initialize reads the config file and E2E_ environment variables, then sets up logging.
func (a *app) initialize(cmd *cobra.Command) error {
	config.SetDefaults(a.v)
	config.BindEnv(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("e2e")
		a.v.SetConfigType("yaml")
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		// Initialize a fallback logger so the failure is still reported consistently.
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "e2e-harness"})
		return err
	}
	a.cfg = cfg

	observability.InitializeLogger(cfg.Logger)
	a.logger = observability.GetLogger()
	a.logger.Debug("Configuration loaded.",
		zap.String("command", cmd.Name()),
		zap.String("config_file", a.v.ConfigFileUsed()),
		zap.String("base_url", cfg.Server.BaseURL))
	return nil
}
