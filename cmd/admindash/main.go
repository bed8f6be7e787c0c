package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/logging"
)

var (
	configPath string
	overrides  *config.Flags

	// Set by PersistentPreRunE for every subcommand.
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "admindash",
	Short: "LeanBalancer admin dashboard and metrics boundary server",
	Long: `admindash serves the LeanBalancer admin dashboard.

It runs two listeners: the boundary server (default :9002), which exposes
this process's metrics and admin API to the dashboard origin, and the
dashboard origin itself (default :3000), which shows a loading screen,
then the dashboard, and forwards /metrics to the boundary server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := overrides.Apply(cfg); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults built in)")
	overrides = config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd, themeCmd, clockCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
