package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	appConfig *config.Config
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockwatch",
		Short: "Stockwatch watches product pages and alerts when they become purchasable.",
		Long: `Stockwatch fetches the configured product pages, decides whether each one
shows a purchasable / in-stock signal and posts a single alert to a Discord
or Slack webhook for every distinct page state.

Run "stockwatch check" from an external scheduler, or "stockwatch watch"
to run on the built-in cron schedule.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.stockwatch.yaml or $HOME/.stockwatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override app.log_level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewStateCmd())
	rootCmd.AddCommand(NewClassifyCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables before any subcommand
// runs, then applies the logging settings.
func initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	if err := logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat, os.Stderr); err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}

	if cfg.App.ConfigFile != "" {
		logger.Debug("Using config file", "path", cfg.App.ConfigFile)
	}

	appConfig = cfg
	return nil
}
