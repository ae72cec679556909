package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/ifgate/internal/config"
	"github.com/aretw0/ifgate/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ifgate",
	Short: "ifgate serves interactive fiction interpreters over HTTP and MCP",
	Long: `ifgate runs one interpreter process (dfrotz by default) per session and turns
its terminal output into clean request/response turns. Every turn is recorded in a
transcript store (memory, sqlite or redis).

Settings come from the environment (PORT, GAME_PATH, IFGATE_*); flags override them.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("games", "", "Directory containing story files (overrides GAME_PATH)")
	rootCmd.PersistentFlags().String("store", "", "Transcript store: memory, sqlite or redis (overrides IFGATE_STORE)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides IFGATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json (overrides IFGATE_LOG_FORMAT)")
}

// loadConfig reads the environment, applies flag overrides and builds the stderr logger.
// quietLevel is used when neither the environment nor a flag chose a level.
func loadConfig(cmd *cobra.Command, quietLevel string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	if quietLevel != "" && os.Getenv("IFGATE_LOG_LEVEL") == "" {
		cfg.LogLevel = quietLevel
	}
	flags := cmd.Flags()
	if flags.Changed("games") {
		cfg.GamePath, _ = flags.GetString("games")
	}
	if flags.Changed("store") {
		cfg.Store, _ = flags.GetString("store")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.NewWith(os.Stderr, level, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
