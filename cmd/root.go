// Package cmd wires the mnemo CLI: serve, consolidate, migrate,
// search, and version subcommands over the memory engine.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joilabs/mnemo/internal/log"
)

var (
	flagLogLevel string
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "mnemo - long-term memory engine for conversational agents",
	Long: `mnemo stores, retrieves, and maintains an agent's long-term memory:
hybrid vector+text search with diversity reranking, a verified-fact
store, scheduled consolidation, and post-turn learning hooks.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false,
		"emit logs as JSON")
}

// newLogger builds the process logger from the persistent flags and
// installs it as the slog default.
func newLogger() *slog.Logger {
	var level slog.Level
	switch flagLogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := log.New(log.Config{Level: level, JSON: flagJSONLogs})
	slog.SetDefault(logger)
	return logger
}
