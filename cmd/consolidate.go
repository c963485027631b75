package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joilabs/mnemo/internal/config"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation cycle and exit",
	Long: `consolidate runs the maintenance job once: merge near-duplicate
memories, decay unused ones, garbage-collect dead rows, and clean up
the fact and review stores. Safe to run alongside serve — a file lock
prevents double execution.`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	eng, err := setupEngine(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	eng.sched.RunOnce(ctx)
	return nil
}
