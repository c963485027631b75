package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joilabs/mnemo/db"
	"github.com/joilabs/mnemo/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the memory engine with the consolidation scheduler",
	Long: `serve runs the engine as a long-lived process: applies pending
migrations, verifies the embedding service, and keeps the
consolidation scheduler running until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	eng, err := setupEngine(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background())

	// The embedder is optional at startup: searches degrade to
	// text-only until it comes up.
	health := eng.embedder.CheckHealth(ctx)
	switch {
	case !health.Available:
		logger.Warn("embedding service unavailable, running text-only until it recovers")
	case !health.ModelLoaded:
		logger.Info("embedding model not loaded, pulling", "model", eng.embedder.Model())
		if err := eng.embedder.Pull(ctx); err != nil {
			logger.Warn("model pull failed, running text-only", "error", err)
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.sched.Run(ctx)
	}()

	logger.Info("mnemo serving",
		"maintenance_interval", cfg.MaintenanceInterval,
		"provider", cfg.Provider,
	)
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}
