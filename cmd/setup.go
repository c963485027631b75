package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/joilabs/mnemo/internal/config"
	"github.com/joilabs/mnemo/internal/consolidate"
	"github.com/joilabs/mnemo/internal/database"
	"github.com/joilabs/mnemo/internal/embed"
	"github.com/joilabs/mnemo/internal/facts"
	"github.com/joilabs/mnemo/internal/hooks"
	"github.com/joilabs/mnemo/internal/llm"
	"github.com/joilabs/mnemo/internal/memory"
	"github.com/joilabs/mnemo/internal/observability"
	"github.com/joilabs/mnemo/internal/tasks"
)

// engine bundles the constructed components for a command run.
type engine struct {
	cfg      *config.Config
	pool     *pgxpool.Pool
	embedder *embed.Client
	store    *memory.Store
	searcher *memory.Searcher
	facts    *facts.Store
	runner   *tasks.Executor
	hooks    *hooks.Hooks
	job      *consolidate.Job
	sched    *consolidate.Scheduler

	shutdownTracing func(context.Context) error
}

// setupEngine wires the full component graph from configuration.
// withLLM skips Genkit initialization for commands that never call the
// model (search, migrate).
func setupEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, withLLM bool) (*engine, error) {
	e := &engine{cfg: cfg}

	if cfg.Tracing.Enabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		e.shutdownTracing = shutdown
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	e.pool = pool

	e.embedder = embed.NewClient(embed.Config{
		BaseURL: cfg.EmbedderHost,
		Model:   cfg.EmbedderModel,
	}, logger.With("component", "embed"))

	e.store, err = memory.NewStore(pool, e.embedder, logger.With("component", "memory"))
	if err != nil {
		e.Close(ctx)
		return nil, err
	}
	e.facts, err = facts.NewStore(pool, logger.With("component", "facts"))
	if err != nil {
		e.Close(ctx)
		return nil, err
	}

	e.runner = tasks.NewExecutor(ctx, logger.With("component", "tasks"))

	e.searcher, err = memory.NewSearcher(e.store, e.runner,
		logger.With("component", "search"),
		memory.SearcherOpts{MMRLambda: cfg.SearchLambda, DisableRerank: cfg.DisableRerank})
	if err != nil {
		e.Close(ctx)
		return nil, err
	}

	var client llm.Client
	if withLLM {
		client, err = llm.NewGenkitClient(ctx, llm.Config{
			Provider:   cfg.Provider,
			ModelName:  cfg.ModelName,
			OllamaHost: cfg.OllamaHost,
		}, logger.With("component", "llm"))
		if err != nil {
			e.Close(ctx)
			return nil, fmt.Errorf("initializing llm client: %w", err)
		}

		limiter := rate.NewLimiter(rate.Every(cfg.HooksCooldownDuration()), 1)
		e.hooks, err = hooks.New(limiter, e.runner, e.store, e.searcher,
			e.facts, client, logger.With("component", "hooks"))
		if err != nil {
			e.Close(ctx)
			return nil, err
		}
	}

	var merger consolidate.Merger
	if client != nil {
		merger = consolidate.NewLLMMerger(client, logger.With("component", "merge"))
	}
	e.job, err = consolidate.NewJob(e.store, e.facts, merger,
		logger.With("component", "consolidate"))
	if err != nil {
		e.Close(ctx)
		return nil, err
	}
	e.sched = consolidate.NewScheduler(e.job, cfg.MaintenanceIntervalDuration(),
		cfg.MaintenanceLockPath, logger.With("component", "consolidate"))

	return e, nil
}

// Close drains background work and releases every resource.
func (e *engine) Close(ctx context.Context) {
	if e.runner != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := e.runner.Drain(drainCtx); err != nil {
			slog.Warn("background tasks did not drain cleanly", "error", err)
		}
		cancel()
		e.runner.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.shutdownTracing != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.shutdownTracing(flushCtx); err != nil {
			slog.Warn("trace flush failed", "error", err)
		}
		cancel()
	}
}
