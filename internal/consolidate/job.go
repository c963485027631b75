// Package consolidate implements the scheduled maintenance job: merge
// near-duplicate memories, decay unused ones, garbage-collect dead
// rows, and run the facts hygiene passes. Stages are isolated — one
// failing stage contributes zero to the report and never blocks the
// next — so a partially successful run still improves the store.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/google/uuid"
	"github.com/joilabs/mnemo/internal/facts"
	"github.com/joilabs/mnemo/internal/llm"
	"github.com/joilabs/mnemo/internal/memory"
)

// Merger combines two memory contents into one. Satisfied by a closure
// over llm.MergeContents; nil disables LLM merging (winner's content
// stays as-is).
type Merger func(ctx context.Context, first, second string) (string, error)

// Job runs one consolidation cycle over memories and facts.
type Job struct {
	memories *memory.Store
	facts    *facts.Store
	merger   Merger
	logger   *slog.Logger
}

// NewJob creates a consolidation job. merger may be nil.
func NewJob(memories *memory.Store, factStore *facts.Store, merger Merger, logger *slog.Logger) (*Job, error) {
	if memories == nil || factStore == nil {
		return nil, fmt.Errorf("memory and fact stores are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{memories: memories, facts: factStore, merger: merger, logger: logger}, nil
}

// NewLLMMerger adapts an llm.Client into a Merger.
func NewLLMMerger(c llm.Client, logger *slog.Logger) Merger {
	return func(ctx context.Context, first, second string) (string, error) {
		return llm.MergeContents(ctx, c, logger, first, second)
	}
}

// Report aggregates per-stage counts for one run. A failed stage
// reports zero.
type Report struct {
	MergedPairs       int
	Decayed           int
	Collected         int
	LegacyRetired     int
	DuplicateFacts    int
	IdentityConflicts int
	NoisyFacts        int
	StaleTriage       int
	ReviewsBackfilled int
}

// Run executes every stage in order and returns the aggregate report.
// Run itself only fails when ctx is already dead; stage errors are
// logged and absorbed.
func (j *Job) Run(ctx context.Context) (Report, error) {
	ctx, span := otel.Tracer("mnemo/consolidate").Start(ctx, "consolidate.run")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("consolidation aborted: %w", err)
	}

	var r Report
	j.stage(ctx, "merge_duplicates", func(ctx context.Context) (int, error) {
		return j.mergeDuplicates(ctx)
	}, &r.MergedPairs)
	j.stage(ctx, "decay_unused", j.memories.DecayUnused, &r.Decayed)
	j.stage(ctx, "gc_stale", j.memories.GCStale, &r.Collected)
	j.stage(ctx, "retire_legacy_areas", j.memories.RetireLegacyAreas, &r.LegacyRetired)
	j.stage(ctx, "facts_dedupe", j.facts.CleanupDuplicates, &r.DuplicateFacts)
	j.stage(ctx, "facts_identity_conflicts", j.facts.ReduceIdentityConflicts, &r.IdentityConflicts)
	j.stage(ctx, "facts_noisy_backfill", j.facts.OutdateNoisyBackfill, &r.NoisyFacts)
	j.stage(ctx, "reviews_stale_triage", j.facts.RejectStaleTriageReviews, &r.StaleTriage)
	j.stage(ctx, "reviews_backfill", j.facts.BackfillVerificationReviews, &r.ReviewsBackfilled)

	span.SetAttributes(
		attribute.Int("consolidate.merged_pairs", r.MergedPairs),
		attribute.Int("consolidate.decayed", r.Decayed),
		attribute.Int("consolidate.collected", r.Collected),
	)
	j.logger.Info("consolidation finished",
		"merged_pairs", r.MergedPairs,
		"decayed", r.Decayed,
		"collected", r.Collected,
		"legacy_retired", r.LegacyRetired,
		"duplicate_facts", r.DuplicateFacts,
		"identity_conflicts", r.IdentityConflicts,
		"noisy_facts", r.NoisyFacts,
		"stale_triage", r.StaleTriage,
		"reviews_backfilled", r.ReviewsBackfilled,
	)
	return r, nil
}

// stage runs one pass with panic and error isolation.
func (j *Job) stage(ctx context.Context, name string, fn func(context.Context) (int, error), out *int) {
	defer func() {
		if rec := recover(); rec != nil {
			j.logger.Error("consolidation stage panicked",
				"stage", name,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			*out = 0
		}
	}()
	n, err := fn(ctx)
	if err != nil {
		j.logger.Warn("consolidation stage failed", "stage", name, "error", err)
		*out = 0
		return
	}
	*out = n
}

// mergeDuplicates folds near-duplicate memory pairs per area. The
// loser supersedes into the winner; when contents differ and
// similarity is below the content-merge ceiling, an LLM merge rewrites
// the winner's content (best-effort — a failed merge keeps the
// winner's original text). Each id participates in at most one merge
// per run so chains settle over successive cycles.
func (j *Job) mergeDuplicates(ctx context.Context) (int, error) {
	touched := make(map[uuid.UUID]struct{})
	merged := 0
	for _, area := range memory.DefaultAreas() {
		pairs, err := j.memories.FindMergePairs(ctx, area)
		if err != nil {
			return merged, fmt.Errorf("finding merge pairs in %s: %w", area, err)
		}
		for _, pair := range pairs {
			if _, ok := touched[pair.FirstID]; ok {
				continue
			}
			if _, ok := touched[pair.SecondID]; ok {
				continue
			}
			winner, loser := pair.Winner()

			if j.merger != nil && pair.Similarity < memory.ContentMergeCeiling {
				winContent, loseContent := pair.WinnerContents()
				if winContent != loseContent {
					if combined, mergeErr := j.merger(ctx, winContent, loseContent); mergeErr != nil {
						j.logger.Warn("content merge failed, keeping winner as-is",
							"winner", winner, "error", mergeErr)
					} else if err := j.memories.SetContent(ctx, winner, combined); err != nil {
						j.logger.Warn("storing merged content failed",
							"winner", winner, "error", err)
					}
				}
			}

			if err := j.memories.Supersede(ctx, loser, winner); err != nil {
				j.logger.Warn("superseding duplicate failed",
					"loser", loser, "winner", winner, "error", err)
				continue
			}
			touched[pair.FirstID] = struct{}{}
			touched[pair.SecondID] = struct{}{}
			merged++
		}
	}
	return merged, nil
}
