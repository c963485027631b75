// Package hooks runs the post-turn learning pipeline: after each agent
// turn it extracts facts, captures solved problems, and applies user
// corrections — all off the response path, so the caller never waits
// on learning.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/joilabs/mnemo/internal/facts"
	"github.com/joilabs/mnemo/internal/llm"
	"github.com/joilabs/mnemo/internal/memory"
)

// DefaultCooldown bounds extraction-call spend: at most one processed
// turn per window, process-wide. Concurrent conversations share the
// one throttle.
const DefaultCooldown = 10 * time.Second

// Knowledge-correction thresholds: matches above Supersede get
// replaced outright; matches in the demote band keep living at half
// confidence.
const (
	SupersedeThreshold  = 0.3
	SoftDemoteThreshold = 0.2
)

// TaskRunner submits fire-and-forget work.
type TaskRunner interface {
	Submit(name string, fn func(ctx context.Context) error)
}

// TurnEvent describes one completed agent turn.
type TurnEvent struct {
	UserInput         string
	AssistantResponse string
	// ToolCallsRan gates solution capture: a turn without tool calls
	// solved nothing worth storing.
	ToolCallsRan   bool
	ConversationID string
	ChannelID      string
	ProjectID      string
}

// Hooks wires the three learning tasks behind a shared cooldown.
type Hooks struct {
	limiter  *rate.Limiter
	runner   TaskRunner
	memories *memory.Store
	searcher *memory.Searcher
	facts    *facts.Store
	llm      llm.Client
	logger   *slog.Logger
}

// New creates the learning hooks. The limiter is injected so tests
// can grant explicit allowances; pass
// rate.NewLimiter(rate.Every(DefaultCooldown), 1) in production.
func New(limiter *rate.Limiter, runner TaskRunner, memories *memory.Store,
	searcher *memory.Searcher, factStore *facts.Store, client llm.Client,
	logger *slog.Logger) (*Hooks, error) {

	if limiter == nil || runner == nil || memories == nil || searcher == nil ||
		factStore == nil || client == nil {
		return nil, fmt.Errorf("all hook dependencies are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		limiter:  limiter,
		runner:   runner,
		memories: memories,
		searcher: searcher,
		facts:    factStore,
		llm:      client,
		logger:   logger,
	}, nil
}

// OnTurn processes one turn. Returns immediately; the three extraction
// tasks run on the background executor, each isolated from the others.
// A turn inside the cooldown window is skipped entirely.
func (h *Hooks) OnTurn(ev TurnEvent) {
	if !h.limiter.Allow() {
		h.logger.Debug("learning hooks skipped, cooldown active")
		return
	}
	conversation := llm.FormatTurn(ev.UserInput, ev.AssistantResponse)

	h.runner.Submit("hooks.extract-facts", func(ctx context.Context) error {
		return h.extractFacts(ctx, ev, conversation)
	})
	h.runner.Submit("hooks.capture-solution", func(ctx context.Context) error {
		return h.captureSolution(ctx, ev, conversation)
	})
	h.runner.Submit("hooks.detect-correction", func(ctx context.Context) error {
		return h.detectCorrection(ctx, ev, conversation)
	})
}

// extractFacts routes each extracted triple through the proposal
// pipeline. Noise rejections are swallowed silently; real failures are
// logged per candidate without aborting the rest.
func (h *Hooks) extractFacts(ctx context.Context, ev TurnEvent, conversation string) error {
	candidates, err := llm.ExtractFacts(ctx, h.llm, h.logger, conversation)
	if err != nil {
		return fmt.Errorf("extracting facts: %w", err)
	}
	for _, c := range candidates {
		_, err := h.facts.ProposeFact(ctx, facts.Proposal{
			Subject:    c.Subject,
			Predicate:  c.Predicate,
			Object:     c.Object,
			Category:   facts.Category(c.Category),
			Confidence: c.Confidence,
			Source:     string(memory.SourceInferred),
		})
		if errors.Is(err, facts.ErrLowSignal) {
			continue
		}
		if err != nil {
			h.logger.Warn("fact proposal failed",
				"subject", c.Subject, "predicate", c.Predicate, "error", err)
		}
	}
	return nil
}

// captureSolution stores a solved problem as a solutions-area memory.
func (h *Hooks) captureSolution(ctx context.Context, ev TurnEvent, conversation string) error {
	if !ev.ToolCallsRan {
		return nil
	}
	sol, err := llm.CaptureSolution(ctx, h.llm, h.logger, conversation)
	if err != nil {
		return fmt.Errorf("capturing solution: %w", err)
	}
	if sol == nil {
		return nil
	}
	content := memory.SanitizeLines(sol.Problem + "\n\nResolution: " + sol.Resolution)
	_, err = h.memories.Write(ctx, content, memory.AreaSolutions, memory.WriteInput{
		Summary:        sol.Problem,
		Tags:           sol.Tags,
		Source:         memory.SourceSolutionCapture,
		ConversationID: ev.ConversationID,
		ChannelID:      ev.ChannelID,
		ProjectID:      ev.ProjectID,
	})
	if err != nil {
		return fmt.Errorf("writing solution memory: %w", err)
	}
	return nil
}

// detectCorrection applies an explicit user correction. Identity and
// preference corrections retire the conflicting triples and propose
// the new one; knowledge corrections search stored memories for the
// outdated claim and supersede strong matches or soft-demote weak
// ones.
func (h *Hooks) detectCorrection(ctx context.Context, ev TurnEvent, conversation string) error {
	corr, err := llm.DetectCorrection(ctx, h.llm, h.logger, conversation)
	if err != nil {
		return fmt.Errorf("detecting correction: %w", err)
	}
	if corr == nil {
		return nil
	}

	switch corr.Kind {
	case llm.CorrectionIdentity, llm.CorrectionPreference:
		category := facts.CategoryIdentity
		if corr.Kind == llm.CorrectionPreference {
			category = facts.CategoryPreference
		}
		subject, predicate, object := facts.NormalizeTriple(
			corr.Subject, corr.Predicate, corr.Object, category)
		if _, err := h.facts.MarkConflictingFactsOutdated(ctx, subject, predicate, object); err != nil {
			return fmt.Errorf("retiring corrected facts: %w", err)
		}
		_, err := h.facts.ProposeFact(ctx, facts.Proposal{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Category:   category,
			Confidence: 0.8,
			Source:     string(memory.SourceFeedback),
		})
		if errors.Is(err, facts.ErrLowSignal) {
			return nil
		}
		return err

	case llm.CorrectionKnowledge:
		return h.correctKnowledge(ctx, ev, corr)
	}
	return nil
}

func (h *Hooks) correctKnowledge(ctx context.Context, ev TurnEvent, corr *llm.Correction) error {
	results, err := h.searcher.Search(ctx, corr.Statement, memory.SearchOpts{
		Areas: []memory.Area{memory.AreaKnowledge},
		Limit: 5,
	})
	if err != nil {
		return fmt.Errorf("searching corrected knowledge: %w", err)
	}

	// A stated replacement becomes the superseding row; without one,
	// strong matches only demote, since supersession needs a successor.
	var replacement *memory.Memory
	if corr.Replacement != "" {
		replacement, err = h.memories.Write(ctx,
			memory.SanitizeLines(corr.Replacement), memory.AreaKnowledge,
			memory.WriteInput{
				Source:         memory.SourceFeedback,
				ConversationID: ev.ConversationID,
				ChannelID:      ev.ChannelID,
				ProjectID:      ev.ProjectID,
			})
		if err != nil {
			return fmt.Errorf("writing corrected knowledge: %w", err)
		}
	}

	for _, res := range results {
		switch {
		case res.Score > SupersedeThreshold && replacement != nil:
			if err := h.memories.Supersede(ctx, res.Memory.ID, replacement.ID); err != nil {
				h.logger.Warn("superseding corrected memory failed",
					"id", res.Memory.ID, "error", err)
			}
		case res.Score > SupersedeThreshold || res.Score >= SoftDemoteThreshold:
			halved := memory.ClampConfidence(res.Memory.Confidence / 2)
			if err := h.memories.Update(ctx, res.Memory.ID, memory.UpdateInput{
				Confidence: &halved,
			}); err != nil {
				h.logger.Warn("demoting corrected memory failed",
					"id", res.Memory.ID, "error", err)
			}
		}
	}
	return nil
}
