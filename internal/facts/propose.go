package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Proposal is one extracted triple offered to the engine. Subject,
// predicate, and object arrive raw; ProposeFact normalizes them.
type Proposal struct {
	Subject    string
	Predicate  string
	Object     string
	Category   Category
	Confidence float64
	Source     string
	Tags       []string
}

// ProposeFact runs the full proposal pipeline: normalize the triple,
// apply the noise gate, then merge into an existing row or insert a
// new unverified one. A review item is enqueued (idempotently) for any
// fact that ends up unverified.
//
// Rejections surface as wrapped ErrLowSignal; callers on the learning
// path swallow those with errors.Is rather than logging them as
// failures.
func (s *Store) ProposeFact(ctx context.Context, p Proposal) (*Fact, error) {
	if !p.Category.Valid() {
		p.Category = CategoryOther
	}
	subject, predicate, object := NormalizeTriple(p.Subject, p.Predicate, p.Object, p.Category)
	if err := CheckProposal(subject, predicate, object); err != nil {
		return nil, err
	}
	conf := clampProposalConfidence(p.Confidence)

	existing, err := s.FindByTriple(ctx, subject, predicate, object)
	switch {
	case err == nil:
		f, err := s.mergeProposal(ctx, existing, p, conf)
		if err != nil {
			return nil, err
		}
		return f, s.maybeEnqueueReview(ctx, f)
	case errors.Is(err, ErrNotFound):
		// fall through to insert
	default:
		return nil, err
	}

	f, err := s.insertFact(ctx, &Fact{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Category:   p.Category,
		Status:     StatusUnverified,
		Confidence: conf,
		Source:     p.Source,
		Tags:       p.Tags,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fact proposed",
		"fact_id", f.ID,
		"subject", f.Subject,
		"predicate", f.Predicate,
	)
	return f, s.maybeEnqueueReview(ctx, f)
}

// mergeProposal folds a repeat proposal into its existing row. The
// merge keeps the higher confidence, unions tags, refreshes category
// and source, and preserves a verified status. An outdated row is
// reactivated to unverified: the re-proposal counts as fresh evidence,
// not as a transition of the stale claim.
func (s *Store) mergeProposal(ctx context.Context, existing *Fact, p Proposal, conf float64) (*Fact, error) {
	f := *existing
	if conf > f.Confidence {
		f.Confidence = conf
	}
	f.Confidence = clampProposalConfidence(f.Confidence)
	f.Tags = unionTags(f.Tags, p.Tags)
	if p.Category.Valid() && p.Category != CategoryOther {
		f.Category = p.Category
	}
	if p.Source != "" {
		f.Source = p.Source
	}
	switch f.Status {
	case StatusVerified:
		// keep it; repeat evidence never downgrades a verified fact
	default:
		f.Status = StatusUnverified
	}
	if err := s.saveFact(ctx, &f); err != nil {
		return nil, err
	}
	s.logger.Debug("fact proposal merged",
		"fact_id", f.ID,
		"status", string(f.Status),
		"confidence", f.Confidence,
	)
	return &f, nil
}

// maybeEnqueueReview enqueues a verification item for unverified facts
// only; verified and outdated rows never re-enter the queue here.
func (s *Store) maybeEnqueueReview(ctx context.Context, f *Fact) error {
	if f.Status != StatusUnverified {
		return nil
	}
	if _, err := s.EnqueueReview(ctx, f); err != nil {
		return fmt.Errorf("enqueueing review for fact %s: %w", f.ID, err)
	}
	return nil
}

// MarkConflictingFactsOutdated retires every active fact that shares a
// normalized (subject, predicate) with the winning triple but carries a
// different object. Used after a user correction: the new claim wins,
// the competing ones archive. Returns the ids retired.
func (s *Store) MarkConflictingFactsOutdated(ctx context.Context, subject, predicate, winningObject string) ([]uuid.UUID, error) {
	subject = NormalizeSubject(subject)
	competitors, err := s.listBySubjectPredicate(ctx, subject, predicate)
	if err != nil {
		return nil, err
	}
	winner := strings.ToLower(strings.TrimSpace(winningObject))
	var retired []uuid.UUID
	for _, c := range competitors {
		if strings.ToLower(strings.TrimSpace(c.Object)) == winner {
			continue
		}
		if err := s.transitionStatus(ctx, c, StatusOutdated); err != nil {
			return retired, fmt.Errorf("retiring fact %s: %w", c.ID, err)
		}
		retired = append(retired, c.ID)
	}
	if len(retired) > 0 {
		s.logger.Info("conflicting facts retired",
			"subject", subject,
			"predicate", predicate,
			"count", len(retired),
		)
	}
	return retired, nil
}

func clampProposalConfidence(c float64) float64 {
	if c < ProposalConfidenceFloor {
		return ProposalConfidenceFloor
	}
	if c > ProposalConfidenceCeiling {
		return ProposalConfidenceCeiling
	}
	return c
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range b {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
