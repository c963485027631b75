package facts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// TriageStaleAfter is how long a low-priority triage item may sit
	// before auto-rejection considers it abandoned.
	TriageStaleAfter = 12 * time.Hour

	// BackfillReviewBatch bounds one verification-backfill pass.
	BackfillReviewBatch = 100
)

// CleanupDuplicates collapses facts that normalize to the same triple
// into a single survivor. Ranking is verified status first, then
// confidence, then recency; losers archive rather than delete, and a
// verified row is never displaced by an unverified one regardless of
// confidence.
func (s *Store) CleanupDuplicates(ctx context.Context) (int, error) {
	active, err := s.ListActive(ctx, 0)
	if err != nil {
		return 0, err
	}

	groups := make(map[string][]*Fact)
	for _, f := range active {
		subj, pred, obj := NormalizeTriple(f.Subject, f.Predicate, f.Object, f.Category)
		key := strings.ToLower(subj) + "\x00" + strings.ToLower(pred) + "\x00" + strings.ToLower(obj)
		groups[key] = append(groups[key], f)
	}

	retired := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			a, b := group[i], group[j]
			if (a.Status == StatusVerified) != (b.Status == StatusVerified) {
				return a.Status == StatusVerified
			}
			if a.Confidence != b.Confidence {
				return a.Confidence > b.Confidence
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		})
		for _, loser := range group[1:] {
			if loser.Status == StatusVerified && group[0].Status != StatusVerified {
				continue
			}
			if err := s.transitionStatus(ctx, loser, StatusOutdated); err != nil {
				return retired, fmt.Errorf("retiring duplicate %s: %w", loser.ID, err)
			}
			retired++
		}
	}
	if retired > 0 {
		s.logger.Info("duplicate facts retired", "count", retired)
	}
	return retired, nil
}

// ReduceIdentityConflicts thins competing unverified (user, is, ...)
// claims down to the single most plausible one: highest confidence,
// most recent on ties. Verified identity claims are untouchable here;
// conflicts among them are surfaced to a reviewer, not auto-resolved.
func (s *Store) ReduceIdentityConflicts(ctx context.Context) (int, error) {
	claims, err := s.listBySubjectPredicate(ctx, "user", "is")
	if err != nil {
		return 0, err
	}
	var unverified []*Fact
	for _, f := range claims {
		if f.Status == StatusUnverified {
			unverified = append(unverified, f)
		}
	}
	if len(unverified) < 2 {
		return 0, nil
	}
	sort.SliceStable(unverified, func(i, j int) bool {
		if unverified[i].Confidence != unverified[j].Confidence {
			return unverified[i].Confidence > unverified[j].Confidence
		}
		return unverified[i].UpdatedAt.After(unverified[j].UpdatedAt)
	})
	retired := 0
	for _, loser := range unverified[1:] {
		if err := s.transitionStatus(ctx, loser, StatusOutdated); err != nil {
			return retired, fmt.Errorf("retiring identity claim %s: %w", loser.ID, err)
		}
		retired++
	}
	if retired > 0 {
		s.logger.Info("identity conflicts reduced",
			"kept", unverified[0].ID,
			"retired", retired,
		)
	}
	return retired, nil
}

// OutdateNoisyBackfill archives unverified facts whose object matches
// the extraction-noise heuristics. These are rows that slipped in
// before the noise gate existed, or via bulk backfill paths that
// bypass it. Facts the user stated or corrected directly are exempt:
// they already passed the propose-time gate and the phrasing is the
// user's own.
func (s *Store) OutdateNoisyBackfill(ctx context.Context) (int, error) {
	active, err := s.ListActive(ctx, 0)
	if err != nil {
		return 0, err
	}
	retired := 0
	for _, f := range active {
		if f.Status != StatusUnverified {
			continue
		}
		if f.Source == SourceUser || f.Source == SourceFeedback {
			continue
		}
		if !NoisyBackfillObject(f.Object) {
			continue
		}
		if err := s.transitionStatus(ctx, f, StatusOutdated); err != nil {
			return retired, fmt.Errorf("retiring noisy fact %s: %w", f.ID, err)
		}
		retired++
	}
	if retired > 0 {
		s.logger.Info("noisy backfill facts retired", "count", retired)
	}
	return retired, nil
}

// noisyTriageMarkers flag triage items generated from ambient social
// and notification chatter rather than actionable requests.
var noisyTriageMarkers = []string{
	"liked your", "reacted to", "mentioned you", "tagged you",
	"started following", "now following", "birthday", "invitation to connect",
	"newsletter", "digest", "unsubscribe",
}

// RejectStaleTriageReviews auto-rejects low-priority triage items that
// have sat unresolved past TriageStaleAfter and read like notification
// noise. Actionable-looking items stay in the queue no matter how old.
func (s *Store) RejectStaleTriageReviews(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-TriageStaleAfter)
	rows, err := s.pool.Query(ctx,
		`SELECT `+reviewCols+`
		 FROM objects
		 WHERE collection = $1 AND status = $2
		   AND payload->>'type' = $3
		   AND COALESCE(payload->>'priority', $4) = $4
		   AND created_at < $5`,
		collectionReviews, string(ReviewPending), ReviewTypeTriage,
		PriorityLow, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("listing stale triage items: %w", err)
	}
	var stale []*ReviewItem
	for rows.Next() {
		r, scanErr := scanReview(rows)
		if scanErr != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning triage item: %w", scanErr)
		}
		stale = append(stale, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating triage items: %w", err)
	}

	rejected := 0
	for _, r := range stale {
		if !noisyTriageTitle(r.Title) {
			continue
		}
		if err := s.closeReview(ctx, r, ReviewAutoRejected, "stale notification noise"); err != nil {
			return rejected, err
		}
		rejected++
	}
	if rejected > 0 {
		s.logger.Info("stale triage reviews auto-rejected", "count", rejected)
	}
	return rejected, nil
}

func noisyTriageTitle(title string) bool {
	t := strings.ToLower(title)
	for _, marker := range noisyTriageMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// BackfillVerificationReviews enqueues review items for unverified
// facts that have none, up to BackfillReviewBatch per pass. Enqueue is
// idempotent, so re-running after a partial failure is safe.
func (s *Store) BackfillVerificationReviews(ctx context.Context) (int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factCols+`
		 FROM objects f
		 WHERE f.collection = $1 AND f.status = $2
		   AND NOT EXISTS (
		     SELECT 1 FROM objects r
		     WHERE r.collection = $3 AND r.status = $4
		       AND r.payload->>'type' = $5
		       AND r.payload->>'fact_id' = f.id::text
		   )
		 ORDER BY f.created_at ASC
		 LIMIT $6`,
		collectionFacts, string(StatusUnverified),
		collectionReviews, string(ReviewPending), ReviewTypeVerification,
		BackfillReviewBatch,
	)
	if err != nil {
		return 0, fmt.Errorf("listing facts missing reviews: %w", err)
	}
	missing, err := scanFacts(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	created := 0
	for _, f := range missing {
		if _, err := s.EnqueueReview(ctx, f); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		s.logger.Info("verification reviews backfilled", "count", created)
	}
	return created, nil
}
