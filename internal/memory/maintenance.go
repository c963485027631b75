package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	// MergeSimilarityThreshold is the cosine similarity above which two
	// active memories are considered near-duplicates.
	MergeSimilarityThreshold = 0.9

	// ContentMergeCeiling: above this similarity the texts are close
	// enough that an LLM content merge adds nothing.
	ContentMergeCeiling = 0.98

	// MaxMergePairsPerArea bounds one consolidation run's merge work.
	MaxMergePairsPerArea = 20

	// FlatDecayStep is the confidence erosion applied to unused rows.
	FlatDecayStep = 0.05

	// FlatDecayFloor is the lowest confidence flat decay produces.
	FlatDecayFloor = 0.05

	// GCConfidenceCeiling: superseded rows at or below this confidence
	// are eligible for garbage collection.
	GCConfidenceCeiling = 0.05

	// UnusedAfterDays is the access staleness window for flat decay.
	UnusedAfterDays = 30
)

// MergePair is a near-duplicate candidate found by FindMergePairs.
type MergePair struct {
	FirstID       uuid.UUID
	SecondID      uuid.UUID
	FirstConf     float64
	SecondConf    float64
	FirstContent  string
	SecondContent string
	Similarity    float64
}

// Winner returns the surviving id and the losing id. Higher confidence
// wins; a tie keeps the pair's first member. The tie-break is an
// incidental ordering artifact preserved for determinism, not a
// "prefer older" policy.
func (p MergePair) Winner() (winner, loser uuid.UUID) {
	if p.SecondConf > p.FirstConf {
		return p.SecondID, p.FirstID
	}
	return p.FirstID, p.SecondID
}

// WinnerContents returns (winner content, loser content) matching Winner.
func (p MergePair) WinnerContents() (winner, loser string) {
	if p.SecondConf > p.FirstConf {
		return p.SecondContent, p.FirstContent
	}
	return p.FirstContent, p.SecondContent
}

// FindMergePairs returns active near-duplicate pairs within an area,
// ordered by similarity descending and capped at MaxMergePairsPerArea.
// Only rows with embeddings participate: similarity is cosine over
// pgvector.
func (s *Store) FindMergePairs(ctx context.Context, area Area) ([]MergePair, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, b.id, a.confidence, b.confidence, a.content, b.content,
		        1 - (a.embedding <=> b.embedding) AS similarity
		 FROM memories a
		 JOIN memories b ON a.id < b.id
		 WHERE a.area = $1 AND b.area = $1
		   AND a.superseded_by IS NULL AND b.superseded_by IS NULL
		   AND a.embedding IS NOT NULL AND b.embedding IS NOT NULL
		   AND 1 - (a.embedding <=> b.embedding) > $2
		 ORDER BY similarity DESC
		 LIMIT $3`,
		area, MergeSimilarityThreshold, MaxMergePairsPerArea,
	)
	if err != nil {
		return nil, fmt.Errorf("finding merge pairs: %w", err)
	}
	defer rows.Close()

	var pairs []MergePair
	for rows.Next() {
		var p MergePair
		if err := rows.Scan(&p.FirstID, &p.SecondID, &p.FirstConf, &p.SecondConf,
			&p.FirstContent, &p.SecondContent, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning merge pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merge pairs: %w", err)
	}
	return pairs, nil
}

// DecayUnused applies the flat confidence erosion: -FlatDecayStep
// (floored) for non-pinned rows outside the identity area with
// confidence > 0.1 and no access in UnusedAfterDays. Returns the
// number of rows decayed.
func (s *Store) DecayUnused(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET confidence = GREATEST($1::float8, confidence - $2::float8),
		     updated_at = now()
		 WHERE superseded_by IS NULL
		   AND NOT pinned
		   AND area <> $3
		   AND confidence > 0.1
		   AND last_accessed_at < now() - make_interval(days => $4)`,
		FlatDecayFloor, FlatDecayStep, AreaIdentity, UnusedAfterDays,
	)
	if err != nil {
		return 0, fmt.Errorf("decaying unused memories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GCStale hard-deletes leaf rows (no other row points at them through
// superseded_by) that are either superseded with confidence at or
// below GCConfidenceCeiling, or expired. Pinned rows are never
// collected. Returns the number of rows deleted.
//
// Referential integrity first: the NOT EXISTS guard makes deletion of
// a row that is still a supersession target impossible, so chains are
// collected leaf-inward across successive runs.
func (s *Store) GCStale(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM memories m
		 WHERE NOT m.pinned
		   AND NOT EXISTS (
		     SELECT 1 FROM memories child WHERE child.superseded_by = m.id
		   )
		   AND (
		     (m.superseded_by IS NOT NULL AND m.confidence <= $1)
		     OR (m.expires_at IS NOT NULL AND m.expires_at < now())
		   )`,
		GCConfidenceCeiling,
	)
	if err != nil {
		return 0, fmt.Errorf("garbage collecting memories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RetireLegacyAreas force-expires and confidence-caps active rows still
// in the deprecated identity/preferences areas, ceding authority to the
// facts table. Pinned and user-sourced rows are left alone. Returns
// the number of rows retired.
func (s *Store) RetireLegacyAreas(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET expires_at = now(),
		     confidence = LEAST(confidence, $1::float8),
		     updated_at = now()
		 WHERE superseded_by IS NULL
		   AND NOT pinned
		   AND source <> $2
		   AND area = ANY($3)
		   AND (expires_at IS NULL OR expires_at > now())`,
		GCConfidenceCeiling, SourceUser, []string{string(AreaIdentity), string(AreaPreferences)},
	)
	if err != nil {
		return 0, fmt.Errorf("retiring legacy areas: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// SetContent replaces a row's content after an LLM-assisted merge,
// re-embedding the merged text (best-effort).
func (s *Store) SetContent(ctx context.Context, id uuid.UUID, content string) error {
	if content == "" || len(content) > MaxContentLength {
		return fmt.Errorf("invalid merged content length %d", len(content))
	}
	vec := s.embed(ctx, content)
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET content = $1, embedding = COALESCE($2, embedding), updated_at = now()
		 WHERE id = $3`,
		content, vec, id,
	)
	if err != nil {
		return fmt.Errorf("setting merged content on %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
