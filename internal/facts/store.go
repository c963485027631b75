package facts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Object-store collections. Facts and review items share one generic
// table; the typed structs in this package are the only way in or out.
const (
	collectionFacts   = "facts"
	collectionReviews = "reviews"
)

// Store persists facts and review items through the generic objects
// table.
//
// Store is safe for concurrent use by multiple goroutines. The
// propose and enqueue paths are read-then-write without a uniqueness
// constraint: duplicates are tolerated and reconciled by the
// consolidator's dedupe pass (at-least-once by design).
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a facts Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// factPayload is the JSONB shape of a fact record. Kept separate from
// the exported Fact so the wire format can evolve behind this boundary.
type factPayload struct {
	Subject    string     `json:"subject"`
	Predicate  string     `json:"predicate"`
	Object     string     `json:"object"`
	Category   Category   `json:"category"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	VerifiedBy string     `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// reviewPayload is the JSONB shape of a review item.
type reviewPayload struct {
	FactID         uuid.UUID `json:"fact_id"`
	Type           string    `json:"type"`
	ProposedAction string    `json:"proposed_action,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	Resolution     string    `json:"resolution,omitempty"`
}

func factTitle(subject, predicate, object string) string {
	title := subject + " " + predicate + " " + object
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}

// insertFact writes a new fact record and returns it.
func (s *Store) insertFact(ctx context.Context, f *Fact) (*Fact, error) {
	payload, err := json.Marshal(factPayload{
		Subject: f.Subject, Predicate: f.Predicate, Object: f.Object,
		Category: f.Category, Confidence: f.Confidence,
		Source: f.Source, Notes: f.Notes,
		VerifiedBy: f.VerifiedBy, VerifiedAt: f.VerifiedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding fact payload: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO objects (collection, title, payload, tags, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		collectionFacts, factTitle(f.Subject, f.Predicate, f.Object),
		payload, tagsOrEmpty(f.Tags), string(f.Status),
	)
	out := *f
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("inserting fact: %w", err)
	}
	return &out, nil
}

// saveFact rewrites an existing fact record in full.
func (s *Store) saveFact(ctx context.Context, f *Fact) error {
	payload, err := json.Marshal(factPayload{
		Subject: f.Subject, Predicate: f.Predicate, Object: f.Object,
		Category: f.Category, Confidence: f.Confidence,
		Source: f.Source, Notes: f.Notes,
		VerifiedBy: f.VerifiedBy, VerifiedAt: f.VerifiedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding fact payload: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE objects
		 SET title = $1, payload = $2, tags = $3, status = $4, updated_at = now()
		 WHERE id = $5 AND collection = $6`,
		factTitle(f.Subject, f.Predicate, f.Object), payload,
		tagsOrEmpty(f.Tags), string(f.Status), f.ID, collectionFacts,
	)
	if err != nil {
		return fmt.Errorf("saving fact %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFact decodes one fact row (id, payload, tags, status, timestamps).
func scanFact(row pgx.Row) (*Fact, error) {
	f := &Fact{}
	var payload []byte
	var status string
	if err := row.Scan(&f.ID, &payload, &f.Tags, &status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	var p factPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding fact payload: %w", err)
	}
	f.Subject, f.Predicate, f.Object = p.Subject, p.Predicate, p.Object
	f.Category, f.Confidence = p.Category, p.Confidence
	f.Source, f.Notes = p.Source, p.Notes
	f.VerifiedBy, f.VerifiedAt = p.VerifiedBy, p.VerifiedAt
	f.Status = Status(status)
	return f, nil
}

const factCols = `id, payload, tags, status, created_at, updated_at`

// Get returns one fact by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Fact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+factCols+` FROM objects WHERE id = $1 AND collection = $2`,
		id, collectionFacts,
	)
	f, err := scanFact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting fact %s: %w", id, err)
	}
	return f, nil
}

// FindByTriple looks up an existing fact by case-insensitive triple
// match, preferring active rows, then most recently updated.
func (s *Store) FindByTriple(ctx context.Context, subject, predicate, object string) (*Fact, error) {
	// Booleans sort false-first ascending, so (status = outdated) puts
	// active rows ahead of archived ones.
	row := s.pool.QueryRow(ctx,
		`SELECT `+factCols+`
		 FROM objects
		 WHERE collection = $1
		   AND lower(payload->>'subject') = lower($2)
		   AND lower(payload->>'predicate') = lower($3)
		   AND lower(payload->>'object') = lower($4)
		 ORDER BY (status = $5), updated_at DESC
		 LIMIT 1`,
		collectionFacts, subject, predicate, object, string(StatusOutdated),
	)
	f, err := scanFact(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding fact by triple: %w", err)
	}
	return f, nil
}

// ListActive returns non-outdated facts, most recent first. A
// non-positive limit returns everything: the consolidation passes scan
// the full active set and must not silently skip rows.
func (s *Store) ListActive(ctx context.Context, limit int) ([]*Fact, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+factCols+`
		 FROM objects
		 WHERE collection = $1 AND status <> $2
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		collectionFacts, string(StatusOutdated), lim,
	)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// listBySubjectPredicate returns active facts sharing a normalized
// (subject, predicate), case-insensitive.
func (s *Store) listBySubjectPredicate(ctx context.Context, subject, predicate string) ([]*Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factCols+`
		 FROM objects
		 WHERE collection = $1 AND status <> $2
		   AND lower(payload->>'subject') = lower($3)
		   AND lower(payload->>'predicate') = lower($4)
		 ORDER BY updated_at DESC`,
		collectionFacts, string(StatusOutdated), subject, predicate,
	)
	if err != nil {
		return nil, fmt.Errorf("listing facts by subject/predicate: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func scanFacts(rows pgx.Rows) ([]*Fact, error) {
	var out []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return out, nil
}

// transitionStatus validates and applies a status change. Facts are
// never hard-deleted: StatusOutdated is the archive state.
func (s *Store) transitionStatus(ctx context.Context, f *Fact, to Status) error {
	next, err := Transition(f.Status, to)
	if err != nil {
		return err
	}
	f.Status = next
	return s.saveFact(ctx, f)
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// ---- review items ----

// scanReview decodes one review row.
func scanReview(row pgx.Row) (*ReviewItem, error) {
	r := &ReviewItem{}
	var payload []byte
	var status string
	if err := row.Scan(&r.ID, &r.Title, &payload, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	var p reviewPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding review payload: %w", err)
	}
	r.FactID = p.FactID
	r.Type = p.Type
	r.ProposedAction = p.ProposedAction
	r.Priority = p.Priority
	r.Resolution = p.Resolution
	r.Status = ReviewStatus(status)
	return r, nil
}

const reviewCols = `id, title, payload, status, created_at, updated_at`

// GetReview returns one review item by id.
func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (*ReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewCols+` FROM objects WHERE id = $1 AND collection = $2`,
		id, collectionReviews,
	)
	r, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting review %s: %w", id, err)
	}
	return r, nil
}

// findPendingReview returns the pending verification item for a fact,
// or ErrNotFound.
func (s *Store) findPendingReview(ctx context.Context, factID uuid.UUID) (*ReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewCols+`
		 FROM objects
		 WHERE collection = $1 AND status = $2
		   AND payload->>'fact_id' = $3
		   AND payload->>'type' = $4
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		collectionReviews, string(ReviewPending), factID.String(), ReviewTypeVerification,
	)
	r, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding pending review: %w", err)
	}
	return r, nil
}

// EnqueueReview creates or refreshes the verification review item for
// a fact. Idempotent: at most one pending item per fact id; a repeat
// proposal touches the existing item instead of duplicating it.
func (s *Store) EnqueueReview(ctx context.Context, f *Fact) (*ReviewItem, error) {
	existing, err := s.findPendingReview(ctx, f.ID)
	if err == nil {
		if _, touchErr := s.pool.Exec(ctx,
			`UPDATE objects SET updated_at = now(), title = $1 WHERE id = $2`,
			"verify: "+factTitle(f.Subject, f.Predicate, f.Object), existing.ID,
		); touchErr != nil {
			return nil, fmt.Errorf("refreshing review %s: %w", existing.ID, touchErr)
		}
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payload, err := json.Marshal(reviewPayload{
		FactID:         f.ID,
		Type:           ReviewTypeVerification,
		ProposedAction: "verify_fact",
		Priority:       PriorityNormal,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding review payload: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO objects (collection, title, payload, tags, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		collectionReviews, "verify: "+factTitle(f.Subject, f.Predicate, f.Object),
		payload, []string{}, string(ReviewPending),
	)
	item := &ReviewItem{
		FactID:         f.ID,
		Type:           ReviewTypeVerification,
		Status:         ReviewPending,
		ProposedAction: "verify_fact",
		Priority:       PriorityNormal,
	}
	if err := row.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, fmt.Errorf("inserting review: %w", err)
	}
	return item, nil
}

// closeReview stamps a review item with its final status and
// resolution note.
func (s *Store) closeReview(ctx context.Context, r *ReviewItem, status ReviewStatus, resolution string) error {
	payload, err := json.Marshal(reviewPayload{
		FactID:         r.FactID,
		Type:           r.Type,
		ProposedAction: r.ProposedAction,
		Priority:       r.Priority,
		Resolution:     resolution,
	})
	if err != nil {
		return fmt.Errorf("encoding review payload: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE objects SET status = $1, payload = $2, updated_at = now()
		 WHERE id = $3 AND collection = $4`,
		string(status), payload, r.ID, collectionReviews,
	)
	if err != nil {
		return fmt.Errorf("closing review %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.Status = status
	r.Resolution = resolution
	return nil
}
