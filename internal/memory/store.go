package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Embedder converts text into a fixed-width vector. Implemented by the
// embedding-service client; failures must be treated as degradation,
// never rejection.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// memoryCols is the standard SELECT column list for scanMemories.
const memoryCols = `id, area, content, summary, tags, confidence,
	access_count, reinforcement_count, source,
	conversation_id, channel_id, project_id, scope, visibility, pinned,
	superseded_by, embedding IS NOT NULL,
	created_at, updated_at, last_accessed_at, expires_at`

// Store owns the Memory entity's lifecycle primitives: write, update,
// reinforce, supersede, delete.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates a memory Store.
func NewStore(pool *pgxpool.Pool, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates an embedding for text, returning nil on failure so
// callers can persist a vector-less row.
func (s *Store) embed(ctx context.Context, text string) *pgvector.Vector {
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	raw, err := s.embedder.Embed(embedCtx, text)
	if err != nil {
		s.logger.Warn("embedding failed, storing without vector", "error", err)
		return nil
	}
	if len(raw) == 0 {
		s.logger.Warn("empty embedding response, storing without vector")
		return nil
	}
	vec := pgvector.NewVector(raw)
	return &vec
}

// WriteInput carries the optional fields of a memory write.
type WriteInput struct {
	Summary        string
	Tags           []string
	Confidence     *float64
	Source         Source
	ConversationID string
	ChannelID      string
	ProjectID      string
	Scope          string
	Visibility     Visibility
	Pinned         bool
	ExpiresAt      *time.Time
}

// Write inserts a new memory. An embedding-service failure stores the
// row with a null vector rather than rejecting the write.
func (s *Store) Write(ctx context.Context, content string, area Area, in WriteInput) (*Memory, error) {
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if len(content) > MaxContentLength {
		return nil, fmt.Errorf("content length %d exceeds maximum %d", len(content), MaxContentLength)
	}
	if !area.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidArea, area)
	}

	confidence := DefaultConfidence
	if in.Confidence != nil {
		confidence = ClampConfidence(*in.Confidence)
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = VisibilityShared
	}
	source := in.Source
	if source == "" {
		source = SourceUser
	}

	vec := s.embed(ctx, content)

	row := s.pool.QueryRow(ctx,
		`INSERT INTO memories (area, content, summary, tags, confidence, source,
		     conversation_id, channel_id, project_id, scope, visibility, pinned,
		     embedding, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING `+memoryCols,
		area, content, in.Summary, tagsOrEmpty(in.Tags), confidence, source,
		nullable(in.ConversationID), nullable(in.ChannelID), nullable(in.ProjectID),
		nullable(in.Scope), visibility, in.Pinned, vec, in.ExpiresAt,
	)
	m, err := scanMemory(row)
	if err != nil {
		return nil, fmt.Errorf("inserting memory: %w", err)
	}
	s.logger.Debug("memory written", "id", m.ID, "area", area, "embedded", m.HasEmbedding)
	return m, nil
}

// UpdateInput carries the mutable fields of an update. Nil pointers
// leave the stored value untouched.
type UpdateInput struct {
	Content     *string
	Summary     *string
	Tags        []string
	Confidence  *float64
	Pinned      *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// Update applies a partial update. Content changes trigger a re-embed;
// if the re-embed fails the previous vector is left untouched.
func (s *Store) Update(ctx context.Context, id uuid.UUID, in UpdateInput) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	content := current.Content
	var vec *pgvector.Vector
	reEmbed := in.Content != nil && *in.Content != current.Content
	if reEmbed {
		content = *in.Content
		if len(content) > MaxContentLength {
			return fmt.Errorf("content length %d exceeds maximum %d", len(content), MaxContentLength)
		}
		vec = s.embed(ctx, content)
	}

	summary := current.Summary
	if in.Summary != nil {
		summary = *in.Summary
	}
	tags := current.Tags
	if in.Tags != nil {
		tags = in.Tags
	}
	confidence := current.Confidence
	if in.Confidence != nil {
		confidence = ClampConfidence(*in.Confidence)
	}
	pinned := current.Pinned
	if in.Pinned != nil {
		pinned = *in.Pinned
	}
	expiresAt := current.ExpiresAt
	if in.ExpiresAt != nil {
		expiresAt = in.ExpiresAt
	}
	if in.ClearExpiry {
		expiresAt = nil
	}

	// COALESCE keeps the old vector when the re-embed failed (or no
	// content change happened).
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET content = $1, summary = $2, tags = $3, confidence = $4,
		     pinned = $5, expires_at = $6,
		     embedding = COALESCE($7, embedding),
		     updated_at = now()
		 WHERE id = $8`,
		content, summary, tagsOrEmpty(tags), confidence, pinned, expiresAt, vec, id,
	)
	if err != nil {
		return fmt.Errorf("updating memory %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Reinforce bumps confidence by ReinforceStep (capped at 1.0) and
// records the access.
func (s *Store) Reinforce(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET confidence = LEAST(1.0, confidence + $1),
		     reinforcement_count = reinforcement_count + 1,
		     access_count = access_count + 1,
		     last_accessed_at = now(),
		     updated_at = now()
		 WHERE id = $2`,
		ReinforceStep, id,
	)
	if err != nil {
		return fmt.Errorf("reinforcing memory %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Supersede marks old as replaced by new: old.superseded_by = newID and
// old.confidence = 0. Guards: self-reference, double-supersede, and a
// bounded cycle walk up the chain from newID.
func (s *Store) Supersede(ctx context.Context, oldID, newID uuid.UUID) error {
	if oldID == newID {
		return fmt.Errorf("memory cannot supersede itself")
	}

	// Cycle detection: walk forward from newID.
	current := newID
	for depth := 0; depth < 10; depth++ {
		var next *uuid.UUID
		err := s.pool.QueryRow(ctx,
			`SELECT superseded_by FROM memories WHERE id = $1`, current,
		).Scan(&next)
		if err != nil || next == nil {
			break
		}
		if *next == oldID {
			return fmt.Errorf("circular supersession chain detected")
		}
		current = *next
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET superseded_by = $2, confidence = 0, updated_at = now()
		 WHERE id = $1 AND superseded_by IS NULL`,
		oldID, newID,
	)
	if err != nil {
		return fmt.Errorf("superseding memory %s: %w", oldID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if lookupErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM memories WHERE id = $1)`, oldID,
		).Scan(&exists); lookupErr == nil && exists {
			return ErrSuperseded
		}
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes a row unconditionally. Leaf-safety is the
// caller's responsibility: the consolidator checks that no other row
// points at id via superseded_by before calling this.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one memory by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Memory, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+memoryCols+` FROM memories WHERE id = $1`, id)
	m, err := scanMemory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting memory %s: %w", id, err)
	}
	return m, nil
}

// ListActive returns active rows for an area ordered by recency.
func (s *Store) ListActive(ctx context.Context, area Area, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+memoryCols+`
		 FROM memories
		 WHERE area = $1 AND superseded_by IS NULL
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		area, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// UpdateAccess increments access_count and stamps last_accessed_at.
//
// Best-effort: runs outside a transaction, callers treat failure as
// advisory (search invokes it fire-and-forget).
func (s *Store) UpdateAccess(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE memories
		 SET access_count = access_count + 1,
		     last_accessed_at = now()
		 WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("updating access for %d memories: %w", len(ids), err)
	}
	return nil
}

// Pool exposes the underlying pool for the consolidator's maintenance
// queries.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// scanMemory reads one Memory from a row with the standard column set.
func scanMemory(row pgx.Row) (*Memory, error) {
	m := &Memory{}
	var conversationID, channelID, projectID, scope, summary *string
	if err := row.Scan(
		&m.ID, &m.Area, &m.Content, &summary, &m.Tags, &m.Confidence,
		&m.AccessCount, &m.ReinforcementCount, &m.Source,
		&conversationID, &channelID, &projectID, &scope, &m.Visibility, &m.Pinned,
		&m.SupersededBy, &m.HasEmbedding,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.ExpiresAt,
	); err != nil {
		return nil, err
	}
	m.Summary = deref(summary)
	m.ConversationID = deref(conversationID)
	m.ChannelID = deref(channelID)
	m.ProjectID = deref(projectID)
	m.Scope = deref(scope)
	return m, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// scanMemories reads Memory structs from pgx.Rows (standard column set).
func scanMemories(rows pgx.Rows) ([]*Memory, error) {
	var memories []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memories: %w", err)
	}
	return memories, nil
}
