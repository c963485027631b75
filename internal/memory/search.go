package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// TaskRunner accepts fire-and-forget work. Satisfied by
// tasks.Executor; search uses it for the post-query access bump so the
// caller's response path never waits on it.
type TaskRunner interface {
	Submit(name string, fn func(context.Context) error)
}

// SearchOpts narrows a retrieval request.
type SearchOpts struct {
	// Areas to search; empty means DefaultAreas().
	Areas []Area

	// Limit caps the final merged result count (default 10).
	Limit int

	// MinConfidence overrides each area's configured minimum.
	MinConfidence *float64

	// Scope restricts results to rows in this scope or unscoped rows.
	Scope string

	// Visibility, when set, filters to exactly that visibility.
	Visibility Visibility

	// RequireTags keeps only rows carrying every listed tag.
	RequireTags []string
}

func (o SearchOpts) limit() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

func (o SearchOpts) areas() []Area {
	if len(o.Areas) == 0 {
		return DefaultAreas()
	}
	return o.Areas
}

// Result is one retrieved memory with its final ranking score.
type Result struct {
	Memory *Memory
	Score  float64
}

// Searcher runs the hybrid retrieval pipeline: per-area vector+text
// scoring, temporal decay, confidence weighting, per-area caps, global
// merge, and MMR diversity reranking.
type Searcher struct {
	pool      *pgxpool.Pool
	store     *Store
	embedder  Embedder
	runner    TaskRunner
	logger    *slog.Logger
	mmrLambda float64
	rerank    bool
}

// SearcherOpts configures a Searcher.
type SearcherOpts struct {
	// MMRLambda is the diversity trade-off (default DefaultMMRLambda).
	MMRLambda float64

	// DisableRerank skips the MMR pass entirely.
	DisableRerank bool
}

// NewSearcher creates a Searcher. runner may be nil, in which case the
// access bump runs inline (still best-effort).
func NewSearcher(store *Store, runner TaskRunner, logger *slog.Logger, opts SearcherOpts) (*Searcher, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	lambda := opts.MMRLambda
	if lambda <= 0 || lambda > 1 {
		lambda = DefaultMMRLambda
	}
	return &Searcher{
		pool:      store.pool,
		store:     store,
		embedder:  store.embedder,
		runner:    runner,
		logger:    logger,
		mmrLambda: lambda,
		rerank:    !opts.DisableRerank,
	}, nil
}

// Search retrieves the most relevant, diverse memories for query.
//
// The query is embedded once; if the embedding service fails the search
// degrades to text-relevance-only scoring instead of failing. Each
// area contributes at most PerAreaCap results before the global merge.
func (s *Searcher) Search(ctx context.Context, query string, opts SearchOpts) ([]Result, error) {
	if query == "" {
		return []Result{}, nil
	}

	ctx, span := otel.Tracer("mnemo/memory").Start(ctx, "memory.search")
	defer span.End()

	var vec *pgvector.Vector
	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	raw, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to text-only search", "error", err)
	} else if len(raw) > 0 {
		v := pgvector.NewVector(raw)
		vec = &v
	}
	span.SetAttributes(attribute.Bool("search.degraded", vec == nil))

	configs, err := LoadSearchConfigs(ctx, s.pool)
	if err != nil {
		s.logger.Warn("search config load failed, using fallbacks", "error", err)
		configs = map[Area]SearchConfig{}
	}

	now := time.Now()
	var merged []Result
	for _, area := range opts.areas() {
		cfg, ok := configs[area]
		if !ok {
			cfg = FallbackConfig(area)
		}
		results, err := s.searchArea(ctx, query, vec, area, cfg, opts, now)
		if err != nil {
			return nil, fmt.Errorf("searching area %s: %w", area, err)
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	limit := opts.limit()
	if s.rerank {
		merged = s.applyMMR(merged, limit)
	} else if len(merged) > limit {
		merged = merged[:limit]
	}

	span.SetAttributes(attribute.Int("search.results", len(merged)))
	s.bumpAccess(merged)
	return merged, nil
}

// searchArea scores one area's candidates and returns its capped
// contribution. SQL computes the raw vector+text score; decay and
// confidence weighting happen here because they depend on per-row age
// and pinning.
func (s *Searcher) searchArea(ctx context.Context, query string, vec *pgvector.Vector,
	area Area, cfg SearchConfig, opts SearchOpts, now time.Time) ([]Result, error) {

	minConfidence := cfg.MinConfidence
	if opts.MinConfidence != nil {
		minConfidence = *opts.MinConfidence
	}

	// Fetch a generous candidate window: decay and confidence reorder
	// rows, so the SQL-side top-N is not the final top-N.
	const candidateWindow = 100

	var scoreExpr string
	args := []any{area, minConfidence}
	if vec != nil {
		scoreExpr = `$3 * COALESCE(1 - (embedding <=> $4), 0)
			 + $5 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('english', $6), 1), 0))`
		args = append(args, cfg.VectorWeight, *vec, cfg.TextWeight, query)
	} else {
		scoreExpr = `$3 * LEAST(1.0, COALESCE(ts_rank_cd(search_text, plainto_tsquery('english', $4), 1), 0))`
		args = append(args, cfg.TextWeight, query)
	}

	where := `area = $1
		   AND superseded_by IS NULL
		   AND confidence >= $2
		   AND (expires_at IS NULL OR expires_at > now())`
	if opts.Scope != "" {
		args = append(args, opts.Scope)
		where += fmt.Sprintf(` AND (scope IS NULL OR scope = $%d)`, len(args))
	}
	if opts.Visibility != "" {
		args = append(args, opts.Visibility)
		where += fmt.Sprintf(` AND visibility = $%d`, len(args))
	}
	if len(opts.RequireTags) > 0 {
		args = append(args, opts.RequireTags)
		where += fmt.Sprintf(` AND tags @> $%d`, len(args))
	}

	sql := `SELECT * FROM (
		 SELECT ` + memoryCols + `, (` + scoreExpr + `) AS score
		 FROM memories
		 WHERE ` + where + `
		) candidates
		WHERE score > 0
		ORDER BY score DESC
		LIMIT ` + fmt.Sprint(candidateWindow)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		m := &Memory{}
		var conversationID, channelID, projectID, scope, summary *string
		var score float64
		if err := rows.Scan(
			&m.ID, &m.Area, &m.Content, &summary, &m.Tags, &m.Confidence,
			&m.AccessCount, &m.ReinforcementCount, &m.Source,
			&conversationID, &channelID, &projectID, &scope, &m.Visibility, &m.Pinned,
			&m.SupersededBy, &m.HasEmbedding,
			&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.ExpiresAt,
			&score,
		); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		m.Summary = deref(summary)
		m.ConversationID = deref(conversationID)
		m.ChannelID = deref(channelID)
		m.ProjectID = deref(projectID)
		m.Scope = deref(scope)

		if cfg.TemporalDecayEnabled && !m.Pinned {
			score *= DecayMultiplierDays(now.Sub(m.CreatedAt), cfg.HalfLifeDays)
		}
		// A relevant but low-confidence memory ranks below a
		// less-relevant but trusted one.
		score *= m.Confidence
		if score <= 0 {
			continue
		}
		results = append(results, Result{Memory: m, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > PerAreaCap {
		results = results[:PerAreaCap]
	}
	return results, nil
}

// applyMMR runs the diversity reranker over the merged set.
func (s *Searcher) applyMMR(merged []Result, limit int) []Result {
	items := make([]RankedItem, len(merged))
	byID := make(map[string]Result, len(merged))
	for i, r := range merged {
		id := r.Memory.ID.String()
		items[i] = RankedItem{ID: id, Content: r.Memory.Content, Score: r.Score}
		byID[id] = r
	}
	ranked := RerankMMR(items, s.mmrLambda, limit)
	out := make([]Result, 0, len(ranked))
	for _, it := range ranked {
		out = append(out, byID[it.ID])
	}
	return out
}

// bumpAccess records the retrieval on the returned rows. Failures are
// swallowed: access tracking is advisory.
func (s *Searcher) bumpAccess(results []Result) {
	if len(results) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	bump := func(ctx context.Context) error {
		return s.store.UpdateAccess(ctx, ids)
	}
	if s.runner != nil {
		s.runner.Submit("memory.access-bump", bump)
		return
	}
	if err := bump(context.Background()); err != nil {
		s.logger.Warn("access bump failed", "error", err)
	}
}
