package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchConfig is one area's retrieval tuning record.
type SearchConfig struct {
	Area                 Area
	VectorWeight         float64
	TextWeight           float64
	TemporalDecayEnabled bool
	HalfLifeDays         float64
	MinConfidence        float64
}

// fallbackConfigs are used when the memory_search_config table has no
// row for an area (fresh database, partial seed).
var fallbackConfigs = map[Area]SearchConfig{
	AreaKnowledge: {Area: AreaKnowledge, VectorWeight: 0.7, TextWeight: 0.3, TemporalDecayEnabled: false, HalfLifeDays: 0, MinConfidence: 0.3},
	AreaSolutions: {Area: AreaSolutions, VectorWeight: 0.6, TextWeight: 0.4, TemporalDecayEnabled: true, HalfLifeDays: 180, MinConfidence: 0.3},
	AreaEpisodes:  {Area: AreaEpisodes, VectorWeight: 0.8, TextWeight: 0.2, TemporalDecayEnabled: true, HalfLifeDays: 60, MinConfidence: 0.2},
}

// FallbackConfig returns the hardcoded tuning for an area.
func FallbackConfig(area Area) SearchConfig {
	if cfg, ok := fallbackConfigs[area]; ok {
		return cfg
	}
	return SearchConfig{Area: area, VectorWeight: 0.7, TextWeight: 0.3, MinConfidence: 0.3}
}

// LoadSearchConfigs reads the per-area config table, filling gaps from
// the hardcoded fallbacks.
func LoadSearchConfigs(ctx context.Context, pool *pgxpool.Pool) (map[Area]SearchConfig, error) {
	configs := make(map[Area]SearchConfig)
	rows, err := pool.Query(ctx,
		`SELECT area, vector_weight, text_weight, temporal_decay_enabled, half_life_days, min_confidence
		 FROM memory_search_config`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading search config: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cfg SearchConfig
		if err := rows.Scan(&cfg.Area, &cfg.VectorWeight, &cfg.TextWeight,
			&cfg.TemporalDecayEnabled, &cfg.HalfLifeDays, &cfg.MinConfidence); err != nil {
			return nil, fmt.Errorf("scanning search config: %w", err)
		}
		configs[cfg.Area] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search config: %w", err)
	}

	for area, fallback := range fallbackConfigs {
		if _, ok := configs[area]; !ok {
			configs[area] = fallback
		}
	}
	return configs, nil
}
