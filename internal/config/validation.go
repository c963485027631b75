package config

import (
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// validSSLModes are the PostgreSQL sslmode values pgx accepts.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. LLM configuration
	switch c.Provider {
	case ProviderGemini, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.Provider == ProviderOllama && c.OllamaHost == "" {
		return fmt.Errorf("%w: ollama_host required for the ollama provider", ErrInvalidOllamaHost)
	}

	// 2. Embedder configuration
	if c.EmbedderHost == "" {
		return fmt.Errorf("%w: embedder_host cannot be empty", ErrInvalidOllamaHost)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q (supported: %v)", ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}
	if c.PostgresPassword == "mnemo_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// 4. Search configuration
	if c.SearchLambda < 0 || c.SearchLambda > 1 {
		return fmt.Errorf("%w: must be between 0 and 1, got %.2f", ErrInvalidSearchLambda, c.SearchLambda)
	}

	// 5. Durations
	if d, err := time.ParseDuration(c.MaintenanceInterval); err != nil || d < time.Minute {
		return fmt.Errorf("%w: maintenance_interval must be a duration of at least 1m, got %q",
			ErrInvalidInterval, c.MaintenanceInterval)
	}
	if d, err := time.ParseDuration(c.HooksCooldown); err != nil || d < 0 {
		return fmt.Errorf("%w: hooks_cooldown must be a non-negative duration, got %q",
			ErrInvalidInterval, c.HooksCooldown)
	}

	return nil
}
