// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.mnemo/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - LLM: provider, model, Ollama host
//   - Embedder: Ollama host and embedding model (see embedder fields)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Search: MMR lambda and rerank toggle
//   - Maintenance: consolidation interval and job-lock path
//   - Observability: OTLP tracing (see observability.go)
//
// Error handling uses sentinel errors wrapped with fmt.Errorf("%w: ...")
// so callers can check with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the LLM provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidSearchLambda indicates the MMR lambda is out of [0, 1].
	ErrInvalidSearchLambda = errors.New("invalid search lambda")

	// ErrInvalidInterval indicates a duration setting could not be parsed
	// or is out of range.
	ErrInvalidInterval = errors.New("invalid interval")
)

// LLM provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding
// new secrets, update that method.
type Config struct {
	// LLM provider and model configuration
	Provider   string `mapstructure:"provider" json:"provider"` // "gemini" (default) or "ollama"
	ModelName  string `mapstructure:"model_name" json:"model_name"`
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Embedder configuration (Ollama embedding API)
	EmbedderHost  string `mapstructure:"embedder_host" json:"embedder_host"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Search configuration
	SearchLambda  float64 `mapstructure:"search_lambda" json:"search_lambda"`
	DisableRerank bool    `mapstructure:"disable_rerank" json:"disable_rerank"`

	// Maintenance configuration
	MaintenanceInterval string `mapstructure:"maintenance_interval" json:"maintenance_interval"`
	MaintenanceLockPath string `mapstructure:"maintenance_lock_path" json:"maintenance_lock_path"`

	// Learning hooks configuration
	HooksCooldown string `mapstructure:"hooks_cooldown" json:"hooks_cooldown"`

	// Observability configuration (see observability.go)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".mnemo")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// LLM defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Embedder defaults
	viper.SetDefault("embedder_host", "http://localhost:11434")
	viper.SetDefault("embedder_model", "nomic-embed-text")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "mnemo")
	viper.SetDefault("postgres_password", "mnemo_dev_password")
	viper.SetDefault("postgres_db_name", "mnemo")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Search defaults
	viper.SetDefault("search_lambda", 0.7)
	viper.SetDefault("disable_rerank", false)

	// Maintenance defaults
	viper.SetDefault("maintenance_interval", "6h")
	viper.SetDefault("maintenance_lock_path", filepath.Join(os.TempDir(), "mnemo-consolidate.lock"))

	// Hooks defaults
	viper.SetDefault("hooks_cooldown", "10s")

	// Tracing defaults
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "mnemo")
	viper.SetDefault("tracing.enabled", false)
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}
	mustBind("provider", "MNEMO_PROVIDER")
	mustBind("model_name", "MNEMO_MODEL_NAME")
	mustBind("ollama_host", "MNEMO_OLLAMA_HOST")
	mustBind("embedder_host", "MNEMO_EMBEDDER_HOST")
	mustBind("embedder_model", "MNEMO_EMBEDDER_MODEL")
	mustBind("search_lambda", "MNEMO_SEARCH_LAMBDA")
	mustBind("maintenance_interval", "MNEMO_MAINTENANCE_INTERVAL")
	mustBind("hooks_cooldown", "MNEMO_HOOKS_COOLDOWN")
	mustBind("tracing.enabled", "MNEMO_TRACING_ENABLED")
	mustBind("tracing.endpoint", "MNEMO_TRACING_ENDPOINT")
}

// MaintenanceIntervalDuration parses the configured interval. Validate
// has already checked it.
func (c *Config) MaintenanceIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.MaintenanceInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// HooksCooldownDuration parses the configured hooks cooldown.
func (c *Config) HooksCooldownDuration() time.Duration {
	d, err := time.ParseDuration(c.HooksCooldown)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8
// bytes or fewer mask entirely; longer ones keep the first and last
// two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit masking of
// sensitive fields (PostgresPassword).
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
