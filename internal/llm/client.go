// Package llm provides the language-model utilities behind the
// learning hooks and the consolidator: fact extraction, solution
// capture, correction detection, and duplicate-content merging.
//
// All helpers share the same defensive posture: prompts wrap untrusted
// text in nonce-delimited boundaries, responses are size-capped and
// fence-stripped before parsing, and unparseable output means zero
// work rather than an error on the learning path.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
)

// Client generates text from a system instruction and a prompt.
type Client interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GenkitClient implements Client on a Genkit instance.
type GenkitClient struct {
	g         *genkit.Genkit
	modelName string
}

// Config selects the model provider.
type Config struct {
	// Provider is "gemini" (default) or "ollama".
	Provider string
	// ModelName is the chat model, e.g. "gemini-2.5-flash" or "qwen3:8b".
	ModelName string
	// OllamaHost is required for the ollama provider.
	OllamaHost string
}

// NewGenkitClient initializes Genkit with the configured provider and
// returns a Client bound to the configured model.
func NewGenkitClient(ctx context.Context, cfg Config, logger *slog.Logger) (*GenkitClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "gemini"
	}

	var g *genkit.Genkit
	switch provider {
	case "ollama":
		if cfg.OllamaHost == "" {
			return nil, errors.New("ollama provider requires a host")
		}
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case "gemini":
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)

	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}

	return &GenkitClient{g: g, modelName: cfg.ModelName}, nil
}

// Generate runs one completion.
func (c *GenkitClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{ai.WithPrompt(prompt)}
	if system != "" {
		opts = append(opts, ai.WithSystem(system))
	}
	if c.modelName != "" {
		opts = append(opts, ai.WithModelName(c.modelName))
	}
	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}
	return resp.Text(), nil
}
