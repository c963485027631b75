// Package embed provides the embedding client for memory writes and
// vector search, backed by Ollama's embedding API.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "nomic-embed-text"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// HealthTimeout bounds the availability probe. Kept short: a slow
	// health check is treated the same as an unavailable embedder.
	HealthTimeout = 2500 * time.Millisecond

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second

	// PullTimeout bounds a model pull, which downloads weights.
	PullTimeout = 120 * time.Second
)

// ErrEmbedding marks embedding failures. Callers on the write and
// search paths treat it as a degrade signal, not a hard error.
var ErrEmbedding = errors.New("embedding failed")

// Client talks to an Ollama server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds the Ollama connection settings.
type Config struct {
	BaseURL string
	Model   string
}

// NewClient creates an embedding client. Empty fields fall back to
// the package defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		// Per-call deadlines come from contexts; the client-level
		// timeout is a backstop only.
		httpClient: &http.Client{Timeout: PullTimeout},
		logger:     logger,
	}
}

// Model returns the configured embedding model name.
func (c *Client) Model() string { return c.model }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed converts one text into a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch converts several texts in one call. The result has one
// vector per input, in order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrEmbedding, len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// Health reports whether the Ollama server is reachable and has the
// configured model available. It never blocks past HealthTimeout.
type Health struct {
	Available   bool
	ModelLoaded bool
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckHealth probes the server and the model list.
func (c *Client) CheckHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return Health{}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Health{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return Health{Available: true}
	}
	h := Health{Available: true}
	for _, m := range tags.Models {
		if m.Name == c.model || m.Name == c.model+":latest" {
			h.ModelLoaded = true
			break
		}
	}
	return h
}

type pullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// Pull downloads the configured model if the server does not have it.
func (c *Client) Pull(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PullTimeout)
	defer cancel()

	c.logger.Info("pulling embedding model", "model", c.model)
	return c.post(ctx, "/api/pull", pullRequest{Model: c.model, Stream: false}, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", ErrEmbedding, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: ollama returned status %d: %s",
			ErrEmbedding, resp.StatusCode, string(detail))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrEmbedding, err)
	}
	return nil
}
