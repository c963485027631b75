package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joilabs/mnemo/internal/testutil"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Model: "test-model"}, testutil.DiscardLogger())
}

func TestEmbed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s, want /api/embed", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" || len(req.Input) != 1 || req.Input[0] != "hello" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))

	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vector = %v", vec)
	}
}

func TestEmbedBatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = []float32{float32(i)}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: out})
	}))

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 2 {
		t.Errorf("vectors = %v", vecs)
	}

	empty, err := client.EmbedBatch(context.Background(), nil)
	if err != nil || empty != nil {
		t.Errorf("empty batch = (%v, %v), want (nil, nil)", empty, err)
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("mismatch error = %v, want ErrEmbedding", err)
	}
}

func TestEmbedServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))

	_, err := client.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("server error = %v, want ErrEmbedding", err)
	}
}

func TestEmbedUnreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Model: "test-model"}, testutil.DiscardLogger())
	_, err := client.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("unreachable error = %v, want ErrEmbedding", err)
	}
}

func TestCheckHealth(t *testing.T) {
	t.Run("model loaded", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				t.Errorf("path = %s, want /api/tags", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"models": [{"name": "test-model:latest"}, {"name": "other"}]}`))
		}))
		h := client.CheckHealth(context.Background())
		if !h.Available || !h.ModelLoaded {
			t.Errorf("health = %+v, want available with model loaded", h)
		}
	})

	t.Run("model missing", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"models": [{"name": "other"}]}`))
		}))
		h := client.CheckHealth(context.Background())
		if !h.Available || h.ModelLoaded {
			t.Errorf("health = %+v, want available without model", h)
		}
	})

	t.Run("server down", func(t *testing.T) {
		client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, testutil.DiscardLogger())
		h := client.CheckHealth(context.Background())
		if h.Available || h.ModelLoaded {
			t.Errorf("health = %+v, want unavailable", h)
		}
	})
}

func TestPull(t *testing.T) {
	var pulled string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("path = %s, want /api/pull", r.URL.Path)
		}
		var req pullRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		pulled = req.Model
		if req.Stream {
			t.Error("pull requested streaming")
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := client.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if pulled != "test-model" {
		t.Errorf("pulled model = %q", pulled)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.baseURL != DefaultBaseURL || c.Model() != DefaultModel {
		t.Errorf("defaults = (%s, %s)", c.baseURL, c.Model())
	}
}
