package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// HashEmbedder is a deterministic, offline stand-in for the embedding
// service. Each token hashes into a bucket of a fixed-dimension
// vector, then the vector is L2-normalized — so identical texts embed
// identically and token overlap drives cosine similarity, which is all
// the merge and search tests need.
type HashEmbedder struct {
	Dim int

	mu       sync.Mutex
	fail     bool
	failErr  error
	embedded int
}

// NewHashEmbedder returns a HashEmbedder producing 768-dim vectors.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{Dim: 768}
}

// Embed produces the deterministic vector for text, or the configured
// failure.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return nil, e.failErr
	}
	e.embedded++

	vec := make([]float32, e.Dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%e.Dim] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// FailWith makes subsequent Embed calls return err, for degrade-path
// tests.
func (e *HashEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = true
	e.failErr = err
}

// Recover clears a configured failure.
func (e *HashEmbedder) Recover() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = false
	e.failErr = nil
}

// Calls reports how many successful Embed calls ran.
func (e *HashEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.embedded
}
