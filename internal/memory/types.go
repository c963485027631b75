// Package memory implements the long-term memory store behind the JOI
// gateway: write/reinforce/supersede lifecycle primitives, exponential
// relevance decay, and hybrid vector+text retrieval with diversity
// reranking.
//
// Persistence is PostgreSQL + pgvector. The embedding service is an
// external collaborator: every embedding failure degrades (store without
// a vector, search text-only) and is never fatal to the caller.
package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Area partitions memories by what kind of knowledge they hold.
type Area string

const (
	AreaKnowledge Area = "knowledge"
	AreaSolutions Area = "solutions"
	AreaEpisodes  Area = "episodes"

	// AreaIdentity and AreaPreferences are deprecated in favor of the
	// facts table. Rows still in these areas are retired by the
	// consolidator, never written by new code.
	AreaIdentity    Area = "identity"
	AreaPreferences Area = "preferences"
)

// Valid reports whether a is a writable area.
func (a Area) Valid() bool {
	switch a {
	case AreaKnowledge, AreaSolutions, AreaEpisodes:
		return true
	}
	return false
}

// Deprecated reports whether a is a retired legacy area.
func (a Area) Deprecated() bool {
	return a == AreaIdentity || a == AreaPreferences
}

// DefaultAreas is the search target set when the caller names none.
func DefaultAreas() []Area {
	return []Area{AreaKnowledge, AreaSolutions, AreaEpisodes}
}

// Source records how a memory entered the store.
type Source string

const (
	SourceUser            Source = "user"
	SourceInferred        Source = "inferred"
	SourceFlush           Source = "flush"
	SourceEpisode         Source = "episode"
	SourceSolutionCapture Source = "solution_capture"
	SourceFeedback        Source = "feedback"
)

// Visibility controls whether a memory is shared across conversations.
type Visibility string

const (
	VisibilityShared  Visibility = "shared"
	VisibilityPrivate Visibility = "private"
)

const (
	// DefaultConfidence is assigned to new writes.
	DefaultConfidence = 0.7

	// ReinforceStep is added to confidence on each reinforcement.
	ReinforceStep = 0.05

	// VectorDimension is the embedding width stored in pgvector.
	VectorDimension = 768

	// MaxContentLength bounds memory content.
	MaxContentLength = 8192

	// PerAreaCap limits each area's contribution to a merged search.
	PerAreaCap = 20

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second
)

var (
	// ErrNotFound indicates the memory id does not exist.
	ErrNotFound = errors.New("memory not found")

	// ErrSuperseded indicates the row is already superseded.
	ErrSuperseded = errors.New("memory already superseded")

	// ErrInvalidArea indicates an unknown or deprecated write area.
	ErrInvalidArea = errors.New("invalid memory area")
)

// Memory is one stored unit of distilled knowledge.
//
// A row is active while SupersededBy is nil. Superseded rows are kept
// for lineage until the consolidator's leaf-safe garbage collection
// removes them.
type Memory struct {
	ID                 uuid.UUID
	Area               Area
	Content            string
	Summary            string
	Tags               []string
	Confidence         float64
	AccessCount        int
	ReinforcementCount int
	Source             Source
	ConversationID     string
	ChannelID          string
	ProjectID          string
	Scope              string
	Visibility         Visibility
	Pinned             bool
	SupersededBy       *uuid.UUID
	HasEmbedding       bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastAccessedAt     time.Time
	ExpiresAt          *time.Time
}

// Active reports whether the row is eligible for search.
func (m *Memory) Active() bool {
	return m.SupersededBy == nil
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
