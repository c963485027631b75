// Package facts implements the verified-fact side of the memory
// engine: normalized (subject, predicate, object) triples with a
// verification state machine, a proposal path that merges rather than
// duplicates, conflict retirement after corrections, and resolution of
// human review decisions.
//
// Facts and review items are strongly-typed records serialized into a
// generic object-store table; the (de)serialization boundary lives in
// store.go and never leaks untyped payload access into business logic.
package facts

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Category classifies what a fact is about.
type Category string

const (
	CategoryIdentity     Category = "identity"
	CategoryRelationship Category = "relationship"
	CategoryPreference   Category = "preference"
	CategoryWork         Category = "work"
	CategoryHealth       Category = "health"
	CategoryLocation     Category = "location"
	CategoryFinancial    Category = "financial"
	CategoryOther        Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryIdentity, CategoryRelationship, CategoryPreference,
		CategoryWork, CategoryHealth, CategoryLocation, CategoryFinancial,
		CategoryOther:
		return true
	}
	return false
}

var (
	// ErrLowSignal marks a proposal rejected by the noise gate. It is
	// distinct from genuine failures so callers can swallow it without
	// warning-level noise.
	ErrLowSignal = errors.New("low-signal fact rejected")

	// ErrNotFound indicates the fact or review id does not exist.
	ErrNotFound = errors.New("fact not found")
)

const (
	// MaxObjectLength bounds a user-subject fact object before the
	// noise gate treats it as extraction garbage.
	MaxObjectLength = 260

	// ProposalConfidenceFloor / Ceiling clamp merged proposal
	// confidence: auto-extracted facts never reach certainty without
	// human verification.
	ProposalConfidenceFloor   = 0.1
	ProposalConfidenceCeiling = 0.95
)

// Well-known fact sources. Stored as plain strings so the gateway can
// pass its own values through; these two mark direct human input and
// exempt a fact from the backfill-noise sweep.
const (
	SourceUser     = "user"
	SourceFeedback = "feedback"
)

// Fact is one normalized triple with its verification state.
type Fact struct {
	ID         uuid.UUID
	Subject    string
	Predicate  string
	Object     string
	Category   Category
	Status     Status
	Confidence float64
	Source     string
	Notes      string
	Tags       []string
	VerifiedBy string
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Active reports whether the fact is not archived.
func (f *Fact) Active() bool {
	return f.Status != StatusOutdated
}

// ReviewStatus tracks a queued verification request.
type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "pending"
	ReviewApproved     ReviewStatus = "approved"
	ReviewRejected     ReviewStatus = "rejected"
	ReviewAutoRejected ReviewStatus = "auto_rejected"
)

// Review item types and priorities. Verification items are created by
// the engine; triage items arrive from the gateway's notification
// pipeline and are only cleaned up here.
const (
	ReviewTypeVerification = "fact_verification"
	ReviewTypeTriage       = "triage"

	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// ReviewItem is one queued human decision.
type ReviewItem struct {
	ID             uuid.UUID
	FactID         uuid.UUID
	Type           string
	Status         ReviewStatus
	ProposedAction string
	Priority       string
	Resolution     string
	Title          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
