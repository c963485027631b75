package facts

import "fmt"

// Status is a fact's verification state.
//
// The machine is deliberately small and centrally validated here —
// the consolidator, the learning hooks, and the review resolver all
// route transitions through Transition rather than carrying their own
// predicates:
//
//	unverified -> verified | outdated
//	verified   -> outdated
//	outdated   -> (terminal)
//
// The single exception is re-proposal: ProposeFact may reactivate an
// outdated row back to unverified, which models "a fresh proposal",
// not a state transition of the stale claim.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusOutdated   Status = "outdated"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusVerified, StatusOutdated:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusUnverified:
		return to == StatusVerified || to == StatusOutdated
	case StatusVerified:
		return to == StatusOutdated
	default:
		return false
	}
}

// Transition validates and returns the target status.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("illegal fact status transition %s -> %s", from, to)
	}
	return to, nil
}
