package facts

import (
	"fmt"
	"strings"
)

// placeholderObjects are generic extraction stand-ins, not facts.
var placeholderObjects = map[string]struct{}{
	"unknown": {}, "n/a": {}, "na": {}, "none": {}, "tbd": {}, "...": {},
	"something": {}, "nothing": {}, "unspecified": {},
}

// imperativeLeads mark task-like phrasing the extractor sometimes
// mistakes for an identity claim ("user is: remember to call mom").
var imperativeLeads = []string{
	"check ", "remember ", "remind ", "make sure ", "add ", "update ",
	"create ", "fix ", "schedule ", "call ", "review ", "write ",
	"send ", "buy ", "finish ", "follow up", "look into", "don't forget",
	"todo", "to do ", "need to ", "needs to ", "should ",
}

// CheckProposal applies the noise gate to a normalized triple.
// Returns a wrapped ErrLowSignal (never a generic error) so callers
// can swallow rejections silently with errors.Is.
func CheckProposal(subject, predicate, object string) error {
	o := strings.ToLower(strings.TrimSpace(object))
	if o == "" {
		return fmt.Errorf("%w: empty object", ErrLowSignal)
	}
	if _, ok := placeholderObjects[o]; ok {
		return fmt.Errorf("%w: placeholder object %q", ErrLowSignal, object)
	}
	if strings.Contains(object, "?") {
		return fmt.Errorf("%w: interrogative object", ErrLowSignal)
	}
	if subject == "user" && len(object) > MaxObjectLength {
		return fmt.Errorf("%w: object length %d", ErrLowSignal, len(object))
	}
	if subject == "user" && predicate == "is" && ImperativeLike(object) {
		return fmt.Errorf("%w: task-like object", ErrLowSignal)
	}
	return nil
}

// ImperativeLike reports whether text reads as a task or instruction
// rather than a statement about the user.
func ImperativeLike(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, lead := range imperativeLeads {
		if strings.HasPrefix(t, lead) {
			return true
		}
	}
	return false
}

// NoisyBackfillObject reports whether an auto-backfilled object matches
// the extraction-noise heuristics: overlong text, imperative phrasing,
// generic placeholders, or embedded "the user" echoes that survived
// normalization.
func NoisyBackfillObject(object string) bool {
	o := strings.TrimSpace(object)
	lower := strings.ToLower(o)
	if o == "" {
		return true
	}
	if _, ok := placeholderObjects[lower]; ok {
		return true
	}
	if len(o) > MaxObjectLength {
		return true
	}
	if ImperativeLike(o) {
		return true
	}
	if strings.Contains(lower, "the user ") {
		return true
	}
	return false
}
