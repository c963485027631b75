package facts

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckProposal(t *testing.T) {
	rejected := []struct {
		name                       string
		subject, predicate, object string
	}{
		{"empty object", "user", "is", ""},
		{"whitespace object", "user", "is", "   "},
		{"placeholder unknown", "user", "lives_in", "unknown"},
		{"placeholder n/a", "user", "works_at", "N/A"},
		{"interrogative", "user", "is", "a teacher?"},
		{"overlong user object", "user", "is", strings.Repeat("x", MaxObjectLength+1)},
		{"task-like identity", "user", "is", "remember to call mom"},
		{"todo identity", "user", "is", "TODO review the budget"},
	}
	for _, tc := range rejected {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckProposal(tc.subject, tc.predicate, tc.object)
			if !errors.Is(err, ErrLowSignal) {
				t.Errorf("CheckProposal(%q, %q, %q) = %v, want ErrLowSignal",
					tc.subject, tc.predicate, tc.object, err)
			}
		})
	}

	accepted := []struct {
		name                       string
		subject, predicate, object string
	}{
		{"plain identity", "user", "is", "a teacher"},
		{"preference", "user", "prefers", "dark mode"},
		// The length and imperative gates only apply to user-subject
		// facts.
		{"long non-user object", "acme corp", "ships", strings.Repeat("y", MaxObjectLength+1)},
		{"imperative non-identity predicate", "user", "said", "check the logs tomorrow"},
	}
	for _, tc := range accepted {
		t.Run(tc.name, func(t *testing.T) {
			if err := CheckProposal(tc.subject, tc.predicate, tc.object); err != nil {
				t.Errorf("CheckProposal(%q, %q, %q) = %v, want nil",
					tc.subject, tc.predicate, tc.object, err)
			}
		})
	}
}

func TestImperativeLike(t *testing.T) {
	for _, text := range []string{
		"remember to water the plants",
		"Make sure the invoice is sent",
		"don't forget the standup",
		"need to renew the certificate",
	} {
		if !ImperativeLike(text) {
			t.Errorf("ImperativeLike(%q) = false, want true", text)
		}
	}
	for _, text := range []string{
		"a software engineer",
		"allergic to peanuts",
		"based in Lisbon",
	} {
		if ImperativeLike(text) {
			t.Errorf("ImperativeLike(%q) = true, want false", text)
		}
	}
}

func TestNoisyBackfillObject(t *testing.T) {
	noisy := []string{
		"",
		"unknown",
		"TBD",
		strings.Repeat("z", MaxObjectLength+1),
		"schedule a dentist appointment",
		"something about the user and their job",
	}
	for _, o := range noisy {
		if !NoisyBackfillObject(o) {
			t.Errorf("NoisyBackfillObject(%q) = false, want true", o)
		}
	}
	clean := []string{
		"a teacher",
		"dark mode",
		"Lisbon",
	}
	for _, o := range clean {
		if NoisyBackfillObject(o) {
			t.Errorf("NoisyBackfillObject(%q) = true, want false", o)
		}
	}
}
