package testutil

import (
	"context"
	"strings"
	"sync"
)

// ScriptedLLM is an llm.Client stub that answers from a script.
// Responses match on a substring of the prompt; unmatched prompts get
// the Default response. All calls are recorded for assertions.
type ScriptedLLM struct {
	mu sync.Mutex

	// Responses maps a prompt substring to the canned response.
	Responses map[string]string
	// Default is returned when no substring matches (defaults to "null").
	Default string
	// Err, when set, fails every call.
	Err error

	prompts []string
}

// Generate implements llm.Client.
func (s *ScriptedLLM) Generate(_ context.Context, _, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	for needle, response := range s.Responses {
		if strings.Contains(prompt, needle) {
			return response, nil
		}
	}
	if s.Default != "" {
		return s.Default, nil
	}
	return "null", nil
}

// Prompts returns a copy of every prompt seen so far.
func (s *ScriptedLLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}
