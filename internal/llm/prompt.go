package llm

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// generateNonce returns 16 random hex bytes for prompt delimiters.
func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// delimiterRe matches runs of 3+ '=' characters, which could mimic the
// nonce-based ===SECTION_xxx=== boundaries used in prompts.
var delimiterRe = regexp.MustCompile(`={3,}`)

// sanitizeDelimiters replaces runs of 3+ '=' with '--' so untrusted
// text cannot forge a prompt boundary. The nonce provides the primary
// protection (128-bit entropy); this is defense-in-depth.
func sanitizeDelimiters(s string) string {
	return delimiterRe.ReplaceAllString(s, "--")
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// FormatTurn formats one user/assistant exchange for extraction
// prompts, sanitizing both sides against delimiter injection.
func FormatTurn(userInput, assistantResponse string) string {
	return "User: " + sanitizeDelimiters(userInput) +
		"\nAssistant: " + sanitizeDelimiters(assistantResponse)
}
