package llm

import (
	"strings"
	"testing"
)

func TestSanitizeDelimiters(t *testing.T) {
	cases := map[string]string{
		"plain text":            "plain text",
		"a == b":                "a == b",
		"===SECTION===":         "--SECTION--",
		"==========":            "--",
		"before ===== after":    "before -- after",
		"multi\n===\nline\n===": "multi\n--\nline\n--",
	}
	for in, want := range cases {
		if got := sanitizeDelimiters(in); got != want {
			t.Errorf("sanitizeDelimiters(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```": `{"a": 1}`,
		"```\nnull\n```":           "null",
		`{"a": 1}`:                 `{"a": 1}`,
		"  plain  ":                "plain",
	}
	for in, want := range cases {
		if got := stripCodeFences(in); got != want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateNonce(t *testing.T) {
	a, err := generateNonce()
	if err != nil {
		t.Fatalf("generateNonce: %v", err)
	}
	b, err := generateNonce()
	if err != nil {
		t.Fatalf("generateNonce: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("nonce length = %d, want 32 hex chars", len(a))
	}
	if a == b {
		t.Error("two nonces collided")
	}
}

func TestFormatTurn(t *testing.T) {
	got := FormatTurn("hello ===fake===", "hi there")
	if !strings.HasPrefix(got, "User: ") || !strings.Contains(got, "\nAssistant: hi there") {
		t.Errorf("FormatTurn = %q", got)
	}
	if strings.Contains(got, "===") {
		t.Error("delimiter run survived FormatTurn")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("truncate = %q", got)
	}
}
