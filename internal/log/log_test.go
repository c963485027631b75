package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	if logger := New(Config{Level: slog.LevelWarn}); logger == nil {
		t.Fatal("New returned nil")
	}
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Debug("memory written", "area", "knowledge", "confidence", 0.7)

	out := buf.String()
	if !strings.Contains(out, "memory written") {
		t.Errorf("message missing from output: %s", out)
	}
	if !strings.Contains(out, "area=knowledge") || !strings.Contains(out, "confidence=0.7") {
		t.Errorf("attributes missing from output: %s", out)
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("fact proposed", "subject", "user", "predicate", "lives_in")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not one JSON object: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "fact proposed" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["subject"] != "user" || entry["predicate"] != "lives_in" {
		t.Errorf("attributes = %v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	cases := []struct {
		name      string
		min       slog.Level
		wantDebug bool
	}{
		{"default info hides debug", slog.LevelInfo, false},
		{"debug level shows debug", slog.LevelDebug, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, Config{Level: tc.min})

			logger.Debug("search candidates loaded")
			logger.Info("search completed")

			out := buf.String()
			if got := strings.Contains(out, "search candidates loaded"); got != tc.wantDebug {
				t.Errorf("debug line present = %v, want %v", got, tc.wantDebug)
			}
			if !strings.Contains(out, "search completed") {
				t.Error("info line was filtered out")
			}
		})
	}
}

func TestWithCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{})

	// The wiring in cmd/setup.go hands every component a child logger
	// tagged this way.
	logger.With("component", "consolidate").Info("cycle finished", "merged_pairs", 2)

	out := buf.String()
	if !strings.Contains(out, "component=consolidate") {
		t.Errorf("component tag missing: %s", out)
	}
	if !strings.Contains(out, "merged_pairs=2") {
		t.Errorf("call-site attribute missing: %s", out)
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	logger.Error("must not panic or print")
	logger.With("component", "memory").Warn("still silent")
}
