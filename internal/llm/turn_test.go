package llm

import (
	"context"
	"testing"

	"github.com/joilabs/mnemo/internal/testutil"
)

func TestCaptureSolution(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Default: `{"problem": "pgbouncer dropped connections under load", "resolution": "raised default_pool_size and enabled server_idle_timeout", "tags": ["postgres", "pgbouncer"]}`,
	}
	got, err := CaptureSolution(context.Background(), client, testutil.DiscardLogger(), "turn text")
	if err != nil {
		t.Fatalf("CaptureSolution: %v", err)
	}
	if got == nil {
		t.Fatal("got nil solution")
	}
	if got.Problem == "" || got.Resolution == "" || len(got.Tags) != 2 {
		t.Errorf("solution = %+v", got)
	}
}

func TestCaptureSolutionNull(t *testing.T) {
	for _, response := range []string{"null", "NULL", "```\nnull\n```", ""} {
		client := &testutil.ScriptedLLM{Default: response}
		got, err := CaptureSolution(context.Background(), client, testutil.DiscardLogger(), "turn text")
		if err != nil {
			t.Errorf("response %q: err = %v", response, err)
		}
		if got != nil {
			t.Errorf("response %q yielded %+v, want nil", response, got)
		}
	}
}

func TestCaptureSolutionGarbage(t *testing.T) {
	cases := []string{
		"no solution here, sorry",
		`{"problem": "only half filled"}`,
		`{"resolution": "fix without a problem"}`,
	}
	for _, response := range cases {
		client := &testutil.ScriptedLLM{Default: response}
		got, err := CaptureSolution(context.Background(), client, testutil.DiscardLogger(), "turn text")
		if err != nil {
			t.Errorf("response %q: err = %v", response, err)
		}
		if got != nil {
			t.Errorf("response %q yielded %+v, want nil", response, got)
		}
	}
}

func TestDetectCorrection(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		client := &testutil.ScriptedLLM{
			Default: `{"kind": "identity", "subject": "user", "predicate": "is", "object": "a nurse", "statement": "", "replacement": ""}`,
		}
		got, err := DetectCorrection(context.Background(), client, testutil.DiscardLogger(), "turn text")
		if err != nil {
			t.Fatalf("DetectCorrection: %v", err)
		}
		if got == nil || got.Kind != CorrectionIdentity || got.Object != "a nurse" {
			t.Errorf("correction = %+v", got)
		}
	})

	t.Run("knowledge with replacement", func(t *testing.T) {
		client := &testutil.ScriptedLLM{
			Default: `{"kind": "knowledge", "statement": "the API listens on port 8080", "replacement": "the API listens on port 9090"}`,
		}
		got, err := DetectCorrection(context.Background(), client, testutil.DiscardLogger(), "turn text")
		if err != nil {
			t.Fatalf("DetectCorrection: %v", err)
		}
		if got == nil || got.Kind != CorrectionKnowledge || got.Replacement == "" {
			t.Errorf("correction = %+v", got)
		}
	})

	t.Run("incomplete triples dropped", func(t *testing.T) {
		cases := []string{
			`{"kind": "identity", "subject": "user", "predicate": "is"}`,
			`{"kind": "knowledge", "statement": ""}`,
			`{"kind": "opinion", "statement": "not a known kind"}`,
		}
		for _, response := range cases {
			client := &testutil.ScriptedLLM{Default: response}
			got, err := DetectCorrection(context.Background(), client, testutil.DiscardLogger(), "turn text")
			if err != nil {
				t.Errorf("response %q: err = %v", response, err)
			}
			if got != nil {
				t.Errorf("response %q yielded %+v, want nil", response, got)
			}
		}
	})

	t.Run("null", func(t *testing.T) {
		client := &testutil.ScriptedLLM{}
		got, err := DetectCorrection(context.Background(), client, testutil.DiscardLogger(), "turn text")
		if err != nil || got != nil {
			t.Errorf("null response = (%+v, %v), want (nil, nil)", got, err)
		}
	})
}
