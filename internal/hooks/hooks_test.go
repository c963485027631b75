//go:build integration

package hooks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/joilabs/mnemo/internal/facts"
	"github.com/joilabs/mnemo/internal/memory"
	"github.com/joilabs/mnemo/internal/tasks"
	"github.com/joilabs/mnemo/internal/testutil"
)

var testDB *testutil.TestDBContainer

func TestMain(m *testing.M) {
	db, cleanup, err := testutil.SetupTestDBForMain()
	if err != nil {
		fmt.Fprintf(os.Stderr, "test database setup failed: %v\n", err)
		os.Exit(1)
	}
	testDB = db
	code := m.Run()
	cleanup()
	os.Exit(code)
}

type hookFixture struct {
	hooks     *Hooks
	runner    *tasks.Executor
	memories  *memory.Store
	factStore *facts.Store
	llm       *testutil.ScriptedLLM
}

// newFixture builds hooks over the shared container with a generous
// limiter (one burst of 10) so cooldown never interferes unless the
// test configures its own.
func newFixture(t *testing.T, client *testutil.ScriptedLLM, limiter *rate.Limiter) *hookFixture {
	t.Helper()
	ctx := context.Background()
	if _, err := testDB.Pool.Exec(ctx, `TRUNCATE memories, objects`); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}

	logger := testutil.DiscardLogger()
	memStore, err := memory.NewStore(testDB.Pool, testutil.NewHashEmbedder(), logger)
	if err != nil {
		t.Fatalf("creating memory store: %v", err)
	}
	factStore, err := facts.NewStore(testDB.Pool, logger)
	if err != nil {
		t.Fatalf("creating facts store: %v", err)
	}
	searcher, err := memory.NewSearcher(memStore, nil, logger, memory.SearcherOpts{})
	if err != nil {
		t.Fatalf("creating searcher: %v", err)
	}
	runner := tasks.NewExecutor(ctx, logger)
	t.Cleanup(runner.Close)

	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Hour), 10)
	}
	h, err := New(limiter, runner, memStore, searcher, factStore, client, logger)
	if err != nil {
		t.Fatalf("creating hooks: %v", err)
	}
	return &hookFixture{
		hooks: h, runner: runner,
		memories: memStore, factStore: factStore, llm: client,
	}
}

func drain(t *testing.T, runner *tasks.Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("draining tasks: %v", err)
	}
}

func TestOnTurnExtractsFacts(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"fact extraction system": `[{"subject": "user", "predicate": "lives_in", "object": "Lisbon", "category": "location", "confidence": 0.85}]`,
		},
	}
	fx := newFixture(t, client, nil)

	fx.hooks.OnTurn(TurnEvent{
		UserInput:         "I just moved to Lisbon",
		AssistantResponse: "Congratulations on the move!",
	})
	drain(t, fx.runner)

	active, err := fx.factStore.ListActive(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d facts, want 1", len(active))
	}
	f := active[0]
	if f.Subject != "user" || f.Predicate != "lives_in" || f.Object != "Lisbon" {
		t.Errorf("stored triple = (%q, %q, %q)", f.Subject, f.Predicate, f.Object)
	}
	if f.Source != string(memory.SourceInferred) {
		t.Errorf("source = %q, want %q", f.Source, memory.SourceInferred)
	}
}

func TestOnTurnSwallowsLowSignalCandidates(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"fact extraction system": `[{"subject": "user", "predicate": "is", "object": "remember to call mom", "category": "identity", "confidence": 0.9}]`,
		},
	}
	fx := newFixture(t, client, nil)

	fx.hooks.OnTurn(TurnEvent{UserInput: "remind me to call mom", AssistantResponse: "Will do"})
	drain(t, fx.runner)

	active, err := fx.factStore.ListActive(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("noise-gated candidate was stored: %+v", active)
	}
}

func TestOnTurnCooldown(t *testing.T) {
	client := &testutil.ScriptedLLM{}
	// One allowance, then an hour-long refill: only the first turn is
	// processed.
	fx := newFixture(t, client, rate.NewLimiter(rate.Every(time.Hour), 1))

	fx.hooks.OnTurn(TurnEvent{UserInput: "first", AssistantResponse: "a"})
	fx.hooks.OnTurn(TurnEvent{UserInput: "second", AssistantResponse: "b"})
	drain(t, fx.runner)

	// Each processed turn fans out to three model calls.
	if got := len(fx.llm.Prompts()); got != 3 {
		t.Errorf("model calls = %d, want 3 (second turn skipped by cooldown)", got)
	}
}

func TestOnTurnCapturesSolution(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"solution capture system": `{"problem": "cron job failed on expired token", "resolution": "rotated the deploy token and re-ran the job", "tags": ["ci"]}`,
		},
	}
	fx := newFixture(t, client, nil)

	fx.hooks.OnTurn(TurnEvent{
		UserInput:         "the nightly job is failing, my token is sk-abcdefghij1234567890abcdef",
		AssistantResponse: "Rotated the token and the job passed.",
		ToolCallsRan:      true,
		ConversationID:    "conv-1",
	})
	drain(t, fx.runner)

	stored, err := fx.memories.ListActive(context.Background(), memory.AreaSolutions, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d solution memories, want 1", len(stored))
	}
	m := stored[0]
	if m.Source != memory.SourceSolutionCapture {
		t.Errorf("source = %q, want %q", m.Source, memory.SourceSolutionCapture)
	}
	if m.ConversationID != "conv-1" {
		t.Errorf("conversation_id = %q", m.ConversationID)
	}
	if !strings.Contains(m.Content, "Resolution:") {
		t.Errorf("content = %q", m.Content)
	}
}

func TestOnTurnSkipsSolutionWithoutToolCalls(t *testing.T) {
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"solution capture system": `{"problem": "p", "resolution": "r", "tags": []}`,
		},
	}
	fx := newFixture(t, client, nil)

	fx.hooks.OnTurn(TurnEvent{UserInput: "chat", AssistantResponse: "chat", ToolCallsRan: false})
	drain(t, fx.runner)

	stored, err := fx.memories.ListActive(context.Background(), memory.AreaSolutions, 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(stored) != 0 {
		t.Error("solution captured for a turn without tool calls")
	}
}

func TestOnTurnAppliesIdentityCorrection(t *testing.T) {
	ctx := context.Background()
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"correction detector": `{"kind": "identity", "subject": "user", "predicate": "is", "object": "a nurse", "statement": "", "replacement": ""}`,
		},
	}
	fx := newFixture(t, client, nil)

	// Pre-existing claim the correction contradicts.
	stale, err := fx.factStore.ProposeFact(ctx, facts.Proposal{
		Subject: "user", Predicate: "is", Object: "a teacher",
		Category: facts.CategoryIdentity, Confidence: 0.7,
	})
	if err != nil {
		t.Fatalf("seeding fact: %v", err)
	}

	fx.hooks.OnTurn(TurnEvent{
		UserInput:         "actually I'm a nurse, not a teacher",
		AssistantResponse: "Noted.",
	})
	drain(t, fx.runner)

	got, err := fx.factStore.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != facts.StatusOutdated {
		t.Errorf("contradicted fact status = %s, want outdated", got.Status)
	}

	corrected, err := fx.factStore.FindByTriple(ctx, "user", "is", "a nurse")
	if err != nil {
		t.Fatalf("FindByTriple: %v", err)
	}
	if corrected.Source != string(memory.SourceFeedback) {
		t.Errorf("corrected source = %q, want %q", corrected.Source, memory.SourceFeedback)
	}
}

func TestOnTurnAppliesKnowledgeCorrection(t *testing.T) {
	ctx := context.Background()
	client := &testutil.ScriptedLLM{
		Responses: map[string]string{
			"correction detector": `{"kind": "knowledge", "statement": "the API gateway listens on port 8080", "replacement": "the API gateway listens on port 9090"}`,
		},
	}
	fx := newFixture(t, client, nil)

	outdated, err := fx.memories.Write(ctx,
		"the API gateway listens on port 8080", memory.AreaKnowledge, memory.WriteInput{})
	if err != nil {
		t.Fatalf("seeding memory: %v", err)
	}

	fx.hooks.OnTurn(TurnEvent{
		UserInput:         "that's wrong, the gateway moved to port 9090",
		AssistantResponse: "Updated.",
	})
	drain(t, fx.runner)

	got, err := fx.memories.Get(ctx, outdated.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SupersededBy == nil {
		t.Fatal("strongly matching memory was not superseded")
	}
	replacement, err := fx.memories.Get(ctx, *got.SupersededBy)
	if err != nil {
		t.Fatalf("Get replacement: %v", err)
	}
	if !strings.Contains(replacement.Content, "9090") {
		t.Errorf("replacement content = %q", replacement.Content)
	}
	if replacement.Source != memory.SourceFeedback {
		t.Errorf("replacement source = %q", replacement.Source)
	}
}

func TestOnTurnNoCorrection(t *testing.T) {
	client := &testutil.ScriptedLLM{} // every call answers "null"
	fx := newFixture(t, client, nil)

	fx.hooks.OnTurn(TurnEvent{UserInput: "how's the weather", AssistantResponse: "Sunny."})
	drain(t, fx.runner)

	active, err := fx.factStore.ListActive(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("idle turn produced %d facts", len(active))
	}
}
