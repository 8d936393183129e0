// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/search-agent/internal/engine"
	"github.com/pdiddy/search-agent/internal/websearch"
	"github.com/pdiddy/search-agent/pkg/types"
)

// --- stub backends ---

// stubEngine replays a scripted sequence of generated texts. Calls past the
// end of the script repeat the last entry; a scripted error fails that call.
type stubEngine struct {
	script []string
	errs   []error
	calls  int
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Generate(_ context.Context, _ string, _ types.EngineConfig) (engine.Generation, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return engine.Generation{}, s.errs[i]
	}
	if len(s.script) == 0 {
		return engine.Generation{}, fmt.Errorf("stub script empty")
	}
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return engine.Classify(s.script[i]), nil
}

type stubSearch struct {
	docs  []types.Document
	err   error
	calls int
}

func (s *stubSearch) Name() string { return "stub" }

func (s *stubSearch) Search(_ context.Context, _ string, limit int, _ types.SearchConfig) ([]types.Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

// collectSink records streamed steps; a non-nil err fails every append.
type collectSink struct {
	ids   []string
	steps []types.ReasoningStep
	err   error
}

func (c *collectSink) Append(id string, step types.ReasoningStep) error {
	if c.err != nil {
		return c.err
	}
	c.ids = append(c.ids, id)
	c.steps = append(c.steps, step)
	return nil
}

const (
	searchText = "I should check. <|begin_search_query|>capital of France<|end_search_query|>"
	answerText = `The evidence confirms it. \boxed{Paris}`
)

func parisDocs() []types.Document {
	return []types.Document{
		{SourceID: "u1", Title: "Paris - Wikipedia", Snippet: "Paris is the capital of France.", URL: "u1", Rank: 1},
	}
}

func testAgentCfg() types.AgentConfig {
	return types.AgentConfig{
		MaxSteps:       10,
		MaxSearches:    5,
		PerCallTimeout: time.Second,
	}.WithDefaults()
}

func init() {
	// No real sleeps between engine retries in tests.
	retryBackoffBase = time.Millisecond
}

// --- scenarios ---

func TestImmediateAnswer(t *testing.T) {
	a := New(&stubEngine{script: []string{answerText}}, &stubSearch{}, testAgentCfg())

	session, err := a.Run(context.Background(), "What is the capital of France?", nil, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(session.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(session.Steps))
	}
	if session.FinalAnswer != "Paris" {
		t.Errorf("FinalAnswer = %q, want Paris", session.FinalAnswer)
	}
	if session.SearchesUsed != 0 {
		t.Errorf("SearchesUsed = %d, want 0", session.SearchesUsed)
	}
	if session.TerminationReason != types.TerminatedAnswered {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
}

func TestSearchThenAnswer(t *testing.T) {
	eng := &stubEngine{script: []string{searchText, answerText}}
	search := &stubSearch{docs: parisDocs()}
	a := New(eng, search, testAgentCfg())

	session, err := a.Run(context.Background(), "What is the capital of France?", nil, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(session.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(session.Steps))
	}
	if session.SearchesUsed != 1 {
		t.Errorf("SearchesUsed = %d, want 1", session.SearchesUsed)
	}

	first := session.Steps[0]
	if first.Intent != types.IntentSearch {
		t.Errorf("Steps[0].Intent = %q, want search", first.Intent)
	}
	if first.Query != "capital of France" {
		t.Errorf("Steps[0].Query = %q", first.Query)
	}
	if first.Evidence == nil || first.Evidence.IsEmpty() {
		t.Error("Steps[0].Evidence should be non-empty")
	}
	if session.FinalAnswer != "Paris" {
		t.Errorf("FinalAnswer = %q, want Paris", session.FinalAnswer)
	}
}

func TestSearchBudgetNeverExceeded(t *testing.T) {
	cfg := testAgentCfg()
	cfg.MaxSteps = 6
	cfg.MaxSearches = 2
	a := New(&stubEngine{script: []string{searchText}}, &stubSearch{docs: parisDocs()}, cfg)

	session, err := a.Run(context.Background(), "question", nil, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if session.SearchesUsed != 2 {
		t.Errorf("SearchesUsed = %d, want 2", session.SearchesUsed)
	}
	searchSteps := 0
	for _, step := range session.Steps {
		if step.Intent == types.IntentSearch {
			searchSteps++
		}
	}
	if searchSteps != 2 {
		t.Errorf("search steps = %d, want 2", searchSteps)
	}
	if len(session.Steps) != 6 {
		t.Errorf("len(Steps) = %d, want 6 (step budget)", len(session.Steps))
	}
	// Steps after the budget must record the forced transition.
	if !session.Steps[2].ForcedContinue {
		t.Error("Steps[2].ForcedContinue should be set")
	}
	if session.TerminationReason != types.TerminatedStepBudget {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
}

func TestZeroSearchBudgetForcesContinue(t *testing.T) {
	cfg := testAgentCfg()
	cfg.MaxSteps = 3
	cfg.MaxSearches = 0
	search := &stubSearch{docs: parisDocs()}
	a := New(&stubEngine{script: []string{searchText}}, search, cfg)

	session, err := a.Run(context.Background(), "question", nil, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if session.SearchesUsed != 0 {
		t.Errorf("SearchesUsed = %d, want 0", session.SearchesUsed)
	}
	if search.calls != 0 {
		t.Errorf("search backend called %d times, want 0", search.calls)
	}
	for i, step := range session.Steps {
		if step.Intent != types.IntentContinue || !step.ForcedContinue {
			t.Errorf("Steps[%d] = {%s forced=%v}, want forced continue", i, step.Intent, step.ForcedContinue)
		}
	}
	if session.TerminationReason != types.TerminatedStepBudget {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
	if session.FinalAnswer == "" {
		t.Error("FinalAnswer must never be empty")
	}
}

func TestStepBudgetBestEffortAnswer(t *testing.T) {
	cfg := testAgentCfg()
	cfg.MaxSteps = 2
	a := New(&stubEngine{script: []string{"First thought.", "Second thought."}}, &stubSearch{}, cfg)

	session, err := a.Run(context.Background(), "question", nil, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if session.TerminationReason != types.TerminatedStepBudget {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
	if session.FinalAnswer != "Second thought." {
		t.Errorf("FinalAnswer = %q, want most recent emitted text", session.FinalAnswer)
	}
}

func TestProviderErrorIsNotFatal(t *testing.T) {
	cfg := testAgentCfg()
	cfg.MaxSteps = 4
	search := &stubSearch{err: &websearch.ProviderError{Provider: "stub", Err: errors.New("quota exhausted")}}
	a := New(&stubEngine{script: []string{searchText, answerText}}, search, cfg)

	session, err := a.Run(context.Background(), "question", nil, io.Discard)
	if err != nil {
		t.Fatalf("search failure must not abort the session: %v", err)
	}
	if session.TerminationReason == types.TerminatedReasoningFailure {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
	if session.FinalAnswer == "" {
		t.Error("FinalAnswer must be non-empty despite search failures")
	}

	first := session.Steps[0]
	if first.ProviderError == "" {
		t.Error("Steps[0].ProviderError should record the failure")
	}
	if first.Evidence == nil || !first.Evidence.IsEmpty() {
		t.Error("Steps[0].Evidence should be present and empty")
	}
}

func TestReasoningFailureAbortsAfterRetry(t *testing.T) {
	engErr := &engine.EngineError{Backend: "stub", Op: "generate", Err: errors.New("connection refused")}
	eng := &stubEngine{
		script: []string{"First thought."},
		errs:   []error{nil, engErr, engErr},
	}
	sink := &collectSink{}
	a := New(eng, &stubSearch{}, testAgentCfg())

	session, err := a.RunWithID(context.Background(), "s1", "question", nil, sink, io.Discard)
	if err == nil {
		t.Fatal("expected error after engine failed twice")
	}
	if session.TerminationReason != types.TerminatedReasoningFailure {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
	// Exactly the steps completed before the failure are preserved and
	// were streamed to the sink.
	if len(session.Steps) != 1 {
		t.Fatalf("len(Steps) = %d, want 1", len(session.Steps))
	}
	if !reflect.DeepEqual(sink.steps, session.Steps) {
		t.Error("sink should hold exactly the completed steps")
	}
	if eng.calls != 3 {
		t.Errorf("engine calls = %d, want 3 (one success, one failure, one retry)", eng.calls)
	}
}

func TestTieBreakBothMarkers(t *testing.T) {
	bothText := `Probably \boxed{Paris}. <|begin_search_query|>capital of France<|end_search_query|>`

	t.Run("search wins while budget remains", func(t *testing.T) {
		cfg := testAgentCfg()
		cfg.MaxSteps = 3
		a := New(&stubEngine{script: []string{bothText, answerText}}, &stubSearch{docs: parisDocs()}, cfg)

		session, err := a.Run(context.Background(), "question", nil, io.Discard)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if session.Steps[0].Intent != types.IntentSearch {
			t.Errorf("Steps[0].Intent = %q, want search", session.Steps[0].Intent)
		}
		if session.SearchesUsed != 1 {
			t.Errorf("SearchesUsed = %d, want 1", session.SearchesUsed)
		}
	})

	t.Run("answer honored once budget exhausted", func(t *testing.T) {
		cfg := testAgentCfg()
		cfg.MaxSearches = 0
		a := New(&stubEngine{script: []string{bothText}}, &stubSearch{}, cfg)

		session, err := a.Run(context.Background(), "question", nil, io.Discard)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if len(session.Steps) != 1 {
			t.Fatalf("len(Steps) = %d, want 1", len(session.Steps))
		}
		if session.TerminationReason != types.TerminatedAnswered {
			t.Errorf("TerminationReason = %q, want answered", session.TerminationReason)
		}
		if session.FinalAnswer != "Paris" {
			t.Errorf("FinalAnswer = %q, want Paris", session.FinalAnswer)
		}
	})
}

func TestIdempotence(t *testing.T) {
	run := func() *types.Session {
		a := New(
			&stubEngine{script: []string{searchText, answerText}},
			&stubSearch{docs: parisDocs()},
			testAgentCfg(),
		)
		session, err := a.RunWithID(context.Background(), "s1", "question", nil, nil, io.Discard)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		return session
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first.Steps, second.Steps) {
		t.Error("steps differ across identical runs")
	}
	if first.FinalAnswer != second.FinalAnswer ||
		first.TerminationReason != second.TerminationReason ||
		first.SearchesUsed != second.SearchesUsed {
		t.Error("session outcome differs across identical runs")
	}
}

func TestSinkStreamsEveryStep(t *testing.T) {
	sink := &collectSink{}
	a := New(&stubEngine{script: []string{searchText, answerText}}, &stubSearch{docs: parisDocs()}, testAgentCfg())

	session, err := a.RunWithID(context.Background(), "s42", "question", nil, sink, io.Discard)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(sink.steps) != len(session.Steps) {
		t.Errorf("sink got %d steps, session has %d", len(sink.steps), len(session.Steps))
	}
	for _, id := range sink.ids {
		if id != "s42" {
			t.Errorf("sink id = %q, want s42", id)
		}
	}
}

func TestSinkFailureIsWarning(t *testing.T) {
	sink := &collectSink{err: errors.New("disk full")}
	a := New(&stubEngine{script: []string{answerText}}, &stubSearch{}, testAgentCfg())

	session, err := a.Run(context.Background(), "question", sink, io.Discard)
	if err != nil {
		t.Fatalf("sink failure must not abort the session: %v", err)
	}
	if session.TerminationReason != types.TerminatedAnswered {
		t.Errorf("TerminationReason = %q", session.TerminationReason)
	}
}

// cancellingEngine fails every call and cancels the session context on the
// first failure, so cancellation lands during the retry backoff.
type cancellingEngine struct {
	cancel context.CancelFunc
	calls  int
}

func (e *cancellingEngine) Name() string { return "cancelling" }

func (e *cancellingEngine) Generate(_ context.Context, _ string, _ types.EngineConfig) (engine.Generation, error) {
	e.calls++
	e.cancel()
	return engine.Generation{}, &engine.EngineError{Backend: "stub", Op: "generate", Err: errors.New("connection refused")}
}

func TestCancellationDuringRetryBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := &cancellingEngine{cancel: cancel}
	a := New(eng, &stubSearch{}, testAgentCfg())

	session, err := a.Run(ctx, "question", nil, io.Discard)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if session.TerminationReason != types.TerminatedCancelled {
		t.Errorf("TerminationReason = %q, want cancelled (not a reasoning failure)", session.TerminationReason)
	}
	if eng.calls != 1 {
		t.Errorf("engine calls = %d, want 1 (no retry after cancellation)", eng.calls)
	}
	if session.FinalAnswer == "" {
		t.Error("FinalAnswer must never be empty")
	}
}

func TestCancellationAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(&stubEngine{script: []string{answerText}}, &stubSearch{}, testAgentCfg())
	session, err := a.Run(ctx, "question", nil, io.Discard)
	if err == nil {
		t.Fatal("expected context error")
	}
	if session.TerminationReason != types.TerminatedCancelled {
		t.Errorf("TerminationReason = %q, want cancelled", session.TerminationReason)
	}
}

func TestBuildPromptInjectsEvidence(t *testing.T) {
	ev := types.Evidence{Query: "q", Text: "[1] title=Paris\nurl=u\nsnippet=capital"}
	steps := []types.ReasoningStep{
		{EmittedText: "thinking", Intent: types.IntentSearch, Query: "q", Evidence: &ev},
	}
	prompt := buildPrompt("question", steps)

	for _, want := range []string{"question", "thinking", beginSearchResult, ev.Text, endSearchResult} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptForcedContinueNote(t *testing.T) {
	steps := []types.ReasoningStep{
		{EmittedText: "want to search", Intent: types.IntentContinue, ForcedContinue: true},
	}
	prompt := buildPrompt("question", steps)
	if !strings.Contains(prompt, searchExhaustedNote) {
		t.Error("prompt should carry the search-exhausted note after a forced continue")
	}
}
