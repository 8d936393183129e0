// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agent drives the search-reason loop: generate a reasoning step,
// classify its intent, run searches and inject evidence, and repeat until
// an answer is produced or a budget runs out.
// Implements: prd101-loop (R1-R4);
//
//	docs/ARCHITECTURE § Orchestrator.
package agent

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/pdiddy/search-agent/internal/engine"
	"github.com/pdiddy/search-agent/internal/evidence"
	"github.com/pdiddy/search-agent/internal/websearch"
	"github.com/pdiddy/search-agent/pkg/types"
)

// fallbackAnswer is used when a session exhausts its step budget without a
// single non-empty reasoning step. The final answer is never empty (R3.2).
const fallbackAnswer = "No answer could be determined within the step budget."

// retryBackoffBase controls the base duration for backoff between engine
// retries. Tests override this to avoid real sleeps.
var retryBackoffBase = time.Second

// Sink receives each reasoning step as soon as it is appended to the
// session, so an interrupted process retains all completed steps (R4.3).
type Sink interface {
	Append(sessionID string, step types.ReasoningStep) error
}

// Agent runs sessions against a reasoning engine and a search provider.
// Agents are stateless between sessions and safe for concurrent use; each
// session owns all of its mutable state.
type Agent struct {
	engine engine.Backend
	search websearch.Backend
	cfg    types.AgentConfig
}

// New creates an Agent. Unset config fields take their documented defaults.
func New(eng engine.Backend, search websearch.Backend, cfg types.AgentConfig) *Agent {
	return &Agent{engine: eng, search: search, cfg: cfg.WithDefaults()}
}

// Run processes a single question through the loop and returns the
// completed session. Progress lines go to w; each appended step is also
// streamed to sink when sink is non-nil.
//
// The returned session is always inspectable, even on failure: a non-nil
// error accompanies a session whose termination reason explains it (R4.1).
func (a *Agent) Run(ctx context.Context, question string, sink Sink, w io.Writer) (*types.Session, error) {
	return a.RunWithID(ctx, "", question, nil, sink, w)
}

// RunWithID is Run with an explicit session ID and optional gold answers,
// used by dataset runs.
func (a *Agent) RunWithID(ctx context.Context, id, question string, gold []string, sink Sink, w io.Writer) (*types.Session, error) {
	session := &types.Session{
		ID:         id,
		Question:   question,
		GoldAnswer: gold,
		Started:    time.Now(),
	}
	defer func() {
		session.ElapsedSeconds = time.Since(session.Started).Seconds()
	}()

	for len(session.Steps) < a.cfg.MaxSteps {
		// Stop signals abort at step boundaries only; completed steps
		// have already been streamed (R4.4).
		if ctx.Err() != nil {
			session.TerminationReason = types.TerminatedCancelled
			session.FinalAnswer = bestEffortAnswer(session)
			return session, ctx.Err()
		}

		prompt := buildPrompt(question, session.Steps)

		gen, err := a.generateWithRetry(ctx, prompt, w)
		if err != nil {
			// A stop signal arriving mid-call or during retry backoff is a
			// cancellation, not an engine failure.
			if ctx.Err() != nil {
				session.TerminationReason = types.TerminatedCancelled
				session.FinalAnswer = bestEffortAnswer(session)
				return session, ctx.Err()
			}
			session.TerminationReason = types.TerminatedReasoningFailure
			session.FinalAnswer = session.LastEmittedText()
			return session, fmt.Errorf("reasoning failed at step %d: %w", len(session.Steps), err)
		}

		switch {
		case gen.Intent == types.IntentSearch && session.SearchesUsed < a.cfg.MaxSearches:
			a.searchStep(ctx, session, gen, sink, w)

		case gen.Intent == types.IntentSearch && gen.FinalAnswer != "":
			// Tie-break: search takes precedence only while budget
			// remains; with searches exhausted the answer is honored (R2.3).
			a.answerStep(session, gen, sink, w)
			return session, nil

		case gen.Intent == types.IntentSearch:
			// Searches exhausted and no answer yet: force the step to
			// continue so the model reasons to a conclusion (R2.4).
			a.appendStep(session, types.ReasoningStep{
				StepIndex:      len(session.Steps),
				EmittedText:    gen.Text,
				Intent:         types.IntentContinue,
				ForcedContinue: true,
			}, sink, w)

		case gen.Intent == types.IntentAnswer:
			a.answerStep(session, gen, sink, w)
			return session, nil

		default:
			a.appendStep(session, types.ReasoningStep{
				StepIndex:   len(session.Steps),
				EmittedText: gen.Text,
				Intent:      types.IntentContinue,
			}, sink, w)
		}
	}

	session.TerminationReason = types.TerminatedStepBudget
	session.FinalAnswer = bestEffortAnswer(session)
	return session, nil
}

// searchStep executes one search-and-inject cycle. Provider failures
// degrade to empty evidence and are recorded on the step; they never abort
// the session (R4.2).
func (a *Agent) searchStep(ctx context.Context, session *types.Session, gen engine.Generation, sink Sink, w io.Writer) {
	step := types.ReasoningStep{
		StepIndex:   len(session.Steps),
		EmittedText: gen.Text,
		Intent:      types.IntentSearch,
		Query:       gen.Query,
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.PerCallTimeout)
	docs, err := a.search.Search(callCtx, gen.Query, a.cfg.Search.ResultLimit, a.cfg.Search)
	cancel()

	if err != nil {
		step.ProviderError = err.Error()
		fmt.Fprintf(w, "warning: search %q failed: %v\n", gen.Query, err)
		docs = nil
	}

	ev := evidence.Extract(gen.Query, docs, a.cfg.Evidence)
	step.Evidence = &ev

	session.SearchesUsed++
	a.appendStep(session, step, sink, w)
}

// answerStep appends the terminal answer step.
func (a *Agent) answerStep(session *types.Session, gen engine.Generation, sink Sink, w io.Writer) {
	a.appendStep(session, types.ReasoningStep{
		StepIndex:   len(session.Steps),
		EmittedText: gen.Text,
		Intent:      types.IntentAnswer,
		FinalAnswer: gen.FinalAnswer,
	}, sink, w)
	session.FinalAnswer = gen.FinalAnswer
	session.TerminationReason = types.TerminatedAnswered
}

// appendStep appends to the session and streams the step to the sink.
// Sink failures are warnings: losing a streamed record must not abort
// reasoning (R4.3).
func (a *Agent) appendStep(session *types.Session, step types.ReasoningStep, sink Sink, w io.Writer) {
	session.Steps = append(session.Steps, step)
	fmt.Fprintf(w, "step %-2d %s", step.StepIndex, step.Intent)
	if step.Query != "" {
		fmt.Fprintf(w, "  %q", step.Query)
	}
	fmt.Fprintln(w)

	if sink == nil {
		return
	}
	if err := sink.Append(session.ID, step); err != nil {
		fmt.Fprintf(w, "warning: step record write failed: %v\n", err)
	}
}

// generateWithRetry calls the engine with the per-call timeout, retrying
// RetryCount times with exponential backoff. A timeout counts as a failed
// attempt (prd102-engine R4.1).
func (a *Agent) generateWithRetry(ctx context.Context, prompt string, w io.Writer) (engine.Generation, error) {
	var lastErr error
	for attempt := 0; attempt <= a.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * retryBackoffBase
			fmt.Fprintf(w, "warning: engine call failed, retrying in %v: %v\n", backoff, lastErr)
			select {
			case <-ctx.Done():
				return engine.Generation{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, a.cfg.PerCallTimeout)
		gen, err := a.engine.Generate(callCtx, prompt, a.cfg.Engine)
		cancel()

		if err == nil {
			return gen, nil
		}
		lastErr = err
	}
	return engine.Generation{}, lastErr
}

// bestEffortAnswer returns the most recent non-empty emitted text, falling
// back to a fixed string so the final answer is never empty (R3.2).
func bestEffortAnswer(session *types.Session) string {
	if text := session.LastEmittedText(); text != "" {
		return text
	}
	return fallbackAnswer
}
