// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the search-agent loop.
// Implements: prd101-loop (Session, ReasoningStep, R1.1-R1.5);
//
//	prd102-engine (Intent);
//	prd103-search (Document);
//	prd104-evidence (Evidence).
//
// See docs/ARCHITECTURE.md § Data Structures.
package types

import (
	"strings"
	"time"
)

// Intent classifies the output of one reasoning step.
// Per prd102-engine R2.1, classification happens in the engine adapter;
// the orchestrator only consumes the result.
type Intent string

const (
	// IntentContinue means the step emitted reasoning text only.
	IntentContinue Intent = "continue"

	// IntentSearch means the step emitted a search query.
	IntentSearch Intent = "search"

	// IntentAnswer means the step emitted a final answer.
	IntentAnswer Intent = "answer"
)

// Document is one retrieved search result. Documents are immutable once
// fetched and belong to the step that retrieved them (prd103-search R3.1).
type Document struct {
	// SourceID identifies the document within its provider (usually the URL).
	SourceID string `json:"source_id" yaml:"source_id"`

	// Title is the result title as reported by the provider.
	Title string `json:"title" yaml:"title"`

	// Snippet is the provider-supplied summary or body excerpt.
	Snippet string `json:"snippet" yaml:"snippet"`

	// URL is the document location.
	URL string `json:"url" yaml:"url"`

	// Rank is the 1-based position in the provider's result ordering.
	Rank int `json:"rank" yaml:"rank"`
}

// Evidence is condensed text derived from retrieved documents, attributed
// to the query that produced it (prd104-evidence R1.2). Text may be empty
// when extraction found nothing relevant; DocumentIDs lists the sources
// that contributed.
type Evidence struct {
	Query       string   `json:"query" yaml:"query"`
	Text        string   `json:"text" yaml:"text"`
	DocumentIDs []string `json:"document_ids,omitempty" yaml:"document_ids,omitempty"`

	// Truncated reports whether the extractor clipped content to fit the
	// configured evidence budget.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// IsEmpty reports whether the evidence carries no usable text.
func (e Evidence) IsEmpty() bool {
	return strings.TrimSpace(e.Text) == ""
}

// ReasoningStep records one iteration of the search-reason loop. Steps are
// append-only and immutable after creation (prd101-loop R1.3).
type ReasoningStep struct {
	// StepIndex is the 0-based position within the session.
	StepIndex int `json:"step_index" yaml:"step_index"`

	// EmittedText is the raw text generated by the reasoning engine.
	EmittedText string `json:"emitted_text" yaml:"emitted_text"`

	// Intent is the classification the step settled on after budget
	// enforcement (a forced continue overrides a detected search).
	Intent Intent `json:"intent" yaml:"intent"`

	// Query is present iff Intent is search.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// Evidence is present iff this step consumed search results.
	Evidence *Evidence `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// ProviderError records a search backend failure that degraded this
	// step to empty evidence. Diagnostic only; never fatal (prd103-search R4.2).
	ProviderError string `json:"provider_error,omitempty" yaml:"provider_error,omitempty"`

	// ForcedContinue marks a step whose detected search intent was
	// overridden because the search budget was exhausted (prd101-loop R2.4).
	ForcedContinue bool `json:"forced_continue,omitempty" yaml:"forced_continue,omitempty"`

	// FinalAnswer is present iff Intent is answer.
	FinalAnswer string `json:"final_answer,omitempty" yaml:"final_answer,omitempty"`
}

// TerminationReason explains why a session's loop stopped.
type TerminationReason string

const (
	// TerminatedAnswered means the engine produced a final answer.
	TerminatedAnswered TerminationReason = "answered"

	// TerminatedStepBudget means the loop hit max_steps without an answer.
	TerminatedStepBudget TerminationReason = "step_budget_exhausted"

	// TerminatedReasoningFailure means the engine failed twice in a row.
	TerminatedReasoningFailure TerminationReason = "reasoning_failure"

	// TerminatedCancelled means an external stop signal arrived between steps.
	TerminatedCancelled TerminationReason = "cancelled"
)

// Session is one end-to-end processing of a single question. A session
// exclusively owns its steps and is mutated only by appending them
// (prd101-loop R1.1, R1.2).
type Session struct {
	// ID identifies the session; for dataset runs this is the record ID.
	ID string `json:"id" yaml:"id"`

	// Question is the input question driving the session.
	Question string `json:"question" yaml:"question"`

	// GoldAnswer is the reference answer when running against a labeled
	// dataset. Evaluation only; never shown to the engine.
	GoldAnswer []string `json:"gold_answer,omitempty" yaml:"gold_answer,omitempty"`

	// Started is the session start time.
	Started time.Time `json:"started" yaml:"started"`

	// ElapsedSeconds is the wall-clock duration of the session.
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	// Steps is the ordered transcript of reasoning steps.
	Steps []ReasoningStep `json:"steps" yaml:"steps"`

	// FinalAnswer is the answer the session settled on. Never empty for a
	// session that ran at least one step (prd101-loop R3.2).
	FinalAnswer string `json:"final_answer" yaml:"final_answer"`

	// TerminationReason explains how the loop ended.
	TerminationReason TerminationReason `json:"termination_reason" yaml:"termination_reason"`

	// SearchesUsed counts the steps that performed a search.
	SearchesUsed int `json:"searches_used" yaml:"searches_used"`
}

// LastEmittedText returns the most recent non-empty emitted text, or ""
// when no step produced any. Used to synthesize a best-effort answer at
// step budget exhaustion (prd101-loop R3.2).
func (s *Session) LastEmittedText() string {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if text := strings.TrimSpace(s.Steps[i].EmittedText); text != "" {
			return text
		}
	}
	return ""
}
