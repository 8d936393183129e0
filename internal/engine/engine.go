// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine adapts a black-box text-completion service into the
// reasoning side of the search-reason loop. It classifies generated text
// into an intent (continue, search, answer) by parsing the marker grammar
// the reasoning prompt establishes.
// Implements: prd102-engine (R1-R5);
//
//	docs/ARCHITECTURE § Reasoning Engine.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Marker strings recognized in generated text. The search markers delimit
// an emitted query; a final answer is wrapped in \boxed{...}.
const (
	BeginSearchQuery = "<|begin_search_query|>"
	EndSearchQuery   = "<|end_search_query|>"
	beginBoxed       = `\boxed{`
)

// Backend generates text from an accumulated reasoning context. Each
// implementation wraps one completion service per the Strategy pattern
// (R5.1); tests supply a deterministic stub.
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, cfg types.EngineConfig) (Generation, error)
}

// Generation is the classified result of one engine call. Text always
// carries the raw generated output; Query and FinalAnswer are filled when
// the corresponding markers parsed. Both may be present at once — budget
// precedence is the orchestrator's decision (prd101-loop R2.3).
type Generation struct {
	Text        string
	Intent      types.Intent
	Query       string
	FinalAnswer string
}

// EngineError wraps a reasoning backend failure. Engine failures are the
// hard failure class: the orchestrator retries once and then aborts the
// session (prd102-engine R4.1).
type EngineError struct {
	Backend string
	Op      string
	Err     error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Classify parses generated text into a Generation. A well-formed search
// marker pair takes precedence in the reported intent; a boxed answer with
// no query classifies as answer. Text with neither marker is a continue
// step with the raw text preserved — malformed output is never an error
// (prd102-engine R2.3).
func Classify(text string) Generation {
	g := Generation{
		Text:        text,
		Intent:      types.IntentContinue,
		Query:       extractBetween(text, BeginSearchQuery, EndSearchQuery),
		FinalAnswer: extractBoxed(text),
	}

	switch {
	case g.Query != "":
		g.Intent = types.IntentSearch
	case g.FinalAnswer != "":
		g.Intent = types.IntentAnswer
	}
	return g
}

// extractBetween returns the content of the last well-formed start/end tag
// pair, trimmed. Later pairs win so a model that revises its query within
// one generation is honored.
func extractBetween(text, startTag, endTag string) string {
	var last string
	for {
		start := strings.Index(text, startTag)
		if start < 0 {
			break
		}
		rest := text[start+len(startTag):]
		end := strings.Index(rest, endTag)
		if end < 0 {
			break
		}
		last = strings.TrimSpace(rest[:end])
		text = rest[end+len(endTag):]
	}
	return last
}

// extractBoxed returns the content of the first \boxed{...} in the text,
// tracking brace nesting so answers containing braces survive.
func extractBoxed(text string) string {
	start := strings.Index(text, beginBoxed)
	if start < 0 {
		return ""
	}
	depth := 1
	inner := text[start+len(beginBoxed):]
	for i, r := range inner {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(inner[:i])
			}
		}
	}
	return ""
}
