// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"
	"strings"

	"github.com/pdiddy/search-agent/internal/engine"
	"github.com/pdiddy/search-agent/pkg/types"
)

// Result markers wrap injected evidence so the model can tell retrieved
// text from its own reasoning.
const (
	beginSearchResult = "<|begin_search_result|>"
	endSearchResult   = "<|end_search_result|>"
)

// searchExhaustedNote is injected after a forced continue so the model
// stops emitting queries and reasons to a conclusion.
const searchExhaustedNote = "The maximum search limit is exceeded. You are not allowed to search. Please reason with the information you already have and give your final answer."

// instructionPreamble establishes the marker grammar the engine adapter
// parses. It is the fixed head of every prompt.
var instructionPreamble = fmt.Sprintf(`You are a reasoning assistant that can search the web to answer questions accurately.

- When you need external information, emit a search query wrapped as %squery here%s and stop.
- Search results will be provided to you wrapped in %s and %s.
- When you are confident in the final answer, write it as \boxed{answer}.

Think step by step. Search only when your own knowledge is insufficient.`,
	engine.BeginSearchQuery, engine.EndSearchQuery, beginSearchResult, endSearchResult)

// buildPrompt assembles the full reasoning context: preamble, question, and
// every prior step's emitted text with its injected evidence. The session's
// step log is the single source of truth — the prompt is rebuilt from it
// each iteration rather than mutated in place (prd101-loop R1.4).
func buildPrompt(question string, steps []types.ReasoningStep) string {
	var b strings.Builder
	b.WriteString(instructionPreamble)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\n")

	for _, step := range steps {
		b.WriteString(step.EmittedText)
		b.WriteString("\n")
		if step.Evidence != nil {
			b.WriteString(beginSearchResult)
			if step.Evidence.IsEmpty() {
				b.WriteString("No helpful results were found for this query.")
			} else {
				b.WriteString("\n")
				b.WriteString(step.Evidence.Text)
				b.WriteString("\n")
			}
			b.WriteString(endSearchResult)
			b.WriteString("\n")
		}
		if step.ForcedContinue {
			b.WriteString(searchExhaustedNote)
			b.WriteString("\n")
		}
	}

	return b.String()
}
