// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidence condenses retrieved documents into the bounded text block
// injected back into the reasoning context. Extraction is deterministic:
// identical inputs always produce identical evidence.
// Implements: prd104-evidence (R1-R3);
//
//	docs/ARCHITECTURE § Evidence.
package evidence

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Extract selects the most relevant documents for query, formats them as
// numbered blocks, and bounds the result to cfg.MaxChars. Least-relevant
// content is dropped first; an empty document set yields empty evidence,
// never an error (R1.3).
func Extract(query string, docs []types.Document, cfg types.EvidenceConfig) types.Evidence {
	ev := types.Evidence{Query: query}
	if len(docs) == 0 {
		return ev
	}

	ranked := rankDocuments(query, docs)

	truncated := false
	if cfg.MaxDocuments > 0 && len(ranked) > cfg.MaxDocuments {
		ranked = ranked[:cfg.MaxDocuments]
		truncated = true
	}

	var blocks []string
	for i, d := range ranked {
		blocks = append(blocks, formatBlock(i+1, d))
		ev.DocumentIDs = append(ev.DocumentIDs, d.SourceID)
	}

	text := strings.Join(blocks, "\n\n")
	if cfg.MaxChars > 0 && len(text) > cfg.MaxChars {
		// Clip on a rune boundary so a multibyte character is never split.
		cut := cfg.MaxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + " ..."
		truncated = true
	}

	ev.Text = text
	ev.Truncated = truncated
	return ev
}

// rankDocuments orders docs by query-term overlap, highest first. Incoming
// provider rank is the tie-break, so with no content signal the provider's
// ordering is preserved (R2.3).
func rankDocuments(query string, docs []types.Document) []types.Document {
	terms := tokenize(query)

	type scored struct {
		doc   types.Document
		score float64
	}
	scoredDocs := make([]scored, 0, len(docs))
	for _, d := range docs {
		scoredDocs = append(scoredDocs, scored{
			doc:   d,
			score: overlapScore(terms, d.Title+" "+d.Snippet),
		})
	}

	sort.SliceStable(scoredDocs, func(i, j int) bool {
		if scoredDocs[i].score != scoredDocs[j].score {
			return scoredDocs[i].score > scoredDocs[j].score
		}
		return scoredDocs[i].doc.Rank < scoredDocs[j].doc.Rank
	})

	ranked := make([]types.Document, len(scoredDocs))
	for i, s := range scoredDocs {
		ranked[i] = s.doc
	}
	return ranked
}

// overlapScore returns the fraction of query terms present in the text.
func overlapScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := make(map[string]bool)
	for _, tok := range tokenize(text) {
		haystack[tok] = true
	}
	hits := 0
	for _, term := range terms {
		if haystack[term] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// tokenize lowercases and splits text on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// formatBlock renders one document the way the reasoning prompt expects:
// a numbered title/url/snippet block.
func formatBlock(n int, d types.Document) string {
	return fmt.Sprintf("[%d] title=%s\nurl=%s\nsnippet=%s", n, d.Title, d.URL, d.Snippet)
}
