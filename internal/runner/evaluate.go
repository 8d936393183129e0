// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runner

import (
	"strings"
	"unicode"
)

// Evaluate compares a final answer against golden answers. Exact match
// requires the normalized answer to equal a normalized gold; cover match
// requires the normalized answer to contain one.
func Evaluate(answer string, golds []string) (exact, cover bool) {
	norm := normalizeAnswer(answer)
	if norm == "" {
		return false, false
	}
	for _, gold := range golds {
		g := normalizeAnswer(gold)
		if g == "" {
			continue
		}
		if norm == g {
			exact = true
		}
		if strings.Contains(norm, g) {
			cover = true
		}
	}
	return exact, cover
}

// normalizeAnswer lowercases, drops punctuation and articles, and
// collapses whitespace.
func normalizeAnswer(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			b.WriteByte(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if w == "a" || w == "an" || w == "the" {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
