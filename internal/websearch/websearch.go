// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package websearch queries web search providers and returns ranked documents.
// Provider failures are the soft failure class: the orchestrator records them
// on the step and degrades to reasoning without evidence.
// Implements: prd103-search (R1-R5);
//
//	docs/ARCHITECTURE § Search.
package websearch

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/search-agent/pkg/types"
)

// Backend searches a single web provider. Each backend (Bing, DuckDuckGo)
// implements this interface per the Strategy pattern (R2.1).
//
// Search returns at most limit documents ordered by provider-reported
// relevance, with Rank set from position. A query with zero hits returns an
// empty slice and a nil error; only authentication, quota, and transport
// failures produce a ProviderError (R4.1).
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int, cfg types.SearchConfig) ([]types.Document, error)
}

// ProviderError wraps a search backend failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ForConfig returns the backend selected by cfg.Provider. An unset provider
// defaults to DuckDuckGo, which needs no API key.
func ForConfig(cfg types.SearchConfig) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "bing":
		return &BingBackend{}, nil
	case "duckduckgo", "":
		return NewDuckDuckGoBackend(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q: use bing or duckduckgo", cfg.Provider)
	}
}

// capDocuments truncates docs to limit and assigns 1-based ranks in order.
func capDocuments(docs []types.Document, limit int) []types.Document {
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	for i := range docs {
		docs[i].Rank = i + 1
	}
	return docs
}
