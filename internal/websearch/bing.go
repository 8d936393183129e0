// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// bingAPIBase is the Bing Web Search v7 endpoint. Declared as a var so
// tests can substitute an httptest server.
var bingAPIBase = "https://api.bing.microsoft.com/v7.0/search"

// BingBackend queries the Bing Web Search v7 API (R2.2).
type BingBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *BingBackend) Name() string { return "bing" }

// Search queries the Bing API and returns documents ranked by position.
func (b *BingBackend) Search(ctx context.Context, query string, limit int, cfg types.SearchConfig) ([]types.Document, error) {
	if cfg.BingAPIKey == "" {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("missing API key")}
	}

	params := url.Values{
		"q":              {query},
		"count":          {fmt.Sprintf("%d", limit)},
		"responseFilter": {"Webpages"},
	}
	reqURL := bingAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", cfg.BingAPIKey)
	req.Header.Set("User-Agent", cfg.UserAgent)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("authentication failed (HTTP %d)", resp.StatusCode)}
	case http.StatusTooManyRequests:
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("quota exhausted (HTTP 429)")}
	default:
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var br bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("parsing response: %w", err)}
	}

	// Zero hits is a valid outcome, not a failure (R4.1).
	var docs []types.Document
	for _, page := range br.WebPages.Value {
		if page.URL == "" && page.Name == "" {
			continue
		}
		docs = append(docs, types.Document{
			SourceID: page.URL,
			Title:    page.Name,
			Snippet:  page.Snippet,
			URL:      page.URL,
		})
	}
	return capDocuments(docs, limit), nil
}

// Bing Web Search v7 JSON structures (webPages.value subset).
type bingResponse struct {
	WebPages struct {
		Value []bingWebPage `json:"value"`
	} `json:"webPages"`
}

type bingWebPage struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}
