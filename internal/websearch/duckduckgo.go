// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// ddgAPIBase is the DuckDuckGo lite HTML endpoint, stable for scraping.
// Declared as a var so tests can substitute an httptest server.
var ddgAPIBase = "https://lite.duckduckgo.com/lite/"

// ddgRateLimit enforces a global 1 QPS limit across all DuckDuckGo
// backends and goroutines; the lite endpoint bans aggressive clients.
var ddgRateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// DuckDuckGoBackend scrapes the DuckDuckGo lite interface. It needs no API
// key, making it the default provider (R2.3).
type DuckDuckGoBackend struct {
	Client *http.Client
}

// NewDuckDuckGoBackend creates a DuckDuckGo backend with a modest timeout.
func NewDuckDuckGoBackend() *DuckDuckGoBackend {
	return &DuckDuckGoBackend{Client: &http.Client{Timeout: 15 * time.Second}}
}

// Name returns the backend identifier.
func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

// Search posts the query to the lite endpoint and parses the result HTML.
func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, limit int, cfg types.SearchConfig) ([]types.Document, error) {
	if err := waitRateLimit(ctx); err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgAPIBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ua := cfg.UserAgent
	if ua == "" {
		ua = "search-agent/0.1"
	}
	req.Header.Set("User-Agent", ua)

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: b.Name(), Err: fmt.Errorf("reading response: %w", err)}
	}

	return capDocuments(parseLiteHTML(string(body)), limit), nil
}

// waitRateLimit blocks until a full second has passed since the previous
// DuckDuckGo query, or the context is cancelled.
func waitRateLimit(ctx context.Context) error {
	ddgRateLimit.mu.Lock()
	wait := time.Until(ddgRateLimit.last.Add(time.Second))
	if wait > 0 {
		ddgRateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		ddgRateLimit.mu.Lock()
	}
	ddgRateLimit.last = time.Now()
	ddgRateLimit.mu.Unlock()
	return nil
}

// Lite page structure: result links carry class "result-link", snippets sit
// in the following "result-snippet" cell.
var (
	ddgLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([\s\S]*?)</td>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// parseLiteHTML extracts documents from the DuckDuckGo lite result page.
// A page with no recognizable results parses as an empty set.
func parseLiteHTML(page string) []types.Document {
	matches := ddgLinkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(page, -1)

	var docs []types.Document
	for i, m := range matches {
		link := strings.TrimSpace(m[1])
		title := cleanHTML(m[2])
		if link == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}
		docs = append(docs, types.Document{
			SourceID: link,
			Title:    title,
			Snippet:  snippet,
			URL:      link,
		})
	}
	return docs
}

// cleanHTML strips tags and decodes entities from scraped text.
func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
