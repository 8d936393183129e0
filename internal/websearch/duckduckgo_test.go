// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/search-agent/pkg/types"
)

const litePage = `<html><body><table>
<tr><td><a rel="nofollow" class="result-link" href="https://en.wikipedia.org/wiki/Paris">Paris - Wikipedia</a></td></tr>
<tr><td class="result-snippet">Paris is the <b>capital</b> of France.</td></tr>
<tr><td><a rel="nofollow" class="result-link" href="https://example.com/france">France &amp; its capital</a></td></tr>
<tr><td class="result-snippet">All about France.</td></tr>
</table></body></html>`

func TestParseLiteHTML(t *testing.T) {
	docs := parseLiteHTML(litePage)
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Title != "Paris - Wikipedia" {
		t.Errorf("docs[0].Title = %q", docs[0].Title)
	}
	if docs[0].Snippet != "Paris is the capital of France." {
		t.Errorf("docs[0].Snippet = %q, tags should be stripped", docs[0].Snippet)
	}
	if docs[1].Title != "France & its capital" {
		t.Errorf("docs[1].Title = %q, entities should be decoded", docs[1].Title)
	}
}

func TestParseLiteHTMLNoResults(t *testing.T) {
	docs := parseLiteHTML(`<html><body>No results.</body></html>`)
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.PostForm.Get("q"); got != "capital of France" {
			t.Errorf("query = %q", got)
		}
		w.Write([]byte(litePage))
	}))
	defer srv.Close()

	oldBase := ddgAPIBase
	ddgAPIBase = srv.URL
	defer func() { ddgAPIBase = oldBase }()

	b := &DuckDuckGoBackend{Client: srv.Client()}
	docs, err := b.Search(context.Background(), "capital of France", 1, types.SearchConfig{})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1 (limit applied)", len(docs))
	}
	if docs[0].Rank != 1 {
		t.Errorf("Rank = %d, want 1", docs[0].Rank)
	}
}

func TestDuckDuckGoSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	oldBase := ddgAPIBase
	ddgAPIBase = srv.URL
	defer func() { ddgAPIBase = oldBase }()

	b := &DuckDuckGoBackend{Client: srv.Client()}
	_, err := b.Search(context.Background(), "q", 5, types.SearchConfig{})
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("want ProviderError, got %v", err)
	}
}
