package websearch

import (
	"testing"

	"github.com/pdiddy/search-agent/pkg/types"
)

func TestForConfig(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		want     string
		wantErr  bool
	}{
		{"bing", "bing", "bing", false},
		{"duckduckgo", "duckduckgo", "duckduckgo", false},
		{"default is duckduckgo", "", "duckduckgo", false},
		{"case insensitive", "Bing", "bing", false},
		{"unknown provider", "altavista", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ForConfig(types.SearchConfig{Provider: tt.provider})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ForConfig() error: %v", err)
			}
			if b.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.want)
			}
		})
	}
}

func TestCapDocuments(t *testing.T) {
	docs := []types.Document{
		{Title: "A"}, {Title: "B"}, {Title: "C"},
	}

	capped := capDocuments(docs, 2)
	if len(capped) != 2 {
		t.Fatalf("len = %d, want 2", len(capped))
	}
	for i, d := range capped {
		if d.Rank != i+1 {
			t.Errorf("doc %d rank = %d, want %d", i, d.Rank, i+1)
		}
	}

	if got := capDocuments(nil, 5); len(got) != 0 {
		t.Errorf("capDocuments(nil) = %v, want empty", got)
	}
}
