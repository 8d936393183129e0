// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/search-agent/internal/httputil"
	"github.com/pdiddy/search-agent/pkg/types"
)

// defaultBaseURL targets a local vLLM server when no endpoint is configured.
const defaultBaseURL = "http://localhost:8000/v1"

// OpenAIBackend calls an OpenAI-compatible chat completions endpoint
// (vLLM, llama.cpp server, or a hosted API). The endpoint comes from
// EngineConfig.BaseURL so tests can substitute an httptest server (R5.2).
type OpenAIBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string { return "openai" }

// chat completions wire structures (request subset we send, response subset
// we read).
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the accumulated context as a single user message and
// classifies the completion. Generation stops at the end-of-query marker so
// the model cannot hallucinate search results past its own query
// (prd102-engine R3.2). Empty or whitespace-only completions are an
// EngineError (R4.2).
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string, cfg types.EngineConfig) (Generation, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	reqURL := strings.TrimSuffix(base, "/") + "/chat/completions"

	body, err := json.Marshal(chatRequest{
		Model:       cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Stop:        []string{EndSearchQuery},
	})
	if err != nil {
		return Generation{}, &EngineError{Backend: b.Name(), Op: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return Generation{}, &EngineError{Backend: b.Name(), Op: "creating request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return Generation{}, &EngineError{Backend: b.Name(), Op: "completion request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Generation{}, &EngineError{
			Backend: b.Name(),
			Op:      "completion request",
			Err:     fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Generation{}, &EngineError{Backend: b.Name(), Op: "parsing response", Err: err}
	}
	if cr.Error != nil {
		return Generation{}, &EngineError{
			Backend: b.Name(),
			Op:      "completion request",
			Err:     fmt.Errorf("%s", cr.Error.Message),
		}
	}
	if len(cr.Choices) == 0 {
		return Generation{}, &EngineError{
			Backend: b.Name(),
			Op:      "parsing response",
			Err:     fmt.Errorf("no choices returned"),
		}
	}

	text := cr.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return Generation{}, &EngineError{
			Backend: b.Name(),
			Op:      "parsing response",
			Err:     fmt.Errorf("empty generation"),
		}
	}

	// The stop sequence strips the closing marker; restore it so the
	// classifier sees a well-formed pair.
	if strings.Contains(text, BeginSearchQuery) && !strings.Contains(text, EndSearchQuery) {
		text += EndSearchQuery
	}

	return Classify(text), nil
}
