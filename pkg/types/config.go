package types

import "time"

// HTTPConfig holds shared HTTP settings used by adapters that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "search-agent/0.1"). Per prd103-search R5.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// EngineConfig holds settings for the reasoning engine adapter.
// Per prd102-engine R1.1-R1.4, R5.1.
type EngineConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the OpenAI-compatible API root (e.g. "http://localhost:8000/v1"
	// for a local vLLM server, or a hosted endpoint).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier sent with each completion request.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the completion API, if required.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens caps the length of a single generation (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the sampling temperature (default 0.7).
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// SearchConfig holds settings for the web search adapter.
// Per prd103-search R1.2, R5.1-R5.4.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Provider selects the search backend: bing or duckduckgo.
	Provider string `json:"provider" yaml:"provider"`

	// BingAPIKey authenticates against the Bing Web Search v7 API.
	BingAPIKey string `json:"bing_api_key,omitempty" yaml:"bing_api_key,omitempty"`

	// ResultLimit is the maximum number of documents per query (default 10).
	ResultLimit int `json:"result_limit" yaml:"result_limit"`
}

// EvidenceConfig holds settings for the evidence extractor.
// Per prd104-evidence R2.1, R2.2.
type EvidenceConfig struct {
	// MaxChars caps the total evidence text injected per search (default 1500).
	MaxChars int `json:"max_chars" yaml:"max_chars"`

	// MaxDocuments caps how many documents contribute to one evidence
	// block (default 3).
	MaxDocuments int `json:"max_documents" yaml:"max_documents"`
}

// AgentConfig groups the budgets and adapter settings for one session.
// Per prd101-loop R2.1-R2.6.
type AgentConfig struct {
	// MaxSteps bounds the total number of reasoning steps (default 10).
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	// MaxSearches bounds the number of search calls per session.
	// Zero disables searching entirely.
	MaxSearches int `json:"max_searches" yaml:"max_searches"`

	// PerCallTimeout bounds each individual adapter call (default 120s).
	PerCallTimeout time.Duration `json:"per_call_timeout" yaml:"per_call_timeout"`

	// RetryCount is the number of retries after a failed engine call
	// (default 1: one retry with backoff, then the session aborts).
	RetryCount int `json:"retry_count" yaml:"retry_count"`

	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Evidence EvidenceConfig `json:"evidence" yaml:"evidence"`
}

// WithDefaults returns a copy of the config with unset fields replaced by
// their documented defaults.
func (c AgentConfig) WithDefaults() AgentConfig {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.MaxSearches < 0 {
		c.MaxSearches = 0
	}
	if c.PerCallTimeout <= 0 {
		c.PerCallTimeout = 120 * time.Second
	}
	if c.RetryCount <= 0 {
		c.RetryCount = 1
	}
	if c.Engine.MaxTokens <= 0 {
		c.Engine.MaxTokens = 1024
	}
	if c.Search.ResultLimit <= 0 {
		c.Search.ResultLimit = 10
	}
	if c.Evidence.MaxChars <= 0 {
		c.Evidence.MaxChars = 1500
	}
	if c.Evidence.MaxDocuments <= 0 {
		c.Evidence.MaxDocuments = 3
	}
	return c
}

// RunnerConfig holds settings for concurrent dataset runs.
// Per prd105-runner R1.1-R1.4.
type RunnerConfig struct {
	// WorkerCount is the number of sessions processed concurrently (default 4).
	WorkerCount int `json:"worker_count" yaml:"worker_count"`

	// OutputPath is the JSONL file session records are appended to.
	OutputPath string `json:"output_path" yaml:"output_path"`
}

// SessionStoreConfig holds settings for the session index store.
// Per prd106-store R1.2, R2.3.
type SessionStoreConfig struct {
	// SessionsDir is the base directory for session data (contains
	// records/, index/).
	SessionsDir string `json:"sessions_dir" yaml:"sessions_dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all configuration for the CLI.
type PipelineConfig struct {
	Agent  AgentConfig        `json:"agent" yaml:"agent"`
	Runner RunnerConfig       `json:"runner" yaml:"runner"`
	Store  SessionStoreConfig `json:"store" yaml:"store"`
}
