// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/search-agent/internal/agent"
	"github.com/pdiddy/search-agent/internal/engine"
	"github.com/pdiddy/search-agent/internal/websearch"
	"github.com/pdiddy/search-agent/pkg/types"
)

const defaultUserAgent = "search-agent/0.1"

// registerAgentFlags adds the session flags shared by ask and batch.
func registerAgentFlags(cmd *cobra.Command) {
	cmd.Flags().String("engine-url", "", "OpenAI-compatible API base URL (default http://localhost:8000/v1)")
	cmd.Flags().String("model", "", "model identifier sent with completion requests")
	cmd.Flags().String("provider", "", "search provider: bing or duckduckgo (default duckduckgo)")
	cmd.Flags().Int("max-steps", 0, "maximum reasoning steps per session (default 10)")
	cmd.Flags().Int("max-searches", 5, "maximum searches per session (0 disables searching)")
	cmd.Flags().Int("result-limit", 0, "search results fetched per query (default 10)")
	cmd.Flags().Duration("timeout", 0, "per-call timeout for engine and search requests (default 120s)")
}

// agentConfigFromFlags builds an AgentConfig with flag > config file >
// secrets precedence. Unset fields keep their documented defaults.
func agentConfigFromFlags(cmd *cobra.Command) types.AgentConfig {
	cfg := types.AgentConfig{}

	cfg.MaxSteps, _ = cmd.Flags().GetInt("max-steps")
	cfg.PerCallTimeout, _ = cmd.Flags().GetDuration("timeout")
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = viper.GetInt("agent.max_steps")
	}
	if cfg.PerCallTimeout == 0 {
		cfg.PerCallTimeout = viper.GetDuration("agent.per_call_timeout")
	}
	cfg.RetryCount = viper.GetInt("agent.retry_count")

	// The max-searches flag carries a non-zero default, so the config file
	// wins only when the flag was not set explicitly.
	cfg.MaxSearches, _ = cmd.Flags().GetInt("max-searches")
	if !cmd.Flags().Changed("max-searches") && viper.IsSet("agent.max_searches") {
		cfg.MaxSearches = viper.GetInt("agent.max_searches")
	}

	baseURL, _ := cmd.Flags().GetString("engine-url")
	if baseURL == "" {
		baseURL = viper.GetString("agent.engine.base_url")
	}
	model, _ := cmd.Flags().GetString("model")
	if model == "" {
		model = viper.GetString("agent.engine.model")
	}
	cfg.Engine = types.EngineConfig{
		HTTPConfig: types.HTTPConfig{UserAgent: defaultUserAgent},
		BaseURL:    baseURL,
		Model:      model,
		APIKey:     secretDefault("engine-api-key", viper.GetString("agent.engine.api_key")),
	}

	provider, _ := cmd.Flags().GetString("provider")
	if provider == "" {
		provider = viper.GetString("agent.search.provider")
	}
	resultLimit, _ := cmd.Flags().GetInt("result-limit")
	if resultLimit == 0 {
		resultLimit = viper.GetInt("agent.search.result_limit")
	}
	cfg.Search = types.SearchConfig{
		HTTPConfig:  types.HTTPConfig{UserAgent: defaultUserAgent},
		Provider:    provider,
		ResultLimit: resultLimit,
		BingAPIKey:  secretDefault("bing-api-key", viper.GetString("agent.search.bing_api_key")),
	}

	cfg.Evidence = types.EvidenceConfig{
		MaxChars:     viper.GetInt("agent.evidence.max_chars"),
		MaxDocuments: viper.GetInt("agent.evidence.max_documents"),
	}

	return cfg
}

// newAgent wires the engine and search backends for a session config.
func newAgent(cfg types.AgentConfig) (*agent.Agent, error) {
	cfg = cfg.WithDefaults()
	search, err := websearch.ForConfig(cfg.Search)
	if err != nil {
		return nil, err
	}
	eng := &engine.OpenAIBackend{Client: &http.Client{Timeout: cfg.PerCallTimeout}}
	return agent.New(eng, search, cfg), nil
}

// storeConfigFromFlags builds the session store config shared by the
// sessions subcommands.
func storeConfigFromFlags(cmd *cobra.Command) types.SessionStoreConfig {
	sessionsDir, _ := cmd.Flags().GetString("sessions-dir")
	if sessionsDir == "" {
		sessionsDir = "sessions"
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return types.SessionStoreConfig{
		SessionsDir: sessionsDir,
		MaxResults:  maxResults,
	}
}
