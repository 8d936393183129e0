// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	registerAgentFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestAgentConfigConfigFileKeys(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("agent.max_steps", 6)
	viper.Set("agent.max_searches", 9)
	viper.Set("agent.retry_count", 2)
	viper.Set("agent.search.result_limit", 7)
	viper.Set("agent.per_call_timeout", "30s")

	cfg := agentConfigFromFlags(newFlagCmd(t))

	assert.Equal(t, 6, cfg.MaxSteps)
	assert.Equal(t, 9, cfg.MaxSearches)
	assert.Equal(t, 2, cfg.RetryCount)
	assert.Equal(t, 7, cfg.Search.ResultLimit)
	assert.Equal(t, "30s", cfg.PerCallTimeout.String())
}

func TestAgentConfigFlagsOverrideConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("agent.max_searches", 9)
	viper.Set("agent.search.result_limit", 7)

	cfg := agentConfigFromFlags(newFlagCmd(t, "--max-searches", "3", "--result-limit", "4"))

	assert.Equal(t, 3, cfg.MaxSearches)
	assert.Equal(t, 4, cfg.Search.ResultLimit)
}

func TestAgentConfigMaxSearchesFlagDefault(t *testing.T) {
	t.Cleanup(viper.Reset)

	// Nothing set anywhere: the flag default applies.
	cfg := agentConfigFromFlags(newFlagCmd(t))
	assert.Equal(t, 5, cfg.MaxSearches)

	// An explicit zero on the flag disables searching even when the
	// config file says otherwise.
	viper.Set("agent.max_searches", 9)
	cfg = agentConfigFromFlags(newFlagCmd(t, "--max-searches", "0"))
	assert.Equal(t, 0, cfg.MaxSearches)
}
