// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/search-agent/internal/dataset"
	"github.com/pdiddy/search-agent/internal/runner"
	"github.com/pdiddy/search-agent/pkg/types"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a dataset of questions concurrently",
	Long: `Batch loads a dataset file (.jsonl or .yaml), runs one session per
question through a bounded worker pool, and streams session records to the
output file. Interrupting the run (Ctrl-C) stops sessions at their next
step boundary; steps already recorded are kept.

When records carry golden answers, batch reports exact-match and
cover-match accuracy at the end.`,
	RunE: runBatch,
}

func init() {
	registerAgentFlags(batchCmd)
	batchCmd.Flags().String("dataset", "", "dataset file with question records (required)")
	batchCmd.Flags().String("output", "sessions/records/batch.jsonl", "JSONL file for session records")
	batchCmd.Flags().Int("workers", 0, "concurrent sessions (default 4)")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	datasetPath, _ := cmd.Flags().GetString("dataset")
	if datasetPath == "" {
		return fmt.Errorf("--dataset is required")
	}

	records, err := dataset.Load(datasetPath)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("dataset %s contains no records", datasetPath)
	}

	cfg := agentConfigFromFlags(cmd)
	a, err := newAgent(cfg)
	if err != nil {
		return err
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers == 0 {
		workers = viper.GetInt("runner.worker_count")
	}
	if workers == 0 {
		workers = 4
	}
	outputPath, _ := cmd.Flags().GetString("output")

	r := runner.New(a, types.RunnerConfig{
		WorkerCount: workers,
		OutputPath:  outputPath,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Running %d questions with %d workers\n\n", len(records), workers)

	summary, runErr := r.Run(ctx, records, os.Stdout)
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d session(s) failed", summary.Failed)
	}
	return nil
}
