// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/search-agent/internal/agent"
	"github.com/pdiddy/search-agent/internal/record"
	"github.com/pdiddy/search-agent/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question with the search-reason loop",
	Long: `Ask runs one session: the model reasons about the question, searches the
web when it needs facts, and terminates with an answer or a budget report.
The transcript prints as it unfolds; --json emits the full session record
instead, and --record appends it to a JSONL file.`,
	RunE: runAsk,
}

func init() {
	registerAgentFlags(askCmd)
	askCmd.Flags().Bool("json", false, "print the full session record as JSON")
	askCmd.Flags().String("record", "", "append the session to this JSONL file")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a question to answer")
	}
	question := strings.Join(args, " ")

	cfg := agentConfigFromFlags(cmd)
	a, err := newAgent(cfg)
	if err != nil {
		return err
	}

	var sink agent.Sink
	recordPath, _ := cmd.Flags().GetString("record")
	var out *record.JSONLWriter
	if recordPath != "" {
		out, err = record.NewJSONLWriter(recordPath)
		if err != nil {
			return err
		}
		defer out.Close()

		// Per-step records stream to a sibling file so the session file
		// keeps one session per line.
		steps, err := record.NewJSONLWriter(record.StepsPath(recordPath))
		if err != nil {
			return err
		}
		defer steps.Close()
		sink = record.NewStepSink(steps)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	progress := os.Stderr

	session, runErr := a.Run(ctx, question, sink, progress)

	if out != nil && session != nil {
		if err := out.WriteSession(session); err != nil {
			fmt.Fprintf(os.Stderr, "warning: session record write failed: %v\n", err)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(session); err != nil {
			return err
		}
	} else {
		printTranscript(session)
	}

	return runErr
}

func printTranscript(session *types.Session) {
	for _, step := range session.Steps {
		fmt.Printf("--- step %d (%s) ---\n", step.StepIndex, step.Intent)
		fmt.Println(strings.TrimSpace(step.EmittedText))
		if step.Evidence != nil && !step.Evidence.IsEmpty() {
			fmt.Printf("\n[evidence for %q]\n%s\n", step.Evidence.Query, step.Evidence.Text)
		}
		fmt.Println()
	}

	fmt.Printf("Answer: %s\n", session.FinalAnswer)
	fmt.Printf("(%s after %d steps, %d searches, %.1fs)\n",
		session.TerminationReason, len(session.Steps),
		session.SearchesUsed, session.ElapsedSeconds)
}
