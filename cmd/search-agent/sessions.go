// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/search-agent/internal/record"
	"github.com/pdiddy/search-agent/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage recorded sessions (store, retrieve, export)",
	Long: `Sessions manages a local SQLite index built from recorded session
transcripts. Use subcommands to index session records, query them, or
export the index.`,
}

// --- store subcommand ---

var sessionsStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Ingest session records into the session index",
	Long: `Store reads JSONL record files from sessions/records/, ingests them
into a SQLite database with FTS5 indexing over step text. Unchanged
record files are skipped on subsequent runs.`,
	RunE: runSessionsStore,
}

func runSessionsStore(cmd *cobra.Command, args []string) error {
	store, err := record.NewStore(storeConfigFromFlags(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d record file(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- retrieve subcommand ---

var sessionsRetrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Query the session index with full-text search and filters",
	Long: `Retrieve searches the session index using FTS5 full-text search over
step text, structured filters (termination reason, search count), or a
combination of both.

Use --show with a session ID to print the full reconstructed transcript.`,
	RunE: runSessionsRetrieve,
}

func runSessionsRetrieve(cmd *cobra.Command, args []string) error {
	showID, _ := cmd.Flags().GetString("show")

	store, err := record.NewStore(storeConfigFromFlags(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Show mode: reconstruct one full transcript.
	if showID != "" {
		session, err := store.Show(context.Background(), showID)
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(session)
		}
		printTranscript(session)
		return nil
	}

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --reason, or --min-searches")
	}

	results, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}
	return formatRetrieveOutput(results, jsonOutput)
}

func formatRetrieveOutput(results []record.SessionSummary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-16s  %-44s  %-30s  %-22s  %s\n",
		"ID", "Question", "Answer", "Reason", "Steps")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 124))

	for _, r := range results {
		question := r.Question
		if len(question) > 44 {
			question = question[:41] + "..."
		}
		answer := r.FinalAnswer
		if len(answer) > 30 {
			answer = answer[:27] + "..."
		}
		id := r.ID
		if len(id) > 16 {
			id = id[:13] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-16s  %-44s  %-30s  %-22s  %d\n",
			id, question, answer, r.TerminationReason, r.StepCount)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var sessionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session index to YAML or JSON",
	Long: `Export writes the session index (or a filtered subset) to
sessions/index/export.yaml or export.json. Supports the same filter
flags as retrieve for partial exports.`,
	RunE: runSessionsExport,
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := record.NewStore(storeConfigFromFlags(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to sessions/index/export.yaml")
	case "json":
		if err := store.ExportJSON(context.Background(), opts); err != nil {
			return err
		}
		fmt.Println("Exported to sessions/index/export.json")
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- shared helpers ---

func queryOptsFromFlags(cmd *cobra.Command, args []string) record.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	reason, _ := cmd.Flags().GetString("reason")
	minSearches, _ := cmd.Flags().GetInt("min-searches")
	limit, _ := cmd.Flags().GetInt("limit")

	return record.QueryOptions{
		Query:             queryText,
		TerminationReason: types.TerminationReason(reason),
		MinSearches:       minSearches,
		MaxResults:        limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	sessionsCmd.PersistentFlags().String("sessions-dir", "sessions", "base directory for sessions (contains records/, index/)")
	sessionsCmd.PersistentFlags().Int("max-results", 20, "maximum number of query results")

	// Retrieve flags.
	sessionsRetrieveCmd.Flags().String("query", "", "full-text search query over step text")
	sessionsRetrieveCmd.Flags().String("reason", "", "filter by termination reason: answered, step_budget_exhausted, reasoning_failure, cancelled")
	sessionsRetrieveCmd.Flags().Int("min-searches", 0, "filter to sessions with at least this many searches")
	sessionsRetrieveCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	sessionsRetrieveCmd.Flags().String("show", "", "print the full transcript for a session ID")
	sessionsRetrieveCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	sessionsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	sessionsExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	sessionsExportCmd.Flags().String("reason", "", "filter by termination reason for partial export")
	sessionsExportCmd.Flags().Int("min-searches", 0, "filter by search count for partial export")
	sessionsExportCmd.Flags().Int("limit", 0, "maximum sessions to export (0 = all)")

	// Wire subcommands.
	sessionsCmd.AddCommand(sessionsStoreCmd)
	sessionsCmd.AddCommand(sessionsRetrieveCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)

	rootCmd.AddCommand(sessionsCmd)
}
