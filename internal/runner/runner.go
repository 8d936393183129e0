// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner executes dataset batches: a bounded worker pool runs one
// session per question and streams completed records to a JSONL file.
// Implements: prd105-runner (R1, R3-R5);
//
//	docs/ARCHITECTURE § Batch runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdiddy/search-agent/internal/agent"
	"github.com/pdiddy/search-agent/internal/dataset"
	"github.com/pdiddy/search-agent/internal/record"
	"github.com/pdiddy/search-agent/pkg/types"
)

// Result is the outcome of one dataset record.
type Result struct {
	Record  dataset.Record
	Session *types.Session
	Err     error

	// ExactMatch and CoverMatch compare the final answer against the
	// record's golden answers; both are false when no golds are present.
	ExactMatch bool
	CoverMatch bool
}

// Summary aggregates a batch run.
type Summary struct {
	Completed int
	Failed    int
	Cancelled int

	// Evaluated counts records that carried golden answers.
	Evaluated    int
	ExactMatches int
	CoverMatches int
}

// Total returns the total number of records processed.
func (s Summary) Total() int {
	return s.Completed + s.Failed + s.Cancelled
}

// Runner fans dataset records out to a pool of session workers. The agent
// is shared and stateless; each worker owns the sessions it runs.
type Runner struct {
	agent *agent.Agent
	cfg   types.RunnerConfig
}

// New creates a Runner. WorkerCount below one runs a single worker.
func New(a *agent.Agent, cfg types.RunnerConfig) *Runner {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return &Runner{agent: a, cfg: cfg}
}

// Run processes every record through the pool and returns the summary.
// Completed sessions go to the output file, one per line; in-flight steps
// stream to the sibling .steps.jsonl file so the session file never mixes
// schemas. Cancelling ctx stops sessions at their next step boundary; steps
// already streamed are retained (R4.4). Per-record status goes to w.
func (r *Runner) Run(ctx context.Context, records []dataset.Record, w io.Writer) (Summary, error) {
	var (
		out  *record.JSONLWriter
		sink agent.Sink
	)
	if r.cfg.OutputPath != "" {
		var err error
		out, err = record.NewJSONLWriter(r.cfg.OutputPath)
		if err != nil {
			return Summary{}, fmt.Errorf("opening output: %w", err)
		}
		defer out.Close()

		steps, err := record.NewJSONLWriter(record.StepsPath(r.cfg.OutputPath))
		if err != nil {
			return Summary{}, fmt.Errorf("opening step stream: %w", err)
		}
		defer steps.Close()
		sink = record.NewStepSink(steps)
	}

	jobs := make(chan dataset.Record)
	results := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				results <- r.runOne(ctx, rec, sink)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range records {
			select {
			case jobs <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var summary Summary
	for res := range results {
		summary.tally(res)
		printResult(w, res)

		if out != nil && res.Session != nil {
			if err := out.WriteSession(res.Session); err != nil {
				fmt.Fprintf(w, "warning: session record write failed: %v\n", err)
			}
		}
	}

	printSummary(w, summary)
	return summary, ctx.Err()
}

// runOne executes a single session and evaluates it against the record's
// golden answers.
func (r *Runner) runOne(ctx context.Context, rec dataset.Record, sink agent.Sink) Result {
	session, err := r.agent.RunWithID(ctx, rec.ID, rec.Question, rec.GoldenAnswers, sink, io.Discard)
	res := Result{Record: rec, Session: session, Err: err}
	if session != nil && len(rec.GoldenAnswers) > 0 {
		res.ExactMatch, res.CoverMatch = Evaluate(session.FinalAnswer, rec.GoldenAnswers)
	}
	return res
}

func (s *Summary) tally(res Result) {
	switch {
	case res.Err != nil && errors.Is(res.Err, context.Canceled):
		s.Cancelled++
	case res.Err != nil:
		s.Failed++
	default:
		s.Completed++
	}

	if res.Session != nil && len(res.Record.GoldenAnswers) > 0 {
		s.Evaluated++
		if res.ExactMatch {
			s.ExactMatches++
		}
		if res.CoverMatch {
			s.CoverMatches++
		}
	}
}

func printResult(w io.Writer, res Result) {
	switch {
	case res.Err != nil && errors.Is(res.Err, context.Canceled):
		fmt.Fprintf(w, "cancelled: %s\n", res.Record.ID)
	case res.Err != nil:
		fmt.Fprintf(w, "failed:    %s (%v)\n", res.Record.ID, res.Err)
	default:
		fmt.Fprintf(w, "completed: %s (%d steps, %d searches, %s)\n",
			res.Record.ID, len(res.Session.Steps), res.Session.SearchesUsed,
			res.Session.TerminationReason)
	}
}

func printSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\nBatch summary: %d completed, %d failed, %d cancelled (total: %d)\n",
		s.Completed, s.Failed, s.Cancelled, s.Total())
	if s.Evaluated > 0 {
		fmt.Fprintf(w, "Accuracy: %d/%d exact, %d/%d cover\n",
			s.ExactMatches, s.Evaluated, s.CoverMatches, s.Evaluated)
	}
}
