// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package record persists session transcripts: an append-only JSONL sink
// written as sessions run, and a SQLite index built from those records for
// retrieval and export.
// Implements: prd106-store (R1-R6);
//
//	docs/ARCHITECTURE § Session Record.
package record

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdiddy/search-agent/internal/agent"
	"github.com/pdiddy/search-agent/pkg/types"
)

// JSONLWriter appends one JSON object per line to an underlying writer.
// Writes are serialized with a mutex so concurrent sessions can share one
// output file without interleaving lines (R1.3).
type JSONLWriter struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// NewJSONLWriter opens path for appending, creating parent directories as
// needed.
func NewJSONLWriter(path string) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating record directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening record file %s: %w", path, err)
	}
	return &JSONLWriter{w: f, f: f}, nil
}

// NewJSONLWriterTo wraps an existing writer; used by tests and by commands
// that stream records to stdout.
func NewJSONLWriterTo(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w}
}

// Write marshals v and appends it as one line, flushing to disk when the
// underlying writer is a file (R1.2: flush-as-you-go).
func (jw *JSONLWriter) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if _, err := jw.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if jw.f != nil {
		if err := jw.f.Sync(); err != nil {
			return fmt.Errorf("syncing record file: %w", err)
		}
	}
	return nil
}

// WriteSession appends a completed session record.
func (jw *JSONLWriter) WriteSession(s *types.Session) error {
	return jw.Write(s)
}

// Close closes the underlying file, if any.
func (jw *JSONLWriter) Close() error {
	if jw.f == nil {
		return nil
	}
	return jw.f.Close()
}

// StepRecord is the streamed per-step line written while a session runs,
// enabling partial-result recovery when the process is interrupted (R1.2).
// Step records carry a different schema than session records and live in
// their own stream (see StepsPath) so the session file holds exactly one
// session per line (R1.4).
type StepRecord struct {
	SessionID string              `json:"session_id"`
	Step      types.ReasoningStep `json:"step"`
}

// StepsPath derives the step-stream path for a session record file:
// sessions go to path, streamed steps to the sibling .steps.jsonl file.
// The store's ingest never treats step streams as session records.
func StepsPath(path string) string {
	return strings.TrimSuffix(path, ".jsonl") + ".steps.jsonl"
}

// StepSink adapts a JSONLWriter to the orchestrator's streaming sink.
type StepSink struct {
	w *JSONLWriter
}

// NewStepSink wraps w as a per-step sink.
func NewStepSink(w *JSONLWriter) *StepSink {
	return &StepSink{w: w}
}

// Append writes one step record.
func (s *StepSink) Append(sessionID string, step types.ReasoningStep) error {
	return s.w.Write(StepRecord{SessionID: sessionID, Step: step})
}

// compile-time check: StepSink satisfies the orchestrator's sink contract.
var _ agent.Sink = (*StepSink)(nil)
