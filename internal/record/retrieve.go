// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/search-agent/pkg/types"
)

// QueryOptions holds parameters for session index queries (R4).
type QueryOptions struct {
	// Query is the FTS5 full-text search string matched against step text (R4.1).
	Query string

	// TerminationReason filters sessions by how they ended (R4.2).
	TerminationReason types.TerminationReason

	// MinSearches filters to sessions that used at least this many searches.
	MinSearches int

	// MaxResults limits result count. Zero uses the store default (R4.3).
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.TerminationReason == "" && q.MinSearches == 0
}

// SessionSummary is one session-level row returned by Retrieve (R4.4).
type SessionSummary struct {
	ID                string                  `json:"id" yaml:"id"`
	Question          string                  `json:"question" yaml:"question"`
	FinalAnswer       string                  `json:"final_answer" yaml:"final_answer"`
	TerminationReason types.TerminationReason `json:"termination_reason" yaml:"termination_reason"`
	SearchesUsed      int                     `json:"searches_used" yaml:"searches_used"`
	StepCount         int                     `json:"step_count" yaml:"step_count"`
	ElapsedSeconds    float64                 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

// Retrieve queries the session index with optional full-text search over
// step text and structured filters. Full-text queries rank by FTS
// relevance; structured-only queries sort by session ID (R4.5).
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]SessionSummary, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT se.id, se.question, se.final_answer, se.termination_reason,
				se.searches_used, se.step_count, se.elapsed_seconds
			FROM steps_fts
			JOIN steps st ON st.rowid = steps_fts.rowid
			JOIN sessions se ON st.session_id = se.id
			WHERE steps_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT se.id, se.question, se.final_answer, se.termination_reason,
				se.searches_used, se.step_count, se.elapsed_seconds
			FROM sessions se
			WHERE 1=1`)
	}

	if opts.TerminationReason != "" {
		qb.WriteString(` AND se.termination_reason = ?`)
		args = append(args, string(opts.TerminationReason))
	}

	if opts.MinSearches > 0 {
		qb.WriteString(` AND se.searches_used >= ?`)
		args = append(args, opts.MinSearches)
	}

	if useFTS {
		qb.WriteString(` GROUP BY se.id ORDER BY min(steps_fts.rank)`)
	} else {
		qb.WriteString(` ORDER BY se.id`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying session index: %w", err)
	}
	defer rows.Close()

	var results []SessionSummary
	for rows.Next() {
		var (
			sum    SessionSummary
			reason string
		)
		if err := rows.Scan(
			&sum.ID, &sum.Question, &sum.FinalAnswer, &reason,
			&sum.SearchesUsed, &sum.StepCount, &sum.ElapsedSeconds,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		sum.TerminationReason = types.TerminationReason(reason)
		results = append(results, sum)
	}

	return results, rows.Err()
}

// Show reconstructs a full session transcript from the index (R4.6).
func (s *Store) Show(ctx context.Context, sessionID string) (*types.Session, error) {
	var (
		session    types.Session
		reason     string
		startedStr string
		goldJSON   sql.NullString
		stepCount  int
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, final_answer, termination_reason, searches_used,
			step_count, elapsed_seconds, started, gold_answer
		 FROM sessions WHERE id = ?`, sessionID,
	).Scan(
		&session.ID, &session.Question, &session.FinalAnswer, &reason,
		&session.SearchesUsed, &stepCount, &session.ElapsedSeconds,
		&startedStr, &goldJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	session.TerminationReason = types.TerminationReason(reason)
	if startedStr != "" {
		if t, parseErr := time.Parse(time.RFC3339, startedStr); parseErr == nil {
			session.Started = t
		}
	}
	if goldJSON.Valid && goldJSON.String != "" {
		json.Unmarshal([]byte(goldJSON.String), &session.GoldAnswer)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_index, emitted_text, intent, query, evidence,
			provider_error, forced_continue, final_answer
		 FROM steps WHERE session_id = ? ORDER BY step_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			step         types.ReasoningStep
			intent       string
			evidenceJSON sql.NullString
			forced       int
		)
		if err := rows.Scan(
			&step.StepIndex, &step.EmittedText, &intent, &step.Query,
			&evidenceJSON, &step.ProviderError, &forced, &step.FinalAnswer,
		); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		step.Intent = types.Intent(intent)
		step.ForcedContinue = forced != 0
		if evidenceJSON.Valid && evidenceJSON.String != "" {
			var ev types.Evidence
			if json.Unmarshal([]byte(evidenceJSON.String), &ev) == nil {
				step.Evidence = &ev
			}
		}
		session.Steps = append(session.Steps, step)
	}

	return &session, rows.Err()
}
