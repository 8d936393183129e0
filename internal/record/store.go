// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/search-agent/pkg/types"
)

const (
	recordsDir = "records"
	indexDir   = "index"
	dbFile     = "sessions.db"
)

// Store manages the session index SQLite database.
type Store struct {
	db          *sql.DB
	sessionsDir string
	maxResults  int
}

// NewStore opens or creates the session index at
// sessionsDir/index/sessions.db, creating the schema if needed (R2.1).
func NewStore(cfg types.SessionStoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.SessionsDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{
		db:          db,
		sessionsDir: cfg.SessionsDir,
		maxResults:  maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			final_answer TEXT,
			termination_reason TEXT,
			searches_used INTEGER,
			step_count INTEGER,
			elapsed_seconds REAL,
			started TEXT,
			gold_answer TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS steps (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			step_index INTEGER NOT NULL,
			emitted_text TEXT,
			intent TEXT,
			query TEXT,
			evidence TEXT,
			provider_error TEXT,
			forced_continue INTEGER,
			final_answer TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_steps_session_id ON steps(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_reason ON sessions(termination_reason)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			file TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over step text with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='steps_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE steps_fts USING fts5(emitted_text, content=steps, content_rowid=rowid)`,
			`CREATE TRIGGER steps_ai AFTER INSERT ON steps BEGIN
				INSERT INTO steps_fts(rowid, emitted_text) VALUES (new.rowid, new.emitted_text);
			END`,
			`CREATE TRIGGER steps_ad AFTER DELETE ON steps BEGIN
				INSERT INTO steps_fts(steps_fts, rowid, emitted_text) VALUES('delete', old.rowid, old.emitted_text);
			END`,
			`CREATE TRIGGER steps_au AFTER UPDATE ON steps BEGIN
				INSERT INTO steps_fts(steps_fts, rowid, emitted_text) VALUES('delete', old.rowid, old.emitted_text);
				INSERT INTO steps_fts(rowid, emitted_text) VALUES (new.rowid, new.emitted_text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from a session index ingestion run (R3.4).
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of record files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads session JSONL files from sessionsDir/records/ and populates
// the database. Unchanged files are skipped on subsequent runs; changed
// files are re-ingested (R3.1-R3.3).
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	recDir := filepath.Join(s.sessionsDir, recordsDir)

	entries, err := os.ReadDir(recDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading records directory %s: %w", recDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		// Step streams hold per-step records, not sessions.
		if strings.HasSuffix(entry.Name(), ".steps.jsonl") {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := entry.Name()
		filePath := filepath.Join(recDir, name)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE file = ?`, name,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		sessions, err := readSessionFile(filePath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if err := s.ingestFile(ctx, name, sessions, modTime); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d sessions)\n", name, len(sessions))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d sessions)\n", name, len(sessions))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// readSessionFile parses one JSONL file of session records. Blank lines are
// tolerated; a malformed line fails the whole file so partial ingests do
// not go unnoticed. Streamed step records belong in the sibling .steps.jsonl
// file; one found here fails the file rather than indexing a phantom
// session.
func readSessionFile(path string) ([]types.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var sessions []types.Session
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var kind struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(text), &kind); err == nil && kind.SessionID != "" {
			return nil, fmt.Errorf("line %d: step record in session file (step streams use the .steps.jsonl suffix)", line)
		}
		var session types.Session
		if err := json.Unmarshal([]byte(text), &session); err != nil {
			return nil, fmt.Errorf("line %d: parse error: %w", line, err)
		}
		sessions = append(sessions, session)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return sessions, nil
}

func (s *Store) ingestFile(ctx context.Context, name string, sessions []types.Session, modTime string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range sessions {
		if err := ingestSession(ctx, tx, &sessions[i]); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO indexing_status (file, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(file) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		name, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating indexing status: %w", err)
	}

	return tx.Commit()
}

func ingestSession(ctx context.Context, tx *sql.Tx, session *types.Session) error {
	goldJSON, _ := json.Marshal(session.GoldAnswer)
	startedStr := ""
	if !session.Started.IsZero() {
		startedStr = session.Started.Format(time.RFC3339)
	}

	// Upsert the session, replacing its steps (R3.2).
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, question, final_answer, termination_reason,
			searches_used, step_count, elapsed_seconds, started, gold_answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			question=excluded.question, final_answer=excluded.final_answer,
			termination_reason=excluded.termination_reason,
			searches_used=excluded.searches_used, step_count=excluded.step_count,
			elapsed_seconds=excluded.elapsed_seconds, started=excluded.started,
			gold_answer=excluded.gold_answer`,
		session.ID, session.Question, session.FinalAnswer,
		string(session.TerminationReason), session.SearchesUsed,
		len(session.Steps), session.ElapsedSeconds, startedStr, string(goldJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting session %s: %w", session.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM steps WHERE session_id = ?`, session.ID,
	); err != nil {
		return fmt.Errorf("deleting old steps: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO steps (session_id, step_index, emitted_text, intent, query,
			evidence, provider_error, forced_continue, final_answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, step := range session.Steps {
		evidenceJSON := ""
		if step.Evidence != nil {
			data, _ := json.Marshal(step.Evidence)
			evidenceJSON = string(data)
		}
		_, err := stmt.ExecContext(ctx,
			session.ID, step.StepIndex, step.EmittedText, string(step.Intent),
			step.Query, evidenceJSON, step.ProviderError,
			boolToInt(step.ForcedContinue), step.FinalAnswer,
		)
		if err != nil {
			return fmt.Errorf("inserting step %d of %s: %w", step.StepIndex, session.ID, err)
		}
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
