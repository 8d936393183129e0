// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dataset loads question records for batch runs. Records carry an
// ID, a question, and optional gold answers used only for evaluation.
// Implements: prd105-runner (R2.1-R2.4).
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Record is one dataset entry.
type Record struct {
	// ID identifies the record. Records without an explicit ID get a
	// synthesized one from their position (q0, q1, ...).
	ID string `json:"id" yaml:"id"`

	// Question is the input to one session. Required.
	Question string `json:"question" yaml:"question"`

	// GoldenAnswers lists acceptable reference answers, if known.
	GoldenAnswers []string `json:"golden_answers,omitempty" yaml:"golden_answers,omitempty"`
}

// Load reads a dataset file. The format follows the extension: .jsonl for
// one JSON record per line, .yaml/.yml for a YAML list.
func Load(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		return loadJSONL(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, fmt.Errorf("unsupported dataset format %q: use .jsonl or .yaml", filepath.Ext(path))
	}
}

func loadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("dataset %s line %d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}

	return finalize(path, records)
}

func loadYAML(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}

	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}

	return finalize(path, records)
}

// finalize fills missing IDs and rejects blank questions (R2.3).
func finalize(path string, records []Record) ([]Record, error) {
	seen := make(map[string]bool, len(records))
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = fmt.Sprintf("q%d", i)
		}
		if seen[records[i].ID] {
			return nil, fmt.Errorf("dataset %s: duplicate record ID %q", path, records[i].ID)
		}
		seen[records[i].ID] = true

		if strings.TrimSpace(records[i].Question) == "" {
			return nil, fmt.Errorf("dataset %s: record %q has an empty question", path, records[i].ID)
		}
	}
	return records, nil
}
