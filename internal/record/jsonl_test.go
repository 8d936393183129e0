// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package record

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/search-agent/pkg/types"
)

func TestJSONLWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records", "out.jsonl")

	w, err := NewJSONLWriter(path)
	require.NoError(t, err)

	session := &types.Session{
		ID:                "s1",
		Question:          "What is the capital of France?",
		FinalAnswer:       "Paris",
		TerminationReason: types.TerminatedAnswered,
		Steps: []types.ReasoningStep{
			{StepIndex: 0, EmittedText: "answer", Intent: types.IntentAnswer, FinalAnswer: "Paris"},
		},
	}
	require.NoError(t, w.WriteSession(session))
	require.NoError(t, w.WriteSession(session))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var got types.Session
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "Paris", got.FinalAnswer)
	require.Len(t, got.Steps, 1)
}

func TestStepSinkStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.jsonl")
	w, err := NewJSONLWriter(path)
	require.NoError(t, err)

	sink := NewStepSink(w)
	require.NoError(t, sink.Append("s1", types.ReasoningStep{StepIndex: 0, EmittedText: "thinking"}))
	require.NoError(t, sink.Append("s1", types.ReasoningStep{StepIndex: 1, EmittedText: "more"}))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var rec StepRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "s1", rec.SessionID)
	assert.Equal(t, 1, rec.Step.StepIndex)
}

func TestJSONLWriterConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	w, err := NewJSONLWriter(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = w.Write(map[string]int{"worker": id, "n": j})
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	// Every line must be a complete JSON object: no interleaving.
	lines := readLines(t, path)
	require.Len(t, lines, 80)
	for _, line := range lines {
		var v map[string]int
		require.NoError(t, json.Unmarshal([]byte(line), &v))
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}
