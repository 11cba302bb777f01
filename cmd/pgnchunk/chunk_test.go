package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const twoGames = `[Event "Club Match"]
[White "Alpha"]
[Black "Beta"]
[Result "1-0"]

1. e4 {Open game.} e5 2. Nf3 Nc6 (2... d6 {Philidor.}) 3. Bb5 a6 1-0

[Event "Club Match"]
[White "Gamma"]
[Black "Delta"]
[Result "1/2-1/2"]

1. d4 d5 2. c4 e6 1/2-1/2
`

func writePGN(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "games.pgn")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write PGN: %v", err)
	}
	return path
}

func clearChunkerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHUNKER_TUNING_FILE", "CHUNK_TOKEN_BUDGET", "CHUNK_MIN_TOKENS",
		"CHUNK_CHECKPOINT_INTERVAL", "CHUNK_TRANSPOSITION_TOP_K", "CHUNK_EVAL_SWING",
	} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestChunkCommand_JSON(t *testing.T) {
	clearChunkerEnv(t)
	path := writePGN(t, twoGames)

	for _, workers := range []string{"1", "4"} {
		t.Run("workers="+workers, func(t *testing.T) {
			out, _, err := execute(t, "chunk", path, "--workers", workers, "--compact")
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			var records []record
			if err := json.Unmarshal([]byte(out), &records); err != nil {
				t.Fatalf("output is not JSON: %v\n%s", err, out)
			}
			if len(records) != 2 {
				t.Fatalf("got %d records, want 2", len(records))
			}
			for i, rec := range records {
				if rec.Seq != i+1 {
					t.Errorf("records[%d].Seq = %d, want %d", i, rec.Seq, i+1)
				}
				if rec.Error != "" || rec.Result == nil {
					t.Fatalf("records[%d] error = %q", i, rec.Error)
				}
				if len(rec.Result.Chunks) != 1 {
					t.Errorf("records[%d] has %d chunks, want 1", i, len(rec.Result.Chunks))
				}
			}
			if records[0].White != "Alpha" || records[1].Black != "Delta" {
				t.Errorf("unexpected players: %+v, %+v", records[0], records[1])
			}
		})
	}
}

func TestChunkCommand_SourceChangesIDs(t *testing.T) {
	clearChunkerEnv(t)
	path := writePGN(t, twoGames)

	first, _, err := execute(t, "chunk", path, "--compact")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	again, _, err := execute(t, "chunk", path, "--compact")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if first != again {
		t.Error("output differs between identical runs")
	}
	renamed, _, err := execute(t, "chunk", path, "--compact", "--source", "other.pgn")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if renamed == first {
		t.Error("--source did not change the record ids")
	}
}

func TestChunkCommand_Text(t *testing.T) {
	clearChunkerEnv(t)
	path := writePGN(t, twoGames)

	out, _, err := execute(t, "chunk", path, "--text")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got := strings.Count(out, "=== "); got != 2 {
		t.Errorf("printed %d chunk headers, want 2\n%s", got, out)
	}
	if !strings.Contains(out, "Philidor.") {
		t.Error("chunk text is missing the variation comment")
	}
}

func TestChunkCommand_Errors(t *testing.T) {
	clearChunkerEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing argument", args: []string{"chunk"}},
		{name: "missing file", args: []string{"chunk", filepath.Join(t.TempDir(), "nope.pgn")}},
		{name: "min above budget", args: []string{"chunk", writePGN(t, twoGames), "--budget", "100", "--min-tokens", "200"}},
		{name: "unknown encoding", args: []string{"chunk", writePGN(t, twoGames), "--encoding", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Error("Execute() error = nil, want error")
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "pgnchunk version: dev") {
		t.Errorf("unexpected version output: %s", out)
	}
}
