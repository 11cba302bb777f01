package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"chessrag/internal/chunker"
	"chessrag/internal/config"
	"chessrag/internal/gametree"
	"chessrag/internal/indexer"
	"chessrag/internal/tokens"
)

// chunkFlags holds the flags for the chunk command
type chunkFlags struct {
	budget    int
	minTokens int
	encoding  string
	source    string
	workers   int
	textOnly  bool
	compact   bool
}

// record is the JSON form of one chunked game.
type record struct {
	Seq    int             `json:"seq"`
	White  string          `json:"white,omitempty"`
	Black  string          `json:"black,omitempty"`
	Event  string          `json:"event,omitempty"`
	Result *chunker.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newChunkCmd() *cobra.Command {
	var opts chunkFlags

	cmd := &cobra.Command{
		Use:   "chunk <file.pgn>",
		Short: "Chunk every game of a PGN file and print the result",
		Long: `Chunk every game of a PGN file and print the chunks as JSON, one
record per game in file order. Games the engine rejects are reported
with an error and do not stop the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.budget, "budget", "b", 0, "Token budget per chunk (overrides CHUNK_TOKEN_BUDGET)")
	cmd.Flags().IntVar(&opts.minTokens, "min-tokens", -1, "Merge threshold in tokens (overrides CHUNK_MIN_TOKENS)")
	cmd.Flags().StringVarP(&opts.encoding, "encoding", "e", tokens.DefaultEncoding, "Tokenizer encoding")
	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Source name used for record ids (default: file name)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", runtime.NumCPU(), "Games chunked in parallel")
	cmd.Flags().BoolVarP(&opts.textOnly, "text", "t", false, "Print chunk texts instead of JSON")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Print JSON on a single line")
	return cmd
}

func runChunk(cmd *cobra.Command, path string, opts chunkFlags) error {
	cfg, err := config.LoadChunker()
	if err != nil {
		return err
	}
	if opts.budget > 0 {
		cfg.Budget = opts.budget
		cfg.MinChunkTokens = min(cfg.MinChunkTokens, cfg.Budget)
	}
	if opts.minTokens >= 0 {
		cfg.MinChunkTokens = opts.minTokens
	}

	counter, err := tokens.NewTiktokenCounter(opts.encoding, 4096)
	if err != nil {
		return err
	}
	engine, err := chunker.NewEngine(cfg, counter)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	games, err := gametree.ParseGames(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	source := opts.source
	if source == "" {
		source = filepath.Base(path)
	}
	jobs := make([]indexer.Job, len(games))
	for i, g := range games {
		jobs[i] = indexer.Job{Source: source, Seq: i + 1, Game: g}
	}
	outcomes, err := indexer.ChunkAll(cmd.Context(), engine, jobs, opts.workers)
	if err != nil {
		return err
	}

	records := make([]record, len(outcomes))
	for i, o := range outcomes {
		records[i] = record{
			Seq:    o.Job.Seq,
			White:  o.Job.Game.Tag("White"),
			Black:  o.Job.Game.Tag("Black"),
			Event:  o.Job.Game.Tag("Event"),
			Result: o.Result,
		}
		if o.Err != nil {
			records[i].Error = o.Err.Error()
			records[i].Result = nil
		}
	}

	if opts.textOnly {
		return printText(cmd, records)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(records)
}

func printText(cmd *cobra.Command, records []record) error {
	out := cmd.OutOrStdout()
	for _, rec := range records {
		if rec.Result == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "game %d: %s\n", rec.Seq, rec.Error)
			continue
		}
		for _, c := range rec.Result.Chunks {
			if _, err := fmt.Fprintf(out, "=== %s (%s, %d tokens)\n%s\n\n", c.ID, c.Kind, c.TokenCount, c.Text); err != nil {
				return err
			}
		}
	}
	return nil
}
