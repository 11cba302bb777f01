// Package chunker turns annotated game trees into bounded, self-contained text chunks.
//
// A record that fits the token budget becomes one chunk. Otherwise evaluations on non-key
// nodes are dropped, and if that is still too large the tree is split recursively at its
// branch points. Small sibling chunks are merged afterwards and chunks reaching the same board
// position are cross-linked.
package chunker

import (
	"fmt"

	"chessrag/internal/gametree"
	"chessrag/internal/position"
	"chessrag/internal/tokens"
)

// Engine chunks records. It holds no per-record state and is safe for concurrent use
// as long as its Counter is.
type Engine struct {
	cfg     Config
	counter tokens.Counter
}

// NewEngine validates cfg and returns an engine counting tokens with counter.
func NewEngine(cfg Config, counter tokens.Counter) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	return &Engine{cfg: cfg, counter: counter}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Chunk decomposes one record. source and seq identify the record (file and position in it)
// and determine every identifier produced.
func (e *Engine) Chunk(source string, seq int, g *gametree.Game) (*Result, error) {
	recordID := RecordID(source, seq)
	res := &Result{RecordID: recordID}
	if g == nil || g.Root == nil || len(g.Root.Children) == 0 {
		return res, nil
	}

	s := newSplitter(e.cfg, e.counter, g, g.Root, recordID, KindWhole)
	res.UnavailablePositions = s.positions.Unavailable()
	if text, samples := s.renderWhole(); e.counter.Count(text) <= e.cfg.Budget {
		res.Chunks = []Chunk{s.wholeChunk(text, samples)}
		return res, nil
	}

	res.Compressed = true
	compressed := Compress(g.Root, g.StartPly(), e.cfg)
	s = newSplitter(e.cfg, e.counter, g, compressed, recordID, KindCompressed)
	if text, samples := s.renderWhole(); e.counter.Count(text) <= e.cfg.Budget {
		res.Chunks = []Chunk{s.wholeChunk(text, samples)}
		return res, nil
	}

	chunks, err := s.splitTop()
	if err != nil {
		return nil, fmt.Errorf("failed to split record %s: %w", recordID, err)
	}
	chunks = Merge(chunks, e.counter, e.cfg)
	Link(chunks, e.cfg.TranspositionTopK)

	for _, c := range chunks {
		if c.TokenCount > e.cfg.Budget {
			return nil, fmt.Errorf("%w: %s has %d tokens, budget %d", ErrBudgetExceeded, c.ID, c.TokenCount, e.cfg.Budget)
		}
	}
	res.Chunks = chunks
	return res, nil
}

func (s *splitter) topContext() splitContext {
	return splitContext{branch: []int{}, selfID: topChunkID(s.recordID), childBase: s.recordID}
}

// wholeChunk wraps the full rendering of the record; its kind is whole or compressed.
func (s *splitter) wholeChunk(text string, samples []position.Sample) Chunk {
	return s.newChunk(s.topContext(), text, s.counter.Count(text), s.leafKind, samples, true)
}
