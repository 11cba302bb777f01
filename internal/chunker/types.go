package chunker

import (
	"errors"

	"chessrag/internal/position"
)

// Kind describes how a chunk was produced.
type Kind string

const (
	KindWhole          Kind = "whole"
	KindCompressed     Kind = "compressed"
	KindVariationSplit Kind = "variation-split"
	KindMerged         Kind = "merged"
)

var (
	// ErrInvalidBudget is returned when the token budget cannot hold even a context header.
	ErrInvalidBudget = errors.New("token budget must be positive")
	// ErrInvalidConfig is returned when a secondary tuning value is out of range.
	ErrInvalidConfig = errors.New("invalid chunker config")
	// ErrBudgetExceeded signals a chunk over budget. It indicates a splitter defect.
	ErrBudgetExceeded = errors.New("chunk exceeds token budget")
)

// Config holds the token budget and the tuning constants of the engine.
type Config struct {
	// Budget is the hard token ceiling of every chunk.
	Budget int `json:"budget" yaml:"budget"`
	// MinChunkTokens is the size under which a chunk is merged with a sibling.
	MinChunkTokens int `json:"min_chunk_tokens" yaml:"min_chunk_tokens"`
	// CheckpointInterval selects every Nth move as a key node and sampling point.
	CheckpointInterval int `json:"checkpoint_interval" yaml:"checkpoint_interval"`
	// EvalSwing is the evaluation change (in pawns) that makes a node key.
	EvalSwing float64 `json:"eval_swing" yaml:"eval_swing"`
	// TranspositionTopK caps transposition links per chunk.
	TranspositionTopK int `json:"transposition_top_k" yaml:"transposition_top_k"`
}

// DefaultConfig returns the tuning used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Budget:             7800,
		MinChunkTokens:     400,
		CheckpointInterval: 5,
		EvalSwing:          1.0,
		TranspositionTopK:  5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Budget <= 0 {
		return ErrInvalidBudget
	}
	if c.MinChunkTokens < 0 || c.MinChunkTokens > c.Budget {
		return errors.Join(ErrInvalidConfig, errors.New("min_chunk_tokens must be between 0 and budget"))
	}
	if c.CheckpointInterval <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("checkpoint_interval must be positive"))
	}
	if c.EvalSwing < 0 {
		return errors.Join(ErrInvalidConfig, errors.New("eval_swing must not be negative"))
	}
	if c.TranspositionTopK < 0 {
		return errors.Join(ErrInvalidConfig, errors.New("transposition_top_k must not be negative"))
	}
	return nil
}

// TranspositionLink records that other chunks of the same record reach a position this chunk contains.
type TranspositionLink struct {
	Position position.Sample `json:"position"`
	ChunkIDs []string        `json:"chunk_ids"`
}

// Metadata locates a chunk inside its record.
type Metadata struct {
	RecordID string `json:"record_id"`
	// BranchPath lists the 1-based branch indices from the record root to this chunk's subtree.
	BranchPath []int `json:"branch_path"`
	// ParentChunkID is the overview chunk whose split produced this chunk.
	ParentChunkID string `json:"parent_chunk_id,omitempty"`
	// Location is the human-readable form of BranchPath used in headers.
	Location       string              `json:"location"`
	MergedFrom     []string            `json:"merged_from,omitempty"`
	MergedPaths    [][]int             `json:"merged_paths,omitempty"`
	Transpositions []TranspositionLink `json:"transpositions,omitempty"`
}

// Chunk is one bounded, self-contained unit of a record.
type Chunk struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	TokenCount int               `json:"token_count"`
	Kind       Kind              `json:"kind"`
	Samples    []position.Sample `json:"samples"`
	Metadata   Metadata          `json:"metadata"`

	// terminal is false for overview chunks that other chunks hang below.
	terminal bool
}

// Result is the engine output for one record.
type Result struct {
	RecordID string  `json:"record_id"`
	Chunks   []Chunk `json:"chunks"`
	// Compressed reports whether evaluation compression ran.
	Compressed bool `json:"compressed"`
	// UnavailablePositions counts nodes whose board state could not be replayed.
	UnavailablePositions int `json:"unavailable_positions"`
}
