package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"chessrag/internal/chunker"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v2.0"

// CoverageStats contains statistics about the current index.
type CoverageStats struct {
	// Games is the number of indexed games.
	Games int `json:"games"`
	// Chunks is the total number of stored chunks.
	Chunks int `json:"chunks"`
	// ChunksByKind breaks Chunks down by how each chunk was produced.
	ChunksByKind map[string]int `json:"chunks_by_kind"`
	// TranspositionLinked is the number of chunks carrying at least one transposition link.
	TranspositionLinked int `json:"transposition_linked"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	ChunkerVersion  string          `json:"chunker_version"`
	// IndexVersion identifies the index build (chunker version, tuning and embedding model).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// IndexVersion hashes everything that changes chunk output for the same game.
func IndexVersion(cfg chunker.Config, embeddingModel string) string {
	input := fmt.Sprintf("%s|%s|budget=%d|min=%d|checkpoint=%d|swing=%g|topk=%d",
		ChunkerVersion, embeddingModel, cfg.Budget, cfg.MinChunkTokens,
		cfg.CheckpointInterval, cfg.EvalSwing, cfg.TranspositionTopK)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// Stats computes coverage statistics from the database.
func (p *Pipeline) Stats(ctx context.Context) (*CoverageStats, error) {
	games, err := p.gameRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count games: %w", err)
	}

	chunks, err := p.chunkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}

	stats := &CoverageStats{
		Games:          games,
		Chunks:         len(chunks),
		ChunksByKind:   make(map[string]int),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   p.indexVersion,
	}

	tokenCounts := make([]int, 0, len(chunks))
	for _, c := range chunks {
		stats.ChunksByKind[c.Kind]++
		tokenCounts = append(tokenCounts, c.TokenCount)

		var meta chunker.Metadata
		if c.Metadata == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.Metadata), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of chunk %s: %w", c.ID, err)
		}
		if len(meta.Transpositions) > 0 {
			stats.TranspositionLinked++
		}
	}
	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	return stats, nil
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range sorted {
		sum += count
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
