package chunker

import (
	"chessrag/internal/position"
	"chessrag/internal/tokens"
)

const mergeSeparator = "\n\n---\n\n"

// Merge combines runs of adjacent sibling chunks when one side is under cfg.MinChunkTokens
// and the combined text stays within budget. Only terminal chunks with the same parent merge;
// overview chunks, which other chunks hang below, are left alone.
func Merge(chunks []Chunk, counter tokens.Counter, cfg Config) []Chunk {
	if len(chunks) < 2 || cfg.MinChunkTokens <= 0 {
		return chunks
	}

	out := make([]Chunk, 0, len(chunks))
	i := 0
	for i < len(chunks) {
		acc := chunks[i]
		members := []Chunk{acc}
		j := i + 1
		for acc.terminal && j < len(chunks) {
			next := chunks[j]
			if !mergeable(acc, next) {
				break
			}
			if acc.TokenCount >= cfg.MinChunkTokens && next.TokenCount >= cfg.MinChunkTokens {
				break
			}
			text := acc.Text + mergeSeparator + next.Text
			n := counter.Count(text)
			if n > cfg.Budget {
				break
			}
			members = append(members, next)
			acc = combine(members, text, n)
			j++
		}
		out = append(out, acc)
		i = j
	}
	return out
}

func mergeable(a, b Chunk) bool {
	return b.terminal &&
		a.Metadata.RecordID == b.Metadata.RecordID &&
		a.Metadata.ParentChunkID == b.Metadata.ParentChunkID
}

// combine builds the merged chunk for members; text and n are already computed.
func combine(members []Chunk, text string, n int) Chunk {
	first, last := members[0], members[len(members)-1]
	merged := Chunk{
		ID:         mergedChunkID(first.ID, last.ID),
		Text:       text,
		TokenCount: n,
		Kind:       KindMerged,
		Metadata: Metadata{
			RecordID:      first.Metadata.RecordID,
			BranchPath:    first.Metadata.BranchPath,
			ParentChunkID: first.Metadata.ParentChunkID,
			Location:      first.Metadata.Location,
		},
		terminal: true,
	}
	seen := make(map[position.Sample]bool)
	for _, m := range members {
		merged.Metadata.MergedFrom = append(merged.Metadata.MergedFrom, m.ID)
		merged.Metadata.MergedPaths = append(merged.Metadata.MergedPaths, m.Metadata.BranchPath)
		for _, smp := range m.Samples {
			if !seen[smp] {
				seen[smp] = true
				merged.Samples = append(merged.Samples, smp)
			}
		}
	}
	return merged
}
