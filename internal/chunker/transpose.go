package chunker

import (
	"sort"

	"chessrag/internal/position"
)

// Link attaches transposition links to chunks that share a position with other chunks
// of the same record. Each chunk keeps at most topK links, most-shared positions first.
func Link(chunks []Chunk, topK int) {
	if len(chunks) < 2 || topK <= 0 {
		return
	}

	// canonical position -> chunk indexes holding it, plus one representative sample
	holders := make(map[string][]int)
	first := make(map[string]position.Sample)
	for i, c := range chunks {
		seen := make(map[string]bool)
		for _, smp := range c.Samples {
			if seen[smp.FEN] {
				continue
			}
			seen[smp.FEN] = true
			holders[smp.FEN] = append(holders[smp.FEN], i)
			if _, ok := first[smp.FEN]; !ok {
				first[smp.FEN] = smp
			}
		}
	}

	links := make([][]TranspositionLink, len(chunks))
	for fen, idxs := range holders {
		if len(idxs) < 2 {
			continue
		}
		for _, i := range idxs {
			others := make([]string, 0, len(idxs)-1)
			for _, j := range idxs {
				if j != i {
					others = append(others, chunks[j].ID)
				}
			}
			sort.Strings(others)
			links[i] = append(links[i], TranspositionLink{
				Position: ownSample(chunks[i], fen, first[fen]),
				ChunkIDs: others,
			})
		}
	}

	for i := range chunks {
		ls := links[i]
		if len(ls) == 0 {
			continue
		}
		sort.Slice(ls, func(a, b int) bool {
			if len(ls[a].ChunkIDs) != len(ls[b].ChunkIDs) {
				return len(ls[a].ChunkIDs) > len(ls[b].ChunkIDs)
			}
			return ls[a].Position.FEN < ls[b].Position.FEN
		})
		if len(ls) > topK {
			ls = ls[:topK]
		}
		chunks[i].Metadata.Transpositions = ls
	}
}

// ownSample returns the chunk's own sample of fen so the link carries its move number.
func ownSample(c Chunk, fen string, fallback position.Sample) position.Sample {
	for _, smp := range c.Samples {
		if smp.FEN == fen {
			return smp
		}
	}
	return fallback
}
