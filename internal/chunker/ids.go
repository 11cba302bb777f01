package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// RecordID derives a stable identifier from where a record came from:
// the source (e.g. a file path) and its sequence number inside that source.
func RecordID(source string, seq int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", source, seq)))
	return "g" + hex.EncodeToString(sum[:])[:16]
}

// topChunkID names the whole chunk or the top-level overview of a record.
func topChunkID(recordID string) string {
	return recordID + "_0"
}

// childChunkID names branch i (1-based) under base. base is the record id for top-level
// branches and the parent chunk id below that, so ids extend rather than restart.
func childChunkID(base string, i int) string {
	return base + "_" + strconv.Itoa(i)
}

// mergedChunkID names a run of consecutive siblings by the first id and the last local index.
func mergedChunkID(first, last string) string {
	return first + "-" + last[strings.LastIndexByte(last, '_')+1:]
}

// Location renders a branch path as "branch 3 under branch 1"; the empty path is the main game.
// Repeated levels collapse, so a long main line reads "branch 2 under branch 1 (x12)".
func Location(path []int) string {
	if len(path) == 0 {
		return "main game"
	}
	var parts []string
	for i := len(path) - 1; i >= 0; {
		j := i
		for j > 0 && path[j-1] == path[i] {
			j--
		}
		part := "branch " + strconv.Itoa(path[i])
		if run := i - j + 1; run > 1 {
			part += " (x" + strconv.Itoa(run) + ")"
		}
		parts = append(parts, part)
		i = j - 1
	}
	return strings.Join(parts, " under ")
}
