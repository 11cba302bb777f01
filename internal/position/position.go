// Package position replays move trees into canonical board states.
//
// Replay is best-effort: a move that cannot be applied marks its node and every node below it
// as unavailable. Callers treat that as missing data, never as a failure of the record.
package position

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"chessrag/internal/gametree"
)

// Sample is the canonical board state after a move, paired with where it occurs.
type Sample struct {
	FEN        string `json:"fen"`
	MoveNumber int    `json:"move_number"`
	Ply        int    `json:"ply"`
}

// Result is the outcome of replaying up to one node.
type Result struct {
	Sample Sample
	OK     bool
}

// Index holds the replayed position after every node of one tree.
type Index struct {
	results map[*gametree.Node]Result
	failed  int
}

// Canonical reduces a FEN to the fields that decide position identity:
// placement, side to move, castling rights and en passant square.
func Canonical(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// Key returns the canonical FEN of pos. The en passant square is kept only when a capture
// onto it is legal: the board library records it after every double pawn push, which would
// split identical positions reached by different move orders.
func Key(pos *chess.Position) string {
	fields := strings.Fields(pos.String())
	if len(fields) >= 4 && fields[3] != "-" && !canCaptureEnPassant(pos) {
		fields[3] = "-"
	}
	return Canonical(strings.Join(fields, " "))
}

func canCaptureEnPassant(pos *chess.Position) bool {
	for _, m := range pos.ValidMoves() {
		if m.HasTag(chess.EnPassant) {
			return true
		}
	}
	return false
}

// Start returns the position a game begins from: its FEN header when present, else the initial position.
func Start(g *gametree.Game) (*chess.Position, error) {
	fen := g.Tag("FEN")
	if fen == "" {
		return chess.StartingPosition(), nil
	}
	pos := &chess.Position{}
	if err := pos.UnmarshalText([]byte(fen)); err != nil {
		return nil, fmt.Errorf("failed to decode FEN %q: %w", fen, err)
	}
	return pos, nil
}

// Build replays the whole tree rooted at root from start, root sitting at rootPly.
// A nil start leaves every node unavailable.
func Build(root *gametree.Node, start *chess.Position, rootPly int) *Index {
	idx := &Index{results: make(map[*gametree.Node]Result)}
	if root == nil {
		return idx
	}
	if start != nil {
		idx.results[root] = Result{
			Sample: Sample{FEN: Key(start), MoveNumber: gametree.MoveNumber(rootPly), Ply: rootPly},
			OK:     true,
		}
	}
	idx.walk(root, start, rootPly)
	return idx
}

// ForGame builds the index for a game from its starting position.
func ForGame(g *gametree.Game, root *gametree.Node) *Index {
	start, err := Start(g)
	if err != nil {
		start = nil
	}
	return Build(root, start, g.StartPly())
}

func (idx *Index) walk(parent *gametree.Node, pos *chess.Position, ply int) {
	for _, child := range parent.Children {
		next := apply(pos, child.Move)
		if next == nil {
			idx.markUnavailable(child)
			continue
		}
		idx.results[child] = Result{
			Sample: Sample{
				FEN:        Key(next),
				MoveNumber: gametree.MoveNumber(ply + 1),
				Ply:        ply + 1,
			},
			OK: true,
		}
		idx.walk(child, next, ply+1)
	}
}

func apply(pos *chess.Position, san string) *chess.Position {
	if pos == nil {
		return nil
	}
	move, err := chess.AlgebraicNotation{}.Decode(pos, san)
	if err != nil {
		return nil
	}
	return pos.Update(move)
}

func (idx *Index) markUnavailable(n *gametree.Node) {
	idx.failed++
	for _, c := range n.Children {
		idx.markUnavailable(c)
	}
}

// At returns the replayed position after n.
func (idx *Index) At(n *gametree.Node) (Sample, bool) {
	if idx == nil {
		return Sample{}, false
	}
	r, ok := idx.results[n]
	if !ok || !r.OK {
		return Sample{}, false
	}
	return r.Sample, true
}

// Unavailable reports how many nodes could not be replayed.
func (idx *Index) Unavailable() int {
	if idx == nil {
		return 0
	}
	return idx.failed
}
