package chunker

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/notnil/chess"

	"chessrag/internal/gametree"
	"chessrag/internal/tokens"
)

func newTestCounter(t *testing.T) tokens.Counter {
	t.Helper()
	counter, err := tokens.NewTiktokenCounter(tokens.DefaultEncoding, 1024)
	if err != nil {
		t.Fatalf("NewTiktokenCounter() error = %v", err)
	}
	return counter
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, newTestCounter(t))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func mustParse(t *testing.T, pgn string) *gametree.Game {
	t.Helper()
	games, err := gametree.ParseGames(strings.NewReader(pgn))
	if err != nil {
		t.Fatalf("ParseGames() error = %v", err)
	}
	if len(games) != 1 {
		t.Fatalf("ParseGames() returned %d games, want 1", len(games))
	}
	return games[0]
}

// chunkMoves recovers the moves a chunk carries from the [Moves] sections of its text.
// Context lines and branch summaries are not part of a chunk's own moves.
func chunkMoves(t *testing.T, text string) []string {
	t.Helper()
	var moves []string
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != movesMarker || i+1 >= len(lines) {
			continue
		}
		body := lines[i+1]
		if strings.HasPrefix(body, "[") {
			continue
		}
		g, err := gametree.ParseMovetext(body)
		if err != nil {
			t.Fatalf("chunk movetext does not parse: %v\n%s", err, body)
		}
		moves = append(moves, g.Root.Moves()...)
	}
	return moves
}

func sortedCopy(s []string) []string {
	cp := append([]string(nil), s...)
	sort.Strings(cp)
	return cp
}

// generateGame builds a legal, deterministic game tree with nested variations and
// commentary on every move. Line lengths halve at each nesting level.
func generateGame(length, every, nest int, commentWords int) *gametree.Game {
	root := &gametree.Node{}
	growLine(root, chess.StartingPosition(), 0, length, every, nest, commentWords, 0)
	return &gametree.Game{
		Tags: []gametree.Tag{
			{Name: "Event", Value: "Generated Open"},
			{Name: "White", Value: "Alpha"},
			{Name: "Black", Value: "Beta"},
			{Name: "Result", Value: "*"},
		},
		Root:   root,
		Result: "*",
	}
}

func growLine(parent *gametree.Node, pos *chess.Position, ply, length, every, nest, words, salt int) {
	for i := 0; i < length; i++ {
		valid := pos.ValidMoves()
		if len(valid) == 0 {
			return
		}
		m := valid[(ply*31+salt*17+i*7)%len(valid)]
		n := &gametree.Node{
			Move:    chess.AlgebraicNotation{}.Encode(pos, m),
			Comment: filler(ply+1, words),
		}
		eval := float64((ply*3+salt)%20)/10 - 1
		n.Eval = &eval
		parent.Children = append(parent.Children, n)

		if nest > 0 && i > 0 && i%every == 0 && len(valid) > 1 {
			alt := valid[(ply*31+salt*17+i*7+1)%len(valid)]
			if alt != m {
				altNode := &gametree.Node{
					Move:    chess.AlgebraicNotation{}.Encode(pos, alt),
					Comment: filler(ply+1, words),
				}
				parent.Children = append(parent.Children, altNode)
				growLine(altNode, pos.Update(alt), ply+1, length/2, every, nest-1, words, salt+i+1)
			}
		}

		pos = pos.Update(m)
		parent = n
		ply++
	}
}

func filler(ply, words int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "after ply %d", ply)
	for i := 0; i < words; i++ {
		b.WriteString(" the plan stays flexible")
	}
	return b.String()
}
