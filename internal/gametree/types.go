package gametree

import (
	"strconv"
	"strings"
)

// Node is one move in a game record.
// Children[0] is the continuation actually played from here; the rest are variations.
type Node struct {
	Move     string   // SAN; empty for the root
	Comment  string   // Free-text annotation
	Eval     *float64 // Engine evaluation in pawns, from [%eval]; ±MateScore when Mate is set
	Mate     *int     // Signed distance to mate, from [%eval #n]
	NAGs     []int    // Numeric annotation glyphs
	Children []*Node
}

// Tag is a single PGN header pair.
type Tag struct {
	Name  string
	Value string
}

// Game is one record: header tags plus the move tree.
type Game struct {
	Tags   []Tag
	Root   *Node
	Result string
}

// Tag returns the value of the named header, or "".
func (g *Game) Tag(name string) string {
	for _, t := range g.Tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// IsBranchPoint reports whether the node has more than one continuation.
func (n *Node) IsBranchPoint() bool {
	return len(n.Children) > 1
}

// CountNodes returns the number of move nodes below (and including) n, excluding a move-less root.
func (n *Node) CountNodes() int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Move != "" {
		count = 1
	}
	for _, c := range n.Children {
		count += c.CountNodes()
	}
	return count
}

// Moves returns every move in the subtree in depth-first order.
func (n *Node) Moves() []string {
	var moves []string
	var walk func(*Node)
	walk = func(node *Node) {
		if node.Move != "" {
			moves = append(moves, node.Move)
		}
		for _, c := range node.Children {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return moves
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		Move:    n.Move,
		Comment: n.Comment,
	}
	if n.Eval != nil {
		v := *n.Eval
		cp.Eval = &v
	}
	if n.Mate != nil {
		m := *n.Mate
		cp.Mate = &m
	}
	if len(n.NAGs) > 0 {
		cp.NAGs = append([]int(nil), n.NAGs...)
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return cp
}

// MoveNumber returns the full-move number for a node at the given ply (ply 1 = White's first move).
func MoveNumber(ply int) int {
	return (ply + 1) / 2
}

// IsWhitePly reports whether the move at ply was played by White.
func IsWhitePly(ply int) bool {
	return ply%2 == 1
}

// StartPly returns the ply of the root, so that its first child sits at StartPly()+1.
// Games without a FEN header start from the initial position (root ply 0).
func (g *Game) StartPly() int {
	fen := g.Tag("FEN")
	if fen == "" {
		return 0
	}
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 0
	}
	fullMove, err := strconv.Atoi(fields[5])
	if err != nil || fullMove < 1 {
		fullMove = 1
	}
	ply := 2 * (fullMove - 1)
	if fields[1] == "b" {
		ply++
	}
	return ply
}
