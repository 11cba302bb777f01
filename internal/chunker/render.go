package chunker

import (
	"fmt"
	"sort"
	"strings"

	"chessrag/internal/gametree"
	"chessrag/internal/position"
)

const (
	movesMarker    = "[Moves]"
	branchesMarker = "[Branches]"
)

// line is a subtree to render: head's move (absent for the root) and everything below it.
type line struct {
	head *gametree.Node
	ply  int
}

type plyNode struct {
	node *gametree.Node
	ply  int
}

// recordHeader identifies the source record in every chunk.
func recordHeader(g *gametree.Game, recordID string) string {
	var b strings.Builder
	white, black := g.Tag("White"), g.Tag("Black")
	if white == "" {
		white = "?"
	}
	if black == "" {
		black = "?"
	}
	fmt.Fprintf(&b, "[Game] %s vs %s\n", white, black)

	var event []string
	for _, name := range []string{"Event", "Site", "Round", "Date"} {
		if v := g.Tag(name); v != "" && v != "?" && v != "????.??.??" {
			event = append(event, v)
		}
	}
	if len(event) > 0 {
		fmt.Fprintf(&b, "[Event] %s\n", strings.Join(event, ", "))
	}
	if eco, opening := g.Tag("ECO"), g.Tag("Opening"); eco != "" || opening != "" {
		fmt.Fprintf(&b, "[Opening] %s\n", strings.TrimSpace(eco+" "+opening))
	}
	result := g.Result
	if result == "" {
		result = "*"
	}
	fmt.Fprintf(&b, "[Result] %s\n", result)
	fmt.Fprintf(&b, "[Record] %s\n", recordID)
	return b.String()
}

// contextMoves renders the last keep moves leading to a divergence point without annotations.
// Earlier moves are replaced by a count.
func contextMoves(path []plyNode, keep int) string {
	if len(path) == 0 {
		return "start of game"
	}
	skip := 0
	if keep >= 0 && keep < len(path) {
		skip = len(path) - keep
	}
	var b strings.Builder
	if skip > 0 {
		fmt.Fprintf(&b, "%s %d earlier moves", ellipsis, skip)
	}
	for i, pn := range path[skip:] {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(gametree.FormatMove(&gametree.Node{Move: pn.node.Move, NAGs: pn.node.NAGs}, pn.ply, i == 0))
	}
	return b.String()
}

// contextHeader is the part of a split chunk that makes it readable on its own: which record,
// where in the tree, the moves that lead here, and the board at the divergence point.
// It is held to half the budget by dropping the oldest context moves; the position line
// still pins down the board.
func (s *splitter) contextHeader(ctx splitContext) string {
	if h, ok := s.headers[ctx.selfID]; ok {
		return h
	}
	h := s.renderHeader(ctx, len(ctx.path))
	if limit := s.cfg.Budget / 2; len(ctx.path) > 0 && s.counter.Count(h) > limit {
		keep := sort.Search(len(ctx.path)+1, func(k int) bool {
			return s.counter.Count(s.renderHeader(ctx, k)) > limit
		}) - 1
		h = s.renderHeader(ctx, max(keep, 0))
	}
	s.headers[ctx.selfID] = h
	return h
}

func (s *splitter) renderHeader(ctx splitContext, keep int) string {
	var b strings.Builder
	b.WriteString(s.recordHeader)
	if len(ctx.branch) == 0 && s.rootNote != "" {
		fmt.Fprintf(&b, "[Note] %s\n", s.rootNote)
	}
	fmt.Fprintf(&b, "[Location] %s\n", Location(ctx.branch))
	fmt.Fprintf(&b, "[Context] %s\n", contextMoves(ctx.path, keep))

	divergence := s.root
	if len(ctx.path) > 0 {
		divergence = ctx.path[len(ctx.path)-1].node
	}
	if smp, ok := s.positions.At(divergence); ok {
		fmt.Fprintf(&b, "[Position] %s\n", smp.FEN)
	} else {
		b.WriteString("[Position] unavailable\n")
	}
	return b.String()
}

// sampled reports whether a position sample is taken after n:
// branch points, line ends and every Nth move.
func (p keyPolicy) sampled(n *gametree.Node, ply int) bool {
	return n.IsBranchPoint() || len(n.Children) == 0 || gametree.MoveNumber(ply)%p.interval == 0
}

func (s *splitter) sample(n *gametree.Node, ply int, force bool, out *[]position.Sample) {
	if !force && !s.policy.sampled(n, ply) {
		return
	}
	smp, ok := s.positions.At(n)
	if !ok {
		return
	}
	for _, existing := range *out {
		if existing == smp {
			return
		}
	}
	*out = append(*out, smp)
}

// renderWhole renders the entire record as one chunk body.
func (s *splitter) renderWhole() (string, []position.Sample) {
	var b strings.Builder
	b.WriteString(s.recordHeader)
	if s.rootNote != "" {
		fmt.Fprintf(&b, "[Note] %s\n", s.rootNote)
	}
	b.WriteString(movesMarker)
	b.WriteByte('\n')

	var samples []position.Sample
	var moves strings.Builder
	gametree.NewLineWriter(&moves, func(n *gametree.Node, ply int) {
		s.sample(n, ply, false, &samples)
	}).Subtree(s.root, s.rootPly)
	b.WriteString(moves.String())
	return b.String(), samples
}

// renderLine renders a subtree with its context header.
func (s *splitter) renderLine(ctx splitContext, ln line) (string, []position.Sample) {
	var b strings.Builder
	b.WriteString(s.contextHeader(ctx))
	b.WriteString(movesMarker)
	b.WriteByte('\n')

	var samples []position.Sample
	var moves strings.Builder
	gametree.NewLineWriter(&moves, func(n *gametree.Node, ply int) {
		s.sample(n, ply, false, &samples)
	}).Subtree(ln.head, ln.ply)
	b.WriteString(moves.String())
	return b.String(), samples
}

// renderOverview renders the main-line stretch of a split chunk followed by the branch summary.
// trimmed, when non-nil, replaces the comment of the last node so that a single oversized
// annotation still fits.
func (s *splitter) renderOverview(ctx splitContext, nodes []plyNode, trimmed *string, summary []string) (string, []position.Sample) {
	var b strings.Builder
	b.WriteString(s.contextHeader(ctx))
	b.WriteString(movesMarker)
	b.WriteByte('\n')

	var samples []position.Sample
	var moves strings.Builder
	w := gametree.NewLineWriter(&moves, nil)
	for i, pn := range nodes {
		n := pn.node
		last := i == len(nodes)-1
		if last && trimmed != nil {
			cp := *n
			cp.Comment = *trimmed
			n = &cp
		}
		w.Move(n, pn.ply)
		s.sample(pn.node, pn.ply, last, &samples)
	}
	b.WriteString(moves.String())

	if len(summary) > 0 {
		if len(nodes) > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(branchesMarker)
		for _, l := range summary {
			b.WriteByte('\n')
			b.WriteString(l)
		}
	}
	return b.String(), samples
}

// branchSummary names each branch by its first move and size.
func branchSummary(branches []branch, limit int) []string {
	if limit < 0 || limit > len(branches) {
		limit = len(branches)
	}
	lines := make([]string, 0, limit+1)
	for i := 0; i < limit; i++ {
		br := branches[i]
		lines = append(lines, fmt.Sprintf("- branch %d (%s): %s, %d moves",
			i+1, br.label, gametree.FormatMove(&gametree.Node{Move: br.ln.head.Move}, br.ln.ply, true), br.ln.head.CountNodes()))
	}
	if rest := len(branches) - limit; rest > 0 {
		lines = append(lines, fmt.Sprintf("- and %d more branches", rest))
	}
	return lines
}
