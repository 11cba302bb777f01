package chunker

import (
	"fmt"
	"sort"

	"chessrag/internal/gametree"
	"chessrag/internal/position"
	"chessrag/internal/tokens"
)

const ellipsis = "…"

// splitContext carries everything a recursive call needs to know about where it is.
// Nothing about the recursion lives outside of it.
type splitContext struct {
	path      []plyNode // moves from the record root to the divergence point, inclusive
	branch    []int     // 1-based branch indices from the root
	parentID  string    // overview chunk that produced this call, "" at the top
	selfID    string    // id of the chunk this call emits first
	childBase string    // prefix for the ids of this call's branches
}

func (c splitContext) child(i int, prefix []plyNode) splitContext {
	path := make([]plyNode, 0, len(c.path)+len(prefix))
	path = append(path, c.path...)
	path = append(path, prefix...)
	br := make([]int, 0, len(c.branch)+1)
	br = append(br, c.branch...)
	br = append(br, i)
	id := childChunkID(c.childBase, i)
	return splitContext{
		path:      path,
		branch:    br,
		parentID:  c.selfID,
		selfID:    id,
		childBase: id,
	}
}

// branch is one continuation listed in an overview and split on its own.
type branch struct {
	ln     line
	label  string
	prefix []plyNode // overview moves between the parent's divergence point and this branch
}

type splitter struct {
	cfg          Config
	counter      tokens.Counter
	policy       keyPolicy
	positions    *position.Index
	root         *gametree.Node
	rootPly      int
	recordID     string
	recordHeader string
	rootNote     string
	leafKind     Kind
	headers      map[string]string // rendered context headers by chunk id
}

func newSplitter(cfg Config, counter tokens.Counter, g *gametree.Game, root *gametree.Node, recordID string, leafKind Kind) *splitter {
	return &splitter{
		cfg:          cfg,
		counter:      counter,
		policy:       newKeyPolicy(cfg),
		positions:    position.ForGame(g, root),
		root:         root,
		rootPly:      g.StartPly(),
		recordID:     recordID,
		recordHeader: recordHeader(g, recordID),
		rootNote:     root.Comment,
		leafKind:     leafKind,
		headers:      make(map[string]string),
	}
}

func (s *splitter) fits(text string) (int, bool) {
	n := s.counter.Count(text)
	return n, n <= s.cfg.Budget
}

// splitTop decomposes a record that is already known not to fit in one chunk.
func (s *splitter) splitTop() ([]Chunk, error) {
	return s.splitOverview(s.topContext(), line{head: s.root, ply: s.rootPly})
}

// split returns the chunks for one line: a single chunk when the whole subtree fits,
// otherwise an overview followed by the chunks of every branch.
func (s *splitter) split(ctx splitContext, ln line) ([]Chunk, error) {
	text, samples := s.renderLine(ctx, ln)
	if n, ok := s.fits(text); ok {
		return []Chunk{s.newChunk(ctx, text, n, s.leafKind, samples, true)}, nil
	}
	return s.splitOverview(ctx, ln)
}

func (s *splitter) splitOverview(ctx splitContext, ln line) ([]Chunk, error) {
	overview, branches, err := s.overview(ctx, ln)
	if err != nil {
		return nil, err
	}
	chunks := []Chunk{overview}
	for i, br := range branches {
		sub, err := s.split(ctx.child(i+1, br.prefix), br.ln)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, sub...)
	}
	return chunks, nil
}

// overview builds the chunk for the unbranched stretch at the start of ln and lists what follows.
// When the stretch alone overflows the budget it is cut, and the remainder becomes one continuation branch.
func (s *splitter) overview(ctx splitContext, ln line) (Chunk, []branch, error) {
	var nodes []plyNode
	cur, ply := ln.head, ln.ply
	if cur.Move != "" {
		nodes = append(nodes, plyNode{cur, ply})
	}
	for len(cur.Children) == 1 {
		cur, ply = cur.Children[0], ply+1
		nodes = append(nodes, plyNode{cur, ply})
	}

	var branches []branch
	for i, c := range cur.Children {
		label := "variation"
		if i == 0 {
			label = "main line"
		}
		branches = append(branches, branch{ln: line{c, ply + 1}, label: label, prefix: nodes})
	}

	emit := func(text string, n int, samples []position.Sample, brs []branch) (Chunk, []branch, error) {
		return s.newChunk(ctx, text, n, KindVariationSplit, samples, len(brs) == 0), brs, nil
	}

	text, samples := s.renderOverview(ctx, nodes, nil, branchSummary(branches, -1))
	if n, ok := s.fits(text); ok {
		return emit(text, n, samples, branches)
	}

	// Cut the stretch: keep the longest prefix that fits, continue with the rest.
	if len(nodes) >= 2 {
		render := func(k int) (string, []position.Sample, []branch) {
			cont := []branch{{ln: line{nodes[k].node, nodes[k].ply}, label: "continuation", prefix: nodes[:k]}}
			t, smp := s.renderOverview(ctx, nodes[:k], nil, branchSummary(cont, -1))
			return t, smp, cont
		}
		k := sort.Search(len(nodes)-1, func(i int) bool {
			t, _, _ := render(i + 1)
			_, ok := s.fits(t)
			return !ok
		})
		if k >= 1 {
			t, smp, cont := render(k)
			if n, ok := s.fits(t); ok {
				return emit(t, n, smp, cont)
			}
		}
		// Even the first move does not fit: its annotation is too long.
		cont := []branch{{ln: line{nodes[1].node, nodes[1].ply}, label: "continuation", prefix: nodes[:1]}}
		return s.trimmedOverview(ctx, nodes[:1], branchSummary(cont, -1), cont)
	}

	// One move or none before a wide branch point: shorten the summary.
	limit := sort.Search(len(branches)+1, func(l int) bool {
		t, _ := s.renderOverview(ctx, nodes, nil, branchSummary(branches, l))
		_, ok := s.fits(t)
		return !ok
	}) - 1
	if limit >= 0 {
		t, smp := s.renderOverview(ctx, nodes, nil, branchSummary(branches, limit))
		if n, ok := s.fits(t); ok {
			return emit(t, n, smp, branches)
		}
	}
	if len(nodes) == 1 {
		return s.trimmedOverview(ctx, nodes, branchSummary(branches, 0), branches)
	}
	return Chunk{}, nil, fmt.Errorf("%w: context header of %s alone needs more than %d tokens",
		ErrBudgetExceeded, ctx.selfID, s.cfg.Budget)
}

// trimmedOverview shortens the annotation of the single node in nodes until the overview fits.
func (s *splitter) trimmedOverview(ctx splitContext, nodes []plyNode, summary []string, brs []branch) (Chunk, []branch, error) {
	comment := []rune(nodes[0].node.Comment)
	keep := sort.Search(len(comment)+1, func(l int) bool {
		trimmed := string(comment[:l]) + ellipsis
		t, _ := s.renderOverview(ctx, nodes, &trimmed, summary)
		_, ok := s.fits(t)
		return !ok
	}) - 1
	if keep < 0 {
		return Chunk{}, nil, fmt.Errorf("%w: move %s of %s cannot fit", ErrBudgetExceeded, nodes[0].node.Move, ctx.selfID)
	}
	trimmed := string(comment[:keep]) + ellipsis
	t, smp := s.renderOverview(ctx, nodes, &trimmed, summary)
	n, ok := s.fits(t)
	if !ok {
		return Chunk{}, nil, fmt.Errorf("%w: move %s of %s cannot fit", ErrBudgetExceeded, nodes[0].node.Move, ctx.selfID)
	}
	return s.newChunk(ctx, t, n, KindVariationSplit, smp, len(brs) == 0), brs, nil
}

func (s *splitter) newChunk(ctx splitContext, text string, n int, kind Kind, samples []position.Sample, terminal bool) Chunk {
	return Chunk{
		ID:         ctx.selfID,
		Text:       text,
		TokenCount: n,
		Kind:       kind,
		Samples:    samples,
		Metadata: Metadata{
			RecordID:      s.recordID,
			BranchPath:    ctx.branch,
			ParentChunkID: ctx.parentID,
			Location:      Location(ctx.branch),
		},
		terminal: terminal,
	}
}
