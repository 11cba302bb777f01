package chunker

import (
	"math"

	"chessrag/internal/gametree"
)

// keyPolicy decides which nodes keep their evaluation and which positions are sampled.
type keyPolicy struct {
	interval int
	swing    float64
}

func newKeyPolicy(cfg Config) keyPolicy {
	interval := cfg.CheckpointInterval
	if interval <= 0 {
		interval = 1
	}
	return keyPolicy{interval: interval, swing: cfg.EvalSwing}
}

// structural reports the key-node rules that do not depend on evaluations:
// branch points and the first move of each alternative, line ends, and periodic checkpoints.
func (p keyPolicy) structural(n, parent *gametree.Node, ply int) bool {
	if n.IsBranchPoint() || (parent != nil && parent.IsBranchPoint()) {
		return true
	}
	if len(n.Children) == 0 {
		return true
	}
	return gametree.MoveNumber(ply)%p.interval == 0
}

// KeyNodes returns the nodes whose evaluation annotations survive compression.
func KeyNodes(root *gametree.Node, rootPly int, cfg Config) map[*gametree.Node]bool {
	p := newKeyPolicy(cfg)
	keys := make(map[*gametree.Node]bool)
	var walk func(n, parent *gametree.Node, ply int, lastEval *float64)
	walk = func(n, parent *gametree.Node, ply int, lastEval *float64) {
		if n.Move != "" {
			key := p.structural(n, parent, ply)
			if !key && n.Eval != nil && lastEval != nil && math.Abs(*n.Eval-*lastEval) > p.swing {
				key = true
			}
			if key {
				keys[n] = true
			}
		}
		if n.Eval != nil {
			lastEval = n.Eval
		}
		for _, c := range n.Children {
			walk(c, n, ply+1, lastEval)
		}
	}
	if root != nil {
		walk(root, nil, rootPly, nil)
	}
	return keys
}

// Compress returns a copy of the tree with evaluations removed from every non-key node.
// Moves, comments, glyphs and branch structure are unchanged.
func Compress(root *gametree.Node, rootPly int, cfg Config) *gametree.Node {
	cp := root.Clone()
	if cp == nil {
		return nil
	}
	keys := KeyNodes(cp, rootPly, cfg)
	var strip func(n *gametree.Node)
	strip = func(n *gametree.Node) {
		if n.Move != "" && !keys[n] {
			n.Eval = nil
			n.Mate = nil
		}
		for _, c := range n.Children {
			strip(c)
		}
	}
	strip(cp)
	return cp
}
