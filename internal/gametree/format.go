package gametree

import (
	"fmt"
	"strconv"
	"strings"
)

// MateScore is the evaluation magnitude stored for a forced mate.
const MateScore = 100.0

var nagSymbols = map[int]string{
	1: "!",
	2: "?",
	3: "!!",
	4: "??",
	5: "!?",
	6: "?!",
}

// VisitFunc is called for every move written, with the ply the move was played at.
type VisitFunc func(n *Node, ply int)

// FormatMove renders a single move with its move number where PGN requires one.
// Black moves only carry a number ("12...") when withNumber is set.
func FormatMove(n *Node, ply int, withNumber bool) string {
	var b strings.Builder
	num := MoveNumber(ply)
	if IsWhitePly(ply) {
		b.WriteString(strconv.Itoa(num))
		b.WriteString(". ")
	} else if withNumber {
		b.WriteString(strconv.Itoa(num))
		b.WriteString("... ")
	}
	b.WriteString(n.Move)
	for _, nag := range n.NAGs {
		if sym, ok := nagSymbols[nag]; ok {
			b.WriteString(sym)
		}
	}
	for _, nag := range n.NAGs {
		if _, ok := nagSymbols[nag]; !ok {
			fmt.Fprintf(&b, " $%d", nag)
		}
	}
	return b.String()
}

// FormatEval renders a pawn evaluation the way [%eval] commands carry it.
func FormatEval(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatMate renders a mate distance as "#n".
func FormatMate(n int) string {
	return "#" + strconv.Itoa(n)
}

// FormatAnnotation renders the brace comment following a move, or "" when there is nothing to say.
func FormatAnnotation(n *Node) string {
	if n.Eval == nil && n.Mate == nil && n.Comment == "" {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	if n.Eval != nil || n.Mate != nil {
		b.WriteString("[%eval ")
		if n.Mate != nil {
			b.WriteString(FormatMate(*n.Mate))
		} else {
			b.WriteString(FormatEval(*n.Eval))
		}
		b.WriteByte(']')
		if n.Comment != "" {
			b.WriteByte(' ')
		}
	}
	b.WriteString(n.Comment)
	b.WriteByte('}')
	return b.String()
}

// LineWriter writes PGN movetext, tracking when a black move needs its number repeated.
type LineWriter struct {
	b          *strings.Builder
	visit      VisitFunc
	needNumber bool
	fresh      bool
}

// NewLineWriter returns a writer appending to b. visit may be nil.
func NewLineWriter(b *strings.Builder, visit VisitFunc) *LineWriter {
	return &LineWriter{b: b, visit: visit, needNumber: true, fresh: b.Len() == 0}
}

// Move writes a single move and its annotation.
func (w *LineWriter) Move(n *Node, ply int) {
	if !w.fresh {
		w.b.WriteByte(' ')
	}
	w.fresh = false
	w.b.WriteString(FormatMove(n, ply, w.needNumber))
	w.needNumber = false
	if ann := FormatAnnotation(n); ann != "" {
		w.b.WriteByte(' ')
		w.b.WriteString(ann)
		w.needNumber = true
	}
	if w.visit != nil {
		w.visit(n, ply)
	}
}

// Subtree writes head (unless it is a move-less root) followed by everything below it,
// with variations in parentheses after the main move they replace.
func (w *LineWriter) Subtree(head *Node, ply int) {
	if head.Move != "" {
		w.Move(head, ply)
	}
	w.continuation(head, ply)
}

func (w *LineWriter) continuation(p *Node, ply int) {
	for len(p.Children) > 0 {
		main := p.Children[0]
		w.Move(main, ply+1)
		for _, alt := range p.Children[1:] {
			if !w.fresh {
				w.b.WriteByte(' ')
			}
			w.b.WriteByte('(')
			w.fresh = true
			w.needNumber = true
			w.Move(alt, ply+1)
			w.continuation(alt, ply+1)
			w.b.WriteByte(')')
			w.needNumber = true
		}
		p = main
		ply++
	}
}

// Movetext renders the subtree under head as PGN movetext.
func Movetext(head *Node, ply int) string {
	var b strings.Builder
	NewLineWriter(&b, nil).Subtree(head, ply)
	return b.String()
}

// PGN serialises the game in export-like form. It is stable for a given tree and is
// used as the content fingerprint of a record.
func (g *Game) PGN() string {
	var b strings.Builder
	for _, t := range g.Tags {
		fmt.Fprintf(&b, "[%s %q]\n", t.Name, t.Value)
	}
	b.WriteByte('\n')
	if g.Root != nil && g.Root.Comment != "" {
		b.WriteString("{" + g.Root.Comment + "} ")
	}
	if g.Root != nil {
		b.WriteString(Movetext(g.Root, g.StartPly()))
	}
	result := g.Result
	if result == "" {
		result = "*"
	}
	b.WriteByte(' ')
	b.WriteString(result)
	b.WriteByte('\n')
	return b.String()
}
