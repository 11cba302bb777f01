package gametree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformed is returned when a record cannot be turned into a move tree.
var ErrMalformed = errors.New("malformed game record")

var (
	evalCommand  = regexp.MustCompile(`\[%eval\s+([^\]\s]+)[^\]]*\]`)
	otherCommand = regexp.MustCompile(`\[%(?:clk|emt|csl|cal)\s+[^\]]*\]`)
	tagLine      = regexp.MustCompile(`^\[\s*([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]\s*$`)
	suffixGlyphs = map[string]int{"!": 1, "?": 2, "!!": 3, "??": 4, "!?": 5, "?!": 6}
)

// ParseGames reads every game in a PGN stream.
// Games are separated by their tag sections; a stream with movetext but no tags is one game.
func ParseGames(r io.Reader) ([]*Game, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var games []*Game
	var tags []Tag
	var movetext strings.Builder
	inMoves := false
	lineNo := 0

	flush := func() error {
		if len(tags) == 0 && strings.TrimSpace(movetext.String()) == "" {
			return nil
		}
		g, err := parseMovetext(movetext.String())
		if err != nil {
			return fmt.Errorf("game %d ending at line %d: %w", len(games)+1, lineNo, err)
		}
		g.Tags = tags
		if g.Result == "" {
			g.Result = g.Tag("Result")
		}
		games = append(games, g)
		tags = nil
		movetext.Reset()
		inMoves = false
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%") {
			continue
		}
		if m := tagLine.FindStringSubmatch(trimmed); m != nil {
			if inMoves {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			value := strings.ReplaceAll(m[2], `\"`, `"`)
			value = strings.ReplaceAll(value, `\\`, `\`)
			tags = append(tags, Tag{Name: m[1], Value: value})
			continue
		}
		if trimmed != "" {
			inMoves = true
		}
		movetext.WriteString(line)
		movetext.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return games, nil
}

// ParseMovetext parses a single game's movetext (no tags).
func ParseMovetext(text string) (*Game, error) {
	return parseMovetext(text)
}

type lineState struct {
	anchor *Node // node the next move attaches to
	prev   *Node // anchor before the last move; a variation attaches here
}

func parseMovetext(text string) (*Game, error) {
	root := &Node{}
	g := &Game{Root: root}

	cur := lineState{anchor: root}
	var stack []lineState
	var pendingComment string

	attachComment := func(c string) {
		switch {
		case len(stack) > 0 && cur.prev == nil:
			// Before the first move of a variation: carried onto that move.
			if c = cleanComment(c, nil); c != "" {
				pendingComment = joinComment(pendingComment, c)
			}
		case cur.anchor == root:
			if c = cleanComment(c, nil); c != "" {
				root.Comment = joinComment(root.Comment, c)
			}
		default:
			if c = cleanComment(c, cur.anchor); c != "" {
				cur.anchor.Comment = joinComment(cur.anchor.Comment, c)
			}
		}
	}

	i := 0
	for i < len(text) {
		ch := text[i]
		switch {
		case unicode.IsSpace(rune(ch)):
			i++
		case ch == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated comment at offset %d", ErrMalformed, i)
			}
			attachComment(text[i+1 : i+1+end])
			i += end + 2
		case ch == ';':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			attachComment(text[i+1 : i+end])
			i += end
		case ch == '(':
			if cur.prev == nil {
				return nil, fmt.Errorf("%w: variation before any move at offset %d", ErrMalformed, i)
			}
			stack = append(stack, cur)
			cur = lineState{anchor: cur.prev}
			i++
		case ch == ')':
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' at offset %d", ErrMalformed, i)
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pendingComment = ""
			i++
		case ch == '$':
			j := i + 1
			for j < len(text) && text[j] >= '0' && text[j] <= '9' {
				j++
			}
			nag, err := strconv.Atoi(text[i+1 : j])
			if err != nil {
				return nil, fmt.Errorf("%w: bad NAG at offset %d", ErrMalformed, i)
			}
			if cur.anchor != root {
				cur.anchor.NAGs = append(cur.anchor.NAGs, nag)
			}
			i = j
		default:
			j := i
			for j < len(text) && !unicode.IsSpace(rune(text[j])) && !strings.ContainsRune("{}();$", rune(text[j])) {
				j++
			}
			tok := text[i:j]
			i = j
			if tok == "" {
				i++
				continue
			}
			if isResult(tok) {
				if len(stack) == 0 {
					g.Result = tok
				}
				continue
			}
			san := stripMoveNumber(tok)
			if san == "" {
				continue
			}
			san, nags := splitSuffix(san)
			n := &Node{Move: san, NAGs: nags}
			if pendingComment != "" {
				n.Comment = pendingComment
				pendingComment = ""
			}
			cur.anchor.Children = append(cur.anchor.Children, n)
			cur.prev = cur.anchor
			cur.anchor = n
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: %d unclosed variation(s)", ErrMalformed, len(stack))
	}
	return g, nil
}

// cleanComment extracts [%eval] into the node and drops clock and drawing commands.
func cleanComment(c string, n *Node) string {
	if m := evalCommand.FindStringSubmatch(c); m != nil {
		if v, mate, ok := parseEval(m[1]); ok && n != nil {
			n.Eval = &v
			n.Mate = mate
		}
		c = evalCommand.ReplaceAllString(c, "")
	}
	c = otherCommand.ReplaceAllString(c, "")
	return strings.Join(strings.Fields(c), " ")
}

// parseEval reads a pawn value or a mate distance "#n". Mates also get a ±MateScore
// value so evaluation swings can be measured across them.
func parseEval(s string) (float64, *int, bool) {
	if strings.HasPrefix(s, "#") {
		n, err := strconv.Atoi(s[1:])
		if err != nil {
			return 0, nil, false
		}
		if n < 0 || strings.HasPrefix(s, "#-") {
			return -MateScore, &n, true
		}
		return MateScore, &n, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, nil, false
	}
	return v, nil, true
}

func joinComment(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}

func isResult(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// stripMoveNumber removes a leading "12." or "12..." from a token.
func stripMoveNumber(tok string) string {
	j := 0
	for j < len(tok) && tok[j] >= '0' && tok[j] <= '9' {
		j++
	}
	if j == 0 || j == len(tok) || tok[j] != '.' {
		return tok
	}
	for j < len(tok) && tok[j] == '.' {
		j++
	}
	return tok[j:]
}

func splitSuffix(san string) (string, []int) {
	end := len(san)
	for end > 0 && (san[end-1] == '!' || san[end-1] == '?') {
		end--
	}
	if end == len(san) {
		return san, nil
	}
	if nag, ok := suffixGlyphs[san[end:]]; ok {
		return san[:end], []int{nag}
	}
	return san[:end], nil
}
