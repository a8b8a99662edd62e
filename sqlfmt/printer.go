package sqlfmt

import "strings"

// frame is an open parenthesis. Block frames hold a subquery and are laid
// out like a statement; inline frames (function calls, lists) stay on one
// line.
type frame struct {
	block bool
	base  int
	body  int
}

type printer struct {
	indent string
	b      strings.Builder

	base  int // indentation of clause keywords
	body  int // indentation of clause bodies
	stack []frame

	pending    int // indentation of the pending line break, -1 when none
	blank      bool
	forceSpace bool
	lineEmpty  bool
	lineLevel  int

	atStart bool
	between bool
}

func (p *printer) String() string {
	return p.b.String()
}

// clauses maps the first word of a clause to whether the clause has a body
// that is indented below it.
var clauses = map[string]bool{
	"SELECT":    true,
	"FROM":      true,
	"WHERE":     true,
	"HAVING":    true,
	"LIMIT":     true,
	"OFFSET":    true,
	"VALUES":    true,
	"SET":       true,
	"RETURNING": true,
	"UPDATE":    true,
	"INSERT":    true,
	"DELETE":    true,
	"JOIN":      true,
	"WINDOW":    true,
	"UNION":     false,
	"INTERSECT": false,
	"EXCEPT":    false,
}

// lockingPrefixes are the keywords after which UPDATE continues the current
// clause instead of starting a statement.
var lockingPrefixes = map[string]bool{
	"DO":  true,
	"FOR": true,
	"KEY": true,
}

var joinPrefixes = map[string]bool{
	"LEFT":    true,
	"RIGHT":   true,
	"FULL":    true,
	"INNER":   true,
	"CROSS":   true,
	"NATURAL": true,
}

// token lays out toks[i] and returns how many following tokens it consumed.
func (p *printer) token(toks []token, i int, opts Options) int {
	t := toks[i]
	text := t.text
	if opts.Uppercase && t.keyword {
		text = t.upper
	}
	gap := i > 0 && t.gap

	if t.keyword {
		if n, body, ok := p.clause(toks, i); ok {
			words := make([]string, 0, n+1)
			for _, ct := range toks[i : i+n+1] {
				w := ct.text
				if opts.Uppercase {
					w = ct.upper
				}
				words = append(words, w)
			}
			p.pending = p.base
			p.emit(strings.Join(words, " "), true)
			if body {
				p.body = p.base + 1
				p.pending = p.body
			} else {
				p.body = p.base
			}
			p.atStart = false
			return n
		}
	}

	switch {
	case t.comment:
		p.emit(text, gap)
		if strings.HasPrefix(text, "--") {
			p.pending = p.lineLevel
		}

	case text == "(":
		p.emit(text, gap)
		if i+1 < len(toks) && (toks[i+1].upper == "SELECT" || toks[i+1].upper == "WITH") {
			p.stack = append(p.stack, frame{block: true, base: p.base, body: p.body})
			p.base = p.body + 1
			p.body = p.base
			p.atStart = true
			return 0
		}
		p.stack = append(p.stack, frame{})
		p.forceSpace = false
		p.suppressSpace()

	case text == ")":
		p.forceSpace = false
		if n := len(p.stack); n > 0 {
			f := p.stack[n-1]
			p.stack = p.stack[:n-1]
			if f.block {
				p.base, p.body = f.base, f.body
				p.pending = f.body
			}
		}
		p.emit(text, false)

	case text == ",":
		p.emit(text, false)
		if p.inBlock() {
			p.pending = p.body
		} else {
			p.forceSpace = true
		}

	case text == ";":
		p.emit(text, false)
		p.stack = p.stack[:0]
		p.base, p.body = 0, 0
		p.pending = 0
		p.blank = true
		p.between = false
		p.atStart = true
		return 0

	case t.keyword && t.upper == "BETWEEN":
		p.between = true
		p.emit(text, gap)

	case t.keyword && (t.upper == "AND" || t.upper == "OR"):
		if t.upper == "AND" && p.between {
			p.between = false
			p.emit(text, gap)
			break
		}
		if p.inBlock() {
			p.pending = p.body
		}
		p.emit(text, true)

	default:
		p.emit(text, gap)
	}

	p.atStart = false
	return 0
}

// clause reports whether toks[i] starts a clause, how many following tokens
// belong to its keyword, and whether the clause has an indented body.
func (p *printer) clause(toks []token, i int) (int, bool, bool) {
	if !p.inBlock() {
		return 0, false, false
	}

	next := func(j int) string {
		if j < len(toks) && toks[j].keyword {
			return toks[j].upper
		}
		return ""
	}

	word := toks[i].upper
	switch {
	case word == "UPDATE" && i > 0 && lockingPrefixes[toks[i-1].upper]:
		// ON CONFLICT ... DO UPDATE, FOR [NO KEY] UPDATE
		return 0, false, false
	case word == "WITH":
		return 0, true, p.atStart
	case word == "GROUP" || word == "ORDER":
		if next(i+1) == "BY" {
			return 1, true, true
		}
	case word == "INSERT" && next(i+1) == "INTO":
		return 1, true, true
	case word == "DELETE" && next(i+1) == "FROM":
		return 1, true, true
	case word == "ON" && next(i+1) == "CONFLICT":
		return 1, false, true
	case word == "UNION" || word == "INTERSECT" || word == "EXCEPT":
		if n := next(i + 1); n == "ALL" || n == "DISTINCT" {
			return 1, false, true
		}
		return 0, false, true
	case joinPrefixes[word]:
		j := i + 1
		if next(j) == "OUTER" {
			j++
		}
		if next(j) == "JOIN" {
			return j - i, true, true
		}
		return 0, false, false
	}

	body, ok := clauses[word]
	return 0, body, ok
}

func (p *printer) inBlock() bool {
	return len(p.stack) == 0 || p.stack[len(p.stack)-1].block
}

func (p *printer) suppressSpace() {
	p.pending = -2
}

func (p *printer) emit(text string, space bool) {
	if p.b.Len() > 0 {
		switch {
		case p.pending >= 0:
			if p.blank {
				p.b.WriteByte('\n')
			}
			p.newline(p.pending)
		case p.pending == -2:
		case p.lineEmpty:
		case space || p.forceSpace:
			p.b.WriteByte(' ')
		}
	}

	p.pending = -1
	p.blank = false
	p.forceSpace = false
	p.lineEmpty = false
	p.b.WriteString(text)
}

func (p *printer) newline(level int) {
	p.b.WriteByte('\n')
	p.b.WriteString(strings.Repeat(p.indent, level))
	p.lineLevel = level
	p.lineEmpty = true
}
