// Package query parses user search input into the expression tree the
// index translates to FTS5 MATCH syntax.
//
// One grammar serves every caller: free terms, "quoted phrases",
// field:value scopes, implicit AND, explicit AND/OR, and parentheses.
// Boolean operators bind left-to-right with equal precedence.
package query

import (
	"fmt"
	"strings"

	"github.com/starford/dagaz/internal/apperr"
)

// Fields accepted in field:value scopes, mapped to index columns.
var fieldColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"content":     "content",
	"tag":         "tags",
	"tags":        "tags",
	"priority":    "priority",
	"status":      "status",
	"type":        "type",
}

// textColumns is the column set an unscoped term searches. Scalar
// columns (priority, status, type) match only when explicitly scoped,
// so a free word like "open" never matches every open item.
const textColumns = "{title description content tags}"

// Expr is a node of the parsed query tree: either a Term leaf or a
// Binary operator node.
type Expr interface {
	write(sb *strings.Builder, star *Term)
}

// Term is a leaf: one word or quoted phrase, optionally field-scoped.
type Term struct {
	Column string // index column, empty for unscoped terms
	Value  string // sanitized text, never empty
}

// Binary joins two subtrees with AND or OR.
type Binary struct {
	Op    string // "AND" or "OR"
	Left  Expr
	Right Expr
}

// Parse turns raw input into an expression tree. Empty or whitespace-only
// input, unknown field names, unbalanced parentheses, and dangling
// operators all surface apperr.ErrInvalidQuery.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("query: empty query: %w", apperr.ErrInvalidQuery)
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("query: unexpected %q: %w", p.toks[p.pos].text, apperr.ErrInvalidQuery)
	}
	return expr, nil
}

// Match serializes the tree into FTS5 MATCH syntax. Every leaf value is
// emitted as a quoted string (embedded quotes are doubled), field scopes
// become column filters, unscoped leaves carry the text column set, and
// every boolean node is parenthesized so left-to-right precedence
// survives the round trip.
func Match(e Expr) string {
	var sb strings.Builder
	e.write(&sb, nil)
	return sb.String()
}

// PrefixMatch serializes the tree for suggestion queries: identical to
// Match except that the single rightmost leaf gets a trailing prefix
// star, so the last word completes while earlier terms stay exact.
func PrefixMatch(e Expr) string {
	var sb strings.Builder
	e.write(&sb, rightmost(e))
	return sb.String()
}

// Terms returns the leaf values in left-to-right order. The non-FTS5
// build uses them for LIKE matching.
func Terms(e Expr) []string {
	var out []string
	collect(e, &out)
	return out
}

func collect(e Expr, out *[]string) {
	switch n := e.(type) {
	case *Term:
		*out = append(*out, n.Value)
	case *Binary:
		collect(n.Left, out)
		collect(n.Right, out)
	}
}

func rightmost(e Expr) *Term {
	for {
		switch n := e.(type) {
		case *Term:
			return n
		case *Binary:
			e = n.Right
		}
	}
}

func (t *Term) write(sb *strings.Builder, star *Term) {
	if t.Column != "" {
		sb.WriteString(t.Column)
	} else {
		sb.WriteString(textColumns)
	}
	sb.WriteByte(':')
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(t.Value, `"`, `""`))
	sb.WriteByte('"')
	if t == star {
		sb.WriteByte('*')
	}
}

func (b *Binary) write(sb *strings.Builder, star *Term) {
	sb.WriteByte('(')
	b.Left.write(sb, star)
	sb.WriteByte(' ')
	sb.WriteString(b.Op)
	sb.WriteByte(' ')
	b.Right.write(sb, star)
	sb.WriteByte(')')
}

// --- lexer ---

type tokKind int

const (
	tokTerm tokKind = iota
	tokPhrase
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind  tokKind
	text  string
	field string // resolved column for field-scoped terms/phrases
}

func lex(input string) ([]token, error) {
	var toks []token
	rs := []rune(input)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '"':
			text, next, err := lexPhrase(rs, i)
			if err != nil {
				return nil, err
			}
			if text != "" {
				toks = append(toks, token{kind: tokPhrase, text: text})
			}
			i = next
		default:
			word := lexWord(rs, &i)
			if field, value, ok := strings.Cut(word, ":"); ok && field != "" {
				col, known := fieldColumns[strings.ToLower(field)]
				if !known {
					return nil, fmt.Errorf("query: unknown field %q: %w", field, apperr.ErrInvalidQuery)
				}
				// field:"quoted phrase" keeps the quotes attached to
				// the word; a bare field: takes the next phrase token.
				if value == "" && i < len(rs) && rs[i] == '"' {
					text, next, err := lexPhrase(rs, i)
					if err != nil {
						return nil, err
					}
					i = next
					value = text
				}
				value = sanitize(value)
				if value == "" {
					return nil, fmt.Errorf("query: empty value for field %q: %w", field, apperr.ErrInvalidQuery)
				}
				toks = append(toks, token{kind: tokTerm, text: value, field: col})
				continue
			}
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, token{kind: tokAnd, text: word})
			case "OR":
				toks = append(toks, token{kind: tokOr, text: word})
			default:
				if w := sanitize(word); w != "" {
					toks = append(toks, token{kind: tokTerm, text: w})
				}
			}
		}
	}
	return toks, nil
}

func lexPhrase(rs []rune, start int) (text string, next int, err error) {
	i := start + 1
	var sb strings.Builder
	for i < len(rs) {
		if rs[i] == '"' {
			return strings.TrimSpace(sb.String()), i + 1, nil
		}
		sb.WriteRune(rs[i])
		i++
	}
	return "", 0, fmt.Errorf("query: unterminated phrase: %w", apperr.ErrInvalidQuery)
}

func lexWord(rs []rune, i *int) string {
	start := *i
	for *i < len(rs) {
		switch rs[*i] {
		case ' ', '\t', '\n', '\r', '(', ')':
			return string(rs[start:*i])
		case '"':
			// A quote glued to a word (field:"phrase") ends the word;
			// the phrase lexer takes over from here.
			return string(rs[start:*i])
		}
		*i++
	}
	return string(rs[start:*i])
}

// sanitize strips quote characters from a term so stray punctuation
// cannot break the native MATCH syntax.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `'`, "")
	return strings.TrimSpace(s)
}

// --- parser ---

type parser struct {
	toks []token
	pos  int
}

// parseExpr parses operand { (AND|OR|implicit AND) operand } with
// left-to-right associativity and equal operator precedence.
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		op := ""
		switch tok.kind {
		case tokAnd:
			op = "AND"
			p.pos++
		case tokOr:
			op = "OR"
			p.pos++
		case tokRParen:
			return left, nil
		default:
			op = "AND" // implicit
		}
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseOperand() (Expr, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("query: dangling operator: %w", apperr.ErrInvalidQuery)
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokLParen:
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.toks) || p.toks[p.pos].kind != tokRParen {
			return nil, fmt.Errorf("query: missing closing parenthesis: %w", apperr.ErrInvalidQuery)
		}
		p.pos++
		return inner, nil
	case tokTerm, tokPhrase:
		p.pos++
		return &Term{Column: tok.field, Value: tok.text}, nil
	default:
		return nil, fmt.Errorf("query: unexpected %q: %w", tok.text, apperr.ErrInvalidQuery)
	}
}
