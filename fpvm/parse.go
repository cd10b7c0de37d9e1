package fpvm

import (
	"fmt"
	"strconv"
	"strings"
)

type nodeKind uint8

const (
	nodeConst nodeKind = iota
	nodeSym
	nodeCall
)

// node is an expression tree node. Operators are calls named "+", "-",
// "*", "/" and "neg".
type node struct {
	kind  nodeKind
	value float32
	name  string
	args  []*node
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a malformed expression.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at column %d in %q: %s", e.Pos+1, e.Expr, e.Msg)
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && isDigit(src[j]) {
					i = j
					for i < len(src) && isDigit(src[i]) {
						i++
					}
				}
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case strings.IndexByte("+-*/(),", c) >= 0:
			toks = append(toks, token{tokPunct, src[i : i+1], i})
			i++
		default:
			return nil, &SyntaxError{Expr: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// IsIdent reports whether s is a valid variable name.
func IsIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return false
		}
	}
	return true
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func parseExpr(src string) (*node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(punct string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == punct {
		p.pos++
		return true
	}
	return false
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expr() (*node, error) {
	lhs, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.accept("+"):
			op = "+"
		case p.accept("-"):
			op = "-"
		default:
			return lhs, nil
		}
		rhs, err := p.term()
		if err != nil {
			return nil, err
		}
		lhs = &node{kind: nodeCall, name: op, args: []*node{lhs, rhs}}
	}
}

func (p *parser) term() (*node, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		default:
			return lhs, nil
		}
		rhs, err := p.unary()
		if err != nil {
			return nil, err
		}
		lhs = &node{kind: nodeCall, name: op, args: []*node{lhs, rhs}}
	}
}

func (p *parser) unary() (*node, error) {
	switch {
	case p.accept("-"):
		n, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeCall, name: "neg", args: []*node{n}}, nil
	case p.accept("+"):
		return p.unary()
	}
	return p.primary()
}

func (p *parser) primary() (*node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 32)
		if err != nil {
			return nil, p.errorf(t, "bad number %q", t.text)
		}
		return &node{kind: nodeConst, value: float32(v)}, nil
	case tokIdent:
		if !p.accept("(") {
			return &node{kind: nodeSym, name: t.text}, nil
		}
		call := &node{kind: nodeCall, name: strings.ToLower(t.text)}
		if p.accept(")") {
			return call, nil
		}
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			call.args = append(call.args, arg)
			if p.accept(")") {
				return call, nil
			}
			if !p.accept(",") {
				return nil, p.errorf(p.peek(), "expected ',' or ')'")
			}
		}
	case tokPunct:
		if t.text == "(" {
			n, err := p.expr()
			if err != nil {
				return nil, err
			}
			if !p.accept(")") {
				return nil, p.errorf(p.peek(), "expected ')'")
			}
			return n, nil
		}
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}
