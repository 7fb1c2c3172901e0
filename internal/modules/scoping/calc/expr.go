package calc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Calculation rules are small expressions written by the model, for example
// "user_count / 25 || 1" or "complexity === 'high' ? 1.5 : 1.0". They are
// parsed into a tree and evaluated against the response map only; nothing
// outside the map is reachable.

var (
	ErrSyntax            = errors.New("calc: syntax error")
	ErrUnknownIdentifier = errors.New("calc: unknown identifier")
	ErrNotNumeric        = errors.New("calc: expression is not numeric")
)

const (
	maxExprLen   = 512
	maxExprDepth = 64
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var operators = []string{"===", "!==", "==", "!=", "<=", ">=", "||", "&&", "<", ">", "+", "-", "*", "/", "%", "!", "?", ":", "(", ")"}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
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
			n, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, src[start:i], start)
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: n, pos: start})
		case c == '\'' || c == '"':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					b.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == c {
					closed = true
					i++
					break
				}
				b.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
			}
			toks = append(toks, token{kind: tokString, text: b.String(), pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, string(c), i)
			}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) }

// node is an evaluable expression tree.
type node interface {
	eval(env map[string]any) (any, error)
}

type literal struct{ v any }

type ident struct{ name string }

type unary struct {
	op string
	x  node
}

type binary struct {
	op   string
	l, r node
}

type ternary struct {
	cond, then, els node
}

func (n literal) eval(map[string]any) (any, error) { return n.v, nil }

func (n ident) eval(env map[string]any) (any, error) {
	v, ok := lookup(env, n.name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, n.name)
	}
	return scalar(v), nil
}

func (n unary) eval(env map[string]any) (any, error) {
	v, err := n.x.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		return !truthy(v), nil
	case "-":
		return -toNumber(v), nil
	default:
		return toNumber(v), nil
	}
}

func (n binary) eval(env map[string]any) (any, error) {
	l, err := n.l.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "||":
		if truthy(l) {
			return l, nil
		}
		return n.r.eval(env)
	case "&&":
		if !truthy(l) {
			return l, nil
		}
		return n.r.eval(env)
	}
	r, err := n.r.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "===":
		return strictEqual(l, r), nil
	case "!==":
		return !strictEqual(l, r), nil
	case "==":
		return looseEqual(l, r), nil
	case "!=":
		return !looseEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r), nil
	case "+":
		ls, lok := l.(string)
		rs, rok := r.(string)
		if lok || rok {
			if !lok {
				ls = toString(l)
			}
			if !rok {
				rs = toString(r)
			}
			return ls + rs, nil
		}
		return toNumber(l) + toNumber(r), nil
	case "-":
		return toNumber(l) - toNumber(r), nil
	case "*":
		return toNumber(l) * toNumber(r), nil
	case "/":
		return toNumber(l) / toNumber(r), nil
	case "%":
		return math.Mod(toNumber(l), toNumber(r)), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrSyntax, n.op)
}

func (n ternary) eval(env map[string]any) (any, error) {
	c, err := n.cond.eval(env)
	if err != nil {
		return nil, err
	}
	if truthy(c) {
		return n.then.eval(env)
	}
	return n.els.eval(env)
}

type parser struct {
	toks  []token
	pos   int
	depth int
	ids   []string
}

func parse(src string) (node, []string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if len(src) > maxExprLen {
		return nil, nil, fmt.Errorf("%w: expression longer than %d bytes", ErrSyntax, maxExprLen)
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	}
	return n, p.ids, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) expr() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxExprDepth {
		return nil, fmt.Errorf("%w: expression nested too deeply", ErrSyntax)
	}
	return p.ternary()
}

func (p *parser) ternary() (node, error) {
	cond, err := p.binaryLevel(0)
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept("?"); !ok {
		return cond, nil
	}
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(":"); !ok {
		return nil, fmt.Errorf("%w: expected ':' at %d", ErrSyntax, p.peek().pos)
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return ternary{cond: cond, then: then, els: els}, nil
}

// precedence from loosest to tightest.
var precedence = [][]string{
	{"||"},
	{"&&"},
	{"===", "!==", "==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) binaryLevel(level int) (node, error) {
	if level == len(precedence) {
		return p.unary()
	}
	l, err := p.binaryLevel(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.accept(precedence[level]...)
		if !ok {
			return l, nil
		}
		r, err := p.binaryLevel(level + 1)
		if err != nil {
			return nil, err
		}
		l = binary{op: op, l: l, r: r}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.accept("!", "-", "+"); ok {
		p.depth++
		defer func() { p.depth-- }()
		if p.depth > maxExprDepth {
			return nil, fmt.Errorf("%w: expression nested too deeply", ErrSyntax)
		}
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unary{op: op, x: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return literal{t.num}, nil
	case tokString:
		return literal{t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return literal{true}, nil
		case "false":
			return literal{false}, nil
		case "null", "undefined":
			return literal{nil}, nil
		}
		p.ids = appendUnique(p.ids, t.text)
		return ident{t.text}, nil
	case tokOp:
		if t.text == "(" {
			n, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, ok := p.accept(")"); !ok {
				return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, p.peek().pos)
			}
			return n, nil
		}
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, t.text, t.pos)
	default:
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
}

func appendUnique(xs []string, s string) []string {
	for _, x := range xs {
		if x == s {
			return xs
		}
	}
	return append(xs, s)
}

// Eval evaluates expr against env. Identifiers resolve only to env keys.
func Eval(expr string, env map[string]any) (any, error) {
	n, _, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return n.eval(env)
}

// EvalNumber evaluates expr and converts the result to a finite number.
func EvalNumber(expr string, env map[string]any) (float64, error) {
	v, err := Eval(expr, env)
	if err != nil {
		return 0, err
	}
	f := toNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q gave %v", ErrNotNumeric, expr, v)
	}
	return f, nil
}

// EvalBool evaluates expr for truthiness.
func EvalBool(expr string, env map[string]any) (bool, error) {
	v, err := Eval(expr, env)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// Identifiers lists the variables expr references, in first-use order.
// Unparseable expressions yield nil.
func Identifiers(expr string) []string {
	_, ids, err := parse(expr)
	if err != nil {
		return nil
	}
	return ids
}

var fallbackRe = regexp.MustCompile(`\|\|\s*(-?\d+(?:\.\d+)?)`)

// Fallback is the value used when expr cannot be evaluated: the last
// numeric literal after a "||", else 1.
func Fallback(expr string) float64 {
	m := fallbackRe.FindAllStringSubmatch(expr, -1)
	if len(m) == 0 {
		return 1
	}
	f, err := strconv.ParseFloat(m[len(m)-1][1], 64)
	if err != nil {
		return 1
	}
	return f
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

func toNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func strictEqual(l, r any) bool {
	switch lx := l.(type) {
	case nil:
		return r == nil
	case bool:
		rx, ok := r.(bool)
		return ok && lx == rx
	case float64:
		rx, ok := r.(float64)
		return ok && lx == rx
	case string:
		rx, ok := r.(string)
		return ok && lx == rx
	}
	return false
}

func looseEqual(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return ls == rs
		}
	}
	return toNumber(l) == toNumber(r)
}

func compare(op string, l, r any) bool {
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case ">":
			return ls > rs
		default:
			return ls >= rs
		}
	}
	a, b := toNumber(l), toNumber(r)
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	default:
		return a >= b
	}
}
