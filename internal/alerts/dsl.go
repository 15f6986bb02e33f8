// internal/alerts/dsl.go
// Package alerts implements a small expression language for evaluating
// conditions over a snapshot of broker/gateway counters: waiting slots,
// active pairs, auth failure rate, upload error rate, and similar gauges.
// The grammar supports boolean composition (&&, ||) over arithmetic
// comparisons, so a single rule can combine several counters.
//
// Grammar (EBNF):
//
//	Expr   = Or ;
//	Or     = And { "||" And } ;
//	And    = Cmp { "&&" Cmp } ;
//	Cmp    = Add [ ( '>' | '>=' | '<' | '<=' | '==' | '!=' ) Add ] ;
//	Add    = Mul { ('+'|'-') Mul } ;
//	Mul    = Unary { ('*'|'/') Unary } ;
//	Unary  = ( '!' | '-' ) Unary | Primary ;
//	Primary= Number | Ident | '(' Expr ')' ;
//
// Example:
//
//	waiting_slots > 500
//	auth_failures_total > 20 && active_pairs < 5
package alerts

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Predicate evaluates to true when the alert condition is met.
type Predicate func(sample map[string]float64) bool

var (
    ErrSyntax    = errors.New("alerts: syntax error")
    ErrNodeLimit = errors.New("alerts: expression too deep")
)

// maxNodes bounds AST size so a malicious or malformed rule string cannot
// exhaust memory during Compile.
const maxNodes = 256

// Compile parses expr and returns a Predicate or error. Callers should cache
// the result for repeated evaluation against successive snapshots.
func Compile(expr string) (Predicate, error) {
    p := &parser{s: strings.TrimSpace(expr)}
    if p.s == "" {
        return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
    }
    n, err := p.parseExpr()
    if err != nil {
        return nil, err
    }
    p.skipWS()
    if p.pos < len(p.s) {
        return nil, fmt.Errorf("%w at %d: unexpected %q", ErrSyntax, p.pos, p.s[p.pos:])
    }
    if p.nodeCount > maxNodes {
        return nil, ErrNodeLimit
    }
    return func(m map[string]float64) bool { return n.eval(m) != 0 }, nil
}

type parser struct {
    s         string
    pos       int
    nodeCount int
}

func (p *parser) skipWS() {
    for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
        p.pos++
    }
}

func (p *parser) match(tok string) bool {
    p.skipWS()
    if strings.HasPrefix(p.s[p.pos:], tok) {
        p.pos += len(tok)
        return true
    }
    return false
}

type node interface{ eval(map[string]float64) float64 }

type binary struct {
    op       string
    lhs, rhs node
}

type unary struct {
    op    string
    child node
}

type lit struct{ v float64 }
type ident struct{ name string }

func (b *binary) eval(m map[string]float64) float64 {
    l := b.lhs.eval(m)
    switch b.op {
    case "+":
        return l + b.rhs.eval(m)
    case "-":
        return l - b.rhs.eval(m)
    case "*":
        return l * b.rhs.eval(m)
    case "/":
        r := b.rhs.eval(m)
        if r == 0 {
            return 0
        }
        return l / r
    case "&&":
        if l != 0 && b.rhs.eval(m) != 0 {
            return 1
        }
        return 0
    case "||":
        if l != 0 || b.rhs.eval(m) != 0 {
            return 1
        }
        return 0
    case "==":
        if l == b.rhs.eval(m) {
            return 1
        }
        return 0
    case "!=":
        if l != b.rhs.eval(m) {
            return 1
        }
        return 0
    case ">":
        if l > b.rhs.eval(m) {
            return 1
        }
        return 0
    case ">=":
        if l >= b.rhs.eval(m) {
            return 1
        }
        return 0
    case "<":
        if l < b.rhs.eval(m) {
            return 1
        }
        return 0
    case "<=":
        if l <= b.rhs.eval(m) {
            return 1
        }
        return 0
    default:
        return 0
    }
}

func (u *unary) eval(m map[string]float64) float64 {
    v := u.child.eval(m)
    switch u.op {
    case "-":
        return -v
    case "!":
        if v == 0 {
            return 1
        }
        return 0
    default:
        return v
    }
}

func (l *lit) eval(map[string]float64) float64     { return l.v }
func (id *ident) eval(m map[string]float64) float64 { return m[id.name] }

func (p *parser) newNode(n node) node {
    p.nodeCount++
    return n
}

func (p *parser) parseExpr() (node, error) { return p.parseOr() }

func (p *parser) parseOr() (node, error) {
    left, err := p.parseAnd()
    if err != nil {
        return nil, err
    }
    for p.match("||") {
        right, err := p.parseAnd()
        if err != nil {
            return nil, err
        }
        left = p.newNode(&binary{"||", left, right})
    }
    return left, nil
}

func (p *parser) parseAnd() (node, error) {
    left, err := p.parseCmp()
    if err != nil {
        return nil, err
    }
    for p.match("&&") {
        right, err := p.parseCmp()
        if err != nil {
            return nil, err
        }
        left = p.newNode(&binary{"&&", left, right})
    }
    return left, nil
}

var cmpOps = []string{"<=", ">=", "!=", "==", "<", ">"}

func (p *parser) parseCmp() (node, error) {
    left, err := p.parseAdd()
    if err != nil {
        return nil, err
    }
    for _, op := range cmpOps {
        if p.match(op) {
            right, err := p.parseAdd()
            if err != nil {
                return nil, err
            }
            return p.newNode(&binary{op, left, right}), nil
        }
    }
    return left, nil
}

func (p *parser) parseAdd() (node, error) {
    left, err := p.parseMul()
    if err != nil {
        return nil, err
    }
    for {
        if p.match("+") {
            right, err := p.parseMul()
            if err != nil {
                return nil, err
            }
            left = p.newNode(&binary{"+", left, right})
        } else if p.match("-") {
            right, err := p.parseMul()
            if err != nil {
                return nil, err
            }
            left = p.newNode(&binary{"-", left, right})
        } else {
            return left, nil
        }
    }
}

func (p *parser) parseMul() (node, error) {
    left, err := p.parseUnary()
    if err != nil {
        return nil, err
    }
    for {
        if p.match("*") {
            right, err := p.parseUnary()
            if err != nil {
                return nil, err
            }
            left = p.newNode(&binary{"*", left, right})
        } else if p.match("/") {
            right, err := p.parseUnary()
            if err != nil {
                return nil, err
            }
            left = p.newNode(&binary{"/", left, right})
        } else {
            return left, nil
        }
    }
}

func (p *parser) parseUnary() (node, error) {
    if p.match("!") {
        child, err := p.parseUnary()
        if err != nil {
            return nil, err
        }
        return p.newNode(&unary{"!", child}), nil
    }
    if p.match("-") {
        child, err := p.parseUnary()
        if err != nil {
            return nil, err
        }
        return p.newNode(&unary{"-", child}), nil
    }
    return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
    p.skipWS()
    if p.match("(") {
        expr, err := p.parseExpr()
        if err != nil {
            return nil, err
        }
        if !p.match(")") {
            return nil, ErrSyntax
        }
        return expr, nil
    }
    start := p.pos
    for p.pos < len(p.s) && (p.s[p.pos] >= '0' && p.s[p.pos] <= '9' || p.s[p.pos] == '.') {
        p.pos++
    }
    if p.pos > start {
        v, err := strconv.ParseFloat(p.s[start:p.pos], 64)
        if err != nil {
            return nil, ErrSyntax
        }
        return p.newNode(&lit{v}), nil
    }
    start = p.pos
    for p.pos < len(p.s) && (isAlphaNum(p.s[p.pos]) || p.s[p.pos] == '_') {
        p.pos++
    }
    if p.pos == start {
        return nil, ErrSyntax
    }
    return p.newNode(&ident{name: p.s[start:p.pos]}), nil
}

func isAlphaNum(b byte) bool {
    return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
