package applicability

import "fmt"

// value is either a number or a boolean. and/or yield the operand that
// decided the result, so both kinds flow through comparisons.
type value struct {
	num    float64
	isBool bool
}

func boolValue(b bool) value {
	if b {
		return value{num: 1, isBool: true}
	}
	return value{num: 0, isBool: true}
}

func (v value) truthy() bool { return v.num != 0 }

type node interface {
	eval(vars map[string]float64) (value, error)
}

type numberNode struct{ v value }

func (n numberNode) eval(map[string]float64) (value, error) { return n.v, nil }

type varNode struct{ name string }

func (n varNode) eval(vars map[string]float64) (value, error) {
	v, ok := vars[n.name]
	if !ok {
		return value{}, fmt.Errorf("%w: %s", ErrUnknownVariable, n.name)
	}
	return value{num: v}, nil
}

type negNode struct{ x node }

func (n negNode) eval(vars map[string]float64) (value, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return value{}, err
	}
	return value{num: -v.num}, nil
}

type notNode struct{ x node }

func (n notNode) eval(vars map[string]float64) (value, error) {
	v, err := n.x.eval(vars)
	if err != nil {
		return value{}, err
	}
	return boolValue(!v.truthy()), nil
}

type logicNode struct {
	and   bool
	terms []node
}

func (n logicNode) eval(vars map[string]float64) (value, error) {
	var v value
	for _, t := range n.terms {
		var err error
		v, err = t.eval(vars)
		if err != nil {
			return value{}, err
		}
		if v.truthy() != n.and {
			return v, nil
		}
	}
	return v, nil
}

type compareNode struct {
	operands []node
	ops      []string
}

func (n compareNode) eval(vars map[string]float64) (value, error) {
	left, err := n.operands[0].eval(vars)
	if err != nil {
		return value{}, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(vars)
		if err != nil {
			return value{}, err
		}
		if !compare(op, left.num, right.num) {
			return boolValue(false), nil
		}
		left = right
	}
	return boolValue(true), nil
}

func compare(op string, a, b float64) bool {
	switch op {
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

type parser struct {
	toks    []token
	pos     int
	depth   int
	allowed map[string]bool
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parse() (node, error) {
	if p.peek().kind == tokEOF {
		return nil, syntaxError(0, "empty condition")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, "unexpected %q", t.text)
	}
	return n, nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return syntaxError(p.peek().pos, "expression nested too deeply")
	}
	return nil
}

func (p *parser) parseOr() (node, error) {
	return p.parseLogic(tokOr, p.parseAnd)
}

func (p *parser) parseAnd() (node, error) {
	return p.parseLogic(tokAnd, p.parseNot)
}

func (p *parser) parseLogic(kind tokenKind, operand func() (node, error)) (node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	terms := []node{first}
	for p.peek().kind == kind {
		p.next()
		t, err := operand()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return logicNode{and: kind == tokAnd, terms: terms}, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind != tokNot {
		return p.parseComparison()
	}
	p.next()
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return notNode{x: x}, nil
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	cmp := compareNode{operands: []node{first}}
	for p.peek().kind == tokCompare {
		cmp.ops = append(cmp.ops, p.next().text)
		operand, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		cmp.operands = append(cmp.operands, operand)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) parseOperand() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode{v: value{num: t.num}}, nil
	case tokBool:
		return numberNode{v: boolValue(t.text == "true")}, nil
	case tokIdent:
		if !p.allowed[t.text] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, t.text)
		}
		if p.peek().kind == tokLParen {
			return nil, syntaxError(p.peek().pos, "calls are not allowed")
		}
		return varNode{name: t.text}, nil
	case tokMinus:
		x, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	case tokLParen:
		x, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, syntaxError(closing.pos, "expected )")
		}
		return x, nil
	case tokEOF:
		return nil, syntaxError(t.pos, "unexpected end of condition")
	default:
		return nil, syntaxError(t.pos, "unexpected %q", t.text)
	}
}
