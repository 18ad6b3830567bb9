// Package applicability evaluates the applies_if conditions attached to
// size-tiered control variants.
//
// The language is deliberately tiny: numeric literals, a fixed set of
// variables, comparisons (chainable, as in a < b < c), not/and/or (also
// spelled !, &&, ||), unary minus and parentheses. There are no calls,
// attributes, strings or assignments.
package applicability

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("condition syntax error")
	ErrUnknownVariable = errors.New("unknown variable")
)

// EmployeeCount is the only variable tier conditions may reference.
const EmployeeCount = "employee_count"

const (
	maxSourceLen = 1024
	maxDepth     = 64
)

// Condition is a parsed, reusable applies_if expression.
type Condition struct {
	src  string
	root node
}

// Parse compiles src, accepting only the employee_count variable.
func Parse(src string) (*Condition, error) {
	return ParseWith(src, EmployeeCount)
}

// ParseWith compiles src, accepting only the named variables.
func ParseWith(src string, variables ...string) (*Condition, error) {
	if len(src) > maxSourceLen {
		return nil, fmt.Errorf("%w: condition longer than %d bytes", ErrSyntax, maxSourceLen)
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(variables))
	for _, v := range variables {
		allowed[v] = true
	}
	p := &parser{toks: toks, allowed: allowed}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Condition{src: src, root: root}, nil
}

func (c *Condition) String() string { return c.src }

// Eval reports whether the condition holds for vars.
func (c *Condition) Eval(vars map[string]float64) (bool, error) {
	v, err := c.root.eval(vars)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// Evaluate parses and evaluates src in one step.
func Evaluate(src string, vars map[string]float64) (bool, error) {
	c, err := Parse(src)
	if err != nil {
		return false, err
	}
	return c.Eval(vars)
}

// ForEmployees evaluates src with employee_count bound to n.
func ForEmployees(src string, n int) (bool, error) {
	return Evaluate(src, map[string]float64{EmployeeCount: float64(n)})
}
