// Package filter implements boolean filter expressions over filterable
// attributes: a parser producing an expression tree, depth protection, and
// an evaluator over flattened document fields.
package filter

import (
	"sort"

	"github.com/lanternsearch/lantern/internal/document"
)

// Op enumerates condition operators.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpTo
	OpExists
	OpNotExists
	OpIsNull
	OpIsNotNull
	OpIsEmpty
	OpIsNotEmpty
	OpIn
	OpNotIn
	OpContains
	OpNotContains
	OpStartsWith
	OpNotStartsWith
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNeq:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpTo:
		return "TO"
	case OpExists:
		return "EXISTS"
	case OpNotExists:
		return "NOT EXISTS"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpIsEmpty:
		return "IS EMPTY"
	case OpIsNotEmpty:
		return "IS NOT EMPTY"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpContains:
		return "CONTAINS"
	case OpNotContains:
		return "NOT CONTAINS"
	case OpStartsWith:
		return "STARTS WITH"
	case OpNotStartsWith:
		return "NOT STARTS WITH"
	default:
		return "?"
	}
}

// Node is a filter expression tree node.
type Node interface {
	depth() int
	attrs(collect map[string]struct{})
}

// And matches when every child matches. AND binds tighter than OR.
type And struct {
	Children []Node
}

// Or matches when any child matches.
type Or struct {
	Children []Node
}

// Not inverts its child.
type Not struct {
	Child Node
}

// Condition is a leaf: attribute OP operand(s).
type Condition struct {
	Attr string
	Op   Op
	// Values holds the operands: one for comparisons, two for TO ranges,
	// any number for IN, none for EXISTS/IS NULL/IS EMPTY.
	Values []document.Value
}

func (n *And) depth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (n *Or) depth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.depth(); d > max {
			max = d
		}
	}
	return max + 1
}

func (n *Not) depth() int       { return n.Child.depth() + 1 }
func (n *Condition) depth() int { return 1 }

func (n *And) attrs(collect map[string]struct{}) {
	for _, c := range n.Children {
		c.attrs(collect)
	}
}

func (n *Or) attrs(collect map[string]struct{}) {
	for _, c := range n.Children {
		c.attrs(collect)
	}
}

func (n *Not) attrs(collect map[string]struct{})       { n.Child.attrs(collect) }
func (n *Condition) attrs(collect map[string]struct{}) { collect[n.Attr] = struct{}{} }

// Depth returns the expression's nesting depth.
func Depth(n Node) int {
	if n == nil {
		return 0
	}
	return n.depth()
}

// Attributes returns the sorted set of attributes the expression touches,
// for filterability validation before any index access.
func Attributes(n Node) []string {
	if n == nil {
		return nil
	}
	set := make(map[string]struct{})
	n.attrs(set)
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
