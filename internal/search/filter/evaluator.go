package filter

import (
	"strings"

	"github.com/lanternsearch/lantern/internal/document"
)

// Evaluate reports whether a document's flattened fields satisfy the filter
// expression. A nil expression matches everything.
func Evaluate(n Node, fields map[string]document.Value) bool {
	if n == nil {
		return true
	}
	switch node := n.(type) {
	case *And:
		for _, c := range node.Children {
			if !Evaluate(c, fields) {
				return false
			}
		}
		return true
	case *Or:
		for _, c := range node.Children {
			if Evaluate(c, fields) {
				return true
			}
		}
		return false
	case *Not:
		return !Evaluate(node.Child, fields)
	case *Condition:
		return evalCondition(node, fields)
	default:
		return false
	}
}

func evalCondition(c *Condition, fields map[string]document.Value) bool {
	switch c.Op {
	case OpExists:
		return fieldExists(c.Attr, fields)
	case OpNotExists:
		return !fieldExists(c.Attr, fields)
	}

	v, present := fields[c.Attr]
	switch c.Op {
	case OpEq:
		return present && v.Equals(c.Values[0])
	case OpNeq:
		// matches everything = does not, documents missing the
		// attribute included
		return !present || !v.Equals(c.Values[0])
	case OpGt:
		return present && compares(v, c.Values[0], func(r int) bool { return r > 0 })
	case OpGte:
		return present && compares(v, c.Values[0], func(r int) bool { return r >= 0 })
	case OpLt:
		return present && compares(v, c.Values[0], func(r int) bool { return r < 0 })
	case OpLte:
		return present && compares(v, c.Values[0], func(r int) bool { return r <= 0 })
	case OpTo:
		return present &&
			compares(v, c.Values[0], func(r int) bool { return r >= 0 }) &&
			compares(v, c.Values[1], func(r int) bool { return r <= 0 })
	case OpIsNull:
		return present && v.IsNull()
	case OpIsNotNull:
		return !present || !v.IsNull()
	case OpIsEmpty:
		return present && v.IsEmpty()
	case OpIsNotEmpty:
		return !present || !v.IsEmpty()
	case OpIn:
		if !present {
			return false
		}
		for _, want := range c.Values {
			if v.Equals(want) {
				return true
			}
		}
		return false
	case OpNotIn:
		if !present {
			return true
		}
		for _, want := range c.Values {
			if v.Equals(want) {
				return false
			}
		}
		return true
	case OpContains:
		return present && matchesString(v, c.Values[0], strings.Contains)
	case OpNotContains:
		return !present || !matchesString(v, c.Values[0], strings.Contains)
	case OpStartsWith:
		return present && matchesString(v, c.Values[0], strings.HasPrefix)
	case OpNotStartsWith:
		return !present || !matchesString(v, c.Values[0], strings.HasPrefix)
	default:
		return false
	}
}

// fieldExists matches any present field regardless of value, null and empty
// included. A condition on a nested-object parent matches when any dotted
// child is present.
func fieldExists(attr string, fields map[string]document.Value) bool {
	if _, ok := fields[attr]; ok {
		return true
	}
	prefix := attr + "."
	for k := range fields {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// compares applies an ordered comparison, fanning out over array elements so
// that a multi-valued field matches when any element does. Incomparable
// pairs never match.
func compares(v, want document.Value, ok func(int) bool) bool {
	if v.Kind() == document.KindArray {
		for _, el := range v.Elems() {
			if compares(el, want, ok) {
				return true
			}
		}
		return false
	}
	r, comparable := v.Compare(want)
	return comparable && ok(r)
}

// matchesString applies a case-insensitive substring or prefix predicate,
// fanning out over array elements.
func matchesString(v, want document.Value, pred func(s, sub string) bool) bool {
	if v.Kind() == document.KindArray {
		for _, el := range v.Elems() {
			if matchesString(el, want, pred) {
				return true
			}
		}
		return false
	}
	if v.Kind() != document.KindString || want.Kind() != document.KindString {
		return false
	}
	return pred(strings.ToLower(v.Str()), strings.ToLower(want.Str()))
}
