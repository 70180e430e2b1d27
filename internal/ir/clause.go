package ir

import "sort"

// WhenClause is a declarative filter over a signal.
//
// A nil clause means "no filter" and matches every signal. A non-nil clause
// is a list of conditions combined with OR; an empty list matches
// vacuously. An authored single condition object compiles to a list of one,
// which evaluates as the AND of its entries.
type WhenClause []Condition

// Condition maps a resolver path to the operators its value must satisfy.
// All entries AND-combine.
type Condition map[string]OperatorSet

// SortedPaths returns the condition's paths in lexical order so evaluation
// order is deterministic.
func (c Condition) SortedPaths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Literal wraps an operand whose zero value (nil, "", 0) is meaningful.
type Literal struct {
	Value any
}

// OperatorSet holds the operators applied to one resolved value.
//
// Set operators AND-combine, except Not: when Not is present it is the
// only operator evaluated. A set with no recognized operators passes.
type OperatorSet struct {
	Exists   *bool
	Equals   *Literal
	Contains *string
	Matches  *string
	GT       *float64
	LT       *float64
	Not      *OperatorSet

	// Unknown lists authored operator keys the matcher does not recognize.
	// They are ignored at match time and reported by validation.
	Unknown []string
}

// IsEmpty reports whether the set has no recognized operators.
func (o OperatorSet) IsEmpty() bool {
	return o.Exists == nil && o.Equals == nil && o.Contains == nil &&
		o.Matches == nil && o.GT == nil && o.LT == nil && o.Not == nil
}

// Exists builds an operator set with only the exists operator.
func Exists(b bool) OperatorSet { return OperatorSet{Exists: &b} }

// Equals builds an operator set with only the equals operator.
func Equals(v any) OperatorSet { return OperatorSet{Equals: &Literal{Value: v}} }

// Contains builds an operator set with only the contains operator.
func Contains(s string) OperatorSet { return OperatorSet{Contains: &s} }

// Matches builds an operator set with only the matches operator.
func Matches(pattern string) OperatorSet { return OperatorSet{Matches: &pattern} }

// GT builds an operator set with only the gt operator.
func GT(n float64) OperatorSet { return OperatorSet{GT: &n} }

// LT builds an operator set with only the lt operator.
func LT(n float64) OperatorSet { return OperatorSet{LT: &n} }

// Not builds an operator set negating inner.
func Not(inner OperatorSet) OperatorSet { return OperatorSet{Not: &inner} }

// ToMap converts the operator set to its authored form.
func (o OperatorSet) ToMap() map[string]any {
	m := map[string]any{}
	if o.Not != nil {
		m["not"] = o.Not.ToMap()
	}
	if o.Exists != nil {
		m["exists"] = *o.Exists
	}
	if o.Equals != nil {
		m["equals"] = o.Equals.Value
	}
	if o.Contains != nil {
		m["contains"] = *o.Contains
	}
	if o.Matches != nil {
		m["matches"] = *o.Matches
	}
	if o.GT != nil {
		m["gt"] = *o.GT
	}
	if o.LT != nil {
		m["lt"] = *o.LT
	}
	return m
}

// ToList converts the clause to its authored list form.
func (w WhenClause) ToList() []any {
	out := make([]any, len(w))
	for i, cond := range w {
		m := make(map[string]any, len(cond))
		for path, ops := range cond {
			m[path] = ops.ToMap()
		}
		out[i] = m
	}
	return out
}
