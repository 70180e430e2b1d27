package engine

import (
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/choreo/internal/ir"
)

// MatchesWhen evaluates a when-clause against a signal.
//
// The match is determined by:
//  1. nil clause: no filter, always true
//  2. clause list: OR of its conditions; an empty list is vacuously true
//  3. condition: AND of its path entries, first failure short-circuits
//
// MatchesWhen is pure and never panics: unresolvable paths evaluate as an
// undefined value and invalid regular expressions never match.
func MatchesWhen(when ir.WhenClause, sig ir.Signal) bool {
	if len(when) == 0 {
		return true
	}
	for _, cond := range when {
		if matchCondition(cond, sig) {
			return true
		}
	}
	return false
}

// matchCondition AND-combines every entry of a condition.
func matchCondition(cond ir.Condition, sig ir.Signal) bool {
	for _, path := range cond.SortedPaths() {
		value, defined := Resolve(path, sig)
		if !matchOperators(cond[path], value, defined) {
			return false
		}
	}
	return true
}

// matchOperators evaluates an operator set against one resolved value.
//
// "not" is a standalone gate: when present, the result is the negation of
// the wrapped set and sibling operators are ignored. Otherwise every
// present operator must pass; a set with no recognized operators passes.
// defined is false for an unresolvable path, which equals nothing, not
// even a null literal.
func matchOperators(ops ir.OperatorSet, value any, defined bool) bool {
	if ops.Not != nil {
		return !matchOperators(*ops.Not, value, defined)
	}

	if ops.Exists != nil {
		if (value != nil) != *ops.Exists {
			return false
		}
	}

	if ops.Equals != nil {
		if !defined || !ir.StrictEqual(value, ops.Equals.Value) {
			return false
		}
	}

	if ops.Contains != nil {
		s, ok := value.(string)
		if !ok || !strings.Contains(s, *ops.Contains) {
			return false
		}
	}

	if ops.Matches != nil {
		s, ok := value.(string)
		if !ok {
			return false
		}
		re, err := compilePattern(*ops.Matches)
		if err != nil || !re.MatchString(s) {
			return false
		}
	}

	if ops.GT != nil {
		n, ok := ir.ToNumber(value)
		if !ok || !(n > *ops.GT) {
			return false
		}
	}

	if ops.LT != nil {
		n, ok := ir.ToNumber(value)
		if !ok || !(n < *ops.LT) {
			return false
		}
	}

	return true
}

// patternCache memoizes compiled "matches" patterns, including failures,
// so a hot when-clause does not recompile on every signal.
var patternCache = struct {
	sync.Mutex
	entries map[string]patternEntry
}{entries: make(map[string]patternEntry)}

type patternEntry struct {
	re  *regexp.Regexp
	err error
}

// compilePattern compiles a pattern once. Patterns use RE2 syntax.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternCache.Lock()
	defer patternCache.Unlock()

	if e, ok := patternCache.entries[pattern]; ok {
		return e.re, e.err
	}
	re, err := regexp.Compile(pattern)
	patternCache.entries[pattern] = patternEntry{re: re, err: err}
	return re, err
}

// ValidPattern reports whether a "matches" pattern compiles.
// Used by authoring-time validation; the matcher itself never fails.
func ValidPattern(pattern string) error {
	_, err := compilePattern(pattern)
	return err
}
