package harness

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []ir.Command // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, cmd := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", FormatCommand(cmd))
		}
	}

	return buf.String()
}

// FormatCommand renders a command as one human-readable trace line.
func FormatCommand(cmd ir.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %6dms %-9s", cmd.Seq, cmd.At.Milliseconds(), cmd.Kind)
	switch cmd.Kind {
	case ir.CommandInterrupt:
		fmt.Fprintf(&b, " correlation=%s by=%s", cmd.CorrelationID, cmd.InterruptedBy)
		return b.String()
	default:
		fmt.Fprintf(&b, " %s", cmd.Action)
	}
	if cmd.EntityRef != "" {
		fmt.Fprintf(&b, " entity=%s", cmd.EntityRef)
	}
	switch cmd.Kind {
	case ir.CommandStart:
		fmt.Fprintf(&b, " duration=%dms easing=%s", cmd.Duration.Milliseconds(), cmd.Easing)
	case ir.CommandUpdate:
		fmt.Fprintf(&b, " progress=%.3f", cmd.Progress)
	}
	if len(cmd.Params) > 0 {
		fmt.Fprintf(&b, " params=%s", formatParams(cmd.Params))
	}
	if cmd.PerformanceID != "" {
		fmt.Fprintf(&b, " (%s)", cmd.PerformanceID)
	}
	return b.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCommandCount:
			err = assertCommandCount(result.Trace, a)
		case AssertCommandOrder:
			err = assertCommandOrder(result.Trace, a)
		case AssertCommandContains:
			err = assertCommandContains(result.Trace, a)
		case AssertProgressNear:
			err = assertProgressNear(result.Trace, a)
		case AssertActiveCount:
			err = assertActiveCount(result.ActiveCount, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// matchesFilters reports whether cmd passes the assertion's kind, action,
// entity, performance and correlation filters. Empty filters match.
func matchesFilters(cmd ir.Command, a Assertion) bool {
	if a.Kind != "" && string(cmd.Kind) != a.Kind {
		return false
	}
	if a.Action != "" && cmd.Action != a.Action {
		return false
	}
	if a.Entity != "" && cmd.EntityRef != a.Entity {
		return false
	}
	if a.PerformanceID != "" && cmd.PerformanceID != a.PerformanceID {
		return false
	}
	if a.CorrelationID != "" && cmd.CorrelationID != a.CorrelationID {
		return false
	}
	return true
}

// describeFilters renders the non-empty filters of an assertion.
func describeFilters(a Assertion) string {
	var parts []string
	for _, f := range []struct{ name, value string }{
		{"kind", a.Kind},
		{"action", a.Action},
		{"entity", a.Entity},
		{"performance", a.PerformanceID},
		{"correlation", a.CorrelationID},
	} {
		if f.value != "" {
			parts = append(parts, f.name+"="+f.value)
		}
	}
	if len(a.Params) > 0 {
		parts = append(parts, "params="+formatParams(a.Params))
	}
	if len(parts) == 0 {
		return "any command"
	}
	return strings.Join(parts, " ")
}

// assertCommandCount checks that exactly Count commands match the filters.
func assertCommandCount(trace []ir.Command, a Assertion) error {
	count := 0
	for _, cmd := range trace {
		if matchesFilters(cmd, a) {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertCommandCount,
			Expected: fmt.Sprintf("%d commands matching %s", *a.Count, describeFilters(a)),
			Actual:   fmt.Sprintf("%d commands", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCommandOrder checks that actions first appear in the given order
// among commands passing the kind filter. Intervening commands are allowed.
func assertCommandOrder(trace []ir.Command, a Assertion) error {
	positions := make(map[string]int)
	for i, cmd := range trace {
		if a.Kind != "" && string(cmd.Kind) != a.Kind {
			continue
		}
		if _, seen := positions[cmd.Action]; !seen {
			positions[cmd.Action] = i + 1 // 1-indexed for readability
		}
	}

	for _, action := range a.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Actions); i++ {
		prev, curr := a.Actions[i-1], a.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCommandOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertCommandContains checks that some command matches the filters and
// carries the expected params (subset match).
func assertCommandContains(trace []ir.Command, a Assertion) error {
	for _, cmd := range trace {
		if matchesFilters(cmd, a) && matchParams(cmd.Params, a.Params) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertCommandContains,
		Expected: describeFilters(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertProgressNear checks the update emitted for an action at a given
// clock time.
func assertProgressNear(trace []ir.Command, a Assertion) error {
	at := time.Duration(*a.At) * time.Millisecond
	tolerance := a.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}

	filter := a
	filter.Kind = string(ir.CommandUpdate)
	for _, cmd := range trace {
		if !matchesFilters(cmd, filter) || cmd.At != at {
			continue
		}
		if math.Abs(cmd.Progress-*a.Progress) <= tolerance {
			return nil
		}
		return &AssertionError{
			Type:     AssertProgressNear,
			Expected: fmt.Sprintf("%s progress %.4f ± %.4f at %dms", a.Action, *a.Progress, tolerance, *a.At),
			Actual:   fmt.Sprintf("progress %.4f", cmd.Progress),
			Trace:    trace,
		}
	}
	return &AssertionError{
		Type:     AssertProgressNear,
		Expected: fmt.Sprintf("%s update at %dms", a.Action, *a.At),
		Actual:   "no update at that time",
		Trace:    trace,
	}
}

// assertActiveCount checks the number of live performances after the script.
func assertActiveCount(active int, a Assertion) error {
	if active != *a.Count {
		return &AssertionError{
			Type:     AssertActiveCount,
			Expected: fmt.Sprintf("%d active performances", *a.Count),
			Actual:   fmt.Sprintf("%d active performances", active),
		}
	}
	return nil
}

// matchParams checks if actual params contain all expected params (subset
// match). Extra keys in actual are ignored.
func matchParams(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares a stored value with an expected one. Numbers compare
// by value across Go numeric types, including json.Number read back from
// the store; objects and lists compare element-wise.
func valuesEqual(actual, expected any) bool {
	if am, ok := ir.AsObject(actual); ok {
		em, ok := ir.AsObject(expected)
		if !ok || len(am) != len(em) {
			return false
		}
		return matchParams(am, em)
	}
	if al, ok := actual.([]any); ok {
		el, ok := expected.([]any)
		if !ok || len(al) != len(el) {
			return false
		}
		for i := range al {
			if !valuesEqual(al[i], el[i]) {
				return false
			}
		}
		return true
	}
	return ir.StrictEqual(actual, expected)
}

// formatParams renders params with sorted keys for deterministic output.
func formatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
