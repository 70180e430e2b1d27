package ir

import (
	"encoding/json"
	"math"
)

// Payload values are the plain Go values produced by JSON, YAML or CUE
// decoding: nil, bool, string, numbers of any Go numeric type, []any and
// map[string]any. These helpers give them uniform semantics.

// ToNumber reports the numeric value of v if v is a number of any Go
// numeric type (including json.Number). Strings are never numbers.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// StrictEqual compares two payload values the way strict equality does
// for scalars: same kind and same value. Numbers compare by value across Go
// numeric types. Objects and arrays are reference values and never equal
// a literal.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := ToNumber(a); ok {
		bn, ok := ToNumber(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// AsObject returns v as a map if it is one.
func AsObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// CloneParams returns a shallow copy of params, or nil when empty.
func CloneParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
