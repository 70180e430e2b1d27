package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/choreo/internal/ir"
)

// signalPrefix marks a string as a reference into the triggering signal.
const signalPrefix = "signal."

// Resolve looks up a dot-separated path against a signal.
//
// A leading "signal." segment is stripped. The path "type" returns the
// signal type; any other path is walked through the payload. Traversal
// stops with (nil, false) at a missing key or a non-object intermediate;
// Resolve never panics.
//
// Examples:
//
//	Resolve("signal.to", sig)        → sig.Payload["to"]
//	Resolve("type", sig)             → sig.Type
//	Resolve("signal.meta.agent", sig) → sig.Payload["meta"]["agent"]
func Resolve(path string, sig ir.Signal) (any, bool) {
	path = strings.TrimPrefix(path, signalPrefix)
	if path == "type" {
		return sig.Type, true
	}
	if path == "" {
		return nil, false
	}

	var cur any = sig.Payload
	for _, segment := range strings.Split(path, ".") {
		obj, ok := ir.AsObject(cur)
		if !ok {
			return nil, false
		}
		next, ok := obj[segment]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// IsReference reports whether v is a string reference into the signal.
func IsReference(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, signalPrefix)
}

// ResolveRef substitutes a "signal."-prefixed string with the value it
// references. Unresolvable references become nil. Maps and lists are
// resolved element by element; every other value passes through verbatim.
func ResolveRef(v any, sig ir.Signal) any {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, signalPrefix) {
			return val
		}
		resolved, _ := Resolve(val, sig)
		return resolved
	case map[string]any:
		return resolveParams(val, sig)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ResolveRef(elem, sig)
		}
		return out
	default:
		return v
	}
}

// resolveParams returns a copy of params with every reference substituted.
func resolveParams(params map[string]any, sig ir.Signal) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = ResolveRef(v, sig)
	}
	return out
}

// resolveEntity resolves an entity field to the reference handed to the
// sink. Non-string values are formatted; unresolved references yield "".
func resolveEntity(entity string, sig ir.Signal) string {
	switch v := ResolveRef(entity, sig).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// resolveStep resolves a step's entity, target and params. A target, when
// authored, is delivered to the sink as params["target"].
func resolveStep(step ir.Step, sig ir.Signal) (string, map[string]any) {
	entityRef := resolveEntity(step.Entity, sig)
	params := resolveParams(step.Params, sig)
	if step.Target != "" {
		if params == nil {
			params = make(map[string]any, 1)
		}
		params["target"] = ResolveRef(step.Target, sig)
	}
	return entityRef, params
}
