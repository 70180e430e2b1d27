package compiler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cuelang.org/go/cue/token"

	"github.com/roach88/choreo/internal/engine"
	"github.com/roach88/choreo/internal/ir"
)

// Authored keys of a definition object.
const (
	keyID         = "id"
	keyOn         = "on"
	keyWhen       = "when"
	keyInterrupts = "interrupts"
	keySteps      = "steps"
)

// Reserved keys of an action step. Every other key becomes a param.
const (
	keyAction   = "action"
	keyEntity   = "entity"
	keyTarget   = "target"
	keyDuration = "duration"
	keyEasing   = "easing"
)

// structuralKinds lists the single keys that mark a structural step.
var structuralKinds = []struct {
	key  string
	kind ir.StepKind
}{
	{"parallel", ir.StepParallel},
	{"onArrive", ir.StepOnArrive},
	{"onInterrupt", ir.StepOnInterrupt},
}

// CompileDefinition compiles one authored definition object, as decoded
// from YAML, JSON or CUE, into an ir.Definition.
//
// Step kinds are resolved here, once: an action with a duration is
// animated, an action without one is instant, the action "wait" is a wait.
// Keys of an action step other than action, entity, target, duration and
// easing become params. Durations are milliseconds, integer or fractional.
//
// CompileDefinition checks shape and types only; authoring rules are
// checked by Validate.
func CompileDefinition(raw map[string]any) (*ir.Definition, error) {
	def := &ir.Definition{}

	for _, key := range sortedKeys(raw) {
		switch key {
		case keyID, keyOn, keyWhen, keyInterrupts, keySteps:
		default:
			return nil, &CompileError{
				Field:   key,
				Message: "unknown definition field",
			}
		}
	}

	if id, ok := raw[keyID]; ok {
		s, ok := id.(string)
		if !ok {
			return nil, typeError(keyID, "a string", id)
		}
		def.ID = s
	}

	on, ok := raw[keyOn]
	if !ok {
		return nil, &CompileError{Field: keyOn, Message: "on is required"}
	}
	def.On, ok = on.(string)
	if !ok {
		return nil, typeError(keyOn, "a string", on)
	}

	if v, ok := raw[keyInterrupts]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, typeError(keyInterrupts, "a bool", v)
		}
		def.Interrupts = b
	}

	if v, ok := raw[keyWhen]; ok && v != nil {
		when, err := compileWhen(v, keyWhen)
		if err != nil {
			return nil, err
		}
		def.When = when
	}

	stepsVal, ok := raw[keySteps]
	if !ok {
		return nil, &CompileError{Field: keySteps, Message: "steps is required"}
	}
	steps, err := compileSteps(stepsVal, keySteps)
	if err != nil {
		return nil, err
	}
	def.Steps = steps

	return def, nil
}

// CompileDefinitions compiles a list of authored definitions in order.
// The first failure is returned with its list index in the field path.
func CompileDefinitions(list []any) ([]ir.Definition, error) {
	defs := make([]ir.Definition, 0, len(list))
	for i, item := range list {
		raw, ok := asMap(item)
		if !ok {
			return nil, typeError(fmt.Sprintf("choreography[%d]", i), "an object", item)
		}
		def, err := CompileDefinition(raw)
		if err != nil {
			return nil, prefixError(err, fmt.Sprintf("choreography[%d]", i))
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

// compileSteps compiles an authored step list.
func compileSteps(v any, field string) ([]ir.Step, error) {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, typeError(field, "a list of steps", v)
	}
	steps := make([]ir.Step, 0, len(list))
	for i, item := range list {
		step, err := compileStep(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// compileStep resolves the kind of one authored step.
func compileStep(v any, field string) (ir.Step, error) {
	raw, ok := asMap(v)
	if !ok {
		return ir.Step{}, typeError(field, "a step object", v)
	}

	for _, sk := range structuralKinds {
		body, ok := raw[sk.key]
		if !ok {
			continue
		}
		if len(raw) != 1 {
			return ir.Step{}, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("%s block must be the only key of its step", sk.key),
			}
		}
		return compileBlock(sk.kind, sk.key, body, field+"."+sk.key)
	}

	return compileAction(raw, field)
}

// compileBlock compiles a structural step. The body is either the child
// list itself or an object with a steps list.
func compileBlock(kind ir.StepKind, key string, body any, field string) (ir.Step, error) {
	if obj, ok := asMap(body); ok {
		for k := range obj {
			if k != keySteps {
				return ir.Step{}, &CompileError{
					Field:   field + "." + k,
					Message: fmt.Sprintf("unknown %s field", key),
				}
			}
		}
		body = obj[keySteps]
		field += "." + keySteps
	}
	children, err := compileSteps(body, field)
	if err != nil {
		return ir.Step{}, err
	}
	return ir.Step{Kind: kind, Steps: children}, nil
}

// compileAction compiles an action step.
func compileAction(raw map[string]any, field string) (ir.Step, error) {
	actionVal, ok := raw[keyAction]
	if !ok {
		return ir.Step{}, &CompileError{
			Field:   field + "." + keyAction,
			Message: "step must have an action or be a parallel, onArrive or onInterrupt block",
		}
	}
	action, ok := actionVal.(string)
	if !ok {
		return ir.Step{}, typeError(field+"."+keyAction, "a string", actionVal)
	}

	step := ir.Step{Action: action}

	var err error
	if step.Entity, err = optionalString(raw, keyEntity, field); err != nil {
		return ir.Step{}, err
	}
	if step.Target, err = optionalString(raw, keyTarget, field); err != nil {
		return ir.Step{}, err
	}
	if step.Easing, err = optionalString(raw, keyEasing, field); err != nil {
		return ir.Step{}, err
	}

	durVal, hasDuration := raw[keyDuration]
	if hasDuration {
		step.Duration, err = compileDuration(durVal, field+"."+keyDuration)
		if err != nil {
			return ir.Step{}, err
		}
	}

	switch {
	case action == ir.WaitAction:
		step.Kind = ir.StepWait
	case hasDuration:
		step.Kind = ir.StepAnimated
		if step.Easing == "" {
			step.Easing = engine.DefaultEasing
		}
	default:
		step.Kind = ir.StepInstant
	}

	for key, val := range raw {
		switch key {
		case keyAction, keyEntity, keyTarget, keyDuration, keyEasing:
			continue
		}
		if step.Params == nil {
			step.Params = make(map[string]any)
		}
		step.Params[key] = val
	}

	return step, nil
}

// compileDuration converts authored milliseconds to a time.Duration.
// Negative durations compile; Validate reports them.
func compileDuration(v any, field string) (time.Duration, error) {
	ms, ok := ir.ToNumber(v)
	if !ok || math.IsInf(ms, 0) {
		return 0, typeError(field, "a number of milliseconds", v)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}

// compileWhen compiles a when clause: a single condition object, or a list
// of condition objects combined with OR.
func compileWhen(v any, field string) (ir.WhenClause, error) {
	if obj, ok := asMap(v); ok {
		cond, err := compileCondition(obj, field)
		if err != nil {
			return nil, err
		}
		return ir.WhenClause{cond}, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, typeError(field, "a condition object or a list of them", v)
	}
	when := make(ir.WhenClause, 0, len(list))
	for i, item := range list {
		itemField := fmt.Sprintf("%s[%d]", field, i)
		obj, ok := asMap(item)
		if !ok {
			return nil, typeError(itemField, "a condition object", item)
		}
		cond, err := compileCondition(obj, itemField)
		if err != nil {
			return nil, err
		}
		when = append(when, cond)
	}
	return when, nil
}

// compileCondition compiles a path → operator-set map.
func compileCondition(obj map[string]any, field string) (ir.Condition, error) {
	cond := make(ir.Condition, len(obj))
	for _, path := range sortedKeys(obj) {
		ops, err := compileOperatorSet(obj[path], field+"."+path)
		if err != nil {
			return nil, err
		}
		cond[path] = ops
	}
	return cond, nil
}

// compileOperatorSet compiles one operator set. Unrecognized operator keys
// are kept in Unknown so Validate can report them; the matcher ignores
// them.
func compileOperatorSet(v any, field string) (ir.OperatorSet, error) {
	obj, ok := asMap(v)
	if !ok {
		return ir.OperatorSet{}, typeError(field, "an operator object", v)
	}

	var ops ir.OperatorSet
	for _, key := range sortedKeys(obj) {
		val := obj[key]
		opField := field + "." + key
		switch key {
		case "exists":
			b, ok := val.(bool)
			if !ok {
				return ops, typeError(opField, "a bool", val)
			}
			ops.Exists = &b
		case "equals":
			ops.Equals = &ir.Literal{Value: val}
		case "contains":
			s, ok := val.(string)
			if !ok {
				return ops, typeError(opField, "a string", val)
			}
			ops.Contains = &s
		case "matches":
			s, ok := val.(string)
			if !ok {
				return ops, typeError(opField, "a string", val)
			}
			ops.Matches = &s
		case "gt", "lt":
			n, ok := ir.ToNumber(val)
			if !ok {
				return ops, typeError(opField, "a number", val)
			}
			if key == "gt" {
				ops.GT = &n
			} else {
				ops.LT = &n
			}
		case "not":
			inner, err := compileOperatorSet(val, opField)
			if err != nil {
				return ops, err
			}
			ops.Not = &inner
		default:
			ops.Unknown = append(ops.Unknown, key)
		}
	}
	return ops, nil
}

func optionalString(raw map[string]any, key, field string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeError(field+"."+key, "a string", v)
	}
	return s, nil
}

// asMap accepts the object shapes produced by the YAML, JSON and CUE
// decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func typeError(field, want string, got any) *CompileError {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf("must be %s, got %T", want, got),
	}
}

// CompileError represents a compilation error with source position.
// Pos is only set for definitions compiled from CUE.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// prefixError qualifies a CompileError's field with the enclosing path.
func prefixError(err error, prefix string) error {
	if ce, ok := err.(*CompileError); ok {
		out := *ce
		out.Field = prefix + "." + ce.Field
		return &out
	}
	return fmt.Errorf("%s: %w", prefix, err)
}
