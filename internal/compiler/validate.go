package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/choreo/internal/engine"
	"github.com/roach88/choreo/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrMissingTrigger    = "E201" // on is required
	ErrEmptyAction       = "E202" // action step without an action name
	ErrEmptyBlock        = "E203" // structural block without children
	ErrNegativeDuration  = "E204" // duration below zero
	ErrInvalidPattern    = "E205" // matches operand is not a valid pattern
	ErrUnknownOperator   = "E206" // unrecognized when operator
	ErrEasingNotAnimated = "E207" // easing on a step that does not animate
	ErrEmptyPath         = "E208" // empty when path
	ErrEqualsReference   = "E209" // equals against an object or array
)

// ValidationError represents an authoring rule violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled definitions against authoring rules.
// Returns all errors found (does not fail-fast).
//
// Every rule here guards against a definition that registers fine but can
// never behave as written: the engine itself accepts any definition.
func Validate(defs []ir.Definition) []ValidationError {
	var errs []ValidationError
	for i, def := range defs {
		errs = append(errs, validateDefinition(def, fmt.Sprintf("choreography[%d]", i))...)
	}
	return errs
}

func validateDefinition(def ir.Definition, field string) []ValidationError {
	var errs []ValidationError

	// E201: on is required
	if strings.TrimSpace(def.On) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".on",
			Message: "on is required and must be non-empty",
			Code:    ErrMissingTrigger,
		})
	}

	for i, cond := range def.When {
		errs = append(errs, validateCondition(cond, fmt.Sprintf("%s.when[%d]", field, i))...)
	}

	errs = append(errs, validateSteps(def.Steps, field+".steps")...)
	return errs
}

func validateSteps(steps []ir.Step, field string) []ValidationError {
	var errs []ValidationError
	for i, step := range steps {
		errs = append(errs, validateStep(step, fmt.Sprintf("%s[%d]", field, i))...)
	}
	return errs
}

func validateStep(step ir.Step, field string) []ValidationError {
	if step.Kind.IsStructural() {
		blockField := field + "." + step.Kind.String()
		// E203: structural blocks must wrap at least one step
		if len(step.Steps) == 0 {
			return []ValidationError{{
				Field:   blockField,
				Message: fmt.Sprintf("%s block has no steps", step.Kind),
				Code:    ErrEmptyBlock,
			}}
		}
		return validateSteps(step.Steps, blockField)
	}

	var errs []ValidationError

	// E202: action name is required (wait steps carry the reserved name)
	if strings.TrimSpace(step.Action) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".action",
			Message: "action is required and must be non-empty",
			Code:    ErrEmptyAction,
		})
	}

	// E204: durations cannot run backwards
	if step.Duration < 0 {
		errs = append(errs, ValidationError{
			Field:   field + ".duration",
			Message: fmt.Sprintf("duration must be >= 0, got %dms", step.Duration.Milliseconds()),
			Code:    ErrNegativeDuration,
		})
	}

	// E207: only animated steps are eased
	if step.Easing != "" && step.Kind != ir.StepAnimated {
		errs = append(errs, ValidationError{
			Field:   field + ".easing",
			Message: fmt.Sprintf("easing %q has no effect on a %s step", step.Easing, step.Kind),
			Code:    ErrEasingNotAnimated,
		})
	}

	return errs
}

func validateCondition(cond ir.Condition, field string) []ValidationError {
	var errs []ValidationError
	for _, path := range cond.SortedPaths() {
		// E208: a path must name something
		if strings.TrimSpace(path) == "" {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "condition path must be non-empty",
				Code:    ErrEmptyPath,
			})
		}
		errs = append(errs, validateOperators(cond[path], field+"."+path)...)
	}
	return errs
}

func validateOperators(ops ir.OperatorSet, field string) []ValidationError {
	var errs []ValidationError

	// E206: unknown operators are ignored when matching
	for _, key := range ops.Unknown {
		errs = append(errs, ValidationError{
			Field:   field + "." + key,
			Message: fmt.Sprintf("unknown operator %q", key),
			Code:    ErrUnknownOperator,
		})
	}

	// E205: an invalid pattern never matches
	if ops.Matches != nil {
		if err := engine.ValidPattern(*ops.Matches); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".matches",
				Message: fmt.Sprintf("invalid pattern: %v", err),
				Code:    ErrInvalidPattern,
			})
		}
	}

	// E209: objects and arrays never equal a literal
	if ops.Equals != nil {
		switch ops.Equals.Value.(type) {
		case map[string]any, map[any]any, []any:
			errs = append(errs, ValidationError{
				Field:   field + ".equals",
				Message: "equals operand must be a string, number, bool or null",
				Code:    ErrEqualsReference,
			})
		}
	}

	if ops.Not != nil {
		errs = append(errs, validateOperators(*ops.Not, field+".not")...)
	}

	return errs
}
