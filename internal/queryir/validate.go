package queryir

import (
	"fmt"
	"slices"
)

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a query against Tables.
//
// Rules:
//  1. From must name a known table
//  2. Columns must be non-empty and known (no SELECT *)
//  3. Filter fields must be known columns of the same table
//  4. Values must be scalars
//  5. In must have at least one value
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validator accumulates errors during traversal.
type validator struct {
	errors  []string
	columns []string // columns of the table being validated
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	columns, ok := Tables[sel.From]
	if !ok {
		v.addError("unknown table %q", sel.From)
		return
	}
	v.columns = columns

	if len(sel.Columns) == 0 {
		v.addError("empty column list - columns must be explicit")
	}
	for _, c := range sel.Columns {
		v.checkColumn(c)
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) checkColumn(name string) {
	if !slices.Contains(v.columns, name) {
		v.addError("unknown column %q", name)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
		// nil predicates are valid (no filter)
	case Equals:
		v.checkColumn(pred.Field)
		v.checkValue(pred.Field, pred.Value)
	case In:
		v.checkColumn(pred.Field)
		if len(pred.Values) == 0 {
			v.addError("column %q: empty IN set", pred.Field)
		}
		for _, val := range pred.Values {
			v.checkValue(pred.Field, val)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) checkValue(field string, val any) {
	if !IsScalar(val) {
		v.addError("column %q: value %v (%T) is not a scalar", field, val, val)
	}
}

// IsScalar reports whether v can be bound as a query parameter.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
