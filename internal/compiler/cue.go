package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/choreo/internal/ir"
)

// ChoreographyPath is the top-level field holding the definition list in
// CUE and YAML sources.
const ChoreographyPath = "choreography"

// CompileCUE compiles one definition from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value must be concrete. Compile errors carry the value's source
// position, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`choreography: [{on: "ping", steps: []}]`)
//	def, err := CompileCUE(v.LookupPath(cue.ParsePath("choreography[0]")))
func CompileCUE(v cue.Value) (*ir.Definition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	raw, err := cueToAny(v)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &CompileError{
			Field:   "definition",
			Message: fmt.Sprintf("must be a struct, got %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}

	def, err := CompileDefinition(obj)
	if err != nil {
		return nil, withPos(err, v)
	}
	return def, nil
}

// CompileCUEList compiles the definition list found at ChoreographyPath
// under root, in list order. A root without the field yields no
// definitions.
func CompileCUEList(root cue.Value) ([]ir.Definition, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	listVal := root.LookupPath(cue.ParsePath(ChoreographyPath))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []ir.Definition
	for i := 0; iter.Next(); i++ {
		def, err := CompileCUE(iter.Value())
		if err != nil {
			return nil, prefixError(err, fmt.Sprintf("%s[%d]", ChoreographyPath, i))
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

// cueToAny converts a concrete CUE value to the plain Go shapes the YAML
// decoder produces, so both sources share one compiler.
func cueToAny(v cue.Value) (any, error) {
	if d, ok := v.Default(); ok {
		v = d
	}

	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return int(i), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := []any{}
		for iter.Next() {
			elem, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := map[string]any{}
		for iter.Next() {
			field, err := cueToAny(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	default:
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return nil, &CompileError{
			Field:   "cue",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// withPos attaches v's position to a CompileError that has none.
func withPos(err error, v cue.Value) error {
	ce, ok := err.(*CompileError)
	if !ok || ce.Pos.IsValid() {
		return err
	}
	out := *ce
	out.Pos = v.Pos()
	return &out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
