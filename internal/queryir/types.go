package queryir

// Query represents an abstract query over one trace table.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in a Select.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: column = value
//   - In: column IN (values...)
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a table access query with filtering.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY seq
//
// Example:
//
//	Select{
//	  From:    "commands",
//	  Columns: []string{"seq", "kind", "action"},
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "run_id", Value: runID},
//	    In{Field: "kind", Values: []any{"start", "complete"}},
//	  }},
//	}
//
// Rows always come back in seq order; every trace table is keyed by
// (run_id, seq).
type Select struct {
	From    string    // Table name, one of Tables
	Columns []string  // Selected columns, in scan order
	Filter  Predicate // WHERE conditions (nil = no filter)
}

func (Select) queryNode() {}

// Equals represents a column-equals-value predicate.
//
// Value must be a scalar: string, bool, or an integer or float type.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// In represents a column-in-set predicate. An empty set matches nothing,
// so Validate rejects it.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates means "always true". Nil entries are skipped.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Tables lists the queryable tables and their columns.
var Tables = map[string][]string{
	"signals": {
		"run_id", "seq", "at_ns", "type", "payload", "correlation_id", "signal_hash",
	},
	"commands": {
		"run_id", "seq", "at_ns", "kind", "action", "entity_ref", "duration_ns", "easing",
		"params", "progress", "performance_id", "correlation_id", "interrupted_by",
	},
}

// AllOf combines predicates, dropping nils. It returns nil when nothing is
// left and the single predicate when only one is.
func AllOf(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
