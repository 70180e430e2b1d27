// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/choreo/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// CRITICAL: ALL queries end in ORDER BY seq for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a query to parameterized SQL.
// Returns (sql, params, error) tuple. Queries that fail queryir.Validate
// are rejected, so every identifier in the output comes from
// queryir.Tables.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if result := queryir.Validate(q); !result.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(result.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// compileSelect compiles a queryir.Select to SQL.
func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(q.Columns, ", "),
		q.From,
		whereClause,
		stableOrderKey)

	return sql, params, nil
}

// stableOrderKey is the ORDER BY clause of every query. seq is unique
// within a run; run_id breaks ties across runs.
const stableOrderKey = "seq ASC, run_id COLLATE BINARY ASC"

// compilePredicate compiles a queryir.Predicate to SQL WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil // Always true
	case queryir.Equals:
		return fmt.Sprintf("%s = ?", pred.Field), []any{pred.Value}, nil
	case queryir.In:
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		params := make([]any, len(pred.Values))
		copy(params, pred.Values)
		return fmt.Sprintf("%s IN (%s)", pred.Field, placeholders), params, nil
	case queryir.And:
		return c.compileAnd(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileAnd compiles an And predicate to conjunction with AND.
func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	var sqlParts []string
	var allParams []any

	for _, pred := range and.Predicates {
		if pred == nil {
			continue
		}
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	if len(sqlParts) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}
	return strings.Join(sqlParts, " AND "), allParams, nil
}
