// Package queryir provides a small query intermediate representation (IR)
// over the trace store tables.
//
// The trace command and the store's filtered reads describe what they want
// as a Query; the querysql package compiles it to parameterized SQL.
//
//	[trace filters] → [Query IR] → [SQL Backend]
//
// FRAGMENT:
//
// The IR covers what trace inspection needs:
//   - Select(from, columns, filter) - single table access with filtering
//   - Predicates: Equals, In, And
//   - Explicit column lists (no SELECT *)
//
// It deliberately has no joins, OR, aggregation or subqueries. Signals and
// commands are merged in Go by seq, not by the database.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, so backends can switch
// over them exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case In:
//	case And:
//	}
//
// Tables and their columns are declared in Tables. Validate rejects any
// query naming a table or column outside it, which keeps identifiers out of
// user control: only values ever come from flags, and backends bind those
// as parameters.
package queryir
