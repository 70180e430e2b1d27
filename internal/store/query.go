package store

import (
	"context"
	"fmt"

	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/queryir"
	"github.com/roach88/choreo/internal/querysql"
)

// commandColumns is the scan order of scanCommand.
var commandColumns = []string{
	"seq", "at_ns", "kind", "action", "entity_ref", "duration_ns", "easing",
	"params", "progress", "performance_id", "correlation_id", "interrupted_by",
}

// QueryCommands returns the commands of a run that match filter, ordered
// by seq. A nil filter matches every command.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryCommands(ctx context.Context, runID string, filter queryir.Predicate) ([]ir.Command, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(queryir.Select{
		From:    "commands",
		Columns: commandColumns,
		Filter:  queryir.AllOf(queryir.Equals{Field: "run_id", Value: runID}, filter),
	})
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}

	rows, err := s.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	commands := []ir.Command{}
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return commands, nil
}
