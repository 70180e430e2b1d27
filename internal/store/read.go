package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/queryir"
)

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, definitions_hash, engine_version, ir_version, started_at
		FROM runs
		WHERE id = ?
	`, id)

	var run Run
	var startedAt int64
	if err := row.Scan(
		&run.ID, &run.Name, &run.DefinitionsHash,
		&run.EngineVersion, &run.IRVersion, &startedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(startedAt)
	return run, nil
}

// ListRuns returns every run, oldest first. UUIDv7 IDs break ties between
// runs started in the same millisecond.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, definitions_hash, engine_version, ir_version, started_at
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var startedAt int64
		if err := rows.Scan(
			&run.ID, &run.Name, &run.DefinitionsHash,
			&run.EngineVersion, &run.IRVersion, &startedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadCommands returns every command of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no commands.
func (s *Store) ReadCommands(ctx context.Context, runID string) ([]ir.Command, error) {
	return s.QueryCommands(ctx, runID, nil)
}

// ReadPerformance returns the commands one performance emitted, ordered by
// seq. Interrupt commands carry no performance ID and are not included.
func (s *Store) ReadPerformance(ctx context.Context, runID, performanceID string) ([]ir.Command, error) {
	return s.QueryCommands(ctx, runID, queryir.Equals{Field: "performance_id", Value: performanceID})
}

// ReadSignals returns every signal of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no signals.
func (s *Store) ReadSignals(ctx context.Context, runID string) ([]SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at_ns, type, payload, correlation_id, signal_hash
		FROM signals
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	signals := []SignalRecord{}
	for rows.Next() {
		var rec SignalRecord
		var atNs int64
		var sigType, payloadJSON string
		if err := rows.Scan(&rec.Seq, &atNs, &sigType, &payloadJSON, &rec.CorrelationID, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		payload, err := unmarshalObject(payloadJSON)
		if err != nil {
			return nil, err
		}
		rec.At = time.Duration(atNs)
		rec.Signal = ir.NewSignal(sigType, payload)
		signals = append(signals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

// scanCommand scans a row into an ir.Command.
func scanCommand(rows *sql.Rows) (ir.Command, error) {
	var cmd ir.Command
	var atNs, durationNs int64
	var kind, paramsJSON string

	if err := rows.Scan(
		&cmd.Seq, &atNs, &kind, &cmd.Action, &cmd.EntityRef, &durationNs,
		&cmd.Easing, &paramsJSON, &cmd.Progress, &cmd.PerformanceID,
		&cmd.CorrelationID, &cmd.InterruptedBy,
	); err != nil {
		return ir.Command{}, fmt.Errorf("scan command: %w", err)
	}

	params, err := unmarshalObject(paramsJSON)
	if err != nil {
		return ir.Command{}, err
	}

	cmd.At = time.Duration(atNs)
	cmd.Kind = ir.CommandKind(kind)
	cmd.Duration = time.Duration(durationNs)
	cmd.Params = params
	return cmd, nil
}
