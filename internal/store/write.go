package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/choreo/internal/ir"
)

// Run describes one recorded engine session.
type Run struct {
	ID              string
	Name            string
	DefinitionsHash string
	EngineVersion   string
	IRVersion       string
	StartedAt       time.Time
}

// SignalRecord is a signal as fed to the engine, with the engine clock time
// it arrived at.
type SignalRecord struct {
	Seq           int64
	At            time.Duration
	Signal        ir.Signal
	CorrelationID string
	Hash          string
}

// BeginRun creates a run record and returns it. The run ID is a UUIDv7 so
// runs sort by creation time.
func (s *Store) BeginRun(ctx context.Context, name, definitionsHash string) (Run, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Run{}, fmt.Errorf("begin run: generate id: %w", err)
	}

	run := Run{
		ID:              id.String(),
		Name:            name,
		DefinitionsHash: definitionsHash,
		EngineVersion:   ir.EngineVersion,
		IRVersion:       ir.IRVersion,
		StartedAt:       time.UnixMilli(time.Now().UnixMilli()),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, name, definitions_hash, engine_version, ir_version, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Name,
		run.DefinitionsHash,
		run.EngineVersion,
		run.IRVersion,
		run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	return run, nil
}

// WriteSignal inserts one signal record. The record's Hash is computed
// from the signal and correlation ID when empty.
//
// Uses ON CONFLICT DO NOTHING: rewriting the same (run, seq) is a no-op.
func (s *Store) WriteSignal(ctx context.Context, runID string, rec SignalRecord) error {
	return writeSignal(ctx, s.db, runID, rec)
}

// WriteCommand inserts one command record.
//
// Uses ON CONFLICT DO NOTHING: rewriting the same (run, seq) is a no-op.
func (s *Store) WriteCommand(ctx context.Context, runID string, cmd ir.Command) error {
	return writeCommand(ctx, s.db, runID, cmd)
}

// WriteBatch inserts signals and commands in a single transaction.
func (s *Store) WriteBatch(ctx context.Context, runID string, signals []SignalRecord, commands []ir.Command) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, rec := range signals {
		if err := writeSignal(ctx, tx, runID, rec); err != nil {
			return err
		}
	}
	for _, cmd := range commands {
		if err := writeCommand(ctx, tx, runID, cmd); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write batch: commit: %w", err)
	}
	return nil
}

// execer is the subset of *sql.DB and *sql.Tx used by the writers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeSignal(ctx context.Context, db execer, runID string, rec SignalRecord) error {
	payloadJSON, err := marshalObject(rec.Signal.Payload)
	if err != nil {
		return fmt.Errorf("write signal: %w", err)
	}

	hash := rec.Hash
	if hash == "" {
		hash, err = ir.SignalHash(rec.Signal, rec.CorrelationID)
		if err != nil {
			return fmt.Errorf("write signal: %w", err)
		}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO signals
		(run_id, seq, at_ns, type, payload, correlation_id, signal_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		rec.Seq,
		int64(rec.At),
		rec.Signal.Type,
		payloadJSON,
		rec.CorrelationID,
		hash,
	)
	if err != nil {
		return fmt.Errorf("write signal: %w", err)
	}
	return nil
}

func writeCommand(ctx context.Context, db execer, runID string, cmd ir.Command) error {
	if !ir.ValidCommandKinds[cmd.Kind] {
		return fmt.Errorf("write command: invalid kind %q", cmd.Kind)
	}

	paramsJSON, err := marshalObject(cmd.Params)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO commands
		(run_id, seq, at_ns, kind, action, entity_ref, duration_ns, easing,
		 params, progress, performance_id, correlation_id, interrupted_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		cmd.Seq,
		int64(cmd.At),
		string(cmd.Kind),
		cmd.Action,
		cmd.EntityRef,
		int64(cmd.Duration),
		cmd.Easing,
		paramsJSON,
		cmd.Progress,
		cmd.PerformanceID,
		cmd.CorrelationID,
		cmd.InterruptedBy,
	)
	if err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}
