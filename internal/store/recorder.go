package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// TimeSource reports the engine clock's current time. engine.Clock
// satisfies it.
type TimeSource interface {
	Now() time.Duration
}

// Recorder buffers a run's signals and commands in memory and writes them
// to the store on Flush.
//
// Recorder implements engine.Sink. Sink calls only append to the buffer, so
// they never block the engine on database I/O. Signals are recorded with
// RecordSignal, which callers invoke just before handing the signal to the
// engine; signals and commands share one seq counter.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	store *Store
	runID string
	time  TimeSource

	mu       sync.Mutex
	seq      int64
	signals  []SignalRecord
	commands []ir.Command
	flushed  int
}

// NewRecorder creates a recorder for runID, stamping events with ts.
func NewRecorder(s *Store, runID string, ts TimeSource) *Recorder {
	return &Recorder{store: s, runID: runID, time: ts}
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string {
	return r.runID
}

// RecordSignal buffers a signal about to be fed to the engine.
func (r *Recorder) RecordSignal(sig ir.Signal, correlationID string) {
	at := r.time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.signals = append(r.signals, SignalRecord{
		Seq:           r.seq,
		At:            at,
		Signal:        sig,
		CorrelationID: correlationID,
	})
}

func (r *Recorder) record(build func(at time.Duration) ir.Command) {
	at := r.time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	cmd := build(at)
	cmd.Seq = r.seq
	r.commands = append(r.commands, cmd)
}

func (r *Recorder) OnActionStart(c ir.ActionStart) {
	r.record(func(at time.Duration) ir.Command { return ir.StartCommand(at, c) })
}

func (r *Recorder) OnActionUpdate(c ir.ActionUpdate) {
	r.record(func(at time.Duration) ir.Command { return ir.UpdateCommand(at, c) })
}

func (r *Recorder) OnActionComplete(c ir.ActionComplete) {
	r.record(func(at time.Duration) ir.Command { return ir.CompleteCommand(at, c) })
}

func (r *Recorder) OnActionExecute(c ir.ActionExecute) {
	r.record(func(at time.Duration) ir.Command { return ir.ExecuteCommand(at, c) })
}

func (r *Recorder) OnInterrupt(c ir.Interrupt) {
	r.record(func(at time.Duration) ir.Command { return ir.InterruptCommand(at, c) })
}

// Pending returns how many buffered events have not been flushed yet.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals) + len(r.commands)
}

// Flushed returns how many events have been written so far.
func (r *Recorder) Flushed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushed
}

// Flush writes every buffered event in one transaction and clears the
// buffer. On error the buffer is kept so a later Flush can retry; writes
// are idempotent per (run, seq).
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	signals, commands := r.signals, r.commands
	r.signals, r.commands = nil, nil
	r.mu.Unlock()

	if len(signals) == 0 && len(commands) == 0 {
		return nil
	}

	if err := r.store.WriteBatch(ctx, r.runID, signals, commands); err != nil {
		r.mu.Lock()
		r.signals = append(signals, r.signals...)
		r.commands = append(commands, r.commands...)
		r.mu.Unlock()
		return fmt.Errorf("flush run %s: %w", r.runID, err)
	}

	r.mu.Lock()
	r.flushed += len(signals) + len(commands)
	r.mu.Unlock()
	return nil
}
