package testutil

import (
	"sync"
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// TimeSource reports the current time. Both engine clocks satisfy it.
type TimeSource interface {
	Now() time.Duration
}

// RecordingSink records every command it receives, stamped with the time
// source's current time and a monotonic sequence number.
//
// Implements engine.Sink.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingSink struct {
	mu       sync.Mutex
	time     TimeSource
	seq      int64
	commands []ir.Command
}

// NewRecordingSink creates a sink stamping commands with ts. A nil ts
// stamps every command at time 0.
func NewRecordingSink(ts TimeSource) *RecordingSink {
	return &RecordingSink{time: ts}
}

func (s *RecordingSink) record(build func(at time.Duration) ir.Command) {
	var at time.Duration
	if s.time != nil {
		at = s.time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	cmd := build(at)
	cmd.Seq = s.seq
	s.commands = append(s.commands, cmd)
}

func (s *RecordingSink) OnActionStart(c ir.ActionStart) {
	s.record(func(at time.Duration) ir.Command { return ir.StartCommand(at, c) })
}

func (s *RecordingSink) OnActionUpdate(c ir.ActionUpdate) {
	s.record(func(at time.Duration) ir.Command { return ir.UpdateCommand(at, c) })
}

func (s *RecordingSink) OnActionComplete(c ir.ActionComplete) {
	s.record(func(at time.Duration) ir.Command { return ir.CompleteCommand(at, c) })
}

func (s *RecordingSink) OnActionExecute(c ir.ActionExecute) {
	s.record(func(at time.Duration) ir.Command { return ir.ExecuteCommand(at, c) })
}

func (s *RecordingSink) OnInterrupt(c ir.Interrupt) {
	s.record(func(at time.Duration) ir.Command { return ir.InterruptCommand(at, c) })
}

// Commands returns a copy of everything recorded, in order.
func (s *RecordingSink) Commands() []ir.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// OfKind returns the recorded commands of one kind, in order.
func (s *RecordingSink) OfKind(kind ir.CommandKind) []ir.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ir.Command
	for _, c := range s.commands {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many commands of kind were recorded.
func (s *RecordingSink) Count(kind ir.CommandKind) int {
	return len(s.OfKind(kind))
}

// Kinds returns the kind of every recorded command, in order.
func (s *RecordingSink) Kinds() []ir.CommandKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.CommandKind, len(s.commands))
	for i, c := range s.commands {
		out[i] = c.Kind
	}
	return out
}

// Len returns the number of recorded commands.
func (s *RecordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commands)
}

// Reset discards everything recorded. The sequence keeps counting.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}
