package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// TimelineEventType distinguishes signals from commands in a timeline.
type TimelineEventType int

const (
	EventSignal TimelineEventType = iota
	EventCommand
)

// String returns the event type as a string.
func (t TimelineEventType) String() string {
	switch t {
	case EventSignal:
		return "signal"
	case EventCommand:
		return "command"
	default:
		return "unknown"
	}
}

// TimelineEvent is one entry of a run's merged timeline. Exactly one of
// Signal and Command is set, matching Type.
type TimelineEvent struct {
	Type    TimelineEventType
	Seq     int64
	At      time.Duration
	Signal  *SignalRecord
	Command *ir.Command
}

// ReadTimeline returns a run's signals and commands merged into one
// stream in seq order, which is the order they happened in.
func (s *Store) ReadTimeline(ctx context.Context, runID string) ([]TimelineEvent, error) {
	signals, err := s.ReadSignals(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	commands, err := s.ReadCommands(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}

	return MergeTimeline(signals, commands), nil
}

// MergeTimeline merges signals and commands into one stream in seq order.
// The events point into the given slices.
func MergeTimeline(signals []SignalRecord, commands []ir.Command) []TimelineEvent {
	events := make([]TimelineEvent, 0, len(signals)+len(commands))
	for i := range signals {
		events = append(events, TimelineEvent{
			Type:   EventSignal,
			Seq:    signals[i].Seq,
			At:     signals[i].At,
			Signal: &signals[i],
		})
	}
	for i := range commands {
		events = append(events, TimelineEvent{
			Type:    EventCommand,
			Seq:     commands[i].Seq,
			At:      commands[i].At,
			Command: &commands[i],
		})
	}

	slices.SortStableFunc(events, func(a, b TimelineEvent) int {
		switch {
		case a.Seq != b.Seq:
			return cmp.Compare(a.Seq, b.Seq)
		default:
			// Signal (0) before Command (1)
			return int(a.Type) - int(b.Type)
		}
	})
	return events
}

// LastSeq returns the highest seq recorded for a run, or 0 for an empty
// run.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT seq FROM signals WHERE run_id = ?
			UNION ALL
			SELECT seq FROM commands WHERE run_id = ?
		)
	`, runID, runID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return last, nil
}
