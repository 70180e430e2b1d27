package ir

import "time"

// ActionStart is emitted when an animated action begins.
type ActionStart struct {
	Action        string
	EntityRef     string
	Duration      time.Duration
	Easing        string
	Params        map[string]any
	PerformanceID string
}

// ActionUpdate is emitted on each tick while an animated action runs.
// Progress is the eased fraction in [0,1].
type ActionUpdate struct {
	Action        string
	EntityRef     string
	Progress      float64
	PerformanceID string
}

// ActionComplete is emitted when an animated action expires normally.
// It is never emitted for an interrupted or disposed action.
type ActionComplete struct {
	Action        string
	EntityRef     string
	PerformanceID string
}

// ActionExecute is emitted for an instant action.
type ActionExecute struct {
	Action    string
	EntityRef string
	Params    map[string]any
}

// Interrupt is emitted once per performance cancelled by an interrupting signal.
type Interrupt struct {
	CorrelationID string
	InterruptedBy string
}

// CommandKind identifies which sink call produced a Command.
type CommandKind string

const (
	CommandStart     CommandKind = "start"
	CommandUpdate    CommandKind = "update"
	CommandComplete  CommandKind = "complete"
	CommandExecute   CommandKind = "execute"
	CommandInterrupt CommandKind = "interrupt"
)

// ValidCommandKinds lists the recognized command kinds.
var ValidCommandKinds = map[CommandKind]bool{
	CommandStart:     true,
	CommandUpdate:    true,
	CommandComplete:  true,
	CommandExecute:   true,
	CommandInterrupt: true,
}

// Command is a flattened record of one sink call, stamped with the clock
// time it was observed at. Recorders, the trace store and the harness all
// work in terms of Command.
type Command struct {
	Seq           int64          `json:"seq"`
	At            time.Duration  `json:"at"`
	Kind          CommandKind    `json:"kind"`
	Action        string         `json:"action,omitempty"`
	EntityRef     string         `json:"entity_ref,omitempty"`
	Duration      time.Duration  `json:"duration,omitempty"`
	Easing        string         `json:"easing,omitempty"`
	Params        map[string]any `json:"params,omitempty"`
	Progress      float64        `json:"progress,omitempty"`
	PerformanceID string         `json:"performance_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	InterruptedBy string         `json:"interrupted_by,omitempty"`
}

// StartCommand flattens an ActionStart.
func StartCommand(at time.Duration, c ActionStart) Command {
	return Command{
		At:            at,
		Kind:          CommandStart,
		Action:        c.Action,
		EntityRef:     c.EntityRef,
		Duration:      c.Duration,
		Easing:        c.Easing,
		Params:        c.Params,
		PerformanceID: c.PerformanceID,
	}
}

// UpdateCommand flattens an ActionUpdate.
func UpdateCommand(at time.Duration, c ActionUpdate) Command {
	return Command{
		At:            at,
		Kind:          CommandUpdate,
		Action:        c.Action,
		EntityRef:     c.EntityRef,
		Progress:      c.Progress,
		PerformanceID: c.PerformanceID,
	}
}

// CompleteCommand flattens an ActionComplete.
func CompleteCommand(at time.Duration, c ActionComplete) Command {
	return Command{
		At:            at,
		Kind:          CommandComplete,
		Action:        c.Action,
		EntityRef:     c.EntityRef,
		PerformanceID: c.PerformanceID,
	}
}

// ExecuteCommand flattens an ActionExecute.
func ExecuteCommand(at time.Duration, c ActionExecute) Command {
	return Command{
		At:        at,
		Kind:      CommandExecute,
		Action:    c.Action,
		EntityRef: c.EntityRef,
		Params:    c.Params,
	}
}

// InterruptCommand flattens an Interrupt.
func InterruptCommand(at time.Duration, c Interrupt) Command {
	return Command{
		At:            at,
		Kind:          CommandInterrupt,
		CorrelationID: c.CorrelationID,
		InterruptedBy: c.InterruptedBy,
	}
}

// ProgressPermille returns Progress as an integer in [0,1000], used where
// canonical serialization forbids fractional numbers.
func (c Command) ProgressPermille() int64 {
	return int64(c.Progress*1000 + 0.5)
}

// ToMap converts the command to a plain map for canonical serialization.
// Times are whole milliseconds and progress is expressed in permille.
func (c Command) ToMap() map[string]any {
	m := map[string]any{
		"seq":  c.Seq,
		"at":   c.At.Milliseconds(),
		"kind": string(c.Kind),
	}
	if c.Action != "" {
		m["action"] = c.Action
	}
	if c.EntityRef != "" {
		m["entity_ref"] = c.EntityRef
	}
	if c.Kind == CommandStart {
		m["duration"] = c.Duration.Milliseconds()
		if c.Easing != "" {
			m["easing"] = c.Easing
		}
	}
	if len(c.Params) > 0 {
		m["params"] = c.Params
	}
	if c.Kind == CommandUpdate {
		m["progress"] = c.ProgressPermille()
	}
	if c.PerformanceID != "" {
		m["performance_id"] = c.PerformanceID
	}
	if c.CorrelationID != "" {
		m["correlation_id"] = c.CorrelationID
	}
	if c.InterruptedBy != "" {
		m["interrupted_by"] = c.InterruptedBy
	}
	return m
}
