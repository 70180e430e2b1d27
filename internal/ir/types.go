package ir

import "time"

// Signal is an external event fed into the engine.
//
// The correlation ID that scopes interruption is NOT part of the signal;
// it travels alongside it as a separate argument to HandleSignal.
type Signal struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewSignal creates a signal. A nil payload is replaced with an empty map.
func NewSignal(signalType string, payload map[string]any) Signal {
	if payload == nil {
		payload = map[string]any{}
	}
	return Signal{Type: signalType, Payload: payload}
}

// Definition is a registered choreography: a trigger, an optional filter and
// a step tree. Identity is the registration index; ID is an optional
// authoring label used only in logs and traces.
type Definition struct {
	ID         string     `json:"id,omitempty"`
	On         string     `json:"on"`
	When       WhenClause `json:"when,omitempty"`
	Interrupts bool       `json:"interrupts,omitempty"`
	Steps      []Step     `json:"steps"`
}

// StepKind discriminates the Step tagged union.
type StepKind int

const (
	// StepInstant is a duration-less action producing a single execute.
	StepInstant StepKind = iota + 1
	// StepAnimated is an action with a duration producing start/update/complete.
	StepAnimated
	// StepWait blocks its branch for Duration without emitting anything.
	StepWait
	// StepParallel starts all children together and completes when all do.
	StepParallel
	// StepOnArrive splices its children in-line at its position.
	StepOnArrive
	// StepOnInterrupt runs its children only when the performance is interrupted.
	StepOnInterrupt
)

// String returns the authoring name of the step kind.
func (k StepKind) String() string {
	switch k {
	case StepInstant:
		return "instant"
	case StepAnimated:
		return "animated"
	case StepWait:
		return "wait"
	case StepParallel:
		return "parallel"
	case StepOnArrive:
		return "onArrive"
	case StepOnInterrupt:
		return "onInterrupt"
	default:
		return "unknown"
	}
}

// IsStructural reports whether the kind wraps child steps.
func (k StepKind) IsStructural() bool {
	return k == StepParallel || k == StepOnArrive || k == StepOnInterrupt
}

// WaitAction is the reserved action name for wait steps.
const WaitAction = "wait"

// Step is one node of a definition's step tree.
//
// Action steps use Action, Entity, Target, Duration, Easing and Params.
// Structural steps use Steps only. Entity, Target and string Params
// beginning with "signal." are references resolved against the triggering
// signal when the step runs.
type Step struct {
	Kind     StepKind       `json:"kind"`
	Action   string         `json:"action,omitempty"`
	Entity   string         `json:"entity,omitempty"`
	Target   string         `json:"target,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Easing   string         `json:"easing,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Steps    []Step         `json:"steps,omitempty"`
}

// Instant creates a duration-less action step.
func Instant(action, entity string, params map[string]any) Step {
	return Step{Kind: StepInstant, Action: action, Entity: entity, Params: params}
}

// Animated creates an action step with a duration.
func Animated(action, entity string, d time.Duration, easing string, params map[string]any) Step {
	return Step{Kind: StepAnimated, Action: action, Entity: entity, Duration: d, Easing: easing, Params: params}
}

// Wait creates a wait step.
func Wait(d time.Duration) Step {
	return Step{Kind: StepWait, Action: WaitAction, Duration: d}
}

// Parallel creates a parallel block.
func Parallel(steps ...Step) Step {
	return Step{Kind: StepParallel, Steps: steps}
}

// OnArrive creates an onArrive block.
func OnArrive(steps ...Step) Step {
	return Step{Kind: StepOnArrive, Steps: steps}
}

// OnInterrupt creates an onInterrupt handler block.
func OnInterrupt(steps ...Step) Step {
	return Step{Kind: StepOnInterrupt, Steps: steps}
}

// WithTarget returns a copy of the step with Target set.
func (s Step) WithTarget(target string) Step {
	s.Target = target
	return s
}

// ToMap converts the step to a plain map for canonical serialization.
// Durations are expressed in whole milliseconds, as they are authored.
func (s Step) ToMap() map[string]any {
	m := map[string]any{"kind": s.Kind.String()}
	if s.Kind.IsStructural() {
		children := make([]any, len(s.Steps))
		for i, child := range s.Steps {
			children[i] = child.ToMap()
		}
		m["steps"] = children
		return m
	}
	m["action"] = s.Action
	if s.Entity != "" {
		m["entity"] = s.Entity
	}
	if s.Target != "" {
		m["target"] = s.Target
	}
	if s.Kind == StepAnimated || s.Kind == StepWait {
		m["duration"] = s.Duration.Milliseconds()
	}
	if s.Easing != "" {
		m["easing"] = s.Easing
	}
	if len(s.Params) > 0 {
		m["params"] = s.Params
	}
	return m
}

// ToMap converts the definition to a plain map for canonical serialization.
func (d Definition) ToMap() map[string]any {
	steps := make([]any, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = s.ToMap()
	}
	m := map[string]any{
		"on":    d.On,
		"steps": steps,
	}
	if d.ID != "" {
		m["id"] = d.ID
	}
	if d.Interrupts {
		m["interrupts"] = true
	}
	if d.When != nil {
		m["when"] = d.When.ToList()
	}
	return m
}
