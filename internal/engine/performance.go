package engine

import (
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// performance is one running instance of a triggered definition.
type performance struct {
	id            string
	definition    int
	correlationID string
	signal        ir.Signal
	root          *cursor

	// interrupted is set once the performance has switched to an
	// onInterrupt handler.
	interrupted bool
}

func newPerformance(id string, definition int, def ir.Definition, sig ir.Signal, correlationID string) *performance {
	return &performance{
		id:            id,
		definition:    definition,
		correlationID: correlationID,
		signal:        sig,
		root:          newCursor(def.Steps),
	}
}

// frame is one level of a cursor's explicit step stack.
type frame struct {
	steps []ir.Step
	index int
}

// cursor is an execution branch: an explicit stack of (steps, index)
// frames. A branch is blocked either on an action (animated or wait) or on
// the child branches of a parallel step, never both.
type cursor struct {
	frames   []frame
	action   *activeAction
	children []*cursor
	done     bool
}

func newCursor(steps []ir.Step) *cursor {
	return &cursor{frames: []frame{{steps: steps}}}
}

// activeAction is the bookkeeping for one in-flight animated step or wait.
type activeAction struct {
	step      ir.Step
	startTime time.Duration
	entityRef string
	params    map[string]any
}

func (a *activeAction) isWait() bool {
	return a.step.Kind == ir.StepWait
}

// next pops the next step of the branch in document order, unwinding
// exhausted frames. Returns false when the branch has no steps left.
func (c *cursor) next() (ir.Step, bool) {
	for len(c.frames) > 0 {
		top := &c.frames[len(c.frames)-1]
		if top.index >= len(top.steps) {
			c.frames = c.frames[:len(c.frames)-1]
			continue
		}
		step := top.steps[top.index]
		top.index++
		return step, true
	}
	return ir.Step{}, false
}

// push splices steps in at the current position.
func (c *cursor) push(steps []ir.Step) {
	if len(steps) == 0 {
		return
	}
	c.frames = append(c.frames, frame{steps: steps})
}

// interruptHandler finds the onInterrupt block that guards the branch's
// current position, searching live parallel children first. Within a
// branch the guard is the next pending step in document order: frames
// pushed by onArrive read as inline, so exhausted frames are skipped and
// the first pending step decides.
func (c *cursor) interruptHandler() (ir.Step, bool) {
	for _, child := range c.children {
		if child.done {
			continue
		}
		if h, ok := child.interruptHandler(); ok {
			return h, true
		}
	}
	for i := len(c.frames) - 1; i >= 0; i-- {
		f := c.frames[i]
		if f.index >= len(f.steps) {
			continue
		}
		next := f.steps[f.index]
		return next, next.Kind == ir.StepOnInterrupt
	}
	return ir.Step{}, false
}

// cancel drops every in-flight action in the branch and its children
// without emitting anything. Returns the number of actions dropped.
func (c *cursor) cancel() int {
	n := 0
	if c.action != nil {
		c.action = nil
		n++
	}
	for _, child := range c.children {
		n += child.cancel()
	}
	c.children = nil
	return n
}

// runner is what a cursor needs from the engine while advancing: the
// owning performance for reference resolution and a sink for commands.
type runner struct {
	perf *performance
	sink Sink
	now  time.Duration
}

// advance moves the branch forward as far as it can within one tick.
// It returns true once the branch has exhausted its steps.
func (c *cursor) advance(r *runner) bool {
	for {
		if c.action != nil {
			if !r.stepAction(c.action) {
				return false
			}
			c.action = nil
			continue
		}

		if c.children != nil {
			pending := false
			for _, child := range c.children {
				if child.done {
					continue
				}
				if child.advance(r) {
					child.done = true
				} else {
					pending = true
				}
			}
			if pending {
				return false
			}
			c.children = nil
			continue
		}

		step, ok := c.next()
		if !ok {
			c.done = true
			return true
		}

		switch step.Kind {
		case ir.StepInstant:
			r.execute(step)

		case ir.StepAnimated:
			c.action = r.start(step)

		case ir.StepWait:
			c.action = &activeAction{step: step, startTime: r.now}

		case ir.StepParallel:
			c.children = make([]*cursor, len(step.Steps))
			for i, child := range step.Steps {
				c.children[i] = newCursor([]ir.Step{child})
			}

		case ir.StepOnArrive:
			c.push(step.Steps)

		case ir.StepOnInterrupt:
			// Only reachable through interruption.
		}
	}
}

// execute emits an instant action.
func (r *runner) execute(step ir.Step) {
	entityRef, params := resolveStep(step, r.perf.signal)
	r.sink.OnActionExecute(ir.ActionExecute{
		Action:    step.Action,
		EntityRef: entityRef,
		Params:    params,
	})
}

// start emits the start of an animated action and returns its bookkeeping.
func (r *runner) start(step ir.Step) *activeAction {
	entityRef, params := resolveStep(step, r.perf.signal)
	r.sink.OnActionStart(ir.ActionStart{
		Action:        step.Action,
		EntityRef:     entityRef,
		Duration:      step.Duration,
		Easing:        step.Easing,
		Params:        params,
		PerformanceID: r.perf.id,
	})
	return &activeAction{
		step:      step,
		startTime: r.now,
		entityRef: entityRef,
		params:    params,
	}
}

// stepAction evaluates an in-flight action at the current tick. It emits
// an update while the action runs and a completion once it expires, and
// returns true when expired. Waits emit nothing. A zero duration expires on
// its first evaluation, so no update is ever emitted for it.
func (r *runner) stepAction(a *activeAction) bool {
	elapsed := r.now - a.startTime
	if a.step.Duration <= 0 || elapsed >= a.step.Duration {
		if !a.isWait() {
			r.sink.OnActionComplete(ir.ActionComplete{
				Action:        a.step.Action,
				EntityRef:     a.entityRef,
				PerformanceID: r.perf.id,
			})
		}
		return true
	}

	if !a.isWait() {
		raw := float64(elapsed) / float64(a.step.Duration)
		r.sink.OnActionUpdate(ir.ActionUpdate{
			Action:        a.step.Action,
			EntityRef:     a.entityRef,
			Progress:      Ease(a.step.Easing, raw),
			PerformanceID: r.perf.id,
		})
	}
	return false
}
