package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/choreo/internal/ir"
)

// Choreographer is the choreography engine: it holds registered
// definitions, tracks running performances, advances them on each clock
// tick and implements interruption.
//
// Thread-safety model:
//   - All public methods are safe from any goroutine; they serialize on one
//     mutex, which is also held while the tick drain runs
//   - Sink calls happen with the mutex held and must not re-enter the engine
//
// INVARIANTS:
//   - definitions order NEVER changes; matching follows registration order
//   - performances advance in creation order within a tick
//   - no command is emitted inside HandleSignal, and none after Dispose
type Choreographer struct {
	mu          sync.Mutex
	clock       Clock
	sink        Sink
	logger      *slog.Logger
	ids         IDGenerator
	definitions []ir.Definition

	pending *performanceQueue // created, not yet picked up by a tick
	active  []*performance    // advancing, in creation order

	frameID   int
	scheduled bool
	disposed  bool
}

// Option configures a Choreographer.
type Option func(*Choreographer)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Choreographer) {
		c.logger = l
	}
}

// WithIDGenerator sets the performance ID generator.
// Default: a CounterGenerator owned by this instance.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Choreographer) {
		c.ids = g
	}
}

// New creates a Choreographer driven by clock and emitting to sink.
// A nil sink discards commands.
func New(clock Clock, sink Sink, opts ...Option) *Choreographer {
	if sink == nil {
		sink = NopSink{}
	}
	c := &Choreographer{
		clock:   clock,
		sink:    sink,
		pending: newPerformanceQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.ids == nil {
		c.ids = NewCounterGenerator("perf")
	}
	return c
}

// Register appends a definition. No validation is performed beyond the
// structure of the type; authoring checks live in the compiler.
func (c *Choreographer) Register(def ir.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.definitions = append(c.definitions, def)
}

// RegisterAll appends definitions in order.
func (c *Choreographer) RegisterAll(defs []ir.Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.definitions = append(c.definitions, defs...)
}

// Definitions returns a copy of the registered definitions in
// registration order.
func (c *Choreographer) Definitions() []ir.Definition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ir.Definition, len(c.definitions))
	copy(out, c.definitions)
	return out
}

// HandleSignal feeds a signal into the engine.
//
// For every definition whose On equals the signal type and whose When
// clause matches, in registration order:
//  1. if the definition interrupts and correlationID is non-empty, every
//     performance that existed before this call and shares correlationID
//     is interrupted (at most once per call)
//  2. a new performance bound to the signal and correlationID is queued
//
// Execution begins on the next clock tick. An empty correlationID means
// the signal carries none. Calls after Dispose are ignored.
func (c *Choreographer) HandleSignal(sig ir.Signal, correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		c.logger.Debug("signal ignored: engine disposed", "signal", sig.Type)
		return
	}

	// Interruption only targets performances that predate this signal, so
	// a performance created below can never be cancelled by its own trigger.
	var targets []*performance
	if correlationID != "" {
		targets = c.performancesFor(correlationID)
	}
	interrupted := false
	queued := 0

	for i, def := range c.definitions {
		if def.On != sig.Type || !MatchesWhen(def.When, sig) {
			continue
		}

		if def.Interrupts && correlationID != "" && !interrupted {
			interrupted = true
			c.interrupt(targets, correlationID, sig.Type)
		}

		p := newPerformance(c.ids.Generate(), i, def, sig, correlationID)
		c.pending.Enqueue(p)
		queued++

		c.logger.Debug("choreography matched",
			"definition", i,
			"signal", sig.Type,
			"performance", p.id,
			"correlation_id", correlationID,
		)
	}

	if queued > 0 || interrupted {
		c.requestFrame()
	}
}

// performancesFor returns every live performance carrying correlationID,
// active ones first, each group in creation order.
func (c *Choreographer) performancesFor(correlationID string) []*performance {
	var out []*performance
	for _, p := range c.active {
		if p.correlationID == correlationID {
			out = append(out, p)
		}
	}
	for _, p := range c.pending.Items() {
		if p.correlationID == correlationID {
			out = append(out, p)
		}
	}
	return out
}

// interrupt cancels each target's in-flight actions without completions,
// emits one interrupt per target, then either splices the guarding
// onInterrupt block in as the remaining steps or terminates the target.
func (c *Choreographer) interrupt(targets []*performance, correlationID, by string) {
	if len(targets) == 0 {
		c.logger.Debug("interrupt: no performances for correlation",
			"correlation_id", correlationID,
			"interrupted_by", by,
		)
		return
	}

	for _, p := range targets {
		handler, hasHandler := p.root.interruptHandler()
		cancelled := p.root.cancel()

		c.sink.OnInterrupt(ir.Interrupt{
			CorrelationID: correlationID,
			InterruptedBy: by,
		})

		if hasHandler {
			p.root = newCursor(handler.Steps)
			p.interrupted = true
		} else {
			c.remove(p)
		}

		c.logger.Info("performance interrupted",
			"performance", p.id,
			"correlation_id", correlationID,
			"interrupted_by", by,
			"cancelled_actions", cancelled,
			"handler", hasHandler,
		)
	}
}

// remove drops p from the live set.
func (c *Choreographer) remove(p *performance) {
	if c.pending.Remove(p) {
		return
	}
	for i, q := range c.active {
		if q == p {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return
		}
	}
}

// requestFrame schedules one tick unless one is already outstanding.
func (c *Choreographer) requestFrame() {
	if c.scheduled || c.disposed {
		return
	}
	c.scheduled = true
	c.frameID = c.clock.RequestFrame(c.tick)
}

// tick drains queued performances and advances every live one.
func (c *Choreographer) tick(now time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scheduled = false
	c.frameID = 0
	if c.disposed {
		return
	}

	for p, ok := c.pending.TryDequeue(); ok; p, ok = c.pending.TryDequeue() {
		c.active = append(c.active, p)
	}

	live := make([]*performance, 0, len(c.active))
	for _, p := range c.active {
		r := &runner{perf: p, sink: c.sink, now: now}
		if p.root.advance(r) {
			c.logger.Debug("performance finished",
				"performance", p.id,
				"definition", p.definition,
				"interrupted", p.interrupted,
			)
			continue
		}
		live = append(live, p)
	}
	c.active = live

	if len(c.active) > 0 {
		c.requestFrame()
	}
}

// ActivePerformanceCount returns the number of non-terminal performances,
// queued or running.
func (c *Choreographer) ActivePerformanceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active) + c.pending.Len()
}

// Dispose cancels every performance and in-flight action without emitting
// anything, cancels outstanding clock scheduling and empties the live set.
// Later signals are ignored. Dispose is idempotent.
func (c *Choreographer) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true

	if c.scheduled {
		c.clock.CancelFrame(c.frameID)
		c.scheduled = false
		c.frameID = 0
	}

	dropped := len(c.active) + c.pending.Len()
	for _, p := range c.active {
		p.root.cancel()
	}
	c.active = nil
	c.pending.Clear()

	c.logger.Info("choreographer disposed", "dropped_performances", dropped)
}
