package engine

import "github.com/roach88/choreo/internal/ir"

// Sink receives the engine's abstract commands. Rendering adapters
// implement it; the engine never consumes a return value or depends on
// sink side effects.
//
// Sink methods are called with the engine's lock held and must not call
// back into the Choreographer.
type Sink interface {
	OnActionStart(ir.ActionStart)
	OnActionUpdate(ir.ActionUpdate)
	OnActionComplete(ir.ActionComplete)
	OnActionExecute(ir.ActionExecute)
	OnInterrupt(ir.Interrupt)
}

// NopSink discards every command.
type NopSink struct{}

func (NopSink) OnActionStart(ir.ActionStart)       {}
func (NopSink) OnActionUpdate(ir.ActionUpdate)     {}
func (NopSink) OnActionComplete(ir.ActionComplete) {}
func (NopSink) OnActionExecute(ir.ActionExecute)   {}
func (NopSink) OnInterrupt(ir.Interrupt)           {}

// MultiSink fans every command out to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnActionStart(c ir.ActionStart) {
	for _, s := range m {
		s.OnActionStart(c)
	}
}

func (m MultiSink) OnActionUpdate(c ir.ActionUpdate) {
	for _, s := range m {
		s.OnActionUpdate(c)
	}
}

func (m MultiSink) OnActionComplete(c ir.ActionComplete) {
	for _, s := range m {
		s.OnActionComplete(c)
	}
}

func (m MultiSink) OnActionExecute(c ir.ActionExecute) {
	for _, s := range m {
		s.OnActionExecute(c)
	}
}

func (m MultiSink) OnInterrupt(c ir.Interrupt) {
	for _, s := range m {
		s.OnInterrupt(c)
	}
}
