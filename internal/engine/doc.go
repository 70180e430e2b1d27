// Package engine implements the signal-driven choreography engine.
//
// The engine maps discrete signals onto timed sequences of abstract visual
// commands. It renders nothing: every command goes to a Sink implemented by
// a rendering adapter outside this package.
//
// ARCHITECTURE:
//
// Single Timeline, Cooperative Scheduling:
// All execution happens inside clock ticks. There is no background work
// between ticks and no parallel threads inside the engine. "Parallel" steps
// are logical branches advanced one after another within a tick.
//
// Signal Processing Flow:
// 1. HandleSignal matches registered definitions (registration order)
// 2. Interrupting definitions cancel performances sharing the correlation ID
// 3. A new performance is queued per matching definition
// 4. The next clock tick drains the queue and advances every performance
//    until each is blocked on an animated action or wait, or finished
// 5. Once no performance is active the engine stops requesting frames
//
// Commands for a signal are therefore never emitted inside HandleSignal
// itself; the first start or execute is observed on the following tick.
//
// Components:
//   - Resolve / ResolveRef: dot-path lookup against a signal
//   - MatchesWhen: pure when-clause evaluation
//   - Clock: time source; FrameClock in production, a manual clock in tests
//   - Sink: the outbound command contract
//   - Choreographer: definitions, performances, tick drain, interruption
//
// Deterministic Ordering:
// Performances advance in creation order and parallel children in
// declaration order, so the same signals and ticks always produce the same
// command sequence.
package engine
