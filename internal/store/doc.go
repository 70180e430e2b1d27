// Package store provides SQLite-backed durable storage for choreography
// traces.
//
// A run is one engine session. Within a run the store keeps an append-only
// log of:
//   - Signals: every signal fed to the engine, with its correlation ID
//   - Commands: every command the engine emitted to its sink
//
// # Ordering
//
// Signals and commands of a run share one logical seq counter, assigned by
// the Recorder in the order events happened. All queries order by seq,
// NEVER by timestamp, so a trace reads back exactly as it was recorded.
// The at_ns columns hold engine clock time and are informational.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Params and payloads are stored as RFC 8785 canonical JSON produced by
// internal/ir.
package store
