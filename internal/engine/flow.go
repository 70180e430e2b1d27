package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces performance IDs.
// Implemented by CounterGenerator (default), UUIDv7Generator and
// FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// CounterGenerator numbers performances "<prefix>-1", "<prefix>-2", ...
//
// Every Choreographer owns its own counter, so concurrent engines (for
// example in parallel tests) never share or perturb each other's IDs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type CounterGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewCounterGenerator creates a counter starting at 1.
// An empty prefix defaults to "perf".
func NewCounterGenerator(prefix string) *CounterGenerator {
	if prefix == "" {
		prefix = "perf"
	}
	return &CounterGenerator{prefix: prefix}
}

// Generate returns the next numbered ID.
func (g *CounterGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// UUIDv7Generator generates time-sortable UUIDv7 performance IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, which keeps IDs
// sortable by creation time when traces from several engines are merged.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined IDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
//
// Panics if all IDs have been consumed. This is a fail-fast approach to
// catch a test that triggers more performances than it expects.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
