package testutil

import (
	"sync"
	"time"
)

// ManualClock is a deterministic clock for tests, advanced explicitly.
//
// Unlike engine.FrameClock there is no background goroutine: Advance moves
// time forward by exactly the requested amount and synchronously fires
// exactly one pending callback (the oldest). A tick is never fragmented
// into sub-frames, so timing assertions are exact and reproducible.
//
// Implements engine.Clock.
//
// Thread-safety: all methods are safe for concurrent use; callbacks run on
// the goroutine calling Advance, with no lock held.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending []manualRequest
	fired   int
}

type manualRequest struct {
	id int
	cb func(now time.Duration)
}

// NewManualClock creates a clock at time 0 with nothing scheduled.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// RequestFrame schedules cb for the next Advance.
func (c *ManualClock) RequestFrame(cb func(now time.Duration)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.pending = append(c.pending, manualRequest{id: c.nextID, cb: cb})
	return c.nextID
}

// CancelFrame removes a scheduled callback. Unknown handles are ignored.
func (c *ManualClock) CancelFrame(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, req := range c.pending {
		if req.id == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// PendingCount returns the number of scheduled callbacks.
func (c *ManualClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Fired returns how many callbacks Advance has fired so far.
func (c *ManualClock) Fired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

// Advance moves time forward by d and fires the oldest pending callback
// with the new time. Returns false if nothing was pending; time still
// advances in that case.
func (c *ManualClock) Advance(d time.Duration) bool {
	c.mu.Lock()
	c.now += d
	now := c.now
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return false
	}
	req := c.pending[0]
	c.pending = c.pending[1:]
	c.fired++
	c.mu.Unlock()

	req.cb(now)
	return true
}

// AdvanceMs is Advance expressed in milliseconds.
func (c *ManualClock) AdvanceMs(ms int64) bool {
	return c.Advance(time.Duration(ms) * time.Millisecond)
}

// RunUntilIdle advances by step until no callback is pending or maxFrames
// callbacks have fired. Returns the number of frames fired.
func (c *ManualClock) RunUntilIdle(step time.Duration, maxFrames int) int {
	frames := 0
	for frames < maxFrames && c.PendingCount() > 0 {
		if c.Advance(step) {
			frames++
		}
	}
	return frames
}
