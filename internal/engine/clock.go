package engine

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts the engine's time source and frame scheduler.
//
// Times are durations since the clock's own epoch. RequestFrame schedules a
// callback for the next frame and returns a handle for CancelFrame.
// PendingCount reports how many callbacks are scheduled but not yet fired;
// zero active performances plus zero pending callbacks means the engine has
// fully quiesced.
//
// Implemented by FrameClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Duration
	RequestFrame(cb func(now time.Duration)) int
	CancelFrame(id int)
	PendingCount() int
}

// DefaultFPS is the production frame rate.
const DefaultFPS = 60

// FrameClock is the production clock: a frame loop driven by a real-time
// ticker, standing in for a host animation-frame scheduler.
//
// Each frame fires every callback that was pending when the frame began,
// serially, on the loop goroutine. Callbacks requested while a frame is
// firing run on the following frame.
//
// Thread-safety: all methods are safe for concurrent use. Frames only fire
// between Start and Stop.
type FrameClock struct {
	mu       sync.Mutex
	interval time.Duration
	epoch    time.Time
	nextID   int
	pending  []frameRequest

	cancel context.CancelFunc
	done   chan struct{}
}

type frameRequest struct {
	id int
	cb func(now time.Duration)
}

// NewFrameClock creates a frame clock running at fps frames per second.
// A non-positive fps selects DefaultFPS.
func NewFrameClock(fps int) *FrameClock {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &FrameClock{
		interval: time.Second / time.Duration(fps),
		epoch:    time.Now(),
	}
}

// Interval returns the frame interval.
func (c *FrameClock) Interval() time.Duration {
	return c.interval
}

// Now returns the time elapsed since the clock was created.
func (c *FrameClock) Now() time.Duration {
	return time.Since(c.epoch)
}

// RequestFrame schedules cb for the next frame.
func (c *FrameClock) RequestFrame(cb func(now time.Duration)) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.pending = append(c.pending, frameRequest{id: c.nextID, cb: cb})
	return c.nextID
}

// CancelFrame removes a scheduled callback. Unknown or already fired
// handles are ignored.
func (c *FrameClock) CancelFrame(id int) {
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
func (c *FrameClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Start launches the frame loop. It returns immediately; the loop runs
// until ctx is cancelled or Stop is called. Starting a running clock is a
// no-op.
func (c *FrameClock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
}

// Stop halts the frame loop and waits for it to exit. Pending callbacks
// stay scheduled and fire if the clock is started again.
func (c *FrameClock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *FrameClock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fireFrame()
		}
	}
}

// fireFrame runs the callbacks pending at the start of the frame.
// The lock is released before callbacks run so they may request frames.
func (c *FrameClock) fireFrame() {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	now := c.Now()
	for _, req := range batch {
		req.cb(now)
	}
}
