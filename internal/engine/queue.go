package engine

// performanceQueue is a FIFO of performances created by HandleSignal that
// have not yet been picked up by a tick.
//
// Not safe for concurrent use on its own: the Choreographer only touches it
// with its lock held.
type performanceQueue struct {
	items []*performance
}

// newPerformanceQueue creates an empty queue.
func newPerformanceQueue() *performanceQueue {
	return &performanceQueue{
		items: make([]*performance, 0, 8),
	}
}

// Enqueue adds a performance to the back of the queue.
func (q *performanceQueue) Enqueue(p *performance) {
	q.items = append(q.items, p)
}

// TryDequeue removes and returns the front performance.
// Returns (nil, false) if the queue is empty.
func (q *performanceQueue) TryDequeue() (*performance, bool) {
	if len(q.items) == 0 {
		return nil, false
	}

	p := q.items[0]

	// Nil out the slot so the backing array does not retain the performance.
	q.items[0] = nil

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return p, true
}

// Remove drops p from the queue if present.
func (q *performanceQueue) Remove(p *performance) bool {
	for i, item := range q.items {
		if item == p {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = nil
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// Items returns the queued performances in order. The slice must not be
// modified.
func (q *performanceQueue) Items() []*performance {
	return q.items
}

// Len returns the current queue length.
func (q *performanceQueue) Len() int {
	return len(q.items)
}

// Clear empties the queue.
func (q *performanceQueue) Clear() {
	for i := range q.items {
		q.items[i] = nil
	}
	q.items = q.items[:0]
}
