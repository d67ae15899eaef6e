// Package channel provides polled event sources for the variable system.
//
// A Channel hands over, on each PollAll, exactly the events that arrived
// since the previous call. The engine polls every channel once per tick,
// empty or not, and dispatches the events by their dynamic type.
//
// Transports that receive asynchronously (Redis, MQTT, WebSocket) run a
// receive goroutine that pushes decoded events into a Queue; PollAll drains
// the queue and never blocks.
package channel

import "sync"

// Channel is a polled source of events.
type Channel interface {
	// PollAll returns the events accumulated since the previous call and
	// clears them. The returned slice belongs to the caller.
	PollAll() ([]any, error)
}

// PollFunc adapts a function to a Channel.
type PollFunc func() ([]any, error)

// PollAll calls f.
func (f PollFunc) PollAll() ([]any, error) {
	return f()
}

// Queue is a thread-safe FIFO buffer of events.
//
// Producers call Push from any goroutine; the ticking goroutine drains the
// buffer with PollAll. The buffer is unbounded so a burst between two ticks
// never blocks a transport's receive loop.
//
// A receive failure reported with Fail is returned alone by the next
// PollAll; events pushed before it stay buffered for the following poll.
type Queue struct {
	mu     sync.Mutex
	events []any
	err    error
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		events: make([]any, 0, 16),
	}
}

// Push appends an event. Returns false if the queue is closed.
func (q *Queue) Push(ev any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// Fail records a receive error to be returned by the next PollAll.
// Only the first error between two polls is kept.
func (q *Queue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err == nil {
		q.err = err
	}
}

// PollAll returns and clears the buffered events. A pending receive error
// is returned instead, once. A drained closed queue returns no events and
// no error: closing is a normal end of input.
func (q *Queue) PollAll() ([]any, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		err := q.err
		q.err = nil
		return nil, err
	}

	if len(q.events) == 0 {
		return nil, nil
	}

	out := q.events
	// Hand the backing array to the caller and start a fresh one so the
	// caller can keep the slice without racing later pushes.
	q.events = make([]any, 0, cap(out))
	return out, nil
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further pushes. Buffered events can still be polled.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
