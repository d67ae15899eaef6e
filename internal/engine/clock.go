package engine

import "sync/atomic"

// Clock numbers ticks with a monotonic logical sequence.
//
// Every tick is stamped with the next value before any channel is polled,
// so observers can group evaluations by tick without wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), so
// other goroutines may read Current while the system ticks.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first tick is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first tick is start+1.
// Used to continue numbering across restarts of a recorded run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new tick number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last tick number handed out, 0 before the first tick.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
