package crop

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// Mount generations and stored record stamps are drawn from a Clock so
// ordering never depends on wall time. Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start.
// Used to resume stamping after records have been loaded.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Advance moves the clock forward to at least v. It never moves backwards.
func (c *Clock) Advance(v int64) {
	for {
		cur := c.seq.Load()
		if v <= cur || c.seq.CompareAndSwap(cur, v) {
			return
		}
	}
}
