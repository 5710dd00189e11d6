package data

import (
	"sync"
	"time"
)

// Clock hands out store timestamps: UTC, millisecond precision (what BSON
// dates keep) and strictly increasing within the process.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a Clock reading now, or time.Now when now is nil.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t
}

// After returns the next timestamp that is also strictly later than floor.
// Used for per-document monotonicity when several processes share a store.
func (c *Clock) After(floor time.Time) time.Time {
	t := c.Now()
	if !t.After(floor) {
		t = floor.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
		c.mu.Lock()
		if t.After(c.last) {
			c.last = t
		}
		c.mu.Unlock()
	}
	return t
}
