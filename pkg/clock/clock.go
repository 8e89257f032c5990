// Package clock provides the hybrid logical timestamps used to order writes
// to replicated maps.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is a hybrid logical timestamp: wall clock nanoseconds plus a
// logical counter that breaks ties within the same nanosecond.
type Timestamp struct {
	Physical int64  `json:"physical"`
	Logical  uint32 `json:"logical"`
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after o.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case t.Physical < o.Physical:
		return -1
	case t.Physical > o.Physical:
		return 1
	case t.Logical < o.Logical:
		return -1
	case t.Logical > o.Logical:
		return 1
	}
	return 0
}

// After reports whether t is strictly newer than o.
func (t Timestamp) After(o Timestamp) bool {
	return t.Compare(o) > 0
}

// IsZero reports whether t is the zero timestamp.
func (t Timestamp) IsZero() bool {
	return t.Physical == 0 && t.Logical == 0
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%d", t.Physical, t.Logical)
}

// Clock hands out timestamps for local writes.
type Clock interface {
	Now() Timestamp
}

// Observer is implemented by clocks that advance when a remote timestamp is
// seen, so later local writes order after everything already observed.
type Observer interface {
	Observe(Timestamp)
}

// LogicalClock is a hybrid logical clock safe for concurrent use.
type LogicalClock struct {
	mu   sync.Mutex
	last Timestamp
	wall func() time.Time
}

// NewLogicalClock returns a clock backed by time.Now.
func NewLogicalClock() *LogicalClock {
	return NewLogicalClockWithSource(time.Now)
}

// NewLogicalClockWithSource returns a clock reading physical time from wall.
func NewLogicalClockWithSource(wall func() time.Time) *LogicalClock {
	return &LogicalClock{wall: wall}
}

// Now returns a timestamp strictly greater than any previously returned or
// observed one.
func (c *LogicalClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	physical := c.wall().UnixNano()
	if physical > c.last.Physical {
		c.last = Timestamp{Physical: physical}
	} else {
		c.last.Logical++
	}

	return c.last
}

// Observe folds a remote timestamp into the clock.
func (c *LogicalClock) Observe(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ts.After(c.last) {
		c.last = ts
	}
}

// ManualClock returns whatever timestamp it was last set to. It is meant for
// tests that need to control conflict resolution.
type ManualClock struct {
	mu sync.Mutex
	ts Timestamp
}

// Set makes subsequent calls to Now return ts.
func (c *ManualClock) Set(ts Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ts = ts
}

// Now returns the timestamp last passed to Set.
func (c *ManualClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ts
}
