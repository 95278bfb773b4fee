package player

import (
	"sync"
	"time"

	"github.com/njyeung/termplay/media"
)

// Clock defines the presentation timeline. Its origin is set exactly once,
// when playback starts; everything else is derived from it.
type Clock struct {
	ts TimeSource

	once   sync.Once
	mu     sync.RWMutex
	origin time.Time
}

// NewClock creates a clock reading time from ts (SystemTime when nil).
func NewClock(ts TimeSource) *Clock {
	if ts == nil {
		ts = SystemTime
	}
	return &Clock{ts: ts}
}

// Start sets the origin to the current time. Later calls do nothing.
func (c *Clock) Start() {
	c.once.Do(func() {
		c.mu.Lock()
		c.origin = c.ts.Now()
		c.mu.Unlock()
	})
}

// Origin returns the wall-clock start of playback, zero before Start.
func (c *Clock) Origin() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.origin
}

// Started reports whether Start has been called.
func (c *Clock) Started() bool {
	return !c.Origin().IsZero()
}

// Now returns the elapsed presentation time, zero before Start.
func (c *Clock) Now() time.Duration {
	origin := c.Origin()
	if origin.IsZero() {
		return 0
	}
	return c.ts.Now().Sub(origin)
}

// TargetTime returns the presentation offset of frame index at rate, that is
// index/rate measured from the origin.
func (c *Clock) TargetTime(index uint64, rate media.Rate) time.Duration {
	return rate.Offset(index)
}

// Deadline returns the absolute wall-clock time of a presentation offset.
func (c *Clock) Deadline(offset time.Duration) time.Time {
	return c.Origin().Add(offset)
}
