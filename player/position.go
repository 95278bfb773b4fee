package player

import (
	"sync"
	"time"
)

// ClockPosition stands in for the audio position when the media has no audio
// track. It follows the playback clock and stops while paused.
type ClockPosition struct {
	clock *Clock

	mu          sync.Mutex
	paused      bool
	pausedAt    time.Duration
	pausedTotal time.Duration
}

// NewClockPosition creates a position source driven by clock.
func NewClockPosition(clock *Clock) *ClockPosition {
	return &ClockPosition{clock: clock}
}

// Position returns elapsed playback time excluding paused intervals.
func (p *ClockPosition) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.paused {
		now = p.pausedAt
	}
	return now - p.pausedTotal
}

// SetPaused freezes or resumes the position.
func (p *ClockPosition) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if paused == p.paused {
		return
	}
	now := p.clock.Now()
	if paused {
		p.pausedAt = now
	} else {
		p.pausedTotal += now - p.pausedAt
	}
	p.paused = paused
}
