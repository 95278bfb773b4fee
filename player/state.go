package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/termplay/media"
)

// State is the lifecycle of one playback session.
type State int32

const (
	StateInitializing State = iota
	StatePlaying
	StatePaused
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateAborted
}

// allowed lists the legal transitions.
var allowed = map[State][]State{
	StateInitializing: {StatePlaying, StateAborted},
	StatePlaying:      {StatePaused, StateFinished, StateAborted},
	StatePaused:       {StatePlaying, StateAborted},
}

// PlaybackState is shared by reference between the ingestion, audio and
// rendering tasks. Every lifecycle change goes through Transition.
type PlaybackState struct {
	state atomic.Int32

	lastFrame atomic.Int64 // last rendered frame index, -1 before the first
	audioPos  atomic.Int64 // last confirmed audio position in nanoseconds

	mu       sync.Mutex
	cause    error
	changed  chan struct{} // closed and replaced on every transition
	abortedC chan struct{} // closed once on abort
}

// NewPlaybackState returns a state in Initializing.
func NewPlaybackState() *PlaybackState {
	s := &PlaybackState{
		changed:  make(chan struct{}),
		abortedC: make(chan struct{}),
	}
	s.lastFrame.Store(-1)
	return s
}

// Load returns the current state.
func (s *PlaybackState) Load() State {
	return State(s.state.Load())
}

// Transition moves from one state to another if that transition is legal and
// the current state is still from. It reports whether the move happened.
func (s *PlaybackState) Transition(from, to State) bool {
	if !legal(from, to) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	close(s.changed)
	s.changed = make(chan struct{})
	if to == StateAborted {
		close(s.abortedC)
	}
	return true
}

func legal(from, to State) bool {
	for _, t := range allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Abort moves any non-terminal state to Aborted and records cause. Only the
// first cause is kept; it reports whether this call performed the abort.
func (s *PlaybackState) Abort(cause error) bool {
	for {
		cur := s.Load()
		if cur.Terminal() {
			return false
		}
		s.mu.Lock()
		if s.cause == nil {
			s.cause = cause
		}
		s.mu.Unlock()
		if s.Transition(cur, StateAborted) {
			return true
		}
	}
}

// Finish moves Playing (or Paused) to Finished.
func (s *PlaybackState) Finish() bool {
	if s.Transition(StatePlaying, StateFinished) {
		return true
	}
	return s.Transition(StatePaused, StateFinished)
}

// Cause returns the recorded abort cause, if any.
func (s *PlaybackState) Cause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Aborted is closed once the state reaches Aborted.
func (s *PlaybackState) Aborted() <-chan struct{} {
	return s.abortedC
}

// WaitPlaying blocks while the state is Initializing or Paused. It returns nil
// once Playing, and an error if the session ends or ctx is done first.
func (s *PlaybackState) WaitPlaying(ctx context.Context) error {
	for {
		s.mu.Lock()
		cur := s.Load()
		ch := s.changed
		s.mu.Unlock()

		switch cur {
		case StatePlaying:
			return nil
		case StateFinished:
			return fmt.Errorf("playback finished")
		case StateAborted:
			if err := s.Cause(); err != nil {
				return err
			}
			return media.ErrStopped
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetLastFrame records the most recently rendered frame index.
func (s *PlaybackState) SetLastFrame(index uint64) {
	s.lastFrame.Store(int64(index))
}

// LastFrame returns the most recently rendered frame index, or -1.
func (s *PlaybackState) LastFrame() int64 {
	return s.lastFrame.Load()
}

// SetAudioPosition records the latest audio position confirmed by the device.
func (s *PlaybackState) SetAudioPosition(d time.Duration) {
	s.audioPos.Store(int64(d))
}

// AudioPosition returns the latest confirmed audio position.
func (s *PlaybackState) AudioPosition() time.Duration {
	return time.Duration(s.audioPos.Load())
}
