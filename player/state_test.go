package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/njyeung/termplay/media"
)

func TestPlaybackStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateInitializing, StatePlaying, true},
		{StateInitializing, StatePaused, false},
		{StateInitializing, StateFinished, false},
		{StatePlaying, StatePaused, true},
		{StatePlaying, StateFinished, true},
		{StatePaused, StatePlaying, true},
		{StatePaused, StateFinished, false},
		{StateFinished, StatePlaying, false},
		{StateAborted, StatePlaying, false},
	}
	for _, tt := range tests {
		if got := legal(tt.from, tt.to); got != tt.ok {
			t.Errorf("legal(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}

	s := NewPlaybackState()
	if s.Transition(StatePlaying, StatePaused) {
		t.Error("transition from a state other than the current one succeeded")
	}
	if !s.Transition(StateInitializing, StatePlaying) || s.Load() != StatePlaying {
		t.Fatal("Initializing -> Playing failed")
	}
	if !s.Finish() || s.Load() != StateFinished {
		t.Fatal("Finish failed")
	}
	if s.Abort(errors.New("late")) {
		t.Error("Abort after Finish succeeded")
	}
}

func TestPlaybackStateAbortKeepsFirstCause(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState()
	first := media.NewError(media.ErrTerminalWrite, "render", nil)
	if !s.Abort(first) {
		t.Fatal("Abort failed")
	}
	s.Abort(errors.New("second"))

	if !errors.Is(s.Cause(), media.ErrTerminalWrite) {
		t.Errorf("Cause = %v, want the first cause", s.Cause())
	}
	select {
	case <-s.Aborted():
	default:
		t.Error("Aborted channel not closed")
	}
}

func TestPlaybackStateWaitPlaying(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState()
	s.Transition(StateInitializing, StatePlaying)
	s.Transition(StatePlaying, StatePaused)

	done := make(chan error, 1)
	go func() { done <- s.WaitPlaying(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitPlaying returned while paused")
	case <-time.After(20 * time.Millisecond):
	}

	s.Transition(StatePaused, StatePlaying)
	if err := <-done; err != nil {
		t.Fatalf("WaitPlaying = %v", err)
	}

	go func() { done <- s.WaitPlaying(context.Background()) }()
	if err := <-done; err != nil {
		t.Fatalf("WaitPlaying while playing = %v", err)
	}

	s.Abort(nil)
	if err := s.WaitPlaying(context.Background()); !errors.Is(err, media.ErrStopped) {
		t.Errorf("WaitPlaying after abort = %v, want ErrStopped", err)
	}
}
