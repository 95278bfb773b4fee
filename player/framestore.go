package player

import (
	"context"
	"fmt"
	"sync"

	"github.com/njyeung/termplay/media"
)

// FrameStore buffers decoded frames between ingestion and rendering. It is a
// bounded, index-addressed queue: producers block at the high-water mark and
// consumers block until the index they want arrives.
type FrameStore struct {
	highWater int

	mu      sync.Mutex
	frames  map[uint64]media.Frame
	next    uint64 // index the next Put must carry
	closed  bool
	err     error         // abort cause
	changed chan struct{} // closed and replaced on every mutation
}

// NewFrameStore creates a store that holds at most highWater untaken frames.
func NewFrameStore(highWater int) *FrameStore {
	if highWater < 1 {
		highWater = 1
	}
	return &FrameStore{
		highWater: highWater,
		frames:    make(map[uint64]media.Frame, highWater),
		changed:   make(chan struct{}),
	}
}

// broadcast wakes every waiter. Callers hold mu.
func (s *FrameStore) broadcast() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Put inserts frame. Its index must be exactly one past the previous frame's
// (0 for the first). Put blocks while the store is at its high-water mark.
func (s *FrameStore) Put(ctx context.Context, frame media.Frame) error {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		return media.ErrClosed
	}
	if frame.Index != s.next {
		return s.outOfOrder(frame.Index)
	}

	for len(s.frames) >= s.highWater {
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return err
		}
		if frame.Index != s.next {
			return s.outOfOrder(frame.Index)
		}
	}

	s.frames[frame.Index] = frame
	s.next++
	s.broadcast()
	s.mu.Unlock()
	return nil
}

// outOfOrder unlocks mu and builds the error for a misplaced index.
func (s *FrameStore) outOfOrder(index uint64) error {
	want := s.next
	s.mu.Unlock()
	return media.NewIndexError(media.ErrOutOfOrder, "frame store put", index,
		fmt.Errorf("expected index %d", want))
}

// Take blocks until the frame with index is available, then removes and
// returns it. It returns media.ErrClosed when the stream has ended without
// that index.
func (s *FrameStore) Take(ctx context.Context, index uint64) (media.Frame, error) {
	s.mu.Lock()
	for {
		if f, ok := s.frames[index]; ok {
			delete(s.frames, index)
			s.broadcast()
			s.mu.Unlock()
			return f, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return media.Frame{}, err
		}
		if index < s.next {
			s.mu.Unlock()
			return media.Frame{}, fmt.Errorf("frame %d already taken", index)
		}
		if s.closed {
			s.mu.Unlock()
			return media.Frame{}, media.ErrClosed
		}

		ch := s.changed
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return media.Frame{}, ctx.Err()
		}
		s.mu.Lock()
	}
}

// Close signals end of stream. Frames already buffered remain takeable.
func (s *FrameStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.broadcast()
}

// Abort fails every pending and future Put and Take with err.
func (s *FrameStore) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	s.closed = true
	s.broadcast()
}

// Len returns the number of buffered frames.
func (s *FrameStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// HighWater returns the configured capacity.
func (s *FrameStore) HighWater() int {
	return s.highWater
}
