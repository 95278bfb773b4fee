package media

import (
	"errors"
	"fmt"
)

var (
	// ErrDecodeFailure marks a failure of the external decoder process.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrOutOfOrder marks a frame or audio chunk whose index breaks the gapless sequence.
	ErrOutOfOrder = errors.New("out of order")

	// ErrOverrun is returned by non-blocking producers when a bounded queue is full.
	// It is a flow-control signal, not a playback failure.
	ErrOverrun = errors.New("queue overrun")

	// ErrClosed is returned once a queue has reached end of stream.
	ErrClosed = errors.New("closed")

	// ErrTerminalWrite marks a failed write to the terminal.
	ErrTerminalWrite = errors.New("terminal write failure")

	// ErrAudioDevice marks an audio device that is unavailable or went away.
	ErrAudioDevice = errors.New("audio device failure")

	// ErrStopped is the abort cause recorded when playback is stopped on request.
	ErrStopped = errors.New("playback stopped")
)

// PlaybackError wraps a fatal failure with the operation and position it happened at.
type PlaybackError struct {
	Kind  error  // one of the sentinel errors above
	Op    string // e.g. "render", "ingest video", "audio write"
	Index int64  // frame or chunk index, -1 when not applicable
	Err   error  // underlying cause, may be nil
}

// NewError builds a PlaybackError without an index.
func NewError(kind error, op string, err error) *PlaybackError {
	return &PlaybackError{Kind: kind, Op: op, Index: -1, Err: err}
}

// NewIndexError builds a PlaybackError for a specific frame or chunk.
func NewIndexError(kind error, op string, index uint64, err error) *PlaybackError {
	return &PlaybackError{Kind: kind, Op: op, Index: int64(index), Err: err}
}

func (e *PlaybackError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s at index %d", msg, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PlaybackError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
