package player

import (
	"context"
	"time"
)

// PositionSource reports how much audio has actually been played. It is the
// master clock that video is synced against.
type PositionSource interface {
	// Position returns the cumulative playback position
	Position() time.Duration
}

// TimeSource abstracts wall-clock reads and sleeps so the scheduler can be
// driven by a fake clock in tests.
type TimeSource interface {
	// Now returns the current wall-clock time
	Now() time.Time

	// Sleep blocks for d or until ctx is done
	Sleep(ctx context.Context, d time.Duration) error
}

type systemTime struct{}

// SystemTime is the real wall clock.
var SystemTime TimeSource = systemTime{}

func (systemTime) Now() time.Time { return time.Now() }

func (systemTime) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	// AudioSampleRate is the rate the decoder resamples audio to
	AudioSampleRate = 44100

	// AudioChannels is the channel count the decoder downmixes to
	AudioChannels = 2

	// DefaultBufferFrames is the frame store high-water mark
	DefaultBufferFrames = 30

	// DefaultAudioQueue is the audio queue capacity in chunks
	DefaultAudioQueue = 64
)
