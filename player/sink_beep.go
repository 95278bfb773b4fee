package player

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/njyeung/termplay/media"
)

// SpeakerBuffer is the device-side buffer handed to the speaker.
const SpeakerBuffer = 50 * time.Millisecond

// SpeakerSink plays samples through the beep speaker. The speaker pulls from
// Stream on its own goroutine; Played counts only what it pulled, less what
// is still sitting in the speaker's buffer.
type SpeakerSink struct {
	pending chan [][2]float64
	cur     [][2]float64

	written atomic.Int64
	played  atomic.Int64
	paused  atomic.Bool
	latency int64 // samples buffered between Stream and the speaker
	detach  func()

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// speakerDevice owns the process-wide speaker. beep's speaker can only be
// initialized once, so sessions share it and attach or detach their sink.
type speakerDevice struct {
	init  func(sr beep.SampleRate, bufferSize int) error
	play  func(s ...beep.Streamer)
	clear func()

	mu   sync.Mutex
	rate int // 0 until initialized
}

var defaultSpeaker = &speakerDevice{
	init:  speaker.Init,
	play:  speaker.Play,
	clear: speaker.Clear,
}

// open initializes the speaker on first use and starts a sink on it.
func (d *speakerDevice) open(sampleRate, depth int) (*SpeakerSink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sr := beep.SampleRate(sampleRate)
	switch d.rate {
	case 0:
		if err := d.init(sr, sr.N(SpeakerBuffer)); err != nil {
			return nil, media.NewError(media.ErrAudioDevice, "open speaker", err)
		}
		d.rate = sampleRate
	case sampleRate:
	default:
		return nil, media.NewError(media.ErrAudioDevice, "open speaker",
			fmt.Errorf("speaker runs at %d Hz, not %d Hz", d.rate, sampleRate))
	}

	s := newSpeakerSink(depth)
	s.latency = int64(sr.N(SpeakerBuffer))
	s.detach = d.clear
	d.play(s)
	return s, nil
}

// OpenSpeaker starts a sink on the default output device at sampleRate.
// depth bounds how many written batches may wait ahead of the device.
func OpenSpeaker(sampleRate, depth int) (*SpeakerSink, error) {
	return defaultSpeaker.open(sampleRate, depth)
}

func newSpeakerSink(depth int) *SpeakerSink {
	if depth < 1 {
		depth = 4
	}
	return &SpeakerSink{
		pending: make(chan [][2]float64, depth),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Stream implements beep.Streamer. It never reports exhaustion: when no data
// is queued it plays silence so the device keeps running.
func (s *SpeakerSink) Stream(samples [][2]float64) (n int, ok bool) {
	if s.paused.Load() {
		clear(samples)
		return len(samples), true
	}

	filled := 0
	for filled < len(samples) {
		if len(s.cur) == 0 {
			next, ok := s.nextBatch()
			if !ok {
				break
			}
			s.cur = next
		}
		c := copy(samples[filled:], s.cur)
		s.cur = s.cur[c:]
		filled += c
	}
	clear(samples[filled:])

	if filled > 0 {
		s.played.Add(int64(filled))
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
	return len(samples), true
}

func (s *SpeakerSink) nextBatch() ([][2]float64, bool) {
	select {
	case next := <-s.pending:
		return next, true
	default:
		return nil, false
	}
}

// Err implements beep.Streamer.
func (s *SpeakerSink) Err() error {
	return nil
}

// Write queues samples for the device, blocking while depth batches are waiting.
func (s *SpeakerSink) Write(ctx context.Context, samples [][2]float64) error {
	if len(samples) == 0 {
		return nil
	}
	select {
	case s.pending <- samples:
		s.written.Add(int64(len(samples)))
		return nil
	case <-s.done:
		return media.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Played returns the number of sample frames the device has played: those
// pulled by the speaker minus the speaker's own buffer.
func (s *SpeakerSink) Played() int64 {
	return max(s.played.Load()-s.latency, 0)
}

// Drain waits until the device has pulled everything written.
func (s *SpeakerSink) Drain(ctx context.Context) error {
	for s.played.Load() < s.written.Load() {
		select {
		case <-s.notify:
		case <-s.done:
			return media.ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SetPaused makes Stream emit silence without consuming samples.
func (s *SpeakerSink) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// Close stops this sink's playback. The speaker itself stays initialized
// for the next session.
func (s *SpeakerSink) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.detach != nil {
			s.detach()
		}
	})
	return nil
}
