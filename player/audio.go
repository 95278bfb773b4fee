package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/termplay/media"
)

// Sink is the audio device boundary. Implementations consume samples at a
// fixed rate and count what they actually played.
type Sink interface {
	// Write hands samples to the device, blocking while its buffer is full
	Write(ctx context.Context, samples [][2]float64) error

	// Played returns the number of sample frames the device has consumed
	Played() int64

	// Drain blocks until every written sample has been played
	Drain(ctx context.Context) error

	// SetPaused makes the device emit silence without consuming samples
	SetPaused(paused bool)

	// Close releases the device
	Close() error
}

// AudioPlayer queues decoded audio chunks and plays them through a Sink. Its
// position is the master clock for video sync.
type AudioPlayer struct {
	log        *slog.Logger
	sink       Sink
	sampleRate int
	state      *PlaybackState

	queue chan media.AudioChunk
	space chan struct{} // signalled after every dequeue

	mu      sync.Mutex
	next    uint64
	closed  bool
	err     error
	aborted chan struct{}

	paused atomic.Bool
	muted  atomic.Bool
	volume atomic.Uint64 // float64 bits

	// Once everything is played the position runs on the wall clock.
	ts     TimeSource
	endPos atomic.Int64
	tail   atomic.Pointer[ClockPosition]
}

// NewAudioPlayer creates a player that writes to sink at sampleRate, holding
// up to queueSize chunks. state may be nil.
func NewAudioPlayer(sink Sink, sampleRate, queueSize int, state *PlaybackState, log *slog.Logger) *AudioPlayer {
	if queueSize < 1 {
		queueSize = DefaultAudioQueue
	}
	if log == nil {
		log = slog.Default()
	}
	a := &AudioPlayer{
		log:        log.With("component", "audio"),
		sink:       sink,
		sampleRate: sampleRate,
		state:      state,
		queue:      make(chan media.AudioChunk, queueSize),
		space:      make(chan struct{}, 1),
		aborted:    make(chan struct{}),
		ts:         SystemTime,
	}
	a.volume.Store(math.Float64bits(1))
	return a
}

// Enqueue appends chunk without blocking. It returns media.ErrOverrun when
// the queue is full; the caller is expected to back off and retry.
func (a *AudioPlayer) Enqueue(chunk media.AudioChunk) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}
	if a.closed {
		return media.ErrClosed
	}
	if chunk.Index != a.next {
		return media.NewIndexError(media.ErrOutOfOrder, "audio enqueue", chunk.Index,
			fmt.Errorf("expected index %d", a.next))
	}

	select {
	case a.queue <- chunk:
		a.next++
		return nil
	default:
		return media.ErrOverrun
	}
}

// EnqueueWait appends chunk, blocking while the queue is full.
func (a *AudioPlayer) EnqueueWait(ctx context.Context, chunk media.AudioChunk) error {
	for {
		err := a.Enqueue(chunk)
		if !errors.Is(err, media.ErrOverrun) {
			return err
		}
		select {
		case <-a.space:
		case <-a.aborted:
			return a.abortErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// CloseQueue signals end of stream. Run returns once everything queued has
// been played.
func (a *AudioPlayer) CloseQueue() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *AudioPlayer) closeLocked() {
	if a.closed {
		return
	}
	a.closed = true
	close(a.queue)
}

// Abort stops Run and fails producers with err.
func (a *AudioPlayer) Abort(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return
	}
	a.err = err
	a.closeLocked()
	close(a.aborted)
}

func (a *AudioPlayer) abortErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Run drains the queue into the sink until the queue is closed and played
// out, ctx is done, or the device fails.
func (a *AudioPlayer) Run(ctx context.Context) error {
	for {
		select {
		case chunk, ok := <-a.queue:
			if !ok {
				if err := a.abortErr(); err != nil {
					return err
				}
				if err := a.sink.Drain(ctx); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return media.NewError(media.ErrAudioDevice, "audio drain", err)
				}
				a.startTail()
				a.log.Debug("audio queue drained", "position", a.Position())
				return nil
			}

			select {
			case a.space <- struct{}{}:
			default:
			}

			if err := a.sink.Write(ctx, a.convert(chunk)); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return media.NewIndexError(media.ErrAudioDevice, "audio write", chunk.Index, err)
			}

		case <-a.aborted:
			return a.abortErr()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// convert turns s16le PCM into the [-1, 1] stereo frames the device expects.
func (a *AudioPlayer) convert(chunk media.AudioChunk) [][2]float64 {
	// chunk.Data (raw bytes from the decoder), stereo:
	// ┌────┬────┬────┬────┬────┬─...
	// │ L0 │ L0 │ R0 │ R0 │ L1 │
	// │ lo │ hi │ lo │ hi │ lo │
	// └────┴────┴────┴────┴────┴─...
	channels := max(chunk.Channels, 1)
	stride := 2 * channels
	n := len(chunk.Data) / stride
	out := make([][2]float64, n)

	gain := math.Float64frombits(a.volume.Load())
	if a.muted.Load() {
		gain = 0
	}

	const maxInt16 = float64(32767)
	for i := 0; i < n; i++ {
		p := chunk.Data[i*stride:]
		left := float64(int16(uint16(p[0])|uint16(p[1])<<8)) / maxInt16
		right := left
		if channels > 1 {
			right = float64(int16(uint16(p[2])|uint16(p[3])<<8)) / maxInt16
		}
		out[i][0] = left * gain
		out[i][1] = right * gain
	}
	return out
}

// SetTimeSource sets the clock used once the audio has run out.
func (a *AudioPlayer) SetTimeSource(ts TimeSource) {
	if ts != nil {
		a.ts = ts
	}
}

func (a *AudioPlayer) startTail() {
	c := NewClock(a.ts)
	c.Start()
	tail := NewClockPosition(c)
	tail.SetPaused(a.paused.Load())
	a.endPos.Store(int64(a.played()))
	a.tail.Store(tail)
}

func (a *AudioPlayer) played() time.Duration {
	if a.sampleRate <= 0 {
		return 0
	}
	return media.SamplesToDuration(a.sink.Played(), a.sampleRate)
}

// Position returns how much audio the device has actually played. After the
// last sample it keeps advancing with wall-clock time.
func (a *AudioPlayer) Position() time.Duration {
	pos := a.played()
	if tail := a.tail.Load(); tail != nil {
		pos = time.Duration(a.endPos.Load()) + tail.Position()
	}
	if a.state != nil {
		a.state.SetAudioPosition(pos)
	}
	return pos
}

// QueueLen returns the number of chunks waiting to be played.
func (a *AudioPlayer) QueueLen() int {
	return len(a.queue)
}

// SetPaused pauses or resumes the device.
func (a *AudioPlayer) SetPaused(paused bool) {
	a.paused.Store(paused)
	a.sink.SetPaused(paused)
	if tail := a.tail.Load(); tail != nil {
		tail.SetPaused(paused)
	}
}

// IsPaused returns current pause state
func (a *AudioPlayer) IsPaused() bool {
	return a.paused.Load()
}

// Mute toggles mute state. Muted audio keeps the clock running.
func (a *AudioPlayer) Mute() {
	a.muted.Store(!a.muted.Load())
}

// SetMuted sets mute state
func (a *AudioPlayer) SetMuted(muted bool) {
	a.muted.Store(muted)
}

// IsMuted returns current mute state
func (a *AudioPlayer) IsMuted() bool {
	return a.muted.Load()
}

// SetVolume sets the linear gain applied to samples not yet sent to the device.
func (a *AudioPlayer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	a.volume.Store(math.Float64bits(v))
}

// Close releases the device.
func (a *AudioPlayer) Close() error {
	return a.sink.Close()
}
