package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/njyeung/termplay/decoder"
	"github.com/njyeung/termplay/media"
)

// Ingester feeds decoded media into the frame store and the audio queue.
type Ingester interface {
	Run(ctx context.Context, frames decoder.FrameSink, audio decoder.AudioSink) error
}

type sessionConfig struct {
	out     io.Writer
	encoder *Encoder
	ingest  Ingester
	rate    media.Rate

	// sink is nil when the media has no audio track
	sink       Sink
	sampleRate int
	muted      bool
	volume     float64

	bufferFrames  int
	audioQueue    int
	toleranceHigh time.Duration
	toleranceDrop time.Duration

	status   bool
	title    string
	duration time.Duration

	ts  TimeSource
	log *slog.Logger
}

// playSession is one pass over one media file. The ingestion, audio and
// rendering tasks share only the frame store, the audio queue and state.
type playSession struct {
	id  string
	log *slog.Logger

	state    *PlaybackState
	clock    *Clock
	store    *FrameStore
	audio    *AudioPlayer  // nil without audio
	clockPos *ClockPosition // stands in for audio when there is none
	renderer *Renderer
	ingest   Ingester

	pauseOnStart atomic.Bool
}

func newPlaySession(cfg sessionConfig) *playSession {
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	if cfg.bufferFrames <= 0 {
		cfg.bufferFrames = DefaultBufferFrames
	}
	high, drop := DefaultTolerances(cfg.rate)
	if cfg.toleranceHigh >= 0 {
		high = cfg.toleranceHigh
	}
	if cfg.toleranceDrop >= 0 {
		drop = cfg.toleranceDrop
	}

	id := uuid.NewString()
	log := cfg.log.With("session", id)

	s := &playSession{
		id:     id,
		log:    log,
		state:  NewPlaybackState(),
		clock:  NewClock(cfg.ts),
		store:  NewFrameStore(cfg.bufferFrames),
		ingest: cfg.ingest,
	}

	var pos PositionSource
	if cfg.sink != nil {
		s.audio = NewAudioPlayer(cfg.sink, cfg.sampleRate, cfg.audioQueue, s.state, log)
		s.audio.SetVolume(cfg.volume)
		s.audio.SetMuted(cfg.muted)
		s.audio.SetTimeSource(cfg.ts)
		pos = s.audio
	} else {
		s.clockPos = NewClockPosition(s.clock)
		pos = s.clockPos
	}

	s.renderer = NewRenderer(cfg.out, cfg.encoder, s.store, s.clock, pos, s.state, cfg.ts, RenderConfig{
		Rate:          cfg.rate,
		ToleranceHigh: high,
		ToleranceDrop: drop,
		Status:        cfg.status,
		Duration:      cfg.duration,
		Title:         cfg.title,
	}, log)
	return s
}

// audioSink returns the audio queue as an ingestion sink, or a nil interface.
func (s *playSession) audioSink() decoder.AudioSink {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

// run plays the session to the end. It returns nil when every frame and
// sample was presented, or the first fatal error otherwise.
func (s *playSession) run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// Any abort, including a stop request, cancels every task.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.state.Aborted():
			cancel(s.state.Cause())
		case <-done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.fail(ctx, s.ingest.Run(gctx, s.store, s.audioSink()))
	})
	if s.audio != nil {
		g.Go(func() error {
			return s.fail(ctx, s.audio.Run(gctx))
		})
	}

	if s.state.Transition(StateInitializing, StatePlaying) {
		s.clock.Start()
		s.log.Info("playback started")
		if s.pauseOnStart.Load() {
			s.setPaused(true)
		}
	}

	g.Go(func() error {
		return s.fail(ctx, s.renderer.Run(gctx))
	})

	if err := g.Wait(); err != nil {
		cause := s.state.Cause()
		if cause == nil {
			cause = err
		}
		s.log.Info("playback aborted", "cause", cause, "rendered", s.renderer.Stats().Rendered)
		return cause
	}

	if !s.state.Finish() {
		if cause := s.state.Cause(); cause != nil {
			return cause
		}
		return media.ErrStopped
	}

	st := s.renderer.Stats()
	s.log.Info("playback finished", "rendered", st.Rendered, "dropped", st.Dropped)
	return nil
}

// fail records the first fatal error and tears down both queues.
func (s *playSession) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = context.Cause(ctx)
		if errors.Is(err, context.Canceled) {
			err = media.ErrStopped
		}
	}

	if s.state.Abort(err) {
		s.log.Debug("aborting", "cause", err)
	}
	cause := s.state.Cause()
	s.store.Abort(cause)
	if s.audio != nil {
		s.audio.Abort(cause)
	}
	return err
}

// stop requests an abort with media.ErrStopped.
func (s *playSession) stop() {
	s.fail(context.Background(), media.ErrStopped)
}

// setPaused moves between Playing and Paused and freezes the sync reference.
// Before playback starts the request is held until it does.
func (s *playSession) setPaused(paused bool) bool {
	if s.state.Load() == StateInitializing {
		s.pauseOnStart.Store(paused)
		return true
	}
	from, to := StatePlaying, StatePaused
	if !paused {
		from, to = StatePaused, StatePlaying
	}
	if !s.state.Transition(from, to) {
		return false
	}
	if s.audio != nil {
		s.audio.SetPaused(paused)
	} else {
		s.clockPos.SetPaused(paused)
	}
	return true
}

// cleanup restores the terminal and releases the audio device.
func (s *playSession) cleanup() {
	if err := s.renderer.Finish(); err != nil {
		s.log.Debug("restore terminal", "err", err)
	}
	if s.audio != nil {
		s.audio.Close()
	}
}
