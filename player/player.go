package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/termplay/decoder"
	"github.com/njyeung/termplay/media"
)

// Options configures an AVPlayer.
type Options struct {
	// Rate overrides the source frame rate when valid
	Rate media.Rate

	Size   SizeOptions
	Glyph  GlyphMode
	Invert bool
	FlipH  bool
	FlipV  bool

	// Negative tolerances (AutoTolerance) mean one and two frame periods
	ToleranceHigh time.Duration
	ToleranceDrop time.Duration

	BufferFrames int
	AudioQueue   int

	Status bool
	Loop   bool
	Muted  bool
	Volume float64 // linear gain, 0 is silent

	// Decoder is the ffmpeg binary, decoder.DefaultBinary when empty
	Decoder string
}

// AVPlayer plays media files into a terminal with audio through the default
// output device.
type AVPlayer struct {
	log  *slog.Logger
	opts Options

	output io.Writer

	playing atomic.Bool
	paused  atomic.Bool
	muted   atomic.Bool

	playMu   sync.Mutex
	configMu sync.Mutex

	sessionMu sync.Mutex
	session   *playSession
	stats     RenderStats

	// replaceable for tests
	probe     func(path string) (*decoder.Info, error)
	newIngest func(cfg decoder.Config, log *slog.Logger) Ingester
	openSink  func(sampleRate int) (Sink, error)
	termSize  func() (cols, rows int, err error)
	ts        TimeSource
}

// NewAVPlayer creates a player writing to stdout.
func NewAVPlayer(opts Options, log *slog.Logger) *AVPlayer {
	if log == nil {
		log = slog.Default()
	}
	p := &AVPlayer{
		log:    log,
		opts:   opts,
		output: os.Stdout,
		probe:  decoder.Probe,
		newIngest: func(cfg decoder.Config, log *slog.Logger) Ingester {
			return decoder.NewIngest(cfg, log)
		},
		openSink: func(sampleRate int) (Sink, error) {
			return OpenSpeaker(sampleRate, 4)
		},
		termSize: func() (int, int, error) {
			cols, rows, _, _, err := GetTerminalSize()
			return cols, rows, err
		},
		ts: SystemTime,
	}
	p.muted.Store(opts.Muted)
	return p
}

func (p *AVPlayer) setSession(s *playSession) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	p.session = s
}

func (p *AVPlayer) clearSession(s *playSession) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if p.session == s {
		p.stats = s.renderer.Stats()
		p.session = nil
	}
}

func (p *AVPlayer) withSession(fn func(*playSession)) {
	p.sessionMu.Lock()
	s := p.session
	p.sessionMu.Unlock()

	if s != nil {
		fn(s)
	}
}

// SetOutput sets the writer for video frames
func (p *AVPlayer) SetOutput(w io.Writer) {
	p.configMu.Lock()
	defer p.configMu.Unlock()

	p.output = w
	p.withSession(func(s *playSession) {
		s.renderer.SetOutput(w)
	})
}

// Play plays path to the end, looping when configured, until Stop is called
// or playback fails. A stop request returns media.ErrStopped.
func (p *AVPlayer) Play(ctx context.Context, path string) error {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.playing.Store(true)
	p.paused.Store(false)
	defer p.playing.Store(false)

	for pass := 1; ; pass++ {
		err := p.playOnce(ctx, path)
		if err != nil {
			return err
		}
		if !p.opts.Loop {
			return nil
		}
		if !p.playing.Load() {
			return media.ErrStopped
		}
		p.log.Debug("looping", "pass", pass)
	}
}

// playOnce plays the media file once
func (p *AVPlayer) playOnce(ctx context.Context, path string) error {
	session, err := p.newSession(path)
	if err != nil {
		return err
	}

	p.setSession(session)
	defer func() {
		p.clearSession(session)
		session.cleanup()
	}()

	if !p.playing.Load() {
		session.stop()
	}
	if p.paused.Load() {
		session.setPaused(true)
	}
	return session.run(ctx)
}

func (p *AVPlayer) newSession(path string) (*playSession, error) {
	info, err := p.probe(path)
	if err != nil {
		return nil, media.NewError(media.ErrDecodeFailure, "probe", err)
	}

	rate := p.opts.Rate
	if !rate.Valid() {
		rate = info.Rate
	}
	if !rate.Valid() {
		return nil, fmt.Errorf("%s: unknown frame rate, set one explicitly", path)
	}

	size := p.opts.Size
	if size.Width == 0 && !size.PreserveDims {
		if cols, rows, err := p.termSize(); err == nil {
			size.TermCols, size.TermRows = cols, rows
			if p.opts.Status {
				size.ReserveRows = 1
			}
		}
	}
	cols, rows, pixW, pixH := PictureSize(info.Width, info.Height, size, p.opts.Glyph)

	enc := NewEncoder(EncoderOptions{
		Cols:   cols,
		Rows:   rows,
		Mode:   p.opts.Glyph,
		Invert: p.opts.Invert,
		FlipH:  p.opts.FlipH,
		FlipV:  p.opts.FlipV,
	})

	dcfg := decoder.Config{
		Input:  path,
		Width:  pixW,
		Height: pixH,
		Rate:   rate,
		Binary: p.opts.Decoder,
	}

	var sink Sink
	if info.HasAudio {
		dcfg.SampleRate = AudioSampleRate
		dcfg.Channels = AudioChannels
		sink, err = p.openSink(AudioSampleRate)
		if err != nil {
			return nil, err
		}
	}

	p.log.Info("opening media", "path", path,
		"source", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"grid", fmt.Sprintf("%dx%d", cols, rows),
		"rate", rate.String(), "audio", info.HasAudio)

	p.configMu.Lock()
	out := p.output
	p.configMu.Unlock()

	return newPlaySession(sessionConfig{
		out:           out,
		encoder:       enc,
		ingest:        p.newIngest(dcfg, p.log),
		rate:          rate,
		sink:          sink,
		sampleRate:    AudioSampleRate,
		muted:         p.muted.Load(),
		volume:        p.opts.Volume,
		bufferFrames:  p.opts.BufferFrames,
		audioQueue:    p.opts.AudioQueue,
		toleranceHigh: p.opts.ToleranceHigh,
		toleranceDrop: p.opts.ToleranceDrop,
		status:        p.opts.Status,
		title:         filepath.Base(path),
		duration:      info.Duration,
		ts:            p.ts,
		log:           p.log,
	}), nil
}

// Stop stops current playback
func (p *AVPlayer) Stop() {
	p.playing.Store(false)
	p.withSession(func(s *playSession) {
		s.stop()
	})
}

// Mute toggles mute state
func (p *AVPlayer) Mute() {
	p.muted.Store(!p.muted.Load())
	muted := p.muted.Load()
	p.withSession(func(s *playSession) {
		if s.audio != nil {
			s.audio.SetMuted(muted)
		}
	})
}

// Pause toggles pause state
func (p *AVPlayer) Pause() {
	paused := !p.paused.Load()
	p.paused.Store(paused)
	p.withSession(func(s *playSession) {
		s.setPaused(paused)
	})
}

// IsPaused returns current pause state
func (p *AVPlayer) IsPaused() bool {
	return p.paused.Load()
}

// IsMuted returns current mute state
func (p *AVPlayer) IsMuted() bool {
	return p.muted.Load()
}

// Stats returns the render counters of the current or last session.
func (p *AVPlayer) Stats() RenderStats {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if p.session != nil {
		return p.session.renderer.Stats()
	}
	return p.stats
}

// Close stops playback and waits for it to unwind.
func (p *AVPlayer) Close() {
	p.Stop()
	p.playMu.Lock()
	defer p.playMu.Unlock()
}

// IsStopped reports whether err means playback was stopped on request.
func IsStopped(err error) bool {
	return errors.Is(err, media.ErrStopped)
}
