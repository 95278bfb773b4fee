// Package decoder runs the external decoder and turns its raw output into
// indexed video frames and audio chunks.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/njyeung/termplay/media"
)

// FrameSink receives decoded frames in index order.
type FrameSink interface {
	Put(ctx context.Context, frame media.Frame) error
	Close()
	Abort(err error)
}

// AudioSink receives decoded audio chunks in index order.
type AudioSink interface {
	EnqueueWait(ctx context.Context, chunk media.AudioChunk) error
	CloseQueue()
	Abort(err error)
}

// Config describes one ingestion run.
type Config struct {
	Input string

	// Picture size in pixels the decoder scales to
	Width  int
	Height int
	Rate   media.Rate

	// Audio output; disabled when SampleRate is 0
	SampleRate  int
	Channels    int
	ChunkFrames int

	// Binary is the decoder executable; DefaultBinary when empty
	Binary string
}

// HasAudio reports whether audio output is requested.
func (c Config) HasAudio() bool {
	return c.SampleRate > 0 && c.Channels > 0
}

// Ingest decodes one media file into a frame sink and an audio sink.
type Ingest struct {
	log   *slog.Logger
	cfg   Config
	start Starter
}

// NewIngest prepares an ingestion run that launches the decoder binary.
func NewIngest(cfg Config, log *slog.Logger) *Ingest {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	args := Command(CommandOptions{
		Input:      cfg.Input,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Rate:       cfg.Rate,
		Audio:      cfg.HasAudio(),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	})
	return NewIngestWith(cfg, ExecStarter(cfg.Binary, args, cfg.HasAudio()), log)
}

// NewIngestWith prepares an ingestion run that uses start to obtain the
// decoder process.
func NewIngestWith(cfg Config, start Starter, log *slog.Logger) *Ingest {
	if log == nil {
		log = slog.Default()
	}
	return &Ingest{
		log:   log.With("component", "ingest"),
		cfg:   cfg,
		start: start,
	}
}

// Run decodes until end of stream, then closes both sinks. Any failure aborts
// both sinks with the returned error. audio may be nil.
func (in *Ingest) Run(ctx context.Context, frames FrameSink, audio AudioSink) error {
	err := in.run(ctx, frames, audio)
	if err != nil {
		frames.Abort(err)
		if audio != nil {
			audio.Abort(err)
		}
		return err
	}
	frames.Close()
	if audio != nil {
		audio.CloseQueue()
	}
	return nil
}

func (in *Ingest) run(ctx context.Context, frames FrameSink, audio AudioSink) error {
	proc, err := in.start(ctx)
	if err != nil {
		return media.NewError(media.ErrDecodeFailure, "start decoder", err)
	}
	in.log.Debug("decoder started", "input", in.cfg.Input,
		"size", fmt.Sprintf("%dx%d", in.cfg.Width, in.cfg.Height), "rate", in.cfg.Rate.String())

	stop := context.AfterFunc(ctx, proc.Kill)
	defer stop()

	// A failing pump kills the decoder so the other pump sees its pipe close.
	g, gctx := errgroup.WithContext(ctx)
	pump := func(f func() error) {
		g.Go(func() error {
			err := f()
			if err != nil {
				proc.Kill()
			}
			return err
		})
	}

	video := NewFrameReader(proc.Video(), in.cfg.Width, in.cfg.Height, in.cfg.Rate)
	pump(func() error {
		return in.pumpVideo(gctx, video, frames)
	})

	var chunks *ChunkReader
	if audio != nil && in.cfg.HasAudio() && proc.Audio() != nil {
		chunks = NewChunkReader(proc.Audio(), in.cfg.SampleRate, in.cfg.Channels, in.cfg.ChunkFrames)
		pump(func() error {
			return in.pumpAudio(gctx, chunks, audio)
		})
	} else if a := proc.Audio(); a != nil {
		// Nobody consumes audio; keep the decoder from blocking on the pipe.
		pump(func() error {
			_, err := io.Copy(io.Discard, a)
			return err
		})
	}

	readErr := g.Wait()
	if readErr != nil || ctx.Err() != nil {
		proc.Kill()
		proc.Wait()
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return readErr
	}

	if err := proc.Wait(); err != nil {
		return media.NewError(media.ErrDecodeFailure, "decoder exit", withStderr(err, proc.Stderr()))
	}

	attrs := []any{"frames", video.Count()}
	if chunks != nil {
		attrs = append(attrs, "chunks", chunks.Count())
	}
	in.log.Debug("decoder finished", attrs...)
	return nil
}

func (in *Ingest) pumpVideo(ctx context.Context, r *FrameReader, sink FrameSink) error {
	for {
		frame, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			in.log.Warn("discarding partial final frame", "index", r.Count())
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return media.NewIndexError(media.ErrDecodeFailure, "ingest video", r.Count(), err)
		}

		if err := sink.Put(ctx, frame); err != nil {
			return err
		}
	}
}

func (in *Ingest) pumpAudio(ctx context.Context, r *ChunkReader, sink AudioSink) error {
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return media.NewIndexError(media.ErrDecodeFailure, "ingest audio", r.Count(), err)
		}

		if err := sink.EnqueueWait(ctx, chunk); err != nil {
			return err
		}
	}
}

// withStderr attaches the decoder's last diagnostic line to err.
func withStderr(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[i+1:]
	}
	return fmt.Errorf("%w: %s", err, stderr)
}
