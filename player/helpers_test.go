package player

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/termplay/decoder"
	"github.com/njyeung/termplay/media"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTime is a TimeSource whose Sleep advances time instantly.
type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d > 0 {
		f.now = f.now.Add(d)
	}
}

// recordWriter keeps every write and can fail or run a hook per write.
type recordWriter struct {
	mu     sync.Mutex
	writes [][]byte
	failAt int // write number that fails, 0 for never
	hook   func(n int, p []byte)
}

var errBrokenPipe = errors.New("broken pipe")

func (w *recordWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	n := len(w.writes) + 1
	if w.failAt > 0 && n >= w.failAt {
		w.mu.Unlock()
		return 0, errBrokenPipe
	}
	w.writes = append(w.writes, append([]byte(nil), p...))
	hook := w.hook
	w.mu.Unlock()

	if hook != nil {
		hook(n, p)
	}
	return len(p), nil
}

func (w *recordWriter) Writes() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.writes...)
}

// Frame i is painted (i, 7, 9) so writes can be traced back to it.
var frameColorRE = regexp.MustCompile(`\x1b\[38;2;(\d+);7;9m`)

func indexFrame(i uint64, w, h int) media.Frame {
	pix := make([]byte, w*h*3)
	for p := 0; p < len(pix); p += 3 {
		pix[p], pix[p+1], pix[p+2] = byte(i), 7, 9
	}
	return media.Frame{Index: i, Width: w, Height: h, BytesPerPixel: 3, Pix: pix}
}

// frameIndex returns the frame drawn by a write, or -1.
func frameIndex(p []byte) int {
	m := frameColorRE.FindSubmatch(p)
	if m == nil {
		return -1
	}
	n, _ := strconv.Atoi(string(m[1]))
	return n
}

// fakeIngest puts frames and closes, fails part way, or blocks.
type fakeIngest struct {
	frames    int
	failAfter int
	failErr   error
	block     bool
	runs      atomic.Int32
}

func (f *fakeIngest) Run(ctx context.Context, frames decoder.FrameSink, audio decoder.AudioSink) error {
	f.runs.Add(1)
	for i := 0; i < f.frames; i++ {
		if f.failErr != nil && i == f.failAfter {
			frames.Abort(f.failErr)
			if audio != nil {
				audio.Abort(f.failErr)
			}
			return f.failErr
		}
		if err := frames.Put(ctx, indexFrame(uint64(i), 1, 1)); err != nil {
			return err
		}
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	frames.Close()
	if audio != nil {
		audio.CloseQueue()
	}
	return nil
}

// fakeSink plays every sample the moment it is written.
type fakeSink struct {
	mu       sync.Mutex
	samples  [][2]float64
	played   atomic.Int64
	paused   atomic.Bool
	closed   atomic.Bool
	writeErr error
}

func (s *fakeSink) Write(_ context.Context, samples [][2]float64) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
	s.played.Add(int64(len(samples)))
	return nil
}

func (s *fakeSink) Played() int64               { return s.played.Load() }
func (s *fakeSink) Drain(context.Context) error { return nil }
func (s *fakeSink) SetPaused(paused bool)       { s.paused.Store(paused) }
func (s *fakeSink) Close() error                { s.closed.Store(true); return nil }
func (s *fakeSink) Samples() [][2]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][2]float64(nil), s.samples...)
}
