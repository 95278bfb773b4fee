package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/njyeung/termplay/media"
)

// RendererState is the lifecycle of the render loop.
type RendererState int32

const (
	RendererIdle RendererState = iota
	RendererRunning
	RendererStopped
	RendererAborted
)

func (s RendererState) String() string {
	switch s {
	case RendererIdle:
		return "idle"
	case RendererRunning:
		return "running"
	case RendererStopped:
		return "stopped"
	case RendererAborted:
		return "aborted"
	default:
		return "renderer(" + strconv.Itoa(int(s)) + ")"
	}
}

const (
	syncBegin  = "\x1b[?2026h"
	syncEnd    = "\x1b[?2026l"
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
)

// AutoTolerance selects the default tolerance for the frame rate.
const AutoTolerance time.Duration = -1

// DefaultTolerances returns the recommended sync tolerances for rate: render
// up to one frame early, drop once two frames late.
func DefaultTolerances(rate media.Rate) (high, drop time.Duration) {
	p := rate.Period()
	return p, 2 * p
}

// RenderConfig configures the scheduler.
type RenderConfig struct {
	Rate media.Rate

	// ToleranceHigh is how far ahead of audio a frame may be shown
	ToleranceHigh time.Duration

	// ToleranceDrop is how far behind audio a frame may fall before it is dropped
	ToleranceDrop time.Duration

	// Status draws a status line under the picture
	Status   bool
	Duration time.Duration // media duration for the status line, 0 if unknown
	Title    string
}

// RenderStats is a snapshot of render loop counters.
type RenderStats struct {
	Rendered  int64
	Dropped   int64
	LastIndex int64
	LastDrift time.Duration
}

// Renderer pulls frames in index order, paces them against the audio
// position and writes each one to the terminal in a single write.
type Renderer struct {
	log   *slog.Logger
	out   io.Writer
	enc   *Encoder
	store *FrameStore
	clock *Clock
	pos   PositionSource
	state *PlaybackState
	ts    TimeSource
	cfg   RenderConfig

	mu    sync.Mutex // guards out, buf, lines
	buf   []byte
	lines int // lines drawn by the previous frame, cursor sits above them

	rstate    atomic.Int32
	rendered  atomic.Int64
	dropped   atomic.Int64
	lastIndex atomic.Int64
	lastDrift atomic.Int64
}

// NewRenderer wires a renderer. ts may be nil for the system clock.
func NewRenderer(out io.Writer, enc *Encoder, store *FrameStore, clock *Clock, pos PositionSource,
	state *PlaybackState, ts TimeSource, cfg RenderConfig, log *slog.Logger) *Renderer {
	if ts == nil {
		ts = SystemTime
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Renderer{
		log:   log.With("component", "renderer"),
		out:   out,
		enc:   enc,
		store: store,
		clock: clock,
		pos:   pos,
		state: state,
		ts:    ts,
		cfg:   cfg,
	}
	r.lastIndex.Store(-1)
	return r
}

// State returns the render loop state.
func (r *Renderer) State() RendererState {
	return RendererState(r.rstate.Load())
}

// Stats returns the current counters.
func (r *Renderer) Stats() RenderStats {
	return RenderStats{
		Rendered:  r.rendered.Load(),
		Dropped:   r.dropped.Load(),
		LastIndex: r.lastIndex.Load(),
		LastDrift: time.Duration(r.lastDrift.Load()),
	}
}

// SetOutput changes the output writer
func (r *Renderer) SetOutput(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = w
}

// Run renders frames until the store reports end of stream (nil), or until
// ctx is done or a write fails (error).
func (r *Renderer) Run(ctx context.Context) error {
	if !r.rstate.CompareAndSwap(int32(RendererIdle), int32(RendererRunning)) {
		return fmt.Errorf("renderer already started")
	}

	err := r.loop(ctx)
	if err != nil {
		r.rstate.Store(int32(RendererAborted))
		return err
	}
	r.rstate.Store(int32(RendererStopped))
	return nil
}

func (r *Renderer) loop(ctx context.Context) error {
	high, drop := r.cfg.ToleranceHigh, r.cfg.ToleranceDrop

	for next := uint64(0); ; next++ {
		if err := r.state.WaitPlaying(ctx); err != nil {
			return err
		}

		frame, err := r.store.Take(ctx, next)
		if errors.Is(err, media.ErrClosed) {
			return r.waitLastFrame(ctx, next)
		}
		if err != nil {
			return err
		}

		drift, err := r.await(ctx, frame.Index, high)
		if err != nil {
			return err
		}
		if drift < -drop {
			r.dropped.Add(1)
			r.log.Debug("dropped frame", "index", frame.Index, "drift", drift)
			continue
		}

		if err := r.render(&frame, drift); err != nil {
			return err
		}
	}
}

// await sleeps until the audio position is within high of the frame's
// target and returns the drift at that point. The position is read again
// after every sleep since audio may run slower or jump ahead.
func (r *Renderer) await(ctx context.Context, index uint64, high time.Duration) (time.Duration, error) {
	target := r.clock.TargetTime(index, r.cfg.Rate)
	for {
		drift := target - r.pos.Position()
		r.lastDrift.Store(int64(drift))
		if drift <= high {
			return drift, nil
		}
		if err := r.ts.Sleep(ctx, drift-high); err != nil {
			return 0, err
		}
		if err := r.state.WaitPlaying(ctx); err != nil {
			return 0, err
		}
	}
}

// waitLastFrame holds the final frame on screen for its full period.
func (r *Renderer) waitLastFrame(ctx context.Context, count uint64) error {
	end := r.clock.TargetTime(count, r.cfg.Rate)
	if d := end - r.pos.Position(); d > 0 {
		if err := r.ts.Sleep(ctx, d); err != nil {
			return err
		}
	}
	r.log.Debug("end of stream", "frames", count, "rendered", r.rendered.Load(), "dropped", r.dropped.Load())
	return nil
}

// render encodes frame and writes it with one Write call, leaving the cursor
// at the top-left of the picture so the next frame overwrites it in place.
// Lines are separated, not terminated, so a full-height picture never
// scrolls the screen.
func (r *Renderer) render(frame *media.Frame, drift time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := append(r.buf[:0], syncBegin...)
	if r.rendered.Load() == 0 {
		buf = append(buf, hideCursor...)
	}
	buf = r.enc.AppendFrame(buf, frame)
	_, lines := r.enc.Grid(frame.Width, frame.Height)

	if r.cfg.Status {
		cols, _ := r.enc.Grid(frame.Width, frame.Height)
		buf = append(buf, '\r', '\n')
		buf = append(buf, r.statusLine(frame, drift, cols)...)
		buf = append(buf, sgrReset...)
		lines++
	}

	// The cursor is on the last line; nothing below it was written.
	buf = appendCursorUp(buf, lines-1)
	buf = append(buf, syncEnd...)
	r.buf = buf

	if _, err := r.out.Write(buf); err != nil {
		return media.NewIndexError(media.ErrTerminalWrite, "render", frame.Index, err)
	}

	r.lines = lines
	r.rendered.Add(1)
	r.lastIndex.Store(int64(frame.Index))
	r.state.SetLastFrame(frame.Index)
	return nil
}

// Finish moves the cursor below the last picture and restores the cursor.
func (r *Renderer) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := []byte(sgrReset)
	if r.lines > 1 {
		buf = append(buf, "\x1b["...)
		buf = strconv.AppendInt(buf, int64(r.lines-1), 10)
		buf = append(buf, 'B')
	}
	if r.lines > 0 {
		buf = append(buf, '\r', '\n')
	}
	buf = append(buf, showCursor...)
	_, err := r.out.Write(buf)
	return err
}

func appendCursorUp(dst []byte, n int) []byte {
	if n <= 0 {
		return append(dst, '\r')
	}
	dst = append(dst, "\x1b["...)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, 'A', '\r')
}
