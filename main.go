package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/njyeung/termplay/config"
	"github.com/njyeung/termplay/media"
	"github.com/njyeung/termplay/player"
	"github.com/njyeung/termplay/tui"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitStopped = 130
)

type flags struct {
	configPath string
	logPath    string
	debug      bool

	fps          string
	size         string
	scale        float64
	preserveDims bool
	glyph        string
	invert       bool
	flipH        bool
	flipV        bool

	loop   bool
	mute   bool
	volume float64
	status bool

	toleranceHigh time.Duration
	toleranceDrop time.Duration
	bufferFrames  int
	decoder       string
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	var f flags
	code := exitOK

	rootCmd := &cobra.Command{
		Use:           "termplay FILE",
		Short:         "Play a video in the terminal with truecolor cells and synced audio",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = play(cmd, &f, args[0])
			return nil
		},
	}

	fl := rootCmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "settings file (default $XDG_CONFIG_HOME/termplay/player.conf)")
	fl.StringVar(&f.logPath, "log", "", "write logs to this file")
	fl.BoolVar(&f.debug, "debug", false, "debug logging (to stderr unless --log is set)")

	fl.StringVar(&f.fps, "fps", "", "frame rate override, e.g. 24 or 30000/1001")
	fl.StringVar(&f.size, "size", "", "picture size in pixels as WxH, a cell is 1x2 pixels")
	fl.Float64Var(&f.scale, "scale", 1, "scale the picture size")
	fl.BoolVar(&f.preserveDims, "preserve-dims", false, "keep the source size instead of fitting the terminal")
	fl.StringVar(&f.glyph, "glyph", "block", "cell glyph: block or half")
	fl.BoolVar(&f.invert, "invert", false, "invert colors")
	fl.BoolVar(&f.flipH, "flip-h", false, "mirror horizontally")
	fl.BoolVar(&f.flipV, "flip-v", false, "mirror vertically")

	fl.BoolVar(&f.loop, "loop", false, "play in a loop until stopped")
	fl.BoolVar(&f.mute, "mute", false, "start muted")
	fl.Float64Var(&f.volume, "volume", 1, "linear volume")
	fl.BoolVar(&f.status, "status", false, "draw a status line under the picture")

	fl.DurationVar(&f.toleranceHigh, "tolerance-high", 0, "how far ahead of audio a frame may be shown (default one frame period)")
	fl.DurationVar(&f.toleranceDrop, "tolerance-drop", 0, "how far behind audio a frame may fall before it is dropped (default two frame periods)")
	fl.IntVar(&f.bufferFrames, "buffer-frames", player.DefaultBufferFrames, "decoded frames buffered ahead of the renderer")
	fl.StringVar(&f.decoder, "ffmpeg", "", "ffmpeg binary")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.Error(err))
		return exitFailure
	}
	return code
}

func play(cmd *cobra.Command, f *flags, path string) int {
	log, closeLog, err := newLogger(f.logPath, f.debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Error(err))
		return exitFailure
	}
	defer closeLog()
	slog.SetDefault(log)

	opts, err := resolveOptions(cmd, f, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Error(err))
		return exitFailure
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, tui.Error(err))
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := player.NewAVPlayer(opts, log)
	defer p.Close()

	fmt.Fprintln(os.Stderr, tui.Hint(filepath.Base(path)))
	start := time.Now()
	err = tui.Run(ctx, p, path)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		fmt.Fprintln(os.Stderr, tui.Summary(p.Stats(), elapsed))
		return exitOK
	case errors.Is(err, media.ErrStopped), errors.Is(err, context.Canceled):
		log.Info("stopped", "after", elapsed)
		return exitStopped
	default:
		log.Error("playback failed", "error", err)
		fmt.Fprintln(os.Stderr, tui.Error(err))
		return exitFailure
	}
}

// newLogger logs to path when set, to stderr with debug, and nowhere
// otherwise since stdout carries the picture.
func newLogger(path string, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}

	var w io.Writer = io.Discard
	closeFn := func() {}
	switch {
	case path != "":
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open log file: %w", err)
		}
		w = file
		closeFn = func() { file.Close() }
	case debug:
		w = os.Stderr
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// resolveOptions layers explicitly set flags over the settings file.
func resolveOptions(cmd *cobra.Command, f *flags, log *slog.Logger) (player.Options, error) {
	path := f.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err == nil {
			path = p
			if err := config.Ensure(path); err != nil {
				log.Warn("could not write default settings", "path", path, "error", err)
			}
		}
	}

	s := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			log.Warn("settings", "error", err)
		}
		s = loaded
	}

	changed := cmd.Flags().Changed
	if changed("glyph") {
		s.Glyph = f.glyph
	}
	if changed("status") {
		s.Status = f.status
	}
	if changed("loop") {
		s.Loop = f.loop
	}
	if changed("mute") {
		s.Mute = f.mute
	}
	if changed("volume") {
		s.Volume = f.volume
	}
	if changed("buffer-frames") {
		s.BufferFrames = f.bufferFrames
	}
	if changed("ffmpeg") {
		s.Decoder = f.decoder
	}

	glyph, err := player.ParseGlyphMode(s.Glyph)
	if err != nil {
		return player.Options{}, err
	}

	opts := player.Options{
		Glyph:         glyph,
		Invert:        f.invert,
		FlipH:         f.flipH,
		FlipV:         f.flipV,
		Status:        s.Status,
		Loop:          s.Loop,
		Muted:         s.Mute,
		Volume:        s.Volume,
		BufferFrames:  s.BufferFrames,
		AudioQueue:    s.AudioQueue,
		Decoder:       s.Decoder,
		ToleranceHigh: toleranceMs(s.ToleranceHighMs),
		ToleranceDrop: toleranceMs(s.ToleranceDropMs),
		Size: player.SizeOptions{
			Scale:        f.scale,
			PreserveDims: f.preserveDims,
		},
	}
	// An explicit 0 is honored; negative values pick the default.
	if changed("tolerance-high") {
		opts.ToleranceHigh = max(f.toleranceHigh, player.AutoTolerance)
	}
	if changed("tolerance-drop") {
		opts.ToleranceDrop = max(f.toleranceDrop, player.AutoTolerance)
	}

	if f.fps != "" {
		rate, err := media.ParseRate(f.fps)
		if err != nil {
			return player.Options{}, err
		}
		opts.Rate = rate
	}
	if f.size != "" {
		w, h, err := parseSize(f.size)
		if err != nil {
			return player.Options{}, err
		}
		opts.Size.Width, opts.Size.Height = w, h
	}
	if f.scale <= 0 {
		return player.Options{}, fmt.Errorf("invalid scale %v", f.scale)
	}
	return opts, nil
}

func toleranceMs(ms int) time.Duration {
	if ms < 0 {
		return player.AutoTolerance
	}
	return time.Duration(ms) * time.Millisecond
}

// parseSize parses "WxH".
func parseSize(s string) (w, h int, err error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q, want WxH", s)
	}
	return w, h, nil
}
