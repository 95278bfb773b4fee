package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/njyeung/termplay/config"
	"github.com/njyeung/termplay/media"
	"github.com/njyeung/termplay/player"
)

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"80x24", 80, 24, false},
		{"120X40", 120, 40, false},
		{"80", 0, 0, true},
		{"0x10", 0, 0, true},
		{"axb", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr || w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %d, %d, %v", tt.in, w, h, err)
		}
	}
}

// parseFlags builds the root command's flag set and parses args into f.
func parseFlags(t *testing.T, args ...string) (*cobra.Command, *flags) {
	t.Helper()

	var f flags
	cmd := &cobra.Command{Use: "termplay"}
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "")
	fl.StringVar(&f.fps, "fps", "", "")
	fl.StringVar(&f.size, "size", "", "")
	fl.Float64Var(&f.scale, "scale", 1, "")
	fl.StringVar(&f.glyph, "glyph", "block", "")
	fl.BoolVar(&f.loop, "loop", false, "")
	fl.BoolVar(&f.mute, "mute", false, "")
	fl.BoolVar(&f.status, "status", false, "")
	fl.Float64Var(&f.volume, "volume", 1, "")
	fl.IntVar(&f.bufferFrames, "buffer-frames", player.DefaultBufferFrames, "")
	fl.StringVar(&f.decoder, "ffmpeg", "", "")
	fl.DurationVar(&f.toleranceHigh, "tolerance-high", 0, "")
	fl.DurationVar(&f.toleranceDrop, "tolerance-drop", 0, "")
	if err := fl.Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd, &f
}

func TestResolveOptions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.FileName)
	s := config.Default()
	s.Glyph = "half"
	s.Loop = true
	s.ToleranceDropMs = 250
	if err := config.Write(path, s); err != nil {
		t.Fatal(err)
	}

	cmd, f := parseFlags(t, "--config", path, "--loop=false", "--fps", "30000/1001",
		"--size", "80x24", "--tolerance-high", "20ms")
	opts, err := resolveOptions(cmd, f, quietLogger())
	if err != nil {
		t.Fatalf("resolveOptions: %v", err)
	}

	if opts.Glyph != player.GlyphHalf {
		t.Error("glyph from the settings file ignored")
	}
	if opts.Loop {
		t.Error("--loop=false did not override the settings file")
	}
	if opts.Rate != (media.Rate{Num: 30000, Den: 1001}) {
		t.Errorf("rate = %v", opts.Rate)
	}
	if opts.Size.Width != 80 || opts.Size.Height != 24 {
		t.Errorf("size = %dx%d, want 80x24 px", opts.Size.Width, opts.Size.Height)
	}
	if opts.ToleranceHigh != 20*time.Millisecond || opts.ToleranceDrop != 250*time.Millisecond {
		t.Errorf("tolerances = %v, %v", opts.ToleranceHigh, opts.ToleranceDrop)
	}
}

func TestResolveOptionsInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.FileName)
	for _, args := range [][]string{
		{"--glyph", "braille"},
		{"--fps", "fast"},
		{"--size", "big"},
		{"--scale", "0"},
	} {
		cmd, f := parseFlags(t, append([]string{"--config", path}, args...)...)
		if _, err := resolveOptions(cmd, f, quietLogger()); err == nil {
			t.Errorf("resolveOptions(%v) succeeded", args)
		}
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "termplay.log")
	log, closeLog, err := newLogger(path, true)
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hello", "frame", 3)
	closeLog()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Error("debug log not written to file")
	}
}

func TestExecuteUsage(t *testing.T) {
	t.Parallel()

	if code := execute([]string{}); code != exitFailure {
		t.Errorf("exit code without a file = %d, want %d", code, exitFailure)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveOptionsSizeInPixels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.FileName)
	cmd, f := parseFlags(t, "--config", path, "--size", "64x64")
	opts, err := resolveOptions(cmd, f, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	cols, rows, _, _ := player.PictureSize(1920, 1080, opts.Size, player.GlyphBlock)
	if cols != 64 || rows != 32 {
		t.Errorf("--size 64x64 gives %dx%d cells, want 64x32", cols, rows)
	}
}

func TestResolveOptionsZeroValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		conf       string
		args       []string
		volume     float64
		high, drop time.Duration
	}{
		{
			name:   "defaults",
			volume: 1,
			high:   player.AutoTolerance,
			drop:   player.AutoTolerance,
		},
		{
			name:   "zero from flags",
			args:   []string{"--volume", "0", "--tolerance-high", "0", "--tolerance-drop", "0"},
			volume: 0,
		},
		{
			name:   "zero from settings file",
			conf:   "volume = 0\ntolerance_high_ms = 0\ntolerance_drop_ms = 0\n",
			volume: 0,
		},
		{
			name:   "negative flag picks the default",
			args:   []string{"--tolerance-drop", "-5ms"},
			volume: 1,
			high:   player.AutoTolerance,
			drop:   player.AutoTolerance,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), config.FileName)
			if tt.conf != "" {
				if err := os.WriteFile(path, []byte(tt.conf), 0644); err != nil {
					t.Fatal(err)
				}
			}
			cmd, f := parseFlags(t, append([]string{"--config", path}, tt.args...)...)
			opts, err := resolveOptions(cmd, f, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			if opts.Volume != tt.volume {
				t.Errorf("volume = %v, want %v", opts.Volume, tt.volume)
			}
			if opts.ToleranceHigh != tt.high || opts.ToleranceDrop != tt.drop {
				t.Errorf("tolerances = %v, %v; want %v, %v", opts.ToleranceHigh, opts.ToleranceDrop, tt.high, tt.drop)
			}
		})
	}
}
