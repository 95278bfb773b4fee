package player

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/njyeung/termplay/decoder"
	"github.com/njyeung/termplay/media"
)

func testPlayer(opts Options, info decoder.Info, ingest *fakeIngest, out *recordWriter) (*AVPlayer, *[]decoder.Config) {
	p := NewAVPlayer(opts, quietLogger())
	p.SetOutput(out)
	p.ts = newFakeTime()
	p.probe = func(string) (*decoder.Info, error) {
		i := info
		return &i, nil
	}
	p.termSize = func() (int, int, error) { return 0, 0, errors.New("not a terminal") }
	p.openSink = func(int) (Sink, error) { return &fakeSink{}, nil }

	var configs []decoder.Config
	p.newIngest = func(cfg decoder.Config, _ *slog.Logger) Ingester {
		configs = append(configs, cfg)
		return ingest
	}
	return p, &configs
}

func TestPlayerPlay(t *testing.T) {
	t.Parallel()

	info := decoder.Info{Width: 320, Height: 240, Rate: media.Rate{Num: 25, Den: 1}}
	out := &recordWriter{}
	p, configs := testPlayer(Options{}, info, &fakeIngest{frames: 5}, out)

	if err := p.Play(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if st := p.Stats(); st.Rendered != 5 {
		t.Errorf("rendered %d, want 5", st.Rendered)
	}
	if len(*configs) != 1 {
		t.Fatalf("%d decoder runs, want 1", len(*configs))
	}
	cfg := (*configs)[0]
	if cfg.Width != 64 || cfg.Height != 24 || cfg.Rate != info.Rate || cfg.HasAudio() {
		t.Errorf("decoder config = %+v", cfg)
	}
}

func TestPlayerRateOverride(t *testing.T) {
	t.Parallel()

	info := decoder.Info{Width: 16, Height: 16, HasAudio: true}
	opts := Options{Rate: media.Rate{Num: 12, Den: 1}, Size: SizeOptions{PreserveDims: true}}
	p, configs := testPlayer(opts, info, &fakeIngest{frames: 2}, &recordWriter{})

	if err := p.Play(context.Background(), "clip.mp4"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	cfg := (*configs)[0]
	if cfg.Rate != opts.Rate || cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("decoder config = %+v", cfg)
	}
	if cfg.SampleRate != AudioSampleRate || cfg.Channels != AudioChannels {
		t.Errorf("audio config = %d Hz %d ch", cfg.SampleRate, cfg.Channels)
	}
}

func TestPlayerUnknownRate(t *testing.T) {
	t.Parallel()

	p, _ := testPlayer(Options{}, decoder.Info{Width: 16, Height: 16}, &fakeIngest{}, &recordWriter{})
	if err := p.Play(context.Background(), "clip.mp4"); err == nil {
		t.Fatal("Play without a frame rate succeeded")
	}
}

func TestPlayerLoopUntilStopped(t *testing.T) {
	t.Parallel()

	info := decoder.Info{Width: 8, Height: 8, Rate: media.Rate{Num: 10, Den: 1}}
	ingest := &fakeIngest{frames: 3}
	p, configs := testPlayer(Options{Loop: true}, info, ingest, &recordWriter{})

	inner := p.newIngest
	p.newIngest = func(cfg decoder.Config, log *slog.Logger) Ingester {
		if len(*configs) == 2 {
			p.Stop()
		}
		return inner(cfg, log)
	}

	err := p.Play(context.Background(), "clip.mp4")
	if !IsStopped(err) {
		t.Fatalf("Play = %v, want ErrStopped", err)
	}
	if len(*configs) != 3 {
		t.Errorf("%d passes, want 3", len(*configs))
	}
}

func TestPlayerToggles(t *testing.T) {
	t.Parallel()

	p := NewAVPlayer(Options{Muted: true}, quietLogger())
	if !p.IsMuted() {
		t.Error("Muted option ignored")
	}
	p.Mute()
	if p.IsMuted() {
		t.Error("Mute did not toggle")
	}
	p.Pause()
	if !p.IsPaused() {
		t.Error("Pause did not toggle")
	}
}

func TestPlayerSessionSettings(t *testing.T) {
	t.Parallel()

	rate := media.Rate{Num: 10, Den: 1}
	info := decoder.Info{Width: 8, Height: 8, Rate: rate, HasAudio: true}
	period := rate.Period()

	tests := []struct {
		name       string
		opts       Options
		volume     float64
		high, drop time.Duration
	}{
		{
			name:   "silent with zero tolerances",
			opts:   Options{Volume: 0},
			volume: 0,
		},
		{
			name:   "default tolerances",
			opts:   Options{Volume: 0.5, ToleranceHigh: AutoTolerance, ToleranceDrop: AutoTolerance},
			volume: 0.5,
			high:   period,
			drop:   2 * period,
		},
		{
			name:   "explicit tolerances",
			opts:   Options{Volume: 1, ToleranceHigh: 0, ToleranceDrop: 30 * time.Millisecond},
			volume: 1,
			drop:   30 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, _ := testPlayer(tt.opts, info, &fakeIngest{}, &recordWriter{})
			s, err := p.newSession("clip.mp4")
			if err != nil {
				t.Fatal(err)
			}
			defer s.cleanup()

			if got := math.Float64frombits(s.audio.volume.Load()); got != tt.volume {
				t.Errorf("volume = %v, want %v", got, tt.volume)
			}
			if cfg := s.renderer.cfg; cfg.ToleranceHigh != tt.high || cfg.ToleranceDrop != tt.drop {
				t.Errorf("tolerances = %v, %v; want %v, %v", cfg.ToleranceHigh, cfg.ToleranceDrop, tt.high, tt.drop)
			}
		})
	}
}
