package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/njyeung/termplay/media"
)

// fakePlayer plays until stopped.
type fakePlayer struct {
	mu     sync.Mutex
	paused bool
	muted  bool
	stops  int

	stopped chan struct{}
	once    sync.Once
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{stopped: make(chan struct{})}
}

func (p *fakePlayer) Play(ctx context.Context, _ string) error {
	select {
	case <-p.stopped:
		return media.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
	p.once.Do(func() { close(p.stopped) })
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = !p.paused
}

func (p *fakePlayer) Mute() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.muted = !p.muted
}

func (p *fakePlayer) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *fakePlayer) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdateKeys(t *testing.T) {
	t.Parallel()

	p := newFakePlayer()
	var m tea.Model = NewModel(p)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !p.IsPaused() {
		t.Error("space did not pause")
	}
	m, _ = m.Update(runes("m"))
	if !p.IsMuted() {
		t.Error("m did not mute")
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if p.IsPaused() {
		t.Error("second space did not resume")
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Error("quit key should wait for playback to end")
	}
	m, _ = m.Update(runes("q"))
	if p.stops != 1 {
		t.Errorf("Stop called %d times, want 1", p.stops)
	}

	m, cmd = m.Update(playbackDoneMsg{err: media.ErrStopped})
	if cmd == nil {
		t.Fatal("done message did not quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("done message did not return tea.Quit")
	}
	if err := m.(Model).Err(); !errors.Is(err, media.ErrStopped) {
		t.Errorf("Err() = %v, want ErrStopped", err)
	}
}

func TestHint(t *testing.T) {
	t.Parallel()

	h := Hint("clip.mp4")
	for _, want := range []string{"clip.mp4", "space: pause", "m: mute", "q: quit"} {
		if !strings.Contains(h, want) {
			t.Errorf("hint %q missing %q", h, want)
		}
	}
}

func TestRunEndsWithPlayback(t *testing.T) {
	t.Parallel()

	in, w := io.Pipe()
	defer w.Close()

	p := newFakePlayer()
	time.AfterFunc(50*time.Millisecond, p.Stop)

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), p, "clip.mp4", in) }()

	select {
	case err := <-done:
		if !errors.Is(err, media.ErrStopped) {
			t.Errorf("run = %v, want ErrStopped", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after playback ended")
	}
}
