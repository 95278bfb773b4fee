// Package tui handles keyboard control during playback. The picture itself
// is drawn by the player; the bubbletea program here only reads input.
package tui

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Player is the playback surface the keys drive.
type Player interface {
	Play(ctx context.Context, path string) error
	Stop()
	Pause()
	Mute()
	IsPaused() bool
	IsMuted() bool
}

// Messages
type playbackDoneMsg struct{ err error }

// Model is the Bubble Tea model
type Model struct {
	player Player
	keys   keyMap

	stopping bool
	done     bool
	err      error
}

// NewModel creates a model controlling p.
func NewModel(p Player) Model {
	return Model{
		player: p,
		keys:   defaultKeyMap(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			// Wait for playback to unwind; playbackDoneMsg quits.
			if !m.stopping {
				m.stopping = true
				m.player.Stop()
			}
		case key.Matches(msg, m.keys.Pause):
			m.player.Pause()
		case key.Matches(msg, m.keys.Mute):
			m.player.Mute()
		}

	case playbackDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// View renders nothing; the player owns the screen.
func (m Model) View() string {
	return ""
}

// Err returns the playback result once done.
func (m Model) Err() error {
	return m.err
}

// Run plays path while reading keys from stdin. When stdin is not a
// terminal it plays without keyboard control.
func Run(ctx context.Context, p Player, path string) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.Play(ctx, path)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return p.Play(ctx, path)
	}
	defer term.Restore(fd, state)

	return run(ctx, p, path, os.Stdin)
}

func run(ctx context.Context, p Player, path string, in io.Reader) error {
	prog := tea.NewProgram(NewModel(p),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)

	result := make(chan error, 1)
	go func() {
		err := p.Play(ctx, path)
		result <- err
		prog.Send(playbackDoneMsg{err})
	}()

	final, err := prog.Run()
	if m, ok := final.(Model); ok && m.done {
		return m.err
	}

	// The program ended before playback did.
	p.Stop()
	playErr := <-result
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return playErr
}
