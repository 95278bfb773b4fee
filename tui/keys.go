package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit  key.Binding
	Pause key.Binding
	Mute  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" ", "space", "p"),
			key.WithHelp("space", "pause"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
	}
}

// ShortHelp lists the bindings shown in the hint line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Mute, k.Quit}
}
