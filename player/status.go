package player

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/njyeung/termplay/media"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	statusDropStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

const minStatusWidth = 24

// statusLine renders the line drawn under the picture, clipped to width cells.
func (r *Renderer) statusLine(frame *media.Frame, drift time.Duration, width int) string {
	icon := "▶"
	if r.state.Load() == StatePaused {
		icon = "❚❚"
	}

	pos := formatClock(frame.PTS)
	if r.cfg.Duration > 0 {
		pos += " / " + formatClock(r.cfg.Duration)
	}

	line := statusStyle.Render(fmt.Sprintf("%s %s  #%d  %+dms", icon, pos, frame.Index, drift.Milliseconds()))
	if d := r.dropped.Load(); d > 0 {
		line += statusDropStyle.Render(fmt.Sprintf("  -%d", d))
	}
	if r.cfg.Title != "" {
		line = statusTitleStyle.Render(r.cfg.Title) + "  " + line
	}

	// Truncate, never wrap: the renderer counts exactly one status row.
	return lipgloss.NewStyle().MaxWidth(max(width, minStatusWidth)).Render(line)
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%02d:%02d", m, s)
}
