package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/njyeung/termplay/player"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	navStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	summaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// Hint returns the key help line printed before playback.
func Hint(title string) string {
	k := defaultKeyMap()
	parts := make([]string, 0, len(k.ShortHelp()))
	for _, b := range k.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return titleStyle.Render(title) + "  " + navStyle.Render(strings.Join(parts, "  "))
}

// Summary describes a finished playback.
func Summary(stats player.RenderStats, elapsed time.Duration) string {
	return summaryStyle.Render(fmt.Sprintf("%d frames rendered, %d dropped in %s",
		stats.Rendered, stats.Dropped, elapsed.Round(time.Millisecond)))
}

// Error formats a playback failure.
func Error(err error) string {
	return errorStyle.Render("Error: " + err.Error())
}
