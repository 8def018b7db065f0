package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/theme"
)

// Layout manages the terminal frame dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the main area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes the full view: header, content with toasts
// pinned to its bottom-right corner, and the status bar.
func (l Layout) RenderWithFrame(header, content, toasts, statusBar string) string {
	body := lipgloss.NewStyle().
		Width(l.ContentWidth()).
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	if toasts != "" {
		body = l.Pin(body, toasts)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

// Pin replaces the bottom lines of body with overlay, right-aligned.
func (l Layout) Pin(body, overlay string) string {
	return lipgloss.JoinVertical(
		lipgloss.Right,
		lipgloss.NewStyle().
			MaxHeight(l.ContentHeight()-lipgloss.Height(overlay)).
			Render(body),
		lipgloss.PlaceHorizontal(l.ContentWidth(), lipgloss.Right, overlay),
	)
}

// Modal centers panel over the content area.
func (l Layout) Modal(panel string) string {
	return lipgloss.Place(
		l.ContentWidth(), l.ContentHeight(),
		lipgloss.Center, lipgloss.Center,
		panel,
	)
}

// Side places panel against the right edge, full height.
func (l Layout) Side(panel string) string {
	return lipgloss.PlaceHorizontal(l.ContentWidth(), lipgloss.Right, panel)
}
