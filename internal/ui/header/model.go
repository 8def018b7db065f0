package header

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/channel"
	"github.com/nhle/finpal/internal/theme"
)

// bumpDuration is how long the bell stays highlighted after a new
// notification.
const bumpDuration = 600 * time.Millisecond

// BumpDoneMsg ends the bell animation started for Tick.
type BumpDoneMsg struct {
	Tick uint64
}

// Model is the top bar: title, connection indicator and bell.
type Model struct {
	title   string
	unread  int
	tick    uint64
	bumping bool
	status  channel.Status
	gaveUp  bool
	sync    string
}

// New creates a header with title.
func New(title string) Model {
	return Model{title: title}
}

// Badge formats an unread count, capped at 99+. Zero renders nothing.
func Badge(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 99:
		return "99+"
	default:
		return fmt.Sprintf("%d", count)
	}
}

// SetUnread updates the badge count.
func (m *Model) SetUnread(n int) {
	m.unread = n
}

// SetConnection updates the connection indicator.
func (m *Model) SetConnection(s channel.Status, gaveUp bool) {
	m.status = s
	m.gaveUp = gaveUp
}

// SetSync sets the dashboard refresh label.
func (m *Model) SetSync(s string) {
	m.sync = s
}

// Bump replays the bell animation for tick. Each tick restarts it, even
// while a previous one is still running.
func (m *Model) Bump(tick uint64) tea.Cmd {
	m.tick = tick
	m.bumping = true
	return tea.Tick(bumpDuration, func(time.Time) tea.Msg {
		return BumpDoneMsg{Tick: tick}
	})
}

// Bumping reports whether the bell is animating.
func (m Model) Bumping() bool {
	return m.bumping
}

// Update handles the end of a bump.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if done, ok := msg.(BumpDoneMsg); ok && done.Tick == m.tick {
		m.bumping = false
	}
	return m, nil
}

func (m Model) connection() string {
	switch {
	case m.gaveUp:
		return lipgloss.NewStyle().Foreground(theme.ColorRed).Render("✕ offline")
	case m.status == channel.Connected:
		return lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("● live")
	case m.status == channel.Connecting:
		return lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("◌ connecting")
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorGray).Render("○ reconnecting")
	}
}

func (m Model) bell() string {
	bell := "🔔"
	if m.bumping {
		bell = lipgloss.NewStyle().Foreground(theme.ColorYellow).Bold(true).Render("🔔!")
	}
	if b := Badge(m.unread); b != "" {
		bell += " " + theme.BadgeStyle.Render(b)
	}
	return bell
}

// View renders the bar across width columns.
func (m Model) View(width int) string {
	left := theme.HeaderStyle.Render(m.title)

	right := m.connection() + "  " + m.bell()
	if m.sync != "" {
		right = theme.DimmedStyle.Render(m.sync) + "  " + right
	}
	right = lipgloss.NewStyle().Padding(0, 1).Render(right)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, lipgloss.NewStyle().Width(gap).Render(""), right)
}
