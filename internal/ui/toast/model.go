package toast

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/theme"
)

const (
	// DefaultTTL is how long a notice stays on screen.
	DefaultTTL = 5 * time.Second
	// maxVisible caps the stack; older notices drop first.
	maxVisible = 3
)

// ExpireMsg removes the notice with ID.
type ExpireMsg struct {
	ID int
}

type notice struct {
	id    int
	title string
	body  string
	color lipgloss.TerminalColor
	err   bool
}

// Model is a stack of transient notices plus an optional persistent error.
type Model struct {
	notices    []notice
	next       int
	ttl        time.Duration
	persistent string
	width      int
}

// New creates an empty toast stack. ttl <= 0 uses DefaultTTL.
func New(ttl time.Duration) Model {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Model{ttl: ttl}
}

// Notify shows n as a notice tinted with its agent's color.
func (m *Model) Notify(n model.Notification) tea.Cmd {
	icon := ""
	if a, ok := model.Agents[n.AgentID]; ok {
		icon = a.Icon + " "
	}
	return m.push(notice{
		title: icon + n.Title,
		body:  n.Message,
		color: theme.AgentColor(n.AgentID),
	})
}

// Info shows a short plain notice.
func (m *Model) Info(text string) tea.Cmd {
	return m.push(notice{title: text, color: theme.ColorSubtle})
}

// Error shows a transient error notice.
func (m *Model) Error(text string) tea.Cmd {
	return m.push(notice{title: text, color: theme.ColorRed, err: true})
}

// SetPersistent pins text until cleared with an empty string.
func (m *Model) SetPersistent(text string) {
	m.persistent = text
}

// Persistent returns the pinned message, if any.
func (m Model) Persistent() string {
	return m.persistent
}

// Len returns the number of transient notices on screen.
func (m Model) Len() int {
	return len(m.notices)
}

func (m *Model) push(n notice) tea.Cmd {
	m.next++
	n.id = m.next
	m.notices = append(m.notices, n)
	if len(m.notices) > maxVisible {
		m.notices = m.notices[len(m.notices)-maxVisible:]
	}
	id := n.id
	return tea.Tick(m.ttl, func(time.Time) tea.Msg { return ExpireMsg{ID: id} })
}

// Update drops expired notices.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if e, ok := msg.(ExpireMsg); ok {
		for i, n := range m.notices {
			if n.id == e.ID {
				m.notices = append(m.notices[:i:i], m.notices[i+1:]...)
				break
			}
		}
	}
	return m, nil
}

// SetWidth sets the available width.
func (m *Model) SetWidth(width int) {
	m.width = width
}

// View renders the stack, newest last, or "" when empty.
func (m Model) View() string {
	w := m.width / 3
	if w < 30 {
		w = 30
	}

	var parts []string
	if m.persistent != "" {
		parts = append(parts, theme.ErrorToastStyle.Width(w).Render(m.persistent))
	}
	for _, n := range m.notices {
		style := theme.ToastStyle
		if n.err {
			style = theme.ErrorToastStyle
		}
		text := lipgloss.NewStyle().Bold(true).Foreground(n.color).Render(n.title)
		if n.body != "" {
			text += "\n" + strings.TrimSpace(n.body)
		}
		parts = append(parts, style.BorderForeground(n.color).Width(w).Render(text))
	}
	if len(parts) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Right, parts...)
}
