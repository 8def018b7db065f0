package devpanel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/demo"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/keys"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/theme"
)

// triggerTimeout bounds a single demo request.
const triggerTimeout = 10 * time.Second

// recentCount is how many shared notifications the panel lists.
const recentCount = 6

// CloseMsg asks the parent to hide the panel.
type CloseMsg struct{}

// TriggeredMsg reports the outcome of a demo trigger.
type TriggeredMsg struct {
	Scenario     string
	Notification *model.Notification
	Err          error
}

type flagRow struct {
	label string
	get   func(model.UXFlags) bool
	patch func(bool) model.UXFlagsPatch
}

var flagRows = []flagRow{
	{
		label: "Inline agent preview (recommended)",
		get:   func(f model.UXFlags) bool { return f.InlinePreview },
		patch: func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{InlinePreview: &v} },
	},
	{
		label: "Auto-open drawer",
		get:   func(f model.UXFlags) bool { return f.AutoOpenDrawer },
		patch: func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{AutoOpenDrawer: &v} },
	},
	{
		label: "Auto-open chat",
		get:   func(f model.UXFlags) bool { return f.AutoOpenChat },
		patch: func(v bool) model.UXFlagsPatch { return model.UXFlagsPatch{AutoOpenChat: &v} },
	},
}

// Model is the developer panel. It shares the session hub and never
// opens a connection of its own.
type Model struct {
	hub     *hub.Hub
	keys    *keys.KeyMap
	cursor  int
	pending string
	last    string
	width   int
	height  int
}

// New creates the panel. ctx must carry the session hub.
func New(ctx context.Context, k *keys.KeyMap, width, height int) Model {
	return Model{
		hub:    hub.MustFromContext(ctx),
		keys:   k,
		width:  width,
		height: height,
	}
}

func rows() int {
	return len(flagRows) + len(demo.Scenarios)
}

// Cursor returns the selected row: flags first, then scenarios.
func (m Model) Cursor() int {
	return m.cursor
}

// Update handles panel keys and trigger results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TriggeredMsg:
		m.pending = ""
		switch {
		case msg.Err != nil:
			m.last = fmt.Sprintf("%s failed: %v", msg.Scenario, msg.Err)
		case msg.Notification == nil:
			m.last = msg.Scenario + " accepted"
		default:
			m.last = fmt.Sprintf("%s → %s", msg.Scenario, msg.Notification.Title)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return CloseMsg{} }
		case key.Matches(msg, m.keys.Down):
			if m.cursor < rows()-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Reconnect):
			m.hub.Reconnect()
		case key.Matches(msg, m.keys.Select), msg.String() == " ":
			return m.activate()
		}
	}
	return m, nil
}

func (m Model) activate() (Model, tea.Cmd) {
	if m.cursor < len(flagRows) {
		row := flagRows[m.cursor]
		m.hub.SetFlags(row.patch(!row.get(m.hub.Flags())))
		return m, nil
	}

	if m.pending != "" {
		return m, nil
	}
	sc := demo.Scenarios[m.cursor-len(flagRows)]
	m.pending = sc.Name
	h := m.hub
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		n, err := h.TriggerDemo(ctx, sc.Name)
		return TriggeredMsg{Scenario: sc.Name, Notification: n, Err: err}
	}
}

// View renders the panel.
func (m Model) View() string {
	section := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	var b strings.Builder
	b.WriteString(section.Render("Developer Panel"))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	b.WriteString(section.Render("UX flags"))
	b.WriteString("\n")
	flags := m.hub.Flags()
	for i, row := range flagRows {
		box := "[ ]"
		if row.get(flags) {
			box = "[x]"
		}
		b.WriteString(m.row(i, box+" "+row.label))
		b.WriteString("\n")
	}
	b.WriteString(m.renderPreviews())
	b.WriteString("\n")

	b.WriteString("\n")
	b.WriteString(section.Render("Demo scenarios"))
	b.WriteString("\n")
	for i, sc := range demo.Scenarios {
		label := theme.AgentStyle(sc.Agent).Render(model.Agents[sc.Agent].Icon) + " " + sc.Label
		if m.pending == sc.Name {
			label += theme.DimmedStyle.Render("  sending…")
		}
		b.WriteString(m.row(len(flagRows)+i, label))
		b.WriteString("\n")
	}
	if m.last != "" {
		b.WriteString(theme.DimmedStyle.Render(m.last))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(section.Render(fmt.Sprintf("Shared notifications (%d unread)", m.hub.UnreadCount())))
	b.WriteString("\n")
	b.WriteString(m.renderRecent())
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render("enter toggle/trigger · R reconnect · esc close"))

	return theme.PanelStyle.
		Width(m.width - 2).
		Render(b.String())
}

// renderPreviews lists the agents whose cards show an inline preview.
func (m Model) renderPreviews() string {
	previews := m.hub.Previews()
	if len(previews) == 0 {
		return theme.DimmedStyle.Render("No active previews")
	}
	names := make([]string, 0, len(previews))
	for _, id := range model.AgentIDs() {
		if _, ok := previews[id]; ok {
			names = append(names, theme.AgentStyle(id).Render(model.Agents[id].Name))
		}
	}
	return theme.DimmedStyle.Render("Active previews: ") + strings.Join(names, ", ")
}

func (m Model) row(i int, label string) string {
	if i == m.cursor {
		return theme.SelectedItemStyle.Render(label)
	}
	return theme.ListItemStyle.Render(label)
}

func (m Model) renderStatus() string {
	status := m.hub.Status().String()
	color := theme.ColorGray
	switch {
	case m.hub.GaveUp():
		status = "gave up"
		color = theme.ColorRed
	case m.hub.IsConnected():
		color = theme.ColorGreen
	}
	line := "WebSocket: " + lipgloss.NewStyle().Foreground(color).Bold(true).Render(status)
	if a := m.hub.Attempts(); a > 0 {
		line += theme.DimmedStyle.Render(fmt.Sprintf("  (attempt %d)", a))
	}
	if id := m.hub.ClientID(); id != "" {
		line += theme.DimmedStyle.Render("  " + id)
	}
	return line
}

func (m Model) renderRecent() string {
	items := m.hub.Notifications()
	if len(items) == 0 {
		return theme.DimmedStyle.Render("none yet")
	}
	if len(items) > recentCount {
		items = items[:recentCount]
	}
	lines := make([]string, len(items))
	for i, n := range items {
		mark := " "
		if !n.IsRead {
			mark = "●"
		}
		lines[i] = fmt.Sprintf("%s %s %s",
			mark,
			theme.AgentStyle(n.AgentID).Render(n.AgentID.Name()),
			n.Title,
		)
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
