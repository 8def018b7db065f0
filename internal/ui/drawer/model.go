package drawer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/keys"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/theme"
)

// Tab filters the drawer list.
type Tab int

const (
	TabAll Tab = iota
	TabAlerts
	TabMessages
)

var tabNames = []string{"All", "Alerts", "Messages"}

func (t Tab) String() string {
	return tabNames[t]
}

// Filter returns the notifications shown under t, keeping order.
func Filter(t Tab, items []model.Notification) []model.Notification {
	if t == TabAll {
		return items
	}
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		switch t {
		case TabAlerts:
			if n.IsAlert() {
				out = append(out, n)
			}
		case TabMessages:
			if n.Type == model.TypeProactive || n.Type == model.TypeAchievement {
				out = append(out, n)
			}
		}
	}
	return out
}

// CloseMsg asks the parent to hide the drawer.
type CloseMsg struct{}

// TakeActionMsg asks the parent to open the agent's chat.
type TakeActionMsg struct {
	Agent   model.AgentID
	Opening string
}

// ReadMsg reports a notification marked read from the drawer.
type ReadMsg struct {
	Title string
}

// Model is the notifications drawer.
type Model struct {
	hub      *hub.Hub
	keys     *keys.KeyMap
	tab      Tab
	cursor   int
	viewport viewport.Model
	width    int
	height   int
}

// New creates the drawer. ctx must carry the session hub.
func New(ctx context.Context, k *keys.KeyMap, width, height int) Model {
	m := Model{
		hub:      hub.MustFromContext(ctx),
		keys:     k,
		viewport: viewport.New(width, height),
	}
	m.SetSize(width, height)
	return m
}

// Tab returns the active tab.
func (m Model) Tab() Tab {
	return m.tab
}

// Cursor returns the selected row within the active tab.
func (m Model) Cursor() int {
	return m.cursor
}

func (m Model) visible() []model.Notification {
	return Filter(m.tab, m.hub.Notifications())
}

// Update handles drawer keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	items := m.visible()

	switch {
	case key.Matches(km, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(km, m.keys.NextTab):
		m.tab = (m.tab + 1) % Tab(len(tabNames))
		m.cursor = 0

	case km.String() == "shift+tab":
		m.tab = (m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		m.cursor = 0

	case key.Matches(km, m.keys.Down):
		if m.cursor < len(items)-1 {
			m.cursor++
		}

	case key.Matches(km, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(km, m.keys.Select):
		if m.cursor >= len(items) {
			return m, nil
		}
		return m, m.open(items[m.cursor])

	case key.Matches(km, m.keys.Dismiss):
		if m.cursor < len(items) {
			m.hub.ClearNotification(items[m.cursor].ID)
		}

	case key.Matches(km, m.keys.MarkAllRead):
		m.hub.MarkAllAsRead()

	case key.Matches(km, m.keys.ClearAll):
		m.hub.ClearAll()
		m.cursor = 0
	}

	m.clamp()
	return m, nil
}

// open marks n read and, when it asks for action, opens the chat.
func (m Model) open(n model.Notification) tea.Cmd {
	var cmds []tea.Cmd
	if !n.IsRead {
		m.hub.MarkAsRead(n.ID)
		title := n.Title
		cmds = append(cmds, func() tea.Msg { return ReadMsg{Title: title} })
	}
	if n.ActionRequired {
		agent, opening := n.AgentID, n.Message
		cmds = append(cmds, func() tea.Msg { return TakeActionMsg{Agent: agent, Opening: opening} })
	}
	return tea.Batch(cmds...)
}

func (m *Model) clamp() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the drawer panel.
func (m Model) View() string {
	all := m.hub.Notifications()
	items := Filter(m.tab, all)

	unread := 0
	for _, n := range all {
		if !n.IsRead {
			unread++
		}
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Notifications")
	if unread > 0 {
		title += theme.DimmedStyle.Render(fmt.Sprintf("  %d unread", unread))
	}

	body := m.renderItems(items)
	m.viewport.SetContent(body)
	m.viewport.SetYOffset(m.offsetFor(items))

	hints := theme.HelpStyle.Render("tab switch · enter open · x dismiss · a mark all read · esc close")

	return theme.PanelStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.renderTabs(), "", m.viewport.View(), hints))
}

func (m Model) renderTabs() string {
	parts := make([]string, len(tabNames))
	for i, name := range tabNames {
		if Tab(i) == m.tab {
			parts[i] = theme.SelectedItemStyle.Render(name)
		} else {
			parts[i] = theme.ListItemStyle.Foreground(theme.ColorGray).Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// itemLines is the rendered height of one entry including its spacer.
const itemLines = 5

func (m Model) offsetFor(items []model.Notification) int {
	perPage := m.viewport.Height / itemLines
	if perPage < 1 {
		perPage = 1
	}
	if m.cursor < perPage {
		return 0
	}
	return (m.cursor - perPage + 1) * itemLines
}

func (m Model) renderItems(items []model.Notification) string {
	if len(items) == 0 {
		empty := "No notifications"
		switch m.tab {
		case TabAlerts:
			empty = "No alerts"
		case TabMessages:
			empty = "No messages"
		}
		return theme.DimmedStyle.Render(empty + "\nYour agents will notify you of important insights.")
	}

	width := m.width - 8
	var b strings.Builder
	for i, n := range items {
		b.WriteString(m.renderItem(n, i == m.cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderItem(n model.Notification, selected bool, width int) string {
	dot := "  "
	if !n.IsRead {
		dot = lipgloss.NewStyle().Foreground(theme.ColorIndigo).Render("● ")
	}
	agent := model.Agents[n.AgentID]
	head := dot + theme.AgentStyle(n.AgentID).Render(agent.Icon+" "+agent.Name) +
		theme.TypeStyle(n.Type).Render(string(n.Type)) +
		theme.PriorityStyle(n.Priority).Render(string(n.Priority)) + " " +
		theme.DimmedStyle.Render(n.Timestamp.Local().Format("15:04"))

	titleStyle := lipgloss.NewStyle()
	if !n.IsRead {
		titleStyle = titleStyle.Bold(true)
	}
	lines := []string{
		head,
		titleStyle.Render(truncate(n.Title, width)),
		theme.DimmedStyle.Render(truncate(n.Message, width)),
	}
	if n.ActionRequired {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorIndigo).Render("enter to chat with "+agent.Name))
	} else {
		lines = append(lines, "")
	}

	style := theme.ListItemStyle
	if selected {
		style = theme.SelectedItemStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

// SetSize updates the drawer dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 6
	vh := height - 9
	if vh < itemLines {
		vh = itemLines
	}
	m.viewport.Height = vh
}

// Reset returns to the All tab.
func (m *Model) Reset() {
	m.tab = TabAll
	m.cursor = 0
}
