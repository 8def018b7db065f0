package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/keys"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/theme"
)

// section is one titled group of bindings, keyed by the surface that
// handles them.
type section struct {
	title    string
	bindings []key.Binding
}

// chatBindings are handled inside the chat modal rather than the key map.
var chatBindings = []key.Binding{
	key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "clear conversation")),
	key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "scroll")),
	key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
}

// Model is the help overlay: the key map grouped by surface, the advisor
// roster behind the 1/2/3 shortcuts, and the palette commands.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

func (m Model) sections() []section {
	k := m.keys
	return []section{
		{"Dashboard", []key.Binding{k.Left, k.Right, k.Select, k.Refresh, k.Quiz, k.Command, k.Help, k.Quit}},
		{"Notifications", []key.Binding{k.Drawer, k.NextTab, k.Up, k.Down, k.Select, k.Dismiss, k.MarkAllRead, k.ClearAll}},
		{"Chat", chatBindings},
		{"Dev panel", []key.Binding{k.DevPanel, k.Up, k.Down, k.Select, k.Reconnect, k.Back}},
	}
}

// View renders the help overlay.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	colWidth := max((m.width-10)/2, 28)
	heading := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorIndigo)

	blocks := make([]string, 0, 5)
	for _, s := range m.sections() {
		blocks = append(blocks, lipgloss.NewStyle().Width(colWidth).MarginBottom(1).Render(
			heading.Render(s.title)+"\n"+m.help.FullHelpView([][]key.Binding{s.bindings}),
		))
	}
	blocks = append(blocks, lipgloss.NewStyle().Width(colWidth).MarginBottom(1).Render(
		heading.Render("Advisors")+"\n"+m.renderAdvisors(),
	))

	var rows []string
	for i := 0; i < len(blocks); i += 2 {
		if i+1 < len(blocks) {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, blocks[i], "  ", blocks[i+1]))
		} else {
			rows = append(rows, blocks[i])
		}
	}

	footer := theme.DimmedStyle.Render(
		"Notifications arrive live from your advisors. Press D to simulate one, or :trigger <scenario>.")

	content := lipgloss.JoinVertical(lipgloss.Left, append(append([]string{title}, rows...), footer)...)
	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

func (m Model) renderAdvisors() string {
	shortcuts := []key.Binding{m.keys.ChatSofia, m.keys.ChatMarcus, m.keys.ChatLuna}
	lines := make([]string, 0, len(shortcuts))
	for i, id := range model.AgentIDs() {
		agent := model.Agents[id]
		line := theme.AgentStyle(id).Render(agent.Icon+" "+agent.Name) +
			theme.DimmedStyle.Render(" "+agent.Role)
		if i < len(shortcuts) {
			line = theme.HelpStyle.Render(shortcuts[i].Help().Key+" ") + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = (width-10)/2 - 2
}
