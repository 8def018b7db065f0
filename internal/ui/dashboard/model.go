package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/keys"
	"github.com/nhle/finpal/internal/model"
	appsync "github.com/nhle/finpal/internal/sync"
	"github.com/nhle/finpal/internal/theme"
)

// recentTransactions is how many transactions the overview lists.
const recentTransactions = 5

// OpenChatMsg asks the parent to open the chat with Agent. Opening is the
// preview the user clicked, if any.
type OpenChatMsg struct {
	Agent   model.AgentID
	Opening string
}

// Model is the main dashboard: agent cards, metrics, goals and recent
// activity.
type Model struct {
	hub      *hub.Hub
	keys     *keys.KeyMap
	selected int
	data     *appsync.Dashboard
	err      error
	profile  *model.Profile
	bar      progress.Model
	width    int
	height   int
}

// New creates the dashboard. ctx must carry the session hub.
func New(ctx context.Context, k *keys.KeyMap, width, height int) Model {
	return Model{
		hub:    hub.MustFromContext(ctx),
		keys:   k,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:  width,
		height: height,
	}
}

// SetDashboard stores the latest refresh result.
func (m *Model) SetDashboard(d *appsync.Dashboard, err error) {
	if d != nil {
		m.data = d
	}
	m.err = err
}

// SetProfile shows the quiz-derived profile line.
func (m *Model) SetProfile(p *model.Profile) {
	m.profile = p
}

// Selected returns the highlighted agent card.
func (m Model) Selected() model.AgentID {
	return model.AgentIDs()[m.selected]
}

// Update handles card navigation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	agents := model.AgentIDs()

	switch {
	case key.Matches(km, m.keys.Left):
		m.selected = (m.selected + len(agents) - 1) % len(agents)
	case key.Matches(km, m.keys.Right):
		m.selected = (m.selected + 1) % len(agents)
	case key.Matches(km, m.keys.Select):
		return m, m.OpenChat(agents[m.selected])
	}
	return m, nil
}

// OpenChat consumes agent's preview, if any, and asks for its chat.
func (m Model) OpenChat(agent model.AgentID) tea.Cmd {
	opening, _ := m.hub.ConsumePreview(agent)
	return func() tea.Msg { return OpenChatMsg{Agent: agent, Opening: opening} }
}

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{}
	if m.profile != nil {
		sections = append(sections, theme.DimmedStyle.Render(fmt.Sprintf(
			"Profile: %s risk · %s · focus on %s · %s",
			m.profile.RiskProfile, m.profile.ExperienceLevel, m.profile.PrimaryFocus, m.profile.Timeframe,
		)))
	}
	sections = append(sections, m.renderCards())

	switch {
	case m.data == nil && m.err != nil:
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorRed).
			Render("Could not load your finances: "+m.err.Error()))
	case m.data == nil:
		sections = append(sections, theme.DimmedStyle.Render("Loading your finances…"))
	default:
		sections = append(sections,
			m.renderMetrics(),
			lipgloss.JoinHorizontal(lipgloss.Top, m.renderGoals(), "  ", m.renderTransactions()),
		)
		if m.err != nil {
			sections = append(sections, theme.DimmedStyle.Render("stale: "+m.err.Error()))
		}
	}

	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) cardWidth() int {
	w := (m.width - 4) / 3
	if w < 24 {
		w = 24
	}
	return w
}

func (m Model) renderCards() string {
	w := m.cardWidth()

	cards := make([]string, 0, 3)
	for i, id := range model.AgentIDs() {
		agent := model.Agents[id]

		var b strings.Builder
		b.WriteString(theme.AgentStyle(id).Render(agent.Icon + " " + agent.Name))
		b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf("  [%d]", i+1)))
		b.WriteString("\n")
		b.WriteString(theme.DimmedStyle.Render(agent.Role))
		b.WriteString("\n\n")
		if msg, ok := m.hub.Preview(id); ok {
			b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorIndigo).Render("✦ New insight"))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(w - 4).MaxHeight(3).Render(msg))
		} else {
			b.WriteString(theme.DimmedStyle.Render("Ready to chat"))
		}

		style := theme.CardStyle.Width(w - 2).Height(7)
		if i == m.selected {
			style = style.BorderForeground(theme.AgentColor(id))
		}
		cards = append(cards, style.Render(b.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m Model) renderMetrics() string {
	if len(m.data.Metrics) == 0 {
		return ""
	}
	w := (m.width-4)/len(m.data.Metrics) - 2
	if w < 16 {
		w = 16
	}

	tiles := make([]string, len(m.data.Metrics))
	for i, metric := range m.data.Metrics {
		body := theme.DimmedStyle.Render(metric.Title) + "\n" +
			lipgloss.NewStyle().Bold(true).Render(FormatMetric(metric))
		if c := FormatChange(metric); c != "" {
			body += " " + theme.ChangeStyle(metric.Change.IsPositive).Render(c)
		}
		tiles[i] = theme.CardStyle.Width(w).Render(body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

func (m Model) renderGoals() string {
	half := (m.width - 6) / 2
	bar := m.bar
	bar.Width = half - 4

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Goals"))
	b.WriteString(theme.DimmedStyle.Render(fmt.Sprintf("  %s of %s",
		FormatCurrency(m.data.TotalProgress), FormatCurrency(m.data.TotalTarget))))
	b.WriteString("\n")
	for _, g := range m.data.Goals {
		label := g.Name
		if g.Completed {
			label += " ✓"
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", label,
			theme.DimmedStyle.Render(FormatCurrency(g.Current)+" / "+FormatCurrency(g.Target))))
		b.WriteString(bar.ViewAs(g.Progress()))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(half).Render(b.String())
}

func (m Model) renderTransactions() string {
	half := (m.width - 6) / 2

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Recent activity"))
	b.WriteString("\n")
	txns := m.data.Transactions
	if len(txns) > recentTransactions {
		txns = txns[:recentTransactions]
	}
	for _, t := range txns {
		amount := theme.ChangeStyle(t.Amount >= 0).Render(FormatCurrency(t.Amount))
		b.WriteString(fmt.Sprintf("%-20s %s  %s\n", t.Merchant, amount, theme.DimmedStyle.Render(t.Category)))
	}
	return lipgloss.NewStyle().Width(half).Render(b.String())
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
