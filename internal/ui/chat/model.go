package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	chatsvc "github.com/nhle/finpal/internal/chat"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/theme"
)

// sendTimeout bounds a single advisor reply.
const sendTimeout = 60 * time.Second

// CloseMsg signals the parent to close the chat modal.
type CloseMsg struct{}

// ChangedMsg reports that the conversation with Agent changed.
type ChangedMsg struct {
	Agent model.AgentID
}

// SentMsg carries the outcome of a send.
type SentMsg struct {
	Agent model.AgentID
	Err   error
}

// LoadedMsg reports that history for Agent was loaded and seeded.
type LoadedMsg struct {
	Agent model.AgentID
	Err   error
}

// renderCache keeps glamour output per message id. It is shared across
// model copies.
type renderCache struct {
	mu    sync.Mutex
	width int
	out   map[string]string
}

// Model is the advisor chat modal.
type Model struct {
	service  *chatsvc.Service
	agent    model.AgentID
	input    textarea.Model
	viewport viewport.Model
	style    string
	cache    *renderCache
	err      error
	width    int
	height   int
}

// New creates the chat modal. style is a glamour standard style name
// ("dark", "light", "notty").
func New(service *chatsvc.Service, style string, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask your advisor..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 2000

	if style == "" {
		style = "dark"
	}

	m := Model{
		service:  service,
		input:    ta,
		viewport: viewport.New(width, height),
		style:    style,
		cache:    &renderCache{out: make(map[string]string)},
	}
	m.SetSize(width, height)
	return m
}

// Agent returns the agent the modal is talking to.
func (m Model) Agent() model.AgentID {
	return m.agent
}

// Open switches to agent and loads its history, then seeds opening as
// the advisor's first line.
func (m *Model) Open(agent model.AgentID, opening string) tea.Cmd {
	m.agent = agent
	m.err = nil
	m.input.Reset()
	m.refresh()

	svc := m.service
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := svc.Load(ctx, agent)
		svc.Seed(ctx, agent, opening)
		return LoadedMsg{Agent: agent, Err: err}
	}
	return tea.Batch(m.input.Focus(), load)
}

// Update handles chat input and results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		if msg.Agent == m.agent {
			m.refresh()
		}
		return m, nil

	case LoadedMsg:
		if msg.Agent == m.agent {
			m.err = msg.Err
			m.refresh()
		}
		return m, nil

	case SentMsg:
		if msg.Agent == m.agent {
			m.err = msg.Err
			m.refresh()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		return m, func() tea.Msg { return CloseMsg{} }

	case "ctrl+x":
		svc, agent := m.service, m.agent
		m.cache.reset()
		return m, func() tea.Msg {
			err := svc.Clear(context.Background(), agent)
			return SentMsg{Agent: agent, Err: err}
		}

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.service.Pending(m.agent) {
			return m, nil
		}
		m.input.Reset()
		m.err = nil

		svc, agent := m.service, m.agent
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			_, err := svc.Send(ctx, agent, text)
			return SentMsg{Agent: agent, Err: err}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh re-renders the conversation and scrolls to the bottom.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m Model) renderConversation() string {
	if m.agent == "" {
		return ""
	}
	history := m.service.History(m.agent)
	agent := model.Agents[m.agent]

	if len(history) == 0 {
		return theme.DimmedStyle.Italic(true).Render(
			"Ask " + agent.Name + " anything about " + strings.ToLower(agent.Role) + " topics.")
	}

	userStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBlue)
	agentStyle := theme.AgentStyle(m.agent)

	var sections []string
	for _, msg := range history {
		switch msg.Role {
		case model.RoleUser:
			content := msg.Content
			if msg.Pending {
				content = theme.DimmedStyle.Render(content + "  (sending…)")
			}
			sections = append(sections, userStyle.Render("You:"), content, "")
		default:
			sections = append(sections, agentStyle.Render(agent.Name+":"), m.markdown(msg))
		}
	}
	if m.service.Pending(m.agent) {
		sections = append(sections, theme.DimmedStyle.Italic(true).Render(agent.Name+" is typing..."))
	}
	return strings.Join(sections, "\n")
}

// markdown renders an advisor message, falling back to plain text when
// glamour fails.
func (m Model) markdown(msg model.ChatMessage) string {
	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}

	m.cache.mu.Lock()
	defer m.cache.mu.Unlock()
	if m.cache.width != width {
		m.cache.width = width
		m.cache.out = make(map[string]string)
	}
	if out, ok := m.cache.out[msg.ID]; ok {
		return out
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
	)
	out := msg.Content
	if err == nil {
		if rendered, err := r.Render(msg.Content); err == nil {
			out = strings.TrimRight(rendered, "\n")
		}
	}
	m.cache.out[msg.ID] = out
	return out
}

func (c *renderCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = make(map[string]string)
}

// View renders the chat modal.
func (m Model) View() string {
	agent := model.Agents[m.agent]
	title := theme.AgentStyle(m.agent).Render(agent.Icon+" "+agent.Name) +
		theme.DimmedStyle.Render("  "+agent.Role)

	sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(m.width-8, 10)))

	parts := []string{title, "", m.viewport.View(), sep, m.input.View()}
	if m.err != nil {
		text := m.err.Error()
		if errors.Is(m.err, chatsvc.ErrBusy) {
			text = "Please wait for the reply."
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(text))
	}
	parts = append(parts, theme.HelpStyle.Render("enter send · ctrl+x clear · pgup/pgdown scroll · esc close"))

	return theme.PanelStyle.
		Width(m.width - 2).
		BorderForeground(theme.AgentColor(m.agent)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the modal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width - 8)

	vpHeight := height - 12
	if vpHeight < 4 {
		vpHeight = 4
	}
	m.viewport.Width = width - 8
	m.viewport.Height = vpHeight
	if m.agent != "" {
		m.refresh()
	}
}
