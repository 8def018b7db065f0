package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	chatsvc "github.com/nhle/finpal/internal/chat"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/keys"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/store"
	appsync "github.com/nhle/finpal/internal/sync"
	"github.com/nhle/finpal/internal/ui"
	chatview "github.com/nhle/finpal/internal/ui/chat"
	"github.com/nhle/finpal/internal/ui/command"
	"github.com/nhle/finpal/internal/ui/dashboard"
	"github.com/nhle/finpal/internal/ui/devpanel"
	"github.com/nhle/finpal/internal/ui/drawer"
	"github.com/nhle/finpal/internal/ui/header"
	helpview "github.com/nhle/finpal/internal/ui/help"
	"github.com/nhle/finpal/internal/ui/quiz"
	"github.com/nhle/finpal/internal/ui/toast"
)

// LostConnectionMessage is pinned once the push channel gives up.
const LostConnectionMessage = "Lost connection to server. Please restart."

// profileLoadedMsg carries the stored quiz, nil when onboarding never ran.
type profileLoadedMsg struct {
	profile *model.StoredProfile
	err     error
}

// Overlay is the surface drawn over the dashboard.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDrawer
	OverlayDevPanel
	OverlayChat
	OverlayQuiz
	OverlayHelp
	OverlayCommand
)

// Options configures the root model. Mailbox must be the Effects value the
// session hub was built with.
type Options struct {
	Mailbox      *Mailbox
	Chat         *chatsvc.Service
	Poller       *appsync.Poller
	Profiles     store.ProfileStore
	Clock        clockwork.Clock
	Logger       *zap.Logger
	GlamourStyle string
	ToastTTL     time.Duration
}

// Model is the root Bubble Tea model that routes input between the
// dashboard and its overlays.
type Model struct {
	hub      *hub.Hub
	mail     *Mailbox
	chatSvc  *chatsvc.Service
	poller   *appsync.Poller
	profiles store.ProfileStore
	log      *zap.Logger
	keys     *keys.KeyMap
	layout   ui.Layout

	header    header.Model
	dashboard dashboard.Model
	drawer    drawer.Model
	devpanel  devpanel.Model
	chat      chatview.Model
	quiz      quiz.Model
	helpView  helpview.Model
	command   command.Model
	toasts    toast.Model

	overlay   Overlay
	profile   *model.StoredProfile
	authError string
	ready     bool
	unsubs    []func()
}

// New creates the root model. ctx must carry the session hub.
func New(ctx context.Context, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Mailbox == nil {
		opts.Mailbox = NewMailbox()
	}
	h := hub.MustFromContext(ctx)
	k := keys.DefaultKeyMap()

	m := Model{
		hub:       h,
		mail:      opts.Mailbox,
		chatSvc:   opts.Chat,
		poller:    opts.Poller,
		profiles:  opts.Profiles,
		log:       opts.Logger.Named("app"),
		keys:      k,
		header:    header.New("FinPal"),
		dashboard: dashboard.New(ctx, k, 80, 24),
		drawer:    drawer.New(ctx, k, 60, 24),
		devpanel:  devpanel.New(ctx, k, 80, 24),
		chat:      chatview.New(opts.Chat, opts.GlamourStyle, 80, 24),
		quiz:      quiz.New(opts.Profiles, opts.Clock, 80, 24),
		helpView:  helpview.New(k, 80, 24),
		command:   command.New(commandSuggestions(), 80, 24),
		toasts:    toast.New(opts.ToastTTL),
	}

	m.unsubs = append(m.unsubs,
		h.Subscribe(m.mail.HubChanged),
		opts.Chat.Subscribe(m.mail.ChatChanged),
	)
	m.syncHeader()
	return m
}

// Close detaches the model from the hub and chat service.
func (m Model) Close() {
	for _, u := range m.unsubs {
		u()
	}
	m.mail.Close()
}

// Overlay returns the surface currently drawn over the dashboard.
func (m Model) Overlay() Overlay {
	return m.overlay
}

// Init starts the push channel, the dashboard refresh and the mailbox
// reader, then loads the profile.
func (m Model) Init() tea.Cmd {
	h := m.hub
	return tea.Batch(
		m.mail.Next(),
		func() tea.Msg {
			h.Start()
			return nil
		},
		m.poller.Start(),
		m.loadProfile(),
	)
}

func (m Model) loadProfile() tea.Cmd {
	profiles := m.profiles
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p, err := profiles.GetProfile(ctx)
		return profileLoadedMsg{profile: p, err: err}
	}
}

// Update handles messages and dispatches to the active surface.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		if m.overlay == OverlayQuiz {
			var cmd tea.Cmd
			m.quiz, cmd = m.quiz.Update(msg)
			return m, cmd
		}
		return m, nil

	case mailMsg:
		next, cmd := m.Update(msg.msg)
		return next, tea.Batch(cmd, m.mail.Next())

	case bellMsg:
		return m, m.header.Bump(msg.tick)

	case header.BumpDoneMsg:
		m.header, _ = m.header.Update(msg)
		return m, nil

	case toastMsg:
		return m, m.toasts.Notify(msg.n)

	case toast.ExpireMsg:
		m.toasts, _ = m.toasts.Update(msg)
		return m, nil

	case openDrawerMsg:
		switch m.overlay {
		case OverlayNone, OverlayHelp, OverlayDevPanel:
			m.drawer.Reset()
			m.overlay = OverlayDrawer
		}
		return m, nil

	case openChatMsg:
		if m.overlay == OverlayQuiz {
			return m, nil
		}
		return m, m.openChat(msg.agent, msg.opening)

	case previewMsg:
		// Cards read previews from the hub on every render.
		return m, nil

	case hubChangeMsg:
		m.syncHeader()
		switch msg.change {
		case hub.ChangeGaveUp:
			m.toasts.SetPersistent(LostConnectionMessage)
		case hub.ChangeStatus:
			if m.hub.IsConnected() {
				m.toasts.SetPersistent("")
			}
		}
		return m, nil

	case chatChangeMsg:
		m.chat, _ = m.chat.Update(chatview.ChangedMsg{Agent: msg.agent})
		return m, nil

	case profileLoadedMsg:
		if msg.err != nil {
			m.log.Warn("loading profile", zap.Error(msg.err))
			return m, m.toasts.Error("Could not load your profile")
		}
		if msg.profile == nil {
			m.profile = nil
			return m, m.openQuiz()
		}
		m.profile = msg.profile
		p := msg.profile.Answers.DeriveProfile()
		m.dashboard.SetProfile(&p)
		return m, nil

	case appsync.SyncResultMsg:
		m.dashboard.SetDashboard(msg.Dashboard, msg.Error)
		if msg.AuthError != nil {
			m.authError = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authError = ""
		}
		m.header.SetSync(m.syncStatus())
		return m, m.poller.WaitForNextResult()

	case dashboard.OpenChatMsg:
		return m, m.openChat(msg.Agent, msg.Opening)

	case drawer.CloseMsg:
		m.overlay = OverlayNone
		return m, nil

	case drawer.TakeActionMsg:
		return m, m.openChat(msg.Agent, msg.Opening)

	case drawer.ReadMsg:
		return m, m.toasts.Info("Marked as read")

	case devpanel.CloseMsg:
		m.overlay = OverlayNone
		return m, nil

	case devpanel.TriggeredMsg:
		m.devpanel, _ = m.devpanel.Update(msg)
		if msg.Err != nil {
			return m, m.toasts.Error(fmt.Sprintf("%s failed: %v", msg.Scenario, msg.Err))
		}
		return m, nil

	case chatview.CloseMsg:
		m.overlay = OverlayNone
		return m, nil

	case chatview.LoadedMsg, chatview.SentMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		if sent, ok := msg.(chatview.SentMsg); ok && sent.Err != nil && m.overlay != OverlayChat {
			return m, tea.Batch(cmd, m.toasts.Error(sent.Err.Error()))
		}
		return m, cmd

	case quiz.CompletedMsg:
		m.overlay = OverlayNone
		if msg.Err != nil {
			m.log.Error("saving profile", zap.Error(msg.Err))
			return m, m.toasts.Error("Could not save your profile")
		}
		m.profile = &model.StoredProfile{Answers: msg.Answers}
		p := msg.Profile
		m.dashboard.SetProfile(&p)
		return m, m.toasts.Info("Profile saved")

	case quiz.CancelMsg:
		m.overlay = OverlayNone
		return m, nil

	case command.CloseMsg:
		m.overlay = OverlayNone
		return m, nil

	case command.CommandMsg:
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActive(msg)
}

// handleGlobalKey handles shortcuts that work over the dashboard. Text
// surfaces keep every key.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch m.overlay {
	case OverlayChat, OverlayCommand:
		return m, nil, false

	case OverlayQuiz:
		// A retake can be abandoned; first-run onboarding cannot.
		if m.profile != nil && key.Matches(msg, m.keys.Back) {
			m.overlay = OverlayNone
			return m, nil, true
		}
		return m, nil, false

	case OverlayHelp:
		if key.Matches(msg, m.keys.Help, m.keys.Back, m.keys.Quit) {
			m.overlay = OverlayNone
			return m, nil, true
		}
		return m, nil, false

	case OverlayDrawer:
		if key.Matches(msg, m.keys.Drawer) {
			m.overlay = OverlayNone
			return m, nil, true
		}
		return m, nil, false

	case OverlayDevPanel:
		if key.Matches(msg, m.keys.DevPanel) {
			m.overlay = OverlayNone
			return m, nil, true
		}
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.quit(), true

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.overlay = OverlayCommand
		m.command.SetHint("")
		return m, m.command.Focus(), true

	case key.Matches(msg, m.keys.Drawer):
		m.drawer.Reset()
		m.overlay = OverlayDrawer
		return m, nil, true

	case key.Matches(msg, m.keys.DevPanel):
		m.overlay = OverlayDevPanel
		return m, nil, true

	case key.Matches(msg, m.keys.Quiz):
		return m, m.openQuiz(), true

	case key.Matches(msg, m.keys.ChatSofia):
		return m, m.dashboard.OpenChat(model.AgentSofia), true

	case key.Matches(msg, m.keys.ChatMarcus):
		return m, m.dashboard.OpenChat(model.AgentMarcus), true

	case key.Matches(msg, m.keys.ChatLuna):
		return m, m.dashboard.OpenChat(model.AgentLuna), true

	case key.Matches(msg, m.keys.Refresh):
		m.header.SetSync("refreshing")
		return m, m.poller.Refresh(), true

	case key.Matches(msg, m.keys.Reconnect):
		m.hub.Reconnect()
		m.toasts.SetPersistent("")
		return m, m.toasts.Info("Reconnecting…"), true
	}
	return m, nil, false
}

// updateActive dispatches msg to the surface that owns input.
func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.overlay {
	case OverlayNone:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case OverlayDrawer:
		m.drawer, cmd = m.drawer.Update(msg)
	case OverlayDevPanel:
		m.devpanel, cmd = m.devpanel.Update(msg)
	case OverlayChat:
		m.chat, cmd = m.chat.Update(msg)
	case OverlayQuiz:
		m.quiz, cmd = m.quiz.Update(msg)
	case OverlayCommand:
		m.command, cmd = m.command.Update(msg)
	}

	return m, cmd
}

func (m *Model) openChat(agent model.AgentID, opening string) tea.Cmd {
	m.overlay = OverlayChat
	return m.chat.Open(agent, opening)
}

func (m *Model) openQuiz() tea.Cmd {
	m.overlay = OverlayQuiz
	var prev *model.QuizAnswers
	if m.profile != nil {
		prev = &m.profile.Answers
	}
	return m.quiz.Start(prev)
}

func (m Model) quit() tea.Cmd {
	m.poller.Stop()
	m.Close()
	return tea.Quit
}

func (m *Model) syncHeader() {
	m.header.SetUnread(m.hub.UnreadCount())
	m.header.SetConnection(m.hub.Status(), m.hub.GaveUp())
}

func (m *Model) resize(width, height int) {
	m.layout = ui.NewLayout(width, height)
	m.ready = true
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()

	m.dashboard.SetSize(w, h)
	m.drawer.SetSize(min(w, 64), h)
	m.devpanel.SetSize(min(w, 90), h)
	m.chat.SetSize(min(w-4, 100), h-2)
	m.quiz.SetSize(w, h)
	m.helpView.SetSize(min(w, 100), h)
	m.command.SetSize(min(w, 70), h)
	m.toasts.SetWidth(w)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.header.View(m.layout.Width)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), m.toasts.View(), statusBar)
}

func (m Model) renderContent() string {
	switch m.overlay {
	case OverlayDrawer:
		return m.layout.Side(m.drawer.View())
	case OverlayDevPanel:
		return m.layout.Modal(m.devpanel.View())
	case OverlayChat:
		return m.layout.Modal(m.chat.View())
	case OverlayQuiz:
		return m.layout.Modal(m.quiz.View())
	case OverlayHelp:
		return m.layout.Modal(m.helpView.View())
	case OverlayCommand:
		return m.layout.Modal(m.command.View())
	default:
		return m.dashboard.View()
	}
}

// syncStatus describes the dashboard refresh for the header.
func (m Model) syncStatus() string {
	s := m.poller.Status()
	switch s.State {
	case appsync.SyncRunning:
		return "refreshing"
	case appsync.SyncError:
		return "⚠ backend unreachable"
	}
	if s.LastSync.IsZero() {
		return ""
	}
	return "updated " + s.LastSync.Format("15:04")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.authError != "" && m.overlay == OverlayNone {
		return m.authError
	}

	switch m.overlay {
	case OverlayDrawer:
		return "tab switch | enter open | x dismiss | a mark all read | C clear all | esc close"
	case OverlayDevPanel:
		return "enter toggle/trigger | R reconnect | esc close"
	case OverlayChat:
		return "enter send | ctrl+x clear | esc close"
	case OverlayQuiz:
		if m.profile != nil {
			return "enter next | shift+tab previous | esc cancel"
		}
		return "enter next | shift+tab previous | ctrl+c quit"
	case OverlayHelp:
		return "? close help | esc back"
	case OverlayCommand:
		return "enter run | tab complete | esc close"
	default:
		return "q quit | ? help | n notifications | 1-3 chat | D dev panel | r refresh"
	}
}
