package app

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/finpal/internal/api"
	chatsvc "github.com/nhle/finpal/internal/chat"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/model"
	appsync "github.com/nhle/finpal/internal/sync"
	chatview "github.com/nhle/finpal/internal/ui/chat"
	"github.com/nhle/finpal/internal/ui/command"
	"github.com/nhle/finpal/internal/ui/dashboard"
	"github.com/nhle/finpal/internal/ui/devpanel"
	"github.com/nhle/finpal/internal/ui/drawer"
	"github.com/nhle/finpal/tests/testutil"
)

type backend struct{}

func (backend) TriggerDemo(context.Context, string) (*api.DemoResponse, error) {
	return &api.DemoResponse{
		Status: "success",
		Notification: []byte(`{"id":"b-1","agent_id":"luna","type":"alert","title":"Budget alert",
			"message":"Dining is at 90% of budget.","priority":"high","action_required":true,
			"timestamp":"2024-06-01T09:00:00"}`),
	}, nil
}

func (backend) Chat(_ context.Context, agent model.AgentID, _ string, _ []model.ChatMessage) (*api.ChatReply, error) {
	return &api.ChatReply{AgentID: agent, Response: "Let's look at it together."}, nil
}

func (backend) Metrics(context.Context) (*api.MetricsResponse, error) {
	return &api.MetricsResponse{}, nil
}

func (backend) Goals(context.Context) (*api.GoalsResponse, error) {
	return &api.GoalsResponse{}, nil
}

func (backend) Transactions(context.Context) (*api.TransactionsResponse, error) {
	return &api.TransactionsResponse{}, nil
}

type fixture struct {
	m    Model
	hub  *hub.Hub
	mail *Mailbox
}

func newFixture(t *testing.T, flags model.UXFlags) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	mail := NewMailbox()
	h := hub.New(hub.Options{
		Requester: backend{},
		Flags:     flags,
		Effects:   mail,
		Logger:    log,
	})
	t.Cleanup(h.Close)

	s := testutil.NewTestStore(t)
	m := New(hub.NewContext(context.Background(), h), Options{
		Mailbox:  mail,
		Chat:     chatsvc.NewService(chatsvc.Options{Client: backend{}, Store: s, Logger: log}),
		Poller:   appsync.New(backend{}, appsync.Options{Logger: log}),
		Profiles: s,
		Logger:   log,
		ToastTTL: time.Millisecond,
	})
	t.Cleanup(m.Close)

	next, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 45})
	m = next.(Model)
	next, _ = m.Update(profileLoadedMsg{profile: &model.StoredProfile{}})
	return &fixture{m: next.(Model), hub: h, mail: mail}
}

// send feeds msg to the model and runs the non-blocking part of the
// resulting command chain.
func (f *fixture) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	next, cmd := f.m.Update(msg)
	f.m = next.(Model)
	f.run(t, cmd)
}

func (f *fixture) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			f.run(t, c)
		}
	case drawer.CloseMsg, drawer.ReadMsg, drawer.TakeActionMsg, chatview.CloseMsg, dashboard.OpenChatMsg:
		f.send(t, msg)
	}
}

// drain delivers every queued mailbox message.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	for f.mail.Len() > 0 {
		msg := f.mail.Next()()
		next, _ := f.m.Update(msg)
		f.m = next.(Model)
	}
}

func TestMailboxDeliversInOrderAndCoalesces(t *testing.T) {
	b := NewMailbox()
	b.HubChanged(hub.ChangeNotifications)
	b.HubChanged(hub.ChangeNotifications)
	b.BumpBell(1)
	b.HubChanged(hub.ChangeNotifications)
	require.Equal(t, 3, b.Len())

	assert.Equal(t, mailMsg{msg: hubChangeMsg{change: hub.ChangeNotifications}}, b.Next()())
	assert.Equal(t, mailMsg{msg: bellMsg{tick: 1}}, b.Next()())
	assert.Equal(t, mailMsg{msg: hubChangeMsg{change: hub.ChangeNotifications}}, b.Next()())

	b.Close()
	assert.Nil(t, b.Next()())
}

func TestNotificationDrivesHeaderAndToast(t *testing.T) {
	f := newFixture(t, model.UXFlags{})
	_, err := f.hub.TriggerDemo(context.Background(), "overspending")
	require.NoError(t, err)
	f.drain(t)

	assert.True(t, f.m.header.Bumping())
	assert.Equal(t, 1, f.m.toasts.Len())
	out := f.m.View()
	assert.Contains(t, out, "Budget alert")
	assert.Equal(t, OverlayNone, f.m.Overlay())
}

func TestAutoOpenFlags(t *testing.T) {
	f := newFixture(t, model.UXFlags{AutoOpenDrawer: true})
	_, err := f.hub.TriggerDemo(context.Background(), "overspending")
	require.NoError(t, err)
	f.drain(t)
	assert.Equal(t, OverlayDrawer, f.m.Overlay())

	f = newFixture(t, model.UXFlags{AutoOpenChat: true})
	_, err = f.hub.TriggerDemo(context.Background(), "overspending")
	require.NoError(t, err)
	f.drain(t)
	assert.Equal(t, OverlayChat, f.m.Overlay())
	assert.Equal(t, model.AgentLuna, f.m.chat.Agent())
}

func TestDrawerKeys(t *testing.T) {
	f := newFixture(t, model.UXFlags{})
	_, err := f.hub.TriggerDemo(context.Background(), "overspending")
	require.NoError(t, err)
	f.drain(t)

	f.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	require.Equal(t, OverlayDrawer, f.m.Overlay())

	f.send(t, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 0, f.hub.UnreadCount())
	// The alert asks for action, so the chat takes over.
	assert.Equal(t, OverlayChat, f.m.Overlay())

	f.send(t, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, OverlayNone, f.m.Overlay())
}

func TestGiveUpPinsLostConnection(t *testing.T) {
	f := newFixture(t, model.UXFlags{})
	f.mail.HubChanged(hub.ChangeGaveUp)
	f.drain(t)

	assert.Equal(t, LostConnectionMessage, f.m.toasts.Persistent())
	assert.Contains(t, f.m.View(), "Please restart.")
}

func TestFirstRunOpensQuiz(t *testing.T) {
	f := newFixture(t, model.UXFlags{})
	next, _ := f.m.Update(profileLoadedMsg{})
	f.m = next.(Model)
	assert.Equal(t, OverlayQuiz, f.m.Overlay())

	// Onboarding cannot be skipped with esc.
	f.send(t, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, OverlayQuiz, f.m.Overlay())
}

func TestOverlayKeysToggle(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	f.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("D")})
	assert.Equal(t, OverlayDevPanel, f.m.Overlay())
	f.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("D")})
	assert.Equal(t, OverlayNone, f.m.Overlay())

	f.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.Equal(t, OverlayHelp, f.m.Overlay())
	assert.Contains(t, f.m.View(), "Keyboard Shortcuts")
	f.send(t, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, OverlayNone, f.m.Overlay())
}

func TestCommandPalette(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	next, _ := f.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	f.m = next.(Model)
	require.Equal(t, OverlayCommand, f.m.Overlay())

	f.send(t, command.CommandMsg("flag drawer on"))
	assert.True(t, f.hub.Flags().AutoOpenDrawer)
	assert.Equal(t, OverlayNone, f.m.Overlay())

	f.send(t, command.CommandMsg("chat marcus"))
	assert.Equal(t, OverlayChat, f.m.Overlay())

	f.send(t, command.CommandMsg("launch rockets"))
	assert.Equal(t, OverlayCommand, f.m.Overlay())
	assert.Contains(t, f.m.View(), "unknown command: launch rockets")
}

func TestPaletteTrigger(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	cmd := f.m.executeCommand("trigger overspending")
	require.NotNil(t, cmd)
	msg, ok := cmd().(devpanel.TriggeredMsg)
	require.True(t, ok)
	require.NoError(t, msg.Err)
	assert.Equal(t, "b-1", msg.Notification.ID)
	assert.Len(t, f.hub.Notifications(), 1)
}

func TestResetProfileReopensQuiz(t *testing.T) {
	f := newFixture(t, model.UXFlags{})
	ctx := context.Background()
	require.NoError(t, f.m.profiles.SaveProfile(ctx, model.StoredProfile{
		Answers: model.QuizAnswers{Age: "34", RiskTolerance: "moderate"},
	}))

	cmd := f.m.executeCommand("reset profile")
	require.NotNil(t, cmd)
	f.send(t, cmd())
	assert.Equal(t, OverlayQuiz, f.m.Overlay())

	p, err := f.m.profiles.GetProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, p)
}
