package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/chat"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/tests/testutil"
)

type call struct {
	agent   model.AgentID
	message string
	history []model.ChatMessage
}

// fakeReplier answers from a queue. When gate is set each call blocks until
// the test sends on it.
type fakeReplier struct {
	mu      sync.Mutex
	calls   []call
	replies []string
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeReplier) Chat(ctx context.Context, agent model.AgentID, message string, history []model.ChatMessage) (*api.ChatReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{agent: agent, message: message, history: history})
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	reply := "ok"
	if len(f.replies) > 0 {
		reply, f.replies = f.replies[0], f.replies[1:]
	}
	return &api.ChatReply{AgentID: agent, Response: reply}, nil
}

func (f *fakeReplier) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func contents(msgs []model.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestSendCommitsBothTurns(t *testing.T) {
	st := testutil.NewTestStore(t)
	replier := &fakeReplier{replies: []string{"Try the 50/30/20 rule."}}
	svc := chat.NewService(chat.Options{Client: replier, Store: st, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	reply, err := svc.Send(ctx, model.AgentLuna, "  How do I budget?  ")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "Try the 50/30/20 rule.", reply.Content)

	hist := svc.History(model.AgentLuna)
	require.Len(t, hist, 2)
	assert.Equal(t, "How do I budget?", hist[0].Content)
	assert.False(t, hist[0].Pending)
	assert.False(t, svc.Pending(model.AgentLuna))

	stored, err := st.GetChatHistory(ctx, model.AgentLuna, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"How do I budget?", "Try the 50/30/20 rule."}, contents(stored))
}

func TestSendShowsPendingTurnUntilReply(t *testing.T) {
	replier := &fakeReplier{gate: make(chan struct{}), entered: make(chan struct{})}
	svc := chat.NewService(chat.Options{Client: replier, Logger: zaptest.NewLogger(t)})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), model.AgentSofia, "hello")
		done <- err
	}()
	<-replier.entered

	hist := svc.History(model.AgentSofia)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Pending)
	assert.True(t, svc.Pending(model.AgentSofia))

	_, err := svc.Send(context.Background(), model.AgentSofia, "again")
	assert.ErrorIs(t, err, chat.ErrBusy)

	replier.gate <- struct{}{}
	require.NoError(t, <-done)
	assert.Len(t, svc.History(model.AgentSofia), 2)
}

func TestSendFailureRestoresPriorConversation(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedChat(t, st, model.AgentMarcus, "Should I invest?", "Start with an index fund.")

	replier := &fakeReplier{err: errors.New("backend down")}
	svc := chat.NewService(chat.Options{Client: replier, Store: st, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx, model.AgentMarcus))
	before := svc.History(model.AgentMarcus)

	_, err := svc.Send(ctx, model.AgentMarcus, "Which one?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	assert.Equal(t, before, svc.History(model.AgentMarcus))
	assert.False(t, svc.Pending(model.AgentMarcus))

	stored, err := st.GetChatHistory(ctx, model.AgentMarcus, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestSeedDuringSendIsKept(t *testing.T) {
	st := testutil.NewTestStore(t)
	replier := &fakeReplier{gate: make(chan struct{}), entered: make(chan struct{})}
	svc := chat.NewService(chat.Options{Client: replier, Store: st, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, model.AgentSofia, "hi")
		done <- err
	}()
	<-replier.entered

	svc.Seed(ctx, model.AgentSofia, "You spent 40% more on dining this week.")
	require.Len(t, svc.History(model.AgentSofia), 2)

	replier.gate <- struct{}{}
	require.NoError(t, <-done)

	want := []string{"You spent 40% more on dining this week.", "hi", "ok"}
	hist := svc.History(model.AgentSofia)
	assert.Equal(t, want, contents(hist))
	for _, m := range hist {
		assert.False(t, m.Pending, m.Content)
	}

	stored, err := st.GetChatHistory(ctx, model.AgentSofia, 0)
	require.NoError(t, err)
	assert.Equal(t, want, contents(stored))
}

func TestSendFailureKeepsTurnSeededMeanwhile(t *testing.T) {
	replier := &fakeReplier{
		err:     errors.New("backend down"),
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	svc := chat.NewService(chat.Options{Client: replier, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, model.AgentLuna, "can I afford it?")
		done <- err
	}()
	<-replier.entered

	svc.Seed(ctx, model.AgentLuna, "Your emergency fund reached 3 months.")
	replier.gate <- struct{}{}
	require.Error(t, <-done)

	assert.Equal(t, []string{"Your emergency fund reached 3 months."}, contents(svc.History(model.AgentLuna)))
	assert.False(t, svc.Pending(model.AgentLuna))
}

func TestSendPassesPriorTurnsAsHistory(t *testing.T) {
	replier := &fakeReplier{}
	svc := chat.NewService(chat.Options{Client: replier, HistoryLimit: 2, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	_, err := svc.Send(ctx, model.AgentLuna, "first")
	require.NoError(t, err)
	assert.Empty(t, replier.lastCall().history)

	_, err = svc.Send(ctx, model.AgentLuna, "second")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "ok"}, contents(replier.lastCall().history))

	_, err = svc.Send(ctx, model.AgentLuna, "third")
	require.NoError(t, err)
	got := replier.lastCall()
	assert.Equal(t, "third", got.message)
	assert.Equal(t, []string{"second", "ok"}, contents(got.history))
}

func TestSendValidatesInput(t *testing.T) {
	svc := chat.NewService(chat.Options{Client: &fakeReplier{}})

	_, err := svc.Send(context.Background(), model.AgentLuna, "   ")
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	_, err = svc.Send(context.Background(), "oscar", "hi")
	assert.Error(t, err)
}

func TestLoadReadsStoreOnce(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedChat(t, st, model.AgentSofia, "q", "a")
	svc := chat.NewService(chat.Options{Client: &fakeReplier{}, Store: st})
	ctx := context.Background()

	require.NoError(t, svc.Load(ctx, model.AgentSofia))
	testutil.SeedChat(t, st, model.AgentSofia, "late")
	require.NoError(t, svc.Load(ctx, model.AgentSofia))

	assert.Equal(t, []string{"q", "a"}, contents(svc.History(model.AgentSofia)))
}

func TestSeedAddsOpeningOnce(t *testing.T) {
	st := testutil.NewTestStore(t)
	svc := chat.NewService(chat.Options{Client: &fakeReplier{}, Store: st})
	ctx := context.Background()

	svc.Seed(ctx, model.AgentLuna, "You spent 40% more on dining.")
	svc.Seed(ctx, model.AgentLuna, "You spent 40% more on dining.")
	svc.Seed(ctx, model.AgentLuna, "")

	hist := svc.History(model.AgentLuna)
	require.Len(t, hist, 1)
	assert.Equal(t, model.RoleAssistant, hist[0].Role)

	stored, err := st.GetChatHistory(ctx, model.AgentLuna, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestClearDiscardsInFlightReply(t *testing.T) {
	st := testutil.NewTestStore(t)
	replier := &fakeReplier{gate: make(chan struct{}), entered: make(chan struct{})}
	svc := chat.NewService(chat.Options{Client: replier, Store: st, Logger: zaptest.NewLogger(t)})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, model.AgentMarcus, "hello")
		done <- err
	}()
	<-replier.entered

	require.NoError(t, svc.Clear(ctx, model.AgentMarcus))
	replier.gate <- struct{}{}
	assert.Error(t, <-done)

	assert.Empty(t, svc.History(model.AgentMarcus))
	stored, err := st.GetChatHistory(ctx, model.AgentMarcus, 0)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSubscribeReportsChangedAgent(t *testing.T) {
	svc := chat.NewService(chat.Options{Client: &fakeReplier{}})

	var mu sync.Mutex
	var seen []model.AgentID
	unsubscribe := svc.Subscribe(func(a model.AgentID) {
		mu.Lock()
		seen = append(seen, a)
		mu.Unlock()
	})

	_, err := svc.Send(context.Background(), model.AgentSofia, "hi")
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()
	svc.Seed(context.Background(), model.AgentLuna, "ignored")

	mu.Lock()
	defer mu.Unlock()
	// pending, then committed
	assert.Equal(t, []model.AgentID{model.AgentSofia, model.AgentSofia}, seen)
}
