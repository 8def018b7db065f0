package hub_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/channel"
	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/model"
)

const waitFor = 3 * time.Second

func payload(id string, agent model.AgentID) string {
	return fmt.Sprintf(`{"id":%q,"agent_id":%q,"type":"alert",
		"title":"Heads up","message":"Dining spend is up 40%%.","priority":"high",
		"action_required":true,"timestamp":"2024-06-01T09:30:00","is_read":false}`, id, agent)
}

func frame(id string, agent model.AgentID) string {
	return `{"type":"notification","data":` + payload(id, agent) + `}`
}

// backend is a minimal advisor server: the websocket endpoint writes every
// frame sent on push and the demo endpoint answers with a fixed notification.
type backend struct {
	srv      *httptest.Server
	push     chan string
	upgrades atomic.Int32
	demoID   string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{push: make(chan string, 8), demoID: "demo-1"}
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.URL.Path, "/ws/user-"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b.upgrades.Add(1)

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection","status":"connected"}`))
		for {
			select {
			case f := <-b.push:
				if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
					return
				}
			case <-gone:
				return
			}
		}
	})
	mux.HandleFunc("/api/demo/trigger/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"success","scenario":"overspending","notification":%s}`,
			payload(b.demoID, model.AgentLuna))
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

type effects struct {
	mu     sync.Mutex
	toasts chan model.Notification
	bells  []uint64
	chats  []model.AgentID
}

func newEffects() *effects {
	return &effects{toasts: make(chan model.Notification, 8)}
}

func (e *effects) BumpBell(tick uint64) {
	e.mu.Lock()
	e.bells = append(e.bells, tick)
	e.mu.Unlock()
}

func (e *effects) Toast(n model.Notification) { e.toasts <- n }
func (e *effects) OpenDrawer()                {}

func (e *effects) OpenChat(agent model.AgentID, _ string) {
	e.mu.Lock()
	e.chats = append(e.chats, agent)
	e.mu.Unlock()
}

func (e *effects) PreviewChanged(model.AgentID, string, bool) {}

func newHub(t *testing.T, b *backend, fx *effects, flags model.UXFlags) *hub.Hub {
	t.Helper()
	cfg := model.DefaultAppConfig().Channel
	h := hub.New(hub.Options{
		WSURL:     b.wsURL(),
		Channel:   cfg,
		Flags:     flags,
		Requester: api.NewClient(b.srv.URL, ""),
		Effects:   fx,
		Logger:    zaptest.NewLogger(t),
	})
	t.Cleanup(h.Close)
	return h
}

func waitToast(t *testing.T, fx *effects) model.Notification {
	t.Helper()
	select {
	case n := <-fx.toasts:
		return n
	case <-time.After(waitFor):
		t.Fatal("no toast")
		return model.Notification{}
	}
}

func TestPushFlowsThroughPipeline(t *testing.T) {
	b := newBackend(t)
	fx := newEffects()
	h := newHub(t, b, fx, model.UXFlags{AutoOpenChat: true, InlinePreview: true})

	h.Start()
	require.Eventually(t, h.IsConnected, waitFor, 10*time.Millisecond)

	b.push <- frame("n-1", model.AgentLuna)
	n := waitToast(t, fx)

	assert.Equal(t, "n-1", n.ID)
	assert.Equal(t, 1, h.UnreadCount())
	msg, ok := h.Preview(model.AgentLuna)
	assert.True(t, ok)
	assert.Equal(t, n.Message, msg)

	assert.Eventually(t, func() bool {
		fx.mu.Lock()
		defer fx.mu.Unlock()
		return len(fx.chats) == 1 && fx.chats[0] == model.AgentLuna
	}, waitFor, 10*time.Millisecond)
	fx.mu.Lock()
	assert.Equal(t, []uint64{1}, fx.bells)
	fx.mu.Unlock()

	h.MarkAsRead("n-1")
	assert.Equal(t, 0, h.UnreadCount())
	h.ClearNotification("n-1")
	assert.Empty(t, h.Notifications())
}

func TestDemoTriggerThenPushKeepsOneEntry(t *testing.T) {
	b := newBackend(t)
	fx := newEffects()
	h := newHub(t, b, fx, model.DefaultUXFlags())

	h.Start()
	require.Eventually(t, h.IsConnected, waitFor, 10*time.Millisecond)

	n, err := h.TriggerDemo(context.Background(), "overspending")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, b.demoID, waitToast(t, fx).ID)

	b.push <- frame(b.demoID, model.AgentLuna)
	b.push <- frame("after", model.AgentMarcus)
	assert.Equal(t, "after", waitToast(t, fx).ID)

	ids := []string{}
	for _, n := range h.Notifications() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"after", b.demoID}, ids)
}

func TestStartIsIdempotent(t *testing.T) {
	b := newBackend(t)
	h := newHub(t, b, newEffects(), model.DefaultUXFlags())

	h.Start()
	h.Start()
	require.Eventually(t, h.IsConnected, waitFor, 10*time.Millisecond)
	h.Start()

	assert.Equal(t, int32(1), b.upgrades.Load())
}

func TestCloseDisconnects(t *testing.T) {
	b := newBackend(t)
	h := newHub(t, b, newEffects(), model.DefaultUXFlags())

	var mu sync.Mutex
	var changes []hub.Change
	h.Subscribe(func(c hub.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	h.Start()
	require.Eventually(t, h.IsConnected, waitFor, 10*time.Millisecond)
	h.Close()
	h.Close()

	assert.Equal(t, channel.Disconnected, h.Status())
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, changes, hub.ChangeStatus)
}

func TestSetFlagsPublishesOnChange(t *testing.T) {
	b := newBackend(t)
	h := newHub(t, b, newEffects(), model.DefaultUXFlags())

	var count atomic.Int32
	unsubscribe := h.Subscribe(func(c hub.Change) {
		if c == hub.ChangeFlags {
			count.Add(1)
		}
	})
	defer unsubscribe()

	on := true
	got := h.SetFlags(model.UXFlagsPatch{AutoOpenDrawer: &on})
	assert.True(t, got.AutoOpenDrawer)
	assert.True(t, got.InlinePreview)
	h.SetFlags(model.UXFlagsPatch{AutoOpenDrawer: &on})

	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, got, h.Flags())
}

func TestContextLookup(t *testing.T) {
	_, err := hub.FromContext(context.Background())
	assert.ErrorIs(t, err, hub.ErrNoProvider)
	assert.Panics(t, func() { hub.MustFromContext(context.Background()) })

	h := hub.New(hub.Options{WSURL: "ws://unused", Channel: model.DefaultAppConfig().Channel})
	defer h.Close()

	ctx := hub.NewContext(context.Background(), h)
	got, err := hub.FromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Same(t, h, hub.MustFromContext(ctx))
}
