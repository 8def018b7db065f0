// Package hub assembles the notification pipeline into a single shared
// value: one store, one push channel, one flag set, one dispatcher and one
// demo bridge per session. Every surface reaches it through the context.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/channel"
	"github.com/nhle/finpal/internal/demo"
	"github.com/nhle/finpal/internal/dispatch"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/notify"
	"github.com/nhle/finpal/internal/uxflags"
)

// Change says which part of the hub state moved.
type Change int

const (
	ChangeNotifications Change = iota
	ChangeStatus
	ChangeFlags
	ChangeGaveUp
)

func (c Change) String() string {
	switch c {
	case ChangeNotifications:
		return "notifications"
	case ChangeStatus:
		return "status"
	case ChangeFlags:
		return "flags"
	case ChangeGaveUp:
		return "gave-up"
	default:
		return "unknown"
	}
}

// Options configures a Hub. Requester is usually an *api.Client. Effects
// receives dispatcher output; nil discards it.
type Options struct {
	WSURL     string
	Channel   model.ChannelConfig
	Flags     model.UXFlags
	Preview   time.Duration
	Requester demo.Requester
	Dialer    channel.Dialer
	Effects   dispatch.Effects
	Clock     clockwork.Clock
	Logger    *zap.Logger
}

// Hub is the shared notification context.
type Hub struct {
	store      *notify.Store
	flags      *uxflags.Flags
	dispatcher *dispatch.Dispatcher
	channel    *channel.Channel
	bridge     *demo.Bridge
	log        *zap.Logger

	mu     sync.Mutex
	subs   map[int]func(Change)
	next   int
	unsubs []func()

	startOnce sync.Once
	closeOnce sync.Once
}

// New wires a Hub. Nothing touches the network until Start.
func New(opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Effects == nil {
		opts.Effects = nopEffects{}
	}

	h := &Hub{
		log:  opts.Logger.Named("hub"),
		subs: make(map[int]func(Change)),
	}

	h.store = notify.NewStore(opts.Logger.Named("store"))
	h.flags = uxflags.New(opts.Flags)
	h.dispatcher = dispatch.New(dispatch.Options{
		Effects:    opts.Effects,
		Flags:      h.flags,
		Clock:      opts.Clock,
		Logger:     opts.Logger,
		PreviewTTL: opts.Preview,
	})
	h.channel = channel.New(channel.Options{
		URL:          opts.WSURL,
		Dialer:       opts.Dialer,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		Sink:         h.store,
		MaxAttempts:  opts.Channel.MaxAttempts,
		BaseDelay:    opts.Channel.BaseDelay(),
		MaxDelay:     opts.Channel.MaxDelay(),
		PingInterval: opts.Channel.PingInterval(),
		OnStatus: func(s channel.Status) {
			h.log.Info("connection status", zap.Stringer("status", s))
			h.publish(ChangeStatus)
		},
		OnReconnect: func(attempt int, delay time.Duration) {
			h.log.Info("reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		},
		OnGiveUp: func() {
			h.log.Warn("giving up on the push channel")
			h.publish(ChangeGaveUp)
		},
	})
	h.bridge = demo.NewBridge(opts.Requester, h.store, opts.Logger)

	h.unsubs = append(h.unsubs,
		h.store.Subscribe(h.dispatcher.Observe),
		h.store.Subscribe(func(notify.Snapshot) { h.publish(ChangeNotifications) }),
		h.flags.Subscribe(func(model.UXFlags) { h.publish(ChangeFlags) }),
	)
	return h
}

// Start opens the push channel. Only the first call has an effect, so the
// session holds at most one physical connection.
func (h *Hub) Start() {
	h.startOnce.Do(h.channel.Start)
}

// Reconnect asks the channel for a fresh connection attempt, e.g. after a
// give-up. It is a no-op while a connection is open or being opened.
func (h *Hub) Reconnect() {
	h.channel.Connect()
}

// Close tears the pipeline down in reverse construction order.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.channel.Close()
		h.dispatcher.Close()

		h.mu.Lock()
		unsubs := h.unsubs
		h.unsubs = nil
		h.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
	})
}

// IsConnected reports whether the push channel is open.
func (h *Hub) IsConnected() bool {
	return h.channel.Status() == channel.Connected
}

// Status returns the push channel state.
func (h *Hub) Status() channel.Status {
	return h.channel.Status()
}

// GaveUp reports whether the channel stopped reconnecting.
func (h *Hub) GaveUp() bool {
	return h.channel.GaveUp()
}

// Attempts returns the consecutive failed connection attempts.
func (h *Hub) Attempts() int {
	return h.channel.Attempts()
}

// ClientID returns the id used for the current or last connection.
func (h *Hub) ClientID() string {
	return h.channel.ClientID()
}

// Notifications returns the list, newest first.
func (h *Hub) Notifications() []model.Notification {
	return h.store.Notifications()
}

// UnreadCount returns how many notifications are unread.
func (h *Hub) UnreadCount() int {
	return h.store.UnreadCount()
}

// MarkAsRead flags one notification as read.
func (h *Hub) MarkAsRead(id string) {
	h.store.MarkAsRead(id)
}

// MarkAllAsRead flags every notification as read.
func (h *Hub) MarkAllAsRead() {
	h.store.MarkAllAsRead()
}

// ClearNotification dismisses one notification.
func (h *Hub) ClearNotification(id string) {
	h.store.Dismiss(id)
}

// ClearAll empties the list.
func (h *Hub) ClearAll() {
	h.store.ClearAll()
}

// TriggerDemo asks the backend for a scenario notification and shows it
// immediately.
func (h *Hub) TriggerDemo(ctx context.Context, scenario string) (*model.Notification, error) {
	return h.bridge.Trigger(ctx, scenario)
}

// Flags returns the current UX flags.
func (h *Hub) Flags() model.UXFlags {
	return h.flags.Get()
}

// SetFlags merges patch into the UX flags.
func (h *Hub) SetFlags(patch model.UXFlagsPatch) model.UXFlags {
	return h.flags.Update(patch)
}

// Preview returns the inline preview currently shown for agent.
func (h *Hub) Preview(agent model.AgentID) (string, bool) {
	return h.dispatcher.Preview(agent)
}

// Previews returns every active inline preview.
func (h *Hub) Previews() map[model.AgentID]string {
	return h.dispatcher.Previews()
}

// ConsumePreview removes agent's preview and returns its message.
func (h *Hub) ConsumePreview(agent model.AgentID) (string, bool) {
	return h.dispatcher.ConsumePreview(agent)
}

// Subscribe registers fn for hub changes. fn runs on the goroutine that
// caused the change and must not block.
func (h *Hub) Subscribe(fn func(Change)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
		})
	}
}

func (h *Hub) publish(c Change) {
	h.mu.Lock()
	subs := make([]func(Change), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

type nopEffects struct{}

func (nopEffects) BumpBell(uint64)                            {}
func (nopEffects) Toast(model.Notification)                   {}
func (nopEffects) OpenDrawer()                                {}
func (nopEffects) OpenChat(model.AgentID, string)             {}
func (nopEffects) PreviewChanged(model.AgentID, string, bool) {}
