package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/notify"
	"github.com/nhle/finpal/internal/uxflags"
	"github.com/nhle/finpal/tests/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) BumpBell(tick uint64)               { r.add("bell %d", tick) }
func (r *recorder) Toast(n model.Notification)         { r.add("toast %s", n.ID) }
func (r *recorder) OpenDrawer()                        { r.add("drawer") }
func (r *recorder) OpenChat(a model.AgentID, m string) { r.add("chat %s %s", a, m) }
func (r *recorder) PreviewChanged(a model.AgentID, m string, active bool) {
	if active {
		r.add("preview %s %s", a, m)
		return
	}
	r.add("preview-expired %s", a)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(event string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	store *notify.Store
	flags *uxflags.Flags
	clock *clockwork.FakeClock
	fx    *recorder
	d     *Dispatcher
}

func newFixture(t *testing.T, flags model.UXFlags) *fixture {
	t.Helper()
	f := &fixture{
		store: notify.NewStore(nil),
		flags: uxflags.New(flags),
		clock: clockwork.NewFakeClock(),
		fx:    &recorder{},
	}
	f.d = New(Options{
		Effects: f.fx,
		Flags:   f.flags,
		Clock:   f.clock,
		Logger:  zaptest.NewLogger(t),
	})
	unsubscribe := f.store.Subscribe(f.d.Observe)
	t.Cleanup(func() {
		unsubscribe()
		f.d.Close()
	})
	return f
}

func notification(id string, agent model.AgentID, mutate ...func(*model.Notification)) model.Notification {
	n := testutil.NewNotification(id, agent, 0)
	for _, fn := range mutate {
		fn(&n)
	}
	return n
}

func TestObserveIgnoresUnchangedHead(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	f.store.Prepend(notification("n1", model.AgentLuna))
	snap := f.store.Snapshot()
	for i := 0; i < 5; i++ {
		f.d.Observe(snap)
	}
	// Unrelated mutations republish with the same head.
	f.store.MarkAsRead("n1")

	assert.Equal(t, []string{"bell 1", "toast n1"}, f.fx.snapshot())
	assert.Equal(t, uint64(1), f.d.BellTicks())
}

func TestObserveSkipsReexposedHead(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	f.store.Prepend(notification("n1", model.AgentLuna))
	f.store.Prepend(notification("n2", model.AgentSofia))
	f.store.Dismiss("n2") // n1 becomes head again

	assert.Equal(t, []string{"bell 1", "toast n1", "bell 2", "toast n2"}, f.fx.snapshot())
}

func TestObserveGatesOnFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags model.UXFlags
		n     model.Notification
		want  []string
	}{
		{
			name:  "all off",
			flags: model.UXFlags{},
			n:     notification("n1", model.AgentSofia),
			want:  []string{"bell 1", "toast n1"},
		},
		{
			name:  "drawer",
			flags: model.UXFlags{AutoOpenDrawer: true},
			n:     notification("n1", model.AgentSofia),
			want:  []string{"bell 1", "toast n1", "drawer"},
		},
		{
			name:  "chat skipped for routine insight",
			flags: model.UXFlags{AutoOpenChat: true},
			n:     notification("n1", model.AgentMarcus),
			want:  []string{"bell 1", "toast n1"},
		},
		{
			name:  "chat on alert",
			flags: model.UXFlags{AutoOpenChat: true},
			n:     notification("n1", model.AgentSofia, func(n *model.Notification) { n.Type = model.TypeAlert }),
			want:  []string{"bell 1", "toast n1", "chat sofia msg n1"},
		},
		{
			name:  "chat on high priority",
			flags: model.UXFlags{AutoOpenChat: true},
			n:     notification("n1", model.AgentLuna, func(n *model.Notification) { n.Priority = model.PriorityHigh }),
			want:  []string{"bell 1", "toast n1", "chat luna msg n1"},
		},
		{
			name:  "chat on action required",
			flags: model.UXFlags{AutoOpenChat: true},
			n:     notification("n1", model.AgentMarcus, func(n *model.Notification) { n.ActionRequired = true }),
			want:  []string{"bell 1", "toast n1", "chat marcus msg n1"},
		},
		{
			name:  "drawer chat and preview together",
			flags: model.UXFlags{AutoOpenDrawer: true, AutoOpenChat: true, InlinePreview: true},
			n:     notification("n1", model.AgentLuna, func(n *model.Notification) { n.Type = model.TypeAlert }),
			want:  []string{"bell 1", "toast n1", "drawer", "chat luna msg n1", "preview luna msg n1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.flags)
			f.store.Prepend(tt.n)
			assert.Equal(t, tt.want, f.fx.snapshot())
		})
	}
}

func TestObserveReadsFlagsAtArrival(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	f.store.Prepend(notification("n1", model.AgentLuna))
	open := true
	f.flags.Update(model.UXFlagsPatch{AutoOpenDrawer: &open})
	f.store.Prepend(notification("n2", model.AgentLuna))

	assert.Equal(t, 1, f.fx.count("drawer"))
}

func TestPreviewExpiresAfterTTL(t *testing.T) {
	f := newFixture(t, model.DefaultUXFlags())

	f.store.Prepend(notification("n1", model.AgentLuna))
	msg, ok := f.d.Preview(model.AgentLuna)
	require.True(t, ok)
	assert.Equal(t, "msg n1", msg)

	f.clock.Advance(DefaultPreviewTTL - time.Millisecond)
	_, ok = f.d.Preview(model.AgentLuna)
	assert.True(t, ok)

	f.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := f.d.Preview(model.AgentLuna)
		return !ok
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return f.fx.count("preview-expired luna") == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPreviewReplacementCancelsEarlierExpiry(t *testing.T) {
	f := newFixture(t, model.DefaultUXFlags())

	f.store.Prepend(notification("n1", model.AgentLuna))
	f.clock.Advance(5 * time.Second)
	f.store.Prepend(notification("n2", model.AgentLuna))

	// The first preview would have expired here.
	f.clock.Advance(5 * time.Second)
	msg, ok := f.d.Preview(model.AgentLuna)
	require.True(t, ok)
	assert.Equal(t, "msg n2", msg)
	assert.Equal(t, 0, f.fx.count("preview-expired luna"))

	// 8s after the second installation.
	f.clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool {
		return f.fx.count("preview-expired luna") == 1
	}, time.Second, 5*time.Millisecond)
	_, ok = f.d.Preview(model.AgentLuna)
	assert.False(t, ok)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.fx.count("preview-expired luna"))
}

func TestPreviewsArePerAgent(t *testing.T) {
	f := newFixture(t, model.DefaultUXFlags())

	f.store.Prepend(notification("n1", model.AgentLuna))
	f.store.Prepend(notification("n2", model.AgentSofia))

	assert.Equal(t, map[model.AgentID]string{
		model.AgentLuna:  "msg n1",
		model.AgentSofia: "msg n2",
	}, f.d.Previews())
}

func TestConsumePreview(t *testing.T) {
	f := newFixture(t, model.DefaultUXFlags())

	f.store.Prepend(notification("n1", model.AgentMarcus))
	msg, ok := f.d.ConsumePreview(model.AgentMarcus)
	require.True(t, ok)
	assert.Equal(t, "msg n1", msg)

	_, ok = f.d.ConsumePreview(model.AgentMarcus)
	assert.False(t, ok)

	f.clock.Advance(DefaultPreviewTTL)
	assert.Equal(t, 1, f.fx.count("preview-expired marcus"))
}

func TestNoPreviewWhenDisabled(t *testing.T) {
	f := newFixture(t, model.UXFlags{})

	f.store.Prepend(notification("n1", model.AgentLuna))
	_, ok := f.d.Preview(model.AgentLuna)
	assert.False(t, ok)
	assert.Empty(t, f.d.Previews())
}

func TestCloseCancelsPendingPreviews(t *testing.T) {
	f := newFixture(t, model.DefaultUXFlags())

	f.store.Prepend(notification("n1", model.AgentLuna))
	f.d.Close()
	f.clock.Advance(DefaultPreviewTTL)
	f.store.Prepend(notification("n2", model.AgentSofia))

	assert.Equal(t, 0, f.fx.count("preview-expired luna"))
	assert.Equal(t, 0, f.fx.count("toast n2"))
	assert.Empty(t, f.d.Previews())
}
