// Package dispatch turns newly arrived notifications into UI side effects:
// bell pulse, toast, auto-opened drawer or chat, and expiring inline
// previews on agent cards.
package dispatch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/notify"
)

// DefaultPreviewTTL is how long an inline preview stays up.
const DefaultPreviewTTL = 8 * time.Second

// Effects is implemented by the UI layer. Calls arrive one at a time.
type Effects interface {
	// BumpBell replays the bell animation. tick increases on every call,
	// starting at 1.
	BumpBell(tick uint64)
	Toast(n model.Notification)
	OpenDrawer()
	OpenChat(agent model.AgentID, opening string)
	PreviewChanged(agent model.AgentID, message string, active bool)
}

// FlagSource supplies the current UX flags.
type FlagSource interface {
	Get() model.UXFlags
}

// Options configures a Dispatcher.
type Options struct {
	Effects    Effects
	Flags      FlagSource
	Clock      clockwork.Clock
	Logger     *zap.Logger
	PreviewTTL time.Duration
}

type preview struct {
	message string
	seq     uint64
	timer   clockwork.Timer
}

// Dispatcher reacts to the store head at most once per notification.
type Dispatcher struct {
	effects Effects
	flags   FlagSource
	clock   clockwork.Clock
	ttl     time.Duration
	log     *zap.Logger

	emitMu sync.Mutex // keeps effect calls ordered
	mu     sync.Mutex

	last      string
	processed map[string]struct{}
	bell      uint64
	previews  map[model.AgentID]*preview
	seq       uint64
	closed    bool
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Effects == nil {
		panic("dispatch: Options.Effects is required")
	}
	if opts.Flags == nil {
		panic("dispatch: Options.Flags is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = DefaultPreviewTTL
	}
	return &Dispatcher{
		effects:   opts.Effects,
		flags:     opts.Flags,
		clock:     opts.Clock,
		ttl:       opts.PreviewTTL,
		log:       opts.Logger.Named("dispatch"),
		processed: make(map[string]struct{}),
		previews:  make(map[model.AgentID]*preview),
	}
}

// Observe inspects the head of snap. A head equal to the last processed
// one is ignored, as is an older head re-exposed by a dismissal.
func (d *Dispatcher) Observe(snap notify.Snapshot) {
	head, ok := snap.Head()
	if !ok {
		return
	}

	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	if d.closed || head.ID == d.last {
		d.mu.Unlock()
		return
	}
	d.last = head.ID
	if _, done := d.processed[head.ID]; done {
		d.mu.Unlock()
		return
	}
	d.processed[head.ID] = struct{}{}
	d.bell++
	tick := d.bell
	flags := d.flags.Get()
	if flags.InlinePreview {
		d.installPreview(head.AgentID, head.Message)
	}
	d.mu.Unlock()

	d.log.Debug("dispatching notification",
		zap.String("id", head.ID),
		zap.String("agent", string(head.AgentID)),
		zap.Uint64("bell", tick),
	)

	d.effects.BumpBell(tick)
	d.effects.Toast(head)
	if flags.AutoOpenDrawer {
		d.effects.OpenDrawer()
	}
	if flags.AutoOpenChat && head.WantsChat() {
		d.effects.OpenChat(head.AgentID, head.Message)
	}
	if flags.InlinePreview {
		d.effects.PreviewChanged(head.AgentID, head.Message, true)
	}
}

// installPreview replaces any preview for agent. d.mu must be held.
func (d *Dispatcher) installPreview(agent model.AgentID, message string) {
	if old, ok := d.previews[agent]; ok {
		old.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.previews[agent] = &preview{
		message: message,
		seq:     seq,
		timer:   d.clock.AfterFunc(d.ttl, func() { d.expire(agent, seq) }),
	}
}

func (d *Dispatcher) expire(agent model.AgentID, seq uint64) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	p, ok := d.previews[agent]
	if d.closed || !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.previews, agent)
	d.mu.Unlock()

	d.effects.PreviewChanged(agent, "", false)
}

// Preview returns the active inline preview for agent.
func (d *Dispatcher) Preview(agent model.AgentID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.previews[agent]
	if !ok {
		return "", false
	}
	return p.message, true
}

// Previews returns every active preview keyed by agent.
func (d *Dispatcher) Previews() map[model.AgentID]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[model.AgentID]string, len(d.previews))
	for agent, p := range d.previews {
		out[agent] = p.message
	}
	return out
}

// ConsumePreview removes agent's preview after a user click and returns
// its message.
func (d *Dispatcher) ConsumePreview(agent model.AgentID) (string, bool) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	p, ok := d.previews[agent]
	if !ok || d.closed {
		d.mu.Unlock()
		return "", false
	}
	p.timer.Stop()
	delete(d.previews, agent)
	d.mu.Unlock()

	d.effects.PreviewChanged(agent, "", false)
	return p.message, true
}

// BellTicks returns how many notifications have pulsed the bell.
func (d *Dispatcher) BellTicks() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bell
}

// Close cancels every pending preview expiry. Later observations are
// ignored.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for agent, p := range d.previews {
		p.timer.Stop()
		delete(d.previews, agent)
	}
}
