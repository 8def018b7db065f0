package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/finpal/internal/hub"
	"github.com/nhle/finpal/internal/model"
)

// Effect messages posted by the dispatcher.
type bellMsg struct{ tick uint64 }

type toastMsg struct{ n model.Notification }

type openDrawerMsg struct{}

type openChatMsg struct {
	agent   model.AgentID
	opening string
}

type previewMsg struct {
	agent  model.AgentID
	active bool
}

type hubChangeMsg struct{ change hub.Change }

type chatChangeMsg struct{ agent model.AgentID }

// mailMsg wraps whatever the mailbox delivered so Update can re-arm the
// reader after handling it.
type mailMsg struct {
	msg tea.Msg
}

// Mailbox carries dispatcher effects and hub changes into the Bubble Tea
// loop. Posting never blocks: callers hold pipeline locks, and the UI may be
// inside Update when they fire. It implements dispatch.Effects.
type Mailbox struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	done   chan struct{}
	closed sync.Once
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (b *Mailbox) post(msg tea.Msg) {
	b.mu.Lock()
	// Consecutive identical change events collapse into one.
	if n := len(b.queue); n > 0 && isChange(msg) && b.queue[n-1] == msg {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func isChange(msg tea.Msg) bool {
	switch msg.(type) {
	case hubChangeMsg, chatChangeMsg:
		return true
	}
	return false
}

// Next returns a tea.Cmd that waits for the next posted message. Only one
// Next should be outstanding at a time.
func (b *Mailbox) Next() tea.Cmd {
	return func() tea.Msg {
		for {
			b.mu.Lock()
			if len(b.queue) > 0 {
				msg := b.queue[0]
				b.queue[0] = nil
				b.queue = b.queue[1:]
				b.mu.Unlock()
				return mailMsg{msg: msg}
			}
			b.mu.Unlock()

			select {
			case <-b.wake:
			case <-b.done:
				return nil
			}
		}
	}
}

// Len returns the number of undelivered messages.
func (b *Mailbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close releases a pending Next.
func (b *Mailbox) Close() {
	b.closed.Do(func() { close(b.done) })
}

// HubChanged forwards a hub change.
func (b *Mailbox) HubChanged(c hub.Change) {
	b.post(hubChangeMsg{change: c})
}

// ChatChanged forwards a conversation change.
func (b *Mailbox) ChatChanged(agent model.AgentID) {
	b.post(chatChangeMsg{agent: agent})
}

// BumpBell implements dispatch.Effects.
func (b *Mailbox) BumpBell(tick uint64) {
	b.post(bellMsg{tick: tick})
}

// Toast implements dispatch.Effects.
func (b *Mailbox) Toast(n model.Notification) {
	b.post(toastMsg{n: n})
}

// OpenDrawer implements dispatch.Effects.
func (b *Mailbox) OpenDrawer() {
	b.post(openDrawerMsg{})
}

// OpenChat implements dispatch.Effects.
func (b *Mailbox) OpenChat(agent model.AgentID, opening string) {
	b.post(openChatMsg{agent: agent, opening: opening})
}

// PreviewChanged implements dispatch.Effects. Cards read previews from the
// hub, so only the fact that one changed is forwarded.
func (b *Mailbox) PreviewChanged(agent model.AgentID, _ string, active bool) {
	b.post(previewMsg{agent: agent, active: active})
}
