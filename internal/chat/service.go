// Package chat owns the per-agent advisor conversations. Sending is a
// two-phase transition: the user's turn is shown immediately as pending and
// is either committed together with the advisor's reply or rolled back to
// the exact prior conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/api"
	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/store"
)

// DefaultHistoryLimit is how many prior turns are loaded and sent along
// with a new message.
const DefaultHistoryLimit = 20

var (
	// ErrBusy is returned when a message to the same agent is still pending.
	ErrBusy = errors.New("a message to this advisor is still pending")

	// ErrEmptyMessage is returned for blank input.
	ErrEmptyMessage = errors.New("message is empty")
)

// Replier produces advisor replies.
type Replier interface {
	Chat(ctx context.Context, agent model.AgentID, message string, history []model.ChatMessage) (*api.ChatReply, error)
}

// Options configures a Service. Store may be nil to keep conversations in
// memory only.
type Options struct {
	Client       Replier
	Store        store.ChatStore
	Clock        clockwork.Clock
	Logger       *zap.Logger
	HistoryLimit int
}

type conversation struct {
	messages []model.ChatMessage
	loaded   bool
	pending  bool
	gen      uint64 // bumped by Clear so in-flight sends are discarded
}

// Service holds every conversation. It is safe for concurrent use.
type Service struct {
	client Replier
	store  store.ChatStore
	clock  clockwork.Clock
	log    *zap.Logger
	limit  int

	mu    sync.Mutex
	convs map[model.AgentID]*conversation
	subs  map[int]func(model.AgentID)
	next  int
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Service{
		client: opts.Client,
		store:  opts.Store,
		clock:  opts.Clock,
		log:    opts.Logger.Named("chat"),
		limit:  opts.HistoryLimit,
		convs:  make(map[model.AgentID]*conversation),
		subs:   make(map[int]func(model.AgentID)),
	}
}

// conv must be called with s.mu held.
func (s *Service) conv(agent model.AgentID) *conversation {
	c, ok := s.convs[agent]
	if !ok {
		c = &conversation{}
		s.convs[agent] = c
	}
	return c
}

// Load reads the persisted history for agent once per session.
func (s *Service) Load(ctx context.Context, agent model.AgentID) error {
	if !agent.Valid() {
		return fmt.Errorf("loading chat: unknown agent %q", agent)
	}

	s.mu.Lock()
	loaded := s.conv(agent).loaded
	s.mu.Unlock()
	if loaded || s.store == nil {
		return nil
	}

	history, err := s.store.GetChatHistory(ctx, agent, s.limit)
	if err != nil {
		return fmt.Errorf("loading chat with %s: %w", agent, err)
	}

	s.mu.Lock()
	c := s.conv(agent)
	if !c.loaded {
		c.loaded = true
		c.messages = append(history, c.messages...)
	}
	s.mu.Unlock()

	s.publish(agent)
	return nil
}

// History returns a copy of the conversation with agent, oldest first.
func (s *Service) History(agent model.AgentID) []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[agent]
	if !ok {
		return nil
	}
	out := make([]model.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// Pending reports whether a message to agent awaits its reply.
func (s *Service) Pending(agent model.AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[agent]
	return ok && c.pending
}

// Seed appends opening as an advisor turn, typically the notification
// message that opened the chat. Re-seeding the same opening is a no-op.
func (s *Service) Seed(ctx context.Context, agent model.AgentID, opening string) {
	opening = strings.TrimSpace(opening)
	if opening == "" || !agent.Valid() {
		return
	}

	s.mu.Lock()
	c := s.conv(agent)
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == model.RoleAssistant && c.messages[n-1].Content == opening {
		s.mu.Unlock()
		return
	}
	msg := model.ChatMessage{
		ID:        uuid.New().String(),
		AgentID:   agent,
		Role:      model.RoleAssistant,
		Content:   opening,
		CreatedAt: s.clock.Now(),
	}
	c.messages = append(c.messages, msg)
	s.mu.Unlock()

	s.persist(ctx, msg)
	s.publish(agent)
}

// Send delivers text to agent. The user's turn is visible as pending until
// the reply arrives; on failure that turn is withdrawn and the error is
// returned. Turns added meanwhile, such as a seeded opening, are kept.
func (s *Service) Send(ctx context.Context, agent model.AgentID, text string) (*model.ChatMessage, error) {
	if !agent.Valid() {
		return nil, fmt.Errorf("sending chat: unknown agent %q", agent)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	c := s.conv(agent)
	if c.pending {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	snapshot := make([]model.ChatMessage, len(c.messages))
	copy(snapshot, c.messages)
	gen := c.gen

	user := model.ChatMessage{
		ID:        uuid.New().String(),
		AgentID:   agent,
		Role:      model.RoleUser,
		Content:   text,
		CreatedAt: s.clock.Now(),
		Pending:   true,
	}
	c.messages = append(c.messages, user)
	c.pending = true
	s.mu.Unlock()
	s.publish(agent)

	history := snapshot
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}
	reply, err := s.client.Chat(ctx, agent, text, history)

	s.mu.Lock()
	c = s.conv(agent)
	if c.gen != gen {
		// Cleared while in flight.
		s.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("sending to %s: %w", agent, err)
		}
		return nil, fmt.Errorf("sending to %s: conversation was cleared", agent)
	}
	c.pending = false
	c.messages = without(c.messages, user.ID)
	if err != nil {
		s.mu.Unlock()
		s.log.Warn("chat send rolled back", zap.String("agent", string(agent)), zap.Error(err))
		s.publish(agent)
		return nil, fmt.Errorf("sending to %s: %w", agent, err)
	}

	user.Pending = false
	assistant := model.ChatMessage{
		ID:        uuid.New().String(),
		AgentID:   agent,
		Role:      model.RoleAssistant,
		Content:   reply.Response,
		CreatedAt: s.clock.Now(),
	}
	// The committed exchange lands after any turn seeded meanwhile, the
	// order in which it is persisted.
	c.messages = append(c.messages, user, assistant)
	s.mu.Unlock()

	s.persist(ctx, user, assistant)
	s.publish(agent)
	return &assistant, nil
}

// Clear forgets the conversation with agent, locally and in the store.
func (s *Service) Clear(ctx context.Context, agent model.AgentID) error {
	s.mu.Lock()
	c := s.conv(agent)
	c.messages = nil
	c.pending = false
	c.gen++
	s.mu.Unlock()
	s.publish(agent)

	if s.store == nil {
		return nil
	}
	if err := s.store.ClearChatHistory(ctx, agent); err != nil {
		return fmt.Errorf("clearing chat with %s: %w", agent, err)
	}
	return nil
}

// Subscribe registers fn for conversation changes and returns its removal
// func. fn receives the agent whose conversation changed.
func (s *Service) Subscribe(fn func(model.AgentID)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *Service) publish(agent model.AgentID) {
	s.mu.Lock()
	subs := make([]func(model.AgentID), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(agent)
	}
}

// without returns msgs minus the message with id, in a fresh slice.
func without(msgs []model.ChatMessage, id string) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func (s *Service) persist(ctx context.Context, msgs ...model.ChatMessage) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendChatMessages(ctx, msgs); err != nil {
		s.log.Warn("persisting chat turn", zap.Error(err))
	}
}
