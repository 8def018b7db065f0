package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedChat persists contents as alternating user and assistant turns with
// agent, starting with the user.
func SeedChat(t *testing.T, s store.ChatStore, agent model.AgentID, contents ...string) []model.ChatMessage {
	t.Helper()

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	msgs := make([]model.ChatMessage, 0, len(contents))
	for i, c := range contents {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs = append(msgs, model.ChatMessage{
			ID:        fmt.Sprintf("%s-%d", agent, i),
			AgentID:   agent,
			Role:      role,
			Content:   c,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	if err := s.AppendChatMessages(context.Background(), msgs); err != nil {
		t.Fatalf("seeding chat: %v", err)
	}
	return msgs
}

// NewNotification returns a valid unread notification from agent. Timestamps
// increase with seq so later notifications sort first.
func NewNotification(id string, agent model.AgentID, seq int) model.Notification {
	return model.Notification{
		ID:        id,
		AgentID:   agent,
		Type:      model.TypeProactive,
		Title:     "title " + id,
		Message:   "msg " + id,
		Timestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Second),
		Priority:  model.PriorityMedium,
	}
}
