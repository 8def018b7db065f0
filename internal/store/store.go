package store

import (
	"context"

	"github.com/nhle/finpal/internal/model"
)

// ChatStore persists committed advisor conversations.
type ChatStore interface {
	AppendChatMessages(ctx context.Context, msgs []model.ChatMessage) error
	GetChatHistory(ctx context.Context, agent model.AgentID, limit int) ([]model.ChatMessage, error)
	ClearChatHistory(ctx context.Context, agent model.AgentID) error
}

// ProfileStore persists the onboarding quiz.
type ProfileStore interface {
	SaveProfile(ctx context.Context, p model.StoredProfile) error
	GetProfile(ctx context.Context) (*model.StoredProfile, error)
	ClearProfile(ctx context.Context) error
}

// Store is the local persistence surface. Notifications are intentionally
// absent: they live in memory for the session only.
type Store interface {
	ChatStore
	ProfileStore

	Close() error
}
