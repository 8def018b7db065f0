package model

import "time"

// ChatRole identifies who wrote a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single turn in a conversation with an advisor.
type ChatMessage struct {
	ID        string    `json:"id" db:"id"`
	AgentID   AgentID   `json:"agent_id" db:"agent_id"`
	Role      ChatRole  `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"timestamp" db:"created_at"`

	// Pending marks an optimistic user message awaiting the server reply.
	Pending bool `json:"-" db:"-"`
}
