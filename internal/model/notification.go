package model

import "time"

// NotificationType classifies an advisor insight.
type NotificationType string

const (
	TypeProactive   NotificationType = "proactive"
	TypeAlert       NotificationType = "alert"
	TypeAchievement NotificationType = "achievement"
)

// Priority is the urgency of a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is a proactive insight, alert, or achievement attributed
// to an advisor. Only IsRead changes after creation.
type Notification struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	// AgentID is the advisor that sent this notification.
	AgentID AgentID `json:"agentId" validate:"oneof=sofia marcus luna"`

	// Type classifies the notification.
	Type NotificationType `json:"type" validate:"oneof=proactive alert achievement"`

	Title   string `json:"title"`
	Message string `json:"message"`

	// Timestamp orders notifications, newest first.
	Timestamp time.Time `json:"timestamp"`

	// IsRead flips to true through the store only and never reverts.
	IsRead bool `json:"isRead"`

	Priority Priority `json:"priority" validate:"oneof=low medium high"`

	// ActionRequired asks the UI to offer a chat with AgentID.
	ActionRequired bool `json:"actionRequired,omitempty"`
}

// IsAlert reports whether the notification belongs in the alerts tab.
func (n Notification) IsAlert() bool {
	return n.Type == TypeAlert || n.Priority == PriorityHigh
}

// WantsChat reports whether the notification is urgent enough to open a
// chat with its agent when auto-open is enabled.
func (n Notification) WantsChat() bool {
	return n.ActionRequired || n.Priority == PriorityHigh || n.Type == TypeAlert
}
