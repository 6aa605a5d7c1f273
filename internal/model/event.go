package model

import (
	"time"
)

// EventType represents the type of turn lifecycle event.
type EventType string

const (
	EventTypeTurnFinalized EventType = "turn_finalized"
	EventTypeTurnDegraded  EventType = "turn_degraded"
)

// TurnEvent is published after a turn finalizes so the real-time
// delivery layer can fan the result out to connected clients. Delivery
// itself is not this service's concern.
type TurnEvent struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	TenantID           string    `json:"tenant_id"`
	Type               EventType `json:"type"`
	HumanMessageID     string    `json:"human_message_id"`
	AssistantMessageID string    `json:"assistant_message_id"`
	ToolName           string    `json:"tool_name,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
