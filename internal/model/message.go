package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Metadata keys carried on assistant messages. They record structured,
// non-conversational payloads without polluting the readable content.
const (
	MetaToolName   = "tool_name"
	MetaToolArgs   = "tool_args"
	MetaToolResult = "tool_result"
	MetaToolError  = "tool_error"
	MetaWelcome    = "welcome"
	MetaDegraded   = "degraded"
)

// Message represents a single conversation message. Content is nil for
// pure-system bookkeeping entries. ParticipantID is nil for
// system-authored turns.
type Message struct {
	ID             string         `bson:"id" json:"id"`
	ConversationID string         `bson:"conversation_id" json:"conversation_id"`
	ParticipantID  *string        `bson:"participant_id,omitempty" json:"participant_id,omitempty"`
	Role           Role           `bson:"role" json:"role"`
	Content        *string        `bson:"content,omitempty" json:"content,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time      `bson:"created_at" json:"created_at"`
}

// Text returns the message content, or the empty string when nil.
func (m *Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// SubmitTurnRequest is the request to submit one human turn.
type SubmitTurnRequest struct {
	ConversationID string         `json:"conversation_id,omitempty"`
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// SubmitTurnResponse is the result of one orchestrated turn: the
// persisted human message and the assistant's final message.
type SubmitTurnResponse struct {
	ConversationID   string   `json:"conversation_id"`
	HumanMessage     *Message `json:"human_message"`
	AssistantMessage *Message `json:"assistant_message"`
}

// ListMessagesResponse is an ordered page of conversation history.
type ListMessagesResponse struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
