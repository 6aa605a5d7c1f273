// Package model defines data structures for the copilot platform.
package model

import (
	"time"
)

// Kind distinguishes the storefront shopping assistant from the
// back-office analytics/campaign copilot.
type Kind string

const (
	KindShopper Kind = "shopper"
	KindCopilot Kind = "copilot"
)

// Conversation represents a conversation thread.
type Conversation struct {
	ID            string         `bson:"id" json:"id"`
	TenantID      string         `bson:"tenant_id" json:"tenant_id"`
	Kind          Kind           `bson:"kind" json:"kind"`
	Metadata      map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
	LastMessageID string         `bson:"last_message_id,omitempty" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time     `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time     `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

// ParticipantRole tags a participant as a human shopper, a back-office
// admin, or the identity-less assistant.
type ParticipantRole string

const (
	ParticipantRoleHuman     ParticipantRole = "human"
	ParticipantRoleAdmin     ParticipantRole = "admin"
	ParticipantRoleAssistant ParticipantRole = "assistant"
)

// Participant captures membership in a conversation.
// (ConversationID, IdentityID) is unique for non-nil identities; the
// assistant participant carries a nil identity.
type Participant struct {
	ID             string          `bson:"id" json:"id"`
	ConversationID string          `bson:"conversation_id" json:"conversation_id"`
	IdentityID     *string         `bson:"identity_id,omitempty" json:"identity_id,omitempty"`
	Role           ParticipantRole `bson:"role" json:"role"`
	UnreadCount    int             `bson:"unread_count" json:"unread_count"`
	Settings       map[string]any  `bson:"settings,omitempty" json:"settings,omitempty"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more"`
}
