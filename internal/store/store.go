// Package store persists conversations, participants, and messages.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/shoplight/copilot-platform/internal/model"
)

var (
	// ErrNotFound is returned when a conversation does not exist or is deleted.
	ErrNotFound = errors.New("conversation not found")
	// ErrForbidden is returned when the caller is not a participant.
	ErrForbidden = errors.New("not a conversation participant")
)

// DefaultHistoryLimit caps the history window supplied to the model.
const DefaultHistoryLimit = 40

// WelcomeText is inserted as the first assistant message of a freshly
// created conversation.
const WelcomeText = "Hi! I'm your assistant. How can I help you today?"

// ConversationStore is the durable storage contract for the
// orchestrator. AppendTurn must be atomic: both messages and the
// conversation pointer update land, or none do.
type ConversationStore interface {
	// EnsureConversation resolves the conversation for an incoming turn.
	// With a hint it loads that conversation, failing with ErrNotFound or
	// ErrForbidden. Without one it reuses the identity's most recently
	// active open conversation of the kind, or creates a new one with its
	// assistant participant (and, for copilot conversations, a placeholder
	// admin seat claimed on first admin turn).
	EnsureConversation(ctx context.Context, tenantID, identityID string, kind model.Kind, hint string) (*model.Conversation, *model.Participant, error)

	// AppendTurn persists the human and assistant messages of one turn and
	// updates the conversation's denormalized pointers and the unread
	// counters of non-sending participants in the same unit of work.
	AppendTurn(ctx context.Context, conversationID string, human, assistant *model.Message) (*model.Message, *model.Message, error)

	// LoadHistory returns the most recent limit messages in chronological
	// order, bounded to keep model context from growing without limit.
	LoadHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// ListMessages returns one page of history in chronological order with
	// an opaque continuation cursor.
	ListMessages(ctx context.Context, tenantID, conversationID string, pageSize int, cursor string) (*model.ListMessagesResponse, error)

	// GetConversation loads a conversation scoped to a tenant.
	GetConversation(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error)

	// ListConversations lists an identity's open conversations, most
	// recently active first.
	ListConversations(ctx context.Context, tenantID, identityID string, limit, offset int) (*model.ListConversationsResponse, error)

	// DeleteConversation soft-deletes a conversation.
	DeleteConversation(ctx context.Context, tenantID, conversationID string) error

	// MarkRead resets the unread counter of the identity's participant.
	MarkRead(ctx context.Context, conversationID, identityID string) error
}

// cursor is the page continuation token for message listing: position of
// the last message already seen, ordered by (created_at, id).
type cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(c cursor) string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeCursor(raw string) (cursor, error) {
	var c cursor
	if raw == "" {
		return c, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}

// messageAfter reports whether m sorts after the cursor position in
// (created_at, id) order.
func messageAfter(m *model.Message, c cursor) bool {
	if c.ID == "" {
		return true
	}
	if m.CreatedAt.After(c.CreatedAt) {
		return true
	}
	return m.CreatedAt.Equal(c.CreatedAt) && m.ID > c.ID
}
