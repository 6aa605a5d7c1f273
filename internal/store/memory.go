package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shoplight/copilot-platform/internal/model"
	"github.com/shoplight/copilot-platform/pkg/metrics"
)

// MemoryStore is an in-memory ConversationStore. It backs tests and
// single-node development; production deployments use MongoStore.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	participants  map[string][]*model.Participant
	messages      map[string][]*model.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		participants:  make(map[string][]*model.Participant),
		messages:      make(map[string][]*model.Message),
	}
}

// EnsureConversation implements ConversationStore.
func (s *MemoryStore) EnsureConversation(ctx context.Context, tenantID, identityID string, kind model.Kind, hint string) (*model.Conversation, *model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if hint != "" {
		conv, ok := s.conversations[hint]
		if !ok || conv.TenantID != tenantID || conv.DeletedAt != nil {
			return nil, nil, ErrNotFound
		}
		participant := s.findParticipant(hint, identityID)
		if participant == nil && kind == model.KindCopilot {
			// Only admin callers may take the unclaimed copilot seat.
			participant = s.claimPlaceholder(hint, identityID)
		}
		if participant == nil {
			return nil, nil, ErrForbidden
		}
		return cloneConversation(conv), cloneParticipant(participant), nil
	}

	// Reuse the identity's most recently active open conversation of
	// the expected kind.
	var latest *model.Conversation
	for _, conv := range s.conversations {
		if conv.TenantID != tenantID || conv.Kind != kind || conv.DeletedAt != nil {
			continue
		}
		if s.findParticipant(conv.ID, identityID) == nil {
			continue
		}
		if latest == nil || conv.UpdatedAt.After(latest.UpdatedAt) {
			latest = conv
		}
	}
	if latest != nil {
		return cloneConversation(latest), cloneParticipant(s.findParticipant(latest.ID, identityID)), nil
	}

	conv, participant := s.createLocked(tenantID, identityID, kind)
	return cloneConversation(conv), cloneParticipant(participant), nil
}

func (s *MemoryStore) createLocked(tenantID, identityID string, kind model.Kind) (*model.Conversation, *model.Participant) {
	now := time.Now()
	conv := &model.Conversation{
		ID:        newID(),
		TenantID:  tenantID,
		Kind:      kind,
		Metadata:  map[string]any{"kind": string(kind)},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv

	identity := identityID
	initiatorRole := model.ParticipantRoleHuman
	if kind == model.KindCopilot {
		initiatorRole = model.ParticipantRoleAdmin
	}
	initiator := &model.Participant{
		ID:             newID(),
		ConversationID: conv.ID,
		IdentityID:     &identity,
		Role:           initiatorRole,
		CreatedAt:      now,
	}
	assistant := &model.Participant{
		ID:             newID(),
		ConversationID: conv.ID,
		Role:           model.ParticipantRoleAssistant,
		CreatedAt:      now,
	}
	s.participants[conv.ID] = []*model.Participant{initiator, assistant}

	if kind == model.KindCopilot {
		// Second admin seat, claimed by the next admin who joins.
		s.participants[conv.ID] = append(s.participants[conv.ID], &model.Participant{
			ID:             newID(),
			ConversationID: conv.ID,
			Role:           model.ParticipantRoleAdmin,
			CreatedAt:      now,
		})
	}

	welcome := WelcomeText
	s.messages[conv.ID] = []*model.Message{{
		ID:             newID(),
		ConversationID: conv.ID,
		ParticipantID:  &assistant.ID,
		Role:           model.RoleAssistant,
		Content:        &welcome,
		Metadata:       map[string]any{model.MetaWelcome: true},
		CreatedAt:      now,
	}}

	metrics.ConversationsTotal.WithLabelValues(string(kind)).Inc()
	return conv, initiator
}

// AppendTurn implements ConversationStore. The single store lock makes
// the two inserts and the pointer update one unit of work.
func (s *MemoryStore) AppendTurn(ctx context.Context, conversationID string, human, assistant *model.Message) (*model.Message, *model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.DeletedAt != nil {
		return nil, nil, ErrNotFound
	}

	now := time.Now()
	stampMessage(human, conversationID, now)
	stampMessage(assistant, conversationID, now.Add(time.Millisecond))

	s.messages[conversationID] = append(s.messages[conversationID], cloneMessage(human), cloneMessage(assistant))

	conv.LastMessageID = assistant.ID
	conv.LastMessageAt = &assistant.CreatedAt
	conv.UpdatedAt = assistant.CreatedAt
	s.bumpUnreadLocked(conversationID, human)
	s.bumpUnreadLocked(conversationID, assistant)

	return cloneMessage(human), cloneMessage(assistant), nil
}

func (s *MemoryStore) bumpUnreadLocked(conversationID string, msg *model.Message) {
	for _, p := range s.participants[conversationID] {
		if p.Role == model.ParticipantRoleAssistant {
			continue
		}
		if msg.ParticipantID != nil && p.ID == *msg.ParticipantID {
			continue
		}
		p.UnreadCount++
	}
}

// LoadHistory implements ConversationStore.
func (s *MemoryStore) LoadHistory(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.DeletedAt != nil {
		return nil, ErrNotFound
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	ordered := s.sortedMessagesLocked(conversationID)
	if len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	out := make([]model.Message, len(ordered))
	for i, msg := range ordered {
		out[i] = *cloneMessage(msg)
	}
	return out, nil
}

// ListMessages implements ConversationStore.
func (s *MemoryStore) ListMessages(ctx context.Context, tenantID, conversationID string, pageSize int, rawCursor string) (*model.ListMessagesResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID || conv.DeletedAt != nil {
		return nil, ErrNotFound
	}
	c, err := decodeCursor(rawCursor)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}

	var page []model.Message
	ordered := s.sortedMessagesLocked(conversationID)
	for _, msg := range ordered {
		if !messageAfter(msg, c) {
			continue
		}
		if len(page) == pageSize {
			last := page[len(page)-1]
			return &model.ListMessagesResponse{
				Messages:   page,
				HasMore:    true,
				NextCursor: encodeCursor(cursor{CreatedAt: last.CreatedAt, ID: last.ID}),
			}, nil
		}
		page = append(page, *cloneMessage(msg))
	}
	return &model.ListMessagesResponse{Messages: page}, nil
}

// GetConversation implements ConversationStore.
func (s *MemoryStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID || conv.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return cloneConversation(conv), nil
}

// ListConversations implements ConversationStore.
func (s *MemoryStore) ListConversations(ctx context.Context, tenantID, identityID string, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var convs []model.Conversation
	for _, conv := range s.conversations {
		if conv.TenantID != tenantID || conv.DeletedAt != nil {
			continue
		}
		if s.findParticipant(conv.ID, identityID) == nil {
			continue
		}
		convs = append(convs, *cloneConversation(conv))
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	total := len(convs)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if limit <= 0 || end > total {
		end = total
	}
	return &model.ListConversationsResponse{
		Conversations: convs[start:end],
		Total:         total,
		HasMore:       end < total,
	}, nil
}

// DeleteConversation implements ConversationStore.
func (s *MemoryStore) DeleteConversation(ctx context.Context, tenantID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID || conv.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	conv.DeletedAt = &now
	conv.UpdatedAt = now
	return nil
}

// MarkRead implements ConversationStore.
func (s *MemoryStore) MarkRead(ctx context.Context, conversationID, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant := s.findParticipant(conversationID, identityID)
	if participant == nil {
		return ErrForbidden
	}
	participant.UnreadCount = 0
	return nil
}

// Participants returns the participants of a conversation. Used by
// tests and the copilot seat-claiming flow.
func (s *MemoryStore) Participants(conversationID string) []model.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Participant
	for _, p := range s.participants[conversationID] {
		out = append(out, *cloneParticipant(p))
	}
	return out
}

func (s *MemoryStore) findParticipant(conversationID, identityID string) *model.Participant {
	for _, p := range s.participants[conversationID] {
		if p.IdentityID != nil && *p.IdentityID == identityID {
			return p
		}
	}
	return nil
}

// claimPlaceholder assigns an unclaimed admin seat to an identity.
func (s *MemoryStore) claimPlaceholder(conversationID, identityID string) *model.Participant {
	for _, p := range s.participants[conversationID] {
		if p.IdentityID == nil && p.Role == model.ParticipantRoleAdmin {
			identity := identityID
			p.IdentityID = &identity
			return p
		}
	}
	return nil
}

func (s *MemoryStore) sortedMessagesLocked(conversationID string) []*model.Message {
	msgs := make([]*model.Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}

func stampMessage(msg *model.Message, conversationID string, at time.Time) {
	if msg.ID == "" {
		msg.ID = newID()
	}
	msg.ConversationID = conversationID
	msg.CreatedAt = at
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func cloneConversation(in *model.Conversation) *model.Conversation {
	out := *in
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func cloneParticipant(in *model.Participant) *model.Participant {
	out := *in
	return &out
}

func cloneMessage(in *model.Message) *model.Message {
	out := *in
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
