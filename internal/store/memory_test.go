package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shoplight/copilot-platform/internal/model"
)

func humanMessage(participantID, content string) *model.Message {
	c := content
	pid := participantID
	return &model.Message{ParticipantID: &pid, Role: model.RoleHuman, Content: &c}
}

func assistantMessage(content string) *model.Message {
	c := content
	return &model.Message{Role: model.RoleAssistant, Content: &c}
}

func appendTurns(t *testing.T, s *MemoryStore, conversationID, participantID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, err := s.AppendTurn(context.Background(), conversationID,
			humanMessage(participantID, "question"),
			assistantMessage("answer"))
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}
}

func TestEnsureConversationCreatesWithWelcome(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatalf("EnsureConversation: %v", err)
	}
	if conv.Kind != model.KindShopper {
		t.Fatalf("kind %s", conv.Kind)
	}
	if participant.Role != model.ParticipantRoleHuman {
		t.Fatalf("initiator role %s", participant.Role)
	}

	msgs, err := s.LoadHistory(context.Background(), conv.ID, 0)
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected welcome message, got %d messages", len(msgs))
	}
	if msgs[0].Text() != WelcomeText || msgs[0].Metadata[model.MetaWelcome] != true {
		t.Fatalf("welcome message %+v", msgs[0])
	}
}

func TestEnsureConversationReusesLatest(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	first, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	appendTurns(t, s, first.ID, participant.ID, 1)

	again, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Fatal("open conversation not reused")
	}

	// A different kind starts a fresh conversation.
	other, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindCopilot, "")
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Fatal("copilot turn must not reuse a shopper conversation")
	}
}

func TestEnsureConversationHintChecks(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown hint: %v", err)
	}
	if _, _, err := s.EnsureConversation(context.Background(), "t2", "u1", model.KindShopper, conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant hint: %v", err)
	}
	if _, _, err := s.EnsureConversation(context.Background(), "t1", "intruder", model.KindShopper, conv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-participant hint: %v", err)
	}
}

func TestCopilotPlaceholderSeatClaim(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _, err := s.EnsureConversation(context.Background(), "t1", "admin-1", model.KindCopilot, "")
	if err != nil {
		t.Fatal(err)
	}

	// The second admin claims the placeholder seat on first contact.
	_, second, err := s.EnsureConversation(context.Background(), "t1", "admin-2", model.KindCopilot, conv.ID)
	if err != nil {
		t.Fatalf("second admin join: %v", err)
	}
	if second.Role != model.ParticipantRoleAdmin || second.IdentityID == nil || *second.IdentityID != "admin-2" {
		t.Fatalf("claimed seat %+v", second)
	}

	// No seats remain for a third identity.
	if _, _, err := s.EnsureConversation(context.Background(), "t1", "admin-3", model.KindCopilot, conv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("third admin: %v", err)
	}
}

func TestShopperCannotClaimCopilotSeat(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _, err := s.EnsureConversation(context.Background(), "t1", "admin-1", model.KindCopilot, "")
	if err != nil {
		t.Fatal(err)
	}

	// A shopper who learns the conversation id must not be handed the
	// unclaimed admin seat.
	if _, _, err := s.EnsureConversation(context.Background(), "t1", "shopper-1", model.KindShopper, conv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("shopper hint at copilot conversation: %v", err)
	}
	for _, p := range s.Participants(conv.ID) {
		if p.IdentityID != nil && *p.IdentityID == "shopper-1" {
			t.Fatalf("shopper seated as %s", p.Role)
		}
	}

	// The seat is still open for an admin afterwards.
	_, second, err := s.EnsureConversation(context.Background(), "t1", "admin-2", model.KindCopilot, conv.ID)
	if err != nil {
		t.Fatalf("admin join after rejected shopper: %v", err)
	}
	if second.Role != model.ParticipantRoleAdmin || second.IdentityID == nil || *second.IdentityID != "admin-2" {
		t.Fatalf("claimed seat %+v", second)
	}
}

func TestAppendTurnOrderingAndPointers(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}

	human, assistant, err := s.AppendTurn(context.Background(), conv.ID,
		humanMessage(participant.ID, "hi"), assistantMessage("hello"))
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if !human.CreatedAt.Before(assistant.CreatedAt) {
		t.Fatal("human message must order before assistant message")
	}

	updated, err := s.GetConversation(context.Background(), "t1", conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.LastMessageID != assistant.ID {
		t.Fatalf("last message pointer %s", updated.LastMessageID)
	}
	if updated.LastMessageAt == nil || !updated.LastMessageAt.Equal(assistant.CreatedAt) {
		t.Fatalf("last message time %v", updated.LastMessageAt)
	}
}

func TestAppendTurnUnknownConversation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, _, err := s.AppendTurn(context.Background(), "missing", humanMessage("p", "hi"), assistantMessage("yo"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadHistoryWindow(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	appendTurns(t, s, conv.ID, participant.ID, 30) // 61 messages with welcome

	msgs, err := s.LoadHistory(context.Background(), conv.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != DefaultHistoryLimit {
		t.Fatalf("expected %d messages, got %d", DefaultHistoryLimit, len(msgs))
	}
	// Window keeps the newest messages in chronological order.
	if msgs[len(msgs)-1].Text() != "answer" {
		t.Fatalf("last message %q", msgs[len(msgs)-1].Text())
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("history out of order")
		}
	}
}

func TestListMessagesPagination(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	appendTurns(t, s, conv.ID, participant.ID, 5) // 11 messages with welcome

	var collected []model.Message
	cursor := ""
	pages := 0
	for {
		page, err := s.ListMessages(context.Background(), "t1", conv.ID, 4, cursor)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		collected = append(collected, page.Messages...)
		pages++
		if !page.HasMore {
			break
		}
		if page.NextCursor == "" {
			t.Fatal("HasMore without cursor")
		}
		cursor = page.NextCursor
	}

	if len(collected) != 11 {
		t.Fatalf("collected %d messages", len(collected))
	}
	if pages != 3 {
		t.Fatalf("expected 3 pages, got %d", pages)
	}
	seen := map[string]bool{}
	for _, m := range collected {
		if seen[m.ID] {
			t.Fatalf("message %s duplicated across pages", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestListMessagesBadCursor(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ListMessages(context.Background(), "t1", conv.ID, 10, "not-a-cursor"); err == nil {
		t.Fatal("expected cursor decode error")
	}
}

func TestDeleteConversationSoft(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteConversation(context.Background(), "t1", conv.ID); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.GetConversation(context.Background(), "t1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted conversation still visible: %v", err)
	}
	if err := s.DeleteConversation(context.Background(), "t1", conv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}

	// A new turn without a hint starts fresh instead of reviving it.
	again, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID == conv.ID {
		t.Fatal("deleted conversation reused")
	}
}

func TestUnreadCountersAndMarkRead(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	conv, participant, err := s.EnsureConversation(context.Background(), "t1", "admin-1", model.KindCopilot, "")
	if err != nil {
		t.Fatal(err)
	}
	_, second, err := s.EnsureConversation(context.Background(), "t1", "admin-2", model.KindCopilot, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	appendTurns(t, s, conv.ID, participant.ID, 2)

	counts := map[string]int{}
	for _, p := range s.Participants(conv.ID) {
		if p.IdentityID != nil {
			counts[*p.IdentityID] = p.UnreadCount
		}
	}
	// The sender sees only the two assistant replies; the other admin
	// sees all four turn messages.
	if counts["admin-1"] != 2 {
		t.Fatalf("sender unread %d", counts["admin-1"])
	}
	if counts["admin-2"] != 4 {
		t.Fatalf("observer unread %d", counts["admin-2"])
	}

	if err := s.MarkRead(context.Background(), conv.ID, *second.IdentityID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	for _, p := range s.Participants(conv.ID) {
		if p.IdentityID != nil && *p.IdentityID == "admin-2" && p.UnreadCount != 0 {
			t.Fatalf("unread not cleared: %d", p.UnreadCount)
		}
	}

	if err := s.MarkRead(context.Background(), conv.ID, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("MarkRead for non-participant: %v", err)
	}
}

func TestListConversations(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	first, participant, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindShopper, "")
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := s.EnsureConversation(context.Background(), "t1", "u1", model.KindCopilot, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.EnsureConversation(context.Background(), "t1", "someone-else", model.KindShopper, ""); err != nil {
		t.Fatal(err)
	}
	appendTurns(t, s, first.ID, participant.ID, 1)

	resp, err := s.ListConversations(context.Background(), "t1", "u1", 10, 0)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if resp.Total != 2 || len(resp.Conversations) != 2 {
		t.Fatalf("total %d, page %d", resp.Total, len(resp.Conversations))
	}
	// Most recently active first.
	if resp.Conversations[0].ID != first.ID || resp.Conversations[1].ID != second.ID {
		t.Fatalf("order %s, %s", resp.Conversations[0].ID, resp.Conversations[1].ID)
	}

	paged, err := s.ListConversations(context.Background(), "t1", "u1", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(paged.Conversations) != 1 || paged.HasMore {
		t.Fatalf("offset page %+v", paged)
	}
}
