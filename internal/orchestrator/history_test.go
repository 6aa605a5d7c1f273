package orchestrator

import (
	"strings"
	"testing"

	"github.com/shoplight/copilot-platform/internal/model"
)

func msg(role model.Role, content string) model.Message {
	c := content
	return model.Message{Role: role, Content: &c}
}

func TestAssembleHistoryRoles(t *testing.T) {
	t.Parallel()

	messages := []model.Message{
		msg(model.RoleAssistant, "welcome"),
		msg(model.RoleHuman, "hi"),
		msg(model.RoleSystem, "bookkeeping"),
		{Role: model.RoleHuman, Content: nil},
		msg(model.RoleAssistant, "hello"),
	}

	history := assembleHistory(messages, 0)
	if len(history) != 3 {
		t.Fatalf("expected 3 rendered messages, got %d", len(history))
	}
	if history[0].Role != "assistant" || history[1].Role != "user" || history[2].Role != "assistant" {
		t.Fatalf("roles: %+v", history)
	}
	if history[1].Content != "hi" {
		t.Fatalf("content: %+v", history[1])
	}
}

func TestAssembleHistoryTrimsOldestFirst(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("abcd", 100) // ~100 tokens each
	messages := []model.Message{
		msg(model.RoleHuman, "oldest "+long),
		msg(model.RoleAssistant, "middle "+long),
		msg(model.RoleHuman, "newest "+long),
	}

	history := assembleHistory(messages, 220)
	if len(history) != 2 {
		t.Fatalf("expected 2 messages after trimming, got %d", len(history))
	}
	if !strings.HasPrefix(history[0].Content, "middle") {
		t.Fatalf("oldest message not trimmed: %+v", history[0])
	}
	if !strings.HasPrefix(history[1].Content, "newest") {
		t.Fatalf("newest message lost: %+v", history[1])
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("a", 40), 10},
		{"日本語", 3}, // non-ASCII weighs a full token each
	}
	for _, tc := range cases {
		if got := estimateTokens(tc.text); got != tc.want {
			t.Errorf("estimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}
