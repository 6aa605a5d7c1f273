package orchestrator

import (
	"github.com/shoplight/copilot-platform/internal/llm"
	"github.com/shoplight/copilot-platform/internal/model"
)

// DefaultTokenBudget bounds the rendered history supplied to the model.
const DefaultTokenBudget = 8000

// assembleHistory renders stored messages into the role-tagged turn
// format the model service expects. Pure-system bookkeeping entries and
// nil-content rows are dropped; the result is trimmed oldest-first to
// fit the token budget.
func assembleHistory(messages []model.Message, tokenBudget int) []llm.ChatMessage {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}

	rendered := make([]llm.ChatMessage, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if msg.Content == nil || *msg.Content == "" {
			continue
		}
		var role string
		switch msg.Role {
		case model.RoleHuman:
			role = "user"
		case model.RoleAssistant:
			role = "assistant"
		default:
			continue
		}
		rendered = append(rendered, llm.ChatMessage{Role: role, Content: *msg.Content})
	}

	total := 0
	for i := range rendered {
		total += estimateTokens(rendered[i].Content)
	}
	for total > tokenBudget && len(rendered) > 0 {
		total -= estimateTokens(rendered[0].Content)
		rendered = rendered[1:]
	}
	return rendered
}

// estimateTokens approximates the token count of a text with a
// rune-class heuristic: ~4 ASCII characters per token, ~1 token per
// non-ASCII character.
func estimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
