// Package llm wraps generative model providers behind the two-phase
// interface the orchestrator consumes: a first call that may return
// either text or a tool call request, and a second call that folds a
// tool result into a final answer.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/shoplight/copilot-platform/internal/tool"
)

// ErrUnavailable wraps transport failures and timeouts from the model
// service. The orchestrator converts it into the graceful-fallback
// path; it is never surfaced to the end user.
var ErrUnavailable = errors.New("model service unavailable")

// DefaultCallTimeout bounds a single model call when the caller
// supplies none.
const DefaultCallTimeout = 30 * time.Second

// ChatMessage is one role-tagged turn of rendered history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallRequest is the model's structured output asking the orchestrator
// to run a tool before it will produce a final answer.
type CallRequest struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Reply normalizes a model response into its three possible outcomes:
// text, call request, or neither (empty response).
type Reply struct {
	Text        string
	CallRequest *CallRequest
}

// Empty reports whether the model returned nothing usable.
func (r *Reply) Empty() bool {
	return r == nil || (r.Text == "" && r.CallRequest == nil)
}

// GenerateOptions configures one model call.
type GenerateOptions struct {
	Model        string
	SystemPrompt string
	Tools        []tool.Definition
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// Client is the consumed model service interface. Implementations must
// never block past the configured timeout.
type Client interface {
	// Generate runs the first-phase call with the turn text appended to
	// the rendered history.
	Generate(ctx context.Context, turnText string, history []ChatMessage, opts GenerateOptions) (*Reply, error)

	// GenerateWithToolResult runs the second-phase call: the original
	// history plus the call request and its result, asking the model to
	// synthesize a final natural-language answer.
	GenerateWithToolResult(ctx context.Context, history []ChatMessage, call CallRequest, toolResult map[string]any, opts GenerateOptions) (*Reply, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of model provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a client for the given provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

func callTimeout(opts GenerateOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return DefaultCallTimeout
}
