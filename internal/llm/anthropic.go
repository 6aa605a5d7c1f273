package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"github.com/shoplight/copilot-platform/internal/tool"
)

// AnthropicClient is the Anthropic model adapter.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}
	return &AnthropicClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Generate implements Client.
func (c *AnthropicClient) Generate(ctx context.Context, turnText string, history []ChatMessage, opts GenerateOptions) (*Reply, error) {
	messages := renderAnthropicHistory(history)
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turnText)))
	return c.complete(ctx, messages, opts)
}

// GenerateWithToolResult implements Client.
func (c *AnthropicClient) GenerateWithToolResult(ctx context.Context, history []ChatMessage, call CallRequest, toolResult map[string]any, opts GenerateOptions) (*Reply, error) {
	callID := call.ID
	if callID == "" {
		callID = uuid.New().String()
	}
	result, err := json.Marshal(toolResult)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}

	messages := renderAnthropicHistory(history)
	messages = append(messages,
		anthropic.NewAssistantMessage(anthropic.NewToolUseBlockParam(callID, call.Name, call.Args)),
		anthropic.NewUserMessage(anthropic.NewToolResultBlock(callID, string(result), false)),
	)

	opts.Tools = nil
	return c.complete(ctx, messages, opts)
}

func (c *AnthropicClient) complete(ctx context.Context, messages []anthropic.MessageParam, opts GenerateOptions) (*Reply, error) {
	model := opts.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if opts.SystemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(opts.SystemPrompt),
		})
	}
	if tools := renderAnthropicTools(opts.Tools); len(tools) > 0 {
		params.Tools = anthropic.F(tools)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(opts))
	defer cancel()

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			text += block.Text
		case anthropic.ContentBlockTypeToolUse:
			var args map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("decode tool use input: %w", err)
				}
			}
			return &Reply{CallRequest: &CallRequest{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			}}, nil
		}
	}
	return &Reply{Text: text}, nil
}

func renderAnthropicHistory(history []ChatMessage) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history)+2)
	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return messages
}

func renderAnthropicTools(definitions []tool.Definition) []anthropic.ToolParam {
	if len(definitions) == 0 {
		return nil
	}
	tools := make([]anthropic.ToolParam, len(definitions))
	for i, def := range definitions {
		tools[i] = anthropic.ToolParam{
			Name:        anthropic.F(def.Name),
			Description: anthropic.F(def.Description),
			InputSchema: anthropic.F[any](def.InputSchema),
		}
	}
	return tools
}
