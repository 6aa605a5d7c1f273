package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/shoplight/copilot-platform/internal/tool"
)

// OpenAIClient is the OpenAI model adapter.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	return &OpenAIClient{client: openai.NewClient(apiKey)}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, turnText string, history []ChatMessage, opts GenerateOptions) (*Reply, error) {
	messages := c.renderHistory(history, opts)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: turnText,
	})
	return c.complete(ctx, messages, opts)
}

// GenerateWithToolResult implements Client.
func (c *OpenAIClient) GenerateWithToolResult(ctx context.Context, history []ChatMessage, call CallRequest, toolResult map[string]any, opts GenerateOptions) (*Reply, error) {
	callID := call.ID
	if callID == "" {
		callID = uuid.New().String()
	}
	args, err := json.Marshal(call.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal call arguments: %w", err)
	}
	result, err := json.Marshal(toolResult)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}

	messages := c.renderHistory(history, opts)
	messages = append(messages,
		openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:   callID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			}},
		},
		openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: callID,
			Content:    string(result),
		},
	)

	// The second phase only synthesizes text; withholding the tool
	// schema keeps the model from requesting another call.
	opts.Tools = nil
	return c.complete(ctx, messages, opts)
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage, opts GenerateOptions) (*Reply, error) {
	model := opts.Model
	if model == "" {
		model = "gpt-4o"
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout(opts))
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(opts.Temperature),
		Tools:       renderOpenAITools(opts.Tools),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return &Reply{}, nil
	}

	choice := resp.Choices[0].Message
	if len(choice.ToolCalls) > 0 {
		// Only the first requested call is honored; the protocol runs
		// one tool round-trip per turn.
		toolCall := choice.ToolCalls[0]
		var args map[string]any
		if toolCall.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode tool call arguments: %w", err)
			}
		}
		return &Reply{CallRequest: &CallRequest{
			ID:   toolCall.ID,
			Name: toolCall.Function.Name,
			Args: args,
		}}, nil
	}
	return &Reply{Text: choice.Content}, nil
}

func (c *OpenAIClient) renderHistory(history []ChatMessage, opts GenerateOptions) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: opts.SystemPrompt,
		})
	}
	for _, msg := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return messages
}

func renderOpenAITools(definitions []tool.Definition) []openai.Tool {
	if len(definitions) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(definitions))
	for i, def := range definitions {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		}
	}
	return tools
}
