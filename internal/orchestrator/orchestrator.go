// Package orchestrator runs the two-phase turn protocol: a human turn
// in, at most one tool round-trip, one assistant message out. Every
// failure mode degrades to a textual assistant reply; the turn itself
// essentially never hard-fails past validation.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shoplight/copilot-platform/internal/llm"
	"github.com/shoplight/copilot-platform/internal/lock"
	"github.com/shoplight/copilot-platform/internal/model"
	"github.com/shoplight/copilot-platform/internal/store"
	"github.com/shoplight/copilot-platform/internal/tool"
	"github.com/shoplight/copilot-platform/pkg/logger"
	"github.com/shoplight/copilot-platform/pkg/metrics"
)

// ErrEmptyTurn is returned for a turn with no text.
var ErrEmptyTurn = errors.New("turn text is empty")

// Fixed user-facing fallback texts. A tool that executed successfully
// is never reported as a failure merely because summarization failed.
const (
	apologyText     = "I'm sorry, I'm having trouble responding right now. Please try again in a moment."
	unsupportedText = "I'm sorry, I can't help with that request."
	processedText   = "Your request has been processed."
)

// phase is the protocol position of an in-flight turn.
type phase string

const (
	phaseReceived        phase = "received"
	phaseFirstModelCall  phase = "first_model_call"
	phaseDispatched      phase = "dispatched"
	phaseSecondModelCall phase = "second_model_call"
	phaseFinalized       phase = "finalized"
)

// Turn outcomes, recorded in metrics.
const (
	outcomeDirect       = "direct"
	outcomeTool         = "tool"
	outcomeConfirmation = "needs_confirmation"
	outcomeUnsupported  = "unsupported"
	outcomeDegraded     = "degraded"
)

// EventPublisher receives turn lifecycle events for the external
// real-time delivery layer.
type EventPublisher interface {
	PublishTurnEvent(ctx context.Context, event *model.TurnEvent) error
}

// Config tunes the orchestrator.
type Config struct {
	Model               string
	Temperature         float64
	MaxTokens           int
	ModelTimeout        time.Duration
	HistoryLimit        int
	TokenBudget         int
	SystemPromptShopper string
	SystemPromptCopilot string
}

// Orchestrator coordinates store, registry, model client, and the
// per-conversation lock for one turn at a time per conversation.
type Orchestrator struct {
	store    store.ConversationStore
	registry *tool.Registry
	client   llm.Client
	locker   lock.ConversationLocker
	events   EventPublisher
	logger   *logger.Logger
	cfg      Config
}

// New creates an orchestrator. events may be nil.
func New(
	st store.ConversationStore,
	registry *tool.Registry,
	client llm.Client,
	locker lock.ConversationLocker,
	events EventPublisher,
	log *logger.Logger,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: registry,
		client:   client,
		locker:   locker,
		events:   events,
		logger:   log,
		cfg:      cfg,
	}
}

// turnState is the ephemeral state of one orchestrated exchange. It is
// created at turn start and discarded after the final message persists;
// intermediate call requests and tool results never become rows.
type turnState struct {
	phase        phase
	tenantID     string
	kind         model.Kind
	conversation *model.Conversation
	sender       *model.Participant
	history      []llm.ChatMessage
	humanText    string
	call         *llm.CallRequest
	result       *tool.Result
	finalText    string
	outcome      string
	degraded     bool
}

// SubmitTurn runs one turn end to end and returns the persisted pair
// of messages.
func (o *Orchestrator) SubmitTurn(ctx context.Context, tenantID, identityID string, kind model.Kind, req *model.SubmitTurnRequest) (*model.SubmitTurnResponse, error) {
	start := time.Now()

	state, err := o.receive(ctx, tenantID, identityID, kind, req)
	if err != nil {
		return nil, err
	}

	// The human already sent the message: a caller disconnect must not
	// lose the assistant's reply, so orchestration continues on a
	// detached context. Timeouts are applied per model call and per
	// tool dispatch instead.
	ctx = context.WithoutCancel(ctx)

	unlock, err := o.locker.Lock(ctx, state.conversation.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	messages, err := o.store.LoadHistory(ctx, state.conversation.ID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	state.history = assembleHistory(messages, o.cfg.TokenBudget)

	o.firstModelCall(ctx, state)
	if state.call != nil {
		o.dispatch(ctx, state)
		o.secondModelCall(ctx, state)
	}

	resp, err := o.finalize(ctx, state)
	if err != nil {
		return nil, err
	}
	metrics.RecordTurn(string(state.kind), state.outcome, time.Since(start).Seconds())
	return resp, nil
}

// receive validates the incoming turn and resolves its conversation.
func (o *Orchestrator) receive(ctx context.Context, tenantID, identityID string, kind model.Kind, req *model.SubmitTurnRequest) (*turnState, error) {
	if req == nil || req.Text == "" {
		return nil, ErrEmptyTurn
	}
	conv, sender, err := o.store.EnsureConversation(ctx, tenantID, identityID, kind, req.ConversationID)
	if err != nil {
		return nil, err
	}
	return &turnState{
		phase:        phaseReceived,
		tenantID:     tenantID,
		kind:         conv.Kind,
		conversation: conv,
		sender:       sender,
		humanText:    req.Text,
	}, nil
}

// firstModelCall sends the turn with history and tool schema. A usable
// text answer finalizes directly; a call request moves to dispatch;
// anything else degrades to the apology text.
func (o *Orchestrator) firstModelCall(ctx context.Context, state *turnState) {
	state.phase = phaseFirstModelCall
	start := time.Now()

	reply, err := o.client.Generate(ctx, state.humanText, state.history, o.generateOptions(state.kind, o.registry.Schema()))
	status := "success"
	switch {
	case err != nil:
		status = "error"
		o.logger.Warn("first model call failed",
			zap.String("conversation_id", state.conversation.ID),
			zap.String("phase", string(state.phase)),
			zap.Error(err),
		)
		state.finalText = apologyText
		state.outcome = outcomeDegraded
		state.degraded = true
	case reply.Empty():
		status = "empty"
		state.finalText = apologyText
		state.outcome = outcomeDegraded
		state.degraded = true
	case reply.CallRequest != nil:
		state.call = reply.CallRequest
	default:
		state.finalText = reply.Text
		state.outcome = outcomeDirect
	}
	metrics.RecordModelCall(o.client.Name(), "first", status, time.Since(start).Seconds())
}

// dispatch runs the requested tool through the registry. An unknown
// tool name is a protocol violation by the model: no handler is ever
// reached and the turn finalizes with the fixed unsupported text.
func (o *Orchestrator) dispatch(ctx context.Context, state *turnState) {
	state.phase = phaseDispatched

	result, err := o.registry.Dispatch(ctx, state.call.Name, state.call.Args)
	if errors.Is(err, tool.ErrUnknownTool) {
		metrics.UnknownToolRequests.Inc()
		o.logger.Warn("model requested tool outside whitelist",
			zap.String("conversation_id", state.conversation.ID),
			zap.String("tool", state.call.Name),
		)
		state.finalText = unsupportedText
		state.outcome = outcomeUnsupported
		state.result = nil
		return
	}
	if err != nil {
		// Registry never returns other errors today; treat defensively
		// as a tool error the model can phrase.
		result = tool.Result{Name: state.call.Name, Err: err.Error()}
	}

	switch {
	case result.NeedsConfirmation:
		metrics.RecordToolDispatch(state.call.Name, "needs_confirmation")
	case result.Err != "":
		metrics.RecordToolDispatch(state.call.Name, "error")
	default:
		metrics.RecordToolDispatch(state.call.Name, "success")
	}
	state.result = &result
}

// secondModelCall asks the model to phrase the tool result. On failure
// the turn still finalizes: with the confirmation explanation when one
// is pending, otherwise with the canned acknowledgment.
func (o *Orchestrator) secondModelCall(ctx context.Context, state *turnState) {
	if state.result == nil {
		return // unknown tool already finalized the text
	}
	state.phase = phaseSecondModelCall
	start := time.Now()

	history := append(append([]llm.ChatMessage{}, state.history...), llm.ChatMessage{
		Role:    "user",
		Content: state.humanText,
	})
	opts := o.generateOptions(state.kind, nil)

	reply, err := o.client.GenerateWithToolResult(ctx, history, *state.call, state.result.Payload(), opts)
	status := "success"
	switch {
	case err != nil || reply.Empty():
		if err != nil {
			status = "error"
			o.logger.Warn("second model call failed",
				zap.String("conversation_id", state.conversation.ID),
				zap.String("phase", string(state.phase)),
				zap.String("tool", state.call.Name),
				zap.Error(err),
			)
		} else {
			status = "empty"
		}
		state.degraded = true
		if state.result.NeedsConfirmation {
			state.finalText = state.result.Explanation
		} else {
			state.finalText = processedText
		}
	default:
		state.finalText = reply.Text
	}
	if state.result.NeedsConfirmation {
		state.outcome = outcomeConfirmation
	} else {
		state.outcome = outcomeTool
	}
	metrics.RecordModelCall(o.client.Name(), "second", status, time.Since(start).Seconds())
}

// finalize persists the human message and the single assistant message
// atomically, then publishes the turn event.
func (o *Orchestrator) finalize(ctx context.Context, state *turnState) (*model.SubmitTurnResponse, error) {
	state.phase = phaseFinalized

	humanText := state.humanText
	human := &model.Message{
		ParticipantID: &state.sender.ID,
		Role:          model.RoleHuman,
		Content:       &humanText,
	}

	finalText := stripMarkup(state.finalText)
	if finalText == "" {
		finalText = apologyText
	}
	assistant := &model.Message{
		Role:     model.RoleAssistant,
		Content:  &finalText,
		Metadata: o.assistantMetadata(state),
	}

	human, assistant, err := o.store.AppendTurn(ctx, state.conversation.ID, human, assistant)
	if err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleHuman)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()

	o.publishTurnEvent(ctx, state, human, assistant)

	return &model.SubmitTurnResponse{
		ConversationID:   state.conversation.ID,
		HumanMessage:     human,
		AssistantMessage: assistant,
	}, nil
}

// assistantMetadata records which tool was used, its arguments, and a
// redacted view of its result, without polluting the readable content.
func (o *Orchestrator) assistantMetadata(state *turnState) map[string]any {
	metadata := map[string]any{}
	if state.degraded {
		metadata[model.MetaDegraded] = true
	}
	if state.call != nil && state.result != nil {
		metadata[model.MetaToolName] = state.call.Name
		metadata[model.MetaToolArgs] = state.call.Args
		metadata[model.MetaToolResult] = state.result.Redacted()
		if state.result.Err != "" {
			metadata[model.MetaToolError] = state.result.Err
		}
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func (o *Orchestrator) publishTurnEvent(ctx context.Context, state *turnState, human, assistant *model.Message) {
	if o.events == nil {
		return
	}
	eventType := model.EventTypeTurnFinalized
	if state.degraded {
		eventType = model.EventTypeTurnDegraded
	}
	event := &model.TurnEvent{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		ConversationID:     state.conversation.ID,
		TenantID:           state.tenantID,
		Type:               eventType,
		HumanMessageID:     human.ID,
		AssistantMessageID: assistant.ID,
		CreatedAt:          time.Now(),
	}
	if state.call != nil {
		event.ToolName = state.call.Name
	}
	if err := o.events.PublishTurnEvent(ctx, event); err != nil {
		// Delivery is best effort; the turn is already durable.
		o.logger.Warn("failed to publish turn event",
			zap.String("conversation_id", state.conversation.ID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) generateOptions(kind model.Kind, tools []tool.Definition) llm.GenerateOptions {
	systemPrompt := o.cfg.SystemPromptShopper
	if kind == model.KindCopilot {
		systemPrompt = o.cfg.SystemPromptCopilot
	}
	return llm.GenerateOptions{
		Model:        o.cfg.Model,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		Temperature:  o.cfg.Temperature,
		MaxTokens:    o.cfg.MaxTokens,
		Timeout:      o.cfg.ModelTimeout,
	}
}
