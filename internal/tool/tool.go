// Package tool provides the capability registry the model is allowed
// to call into, including argument validation and the confirmation
// gate for tools that mutate already-committed state.
package tool

import (
	"context"
)

// SideEffect classifies what a tool does to backend state. The
// classification drives the confirmation policy; read-only tools bypass
// it entirely.
type SideEffect string

const (
	SideEffectReadOnly SideEffect = "read_only"
	SideEffectCreate   SideEffect = "creates_new"
	SideEffectMutate   SideEffect = "mutates_existing"
)

// Handler executes one tool call using validated arguments.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ConfirmFunc decides whether a mutate-existing call may proceed
// against the current resource state. It runs before the handler.
type ConfirmFunc func(ctx context.Context, args map[string]any) (Decision, error)

// Descriptor declares a callable capability. Registered once at process
// start; immutable afterwards.
type Descriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	SideEffect  SideEffect
	Handler     Handler

	// Confirm is the optional per-tool confirmation check. Only
	// consulted for mutate-existing tools.
	Confirm ConfirmFunc
}

// Definition is the model-facing schema of a registered tool, exported
// once at startup to configure the model service adapter.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Result is the normalized outcome of a dispatch. A failed call still
// produces a value the model can react to; handler errors land in Err,
// never as a Go error.
type Result struct {
	Name              string         `json:"name"`
	Data              map[string]any `json:"data,omitempty"`
	Err               string         `json:"error,omitempty"`
	NeedsConfirmation bool           `json:"needs_confirmation,omitempty"`
	Explanation       string         `json:"explanation,omitempty"`
}

// Payload renders the result as the JSON-like object fed back to the
// model's second call.
func (r Result) Payload() map[string]any {
	switch {
	case r.Err != "":
		return map[string]any{"error": r.Err}
	case r.NeedsConfirmation:
		return map[string]any{
			"needs_confirmation": true,
			"explanation":        r.Explanation,
		}
	default:
		return r.Data
	}
}

// Redacted returns the UI-facing view of the result stored in message
// metadata: confirmation and error details survive, raw handler output
// is reduced to a status field.
func (r Result) Redacted() map[string]any {
	switch {
	case r.Err != "":
		return map[string]any{"status": "error"}
	case r.NeedsConfirmation:
		return map[string]any{"status": "needs_confirmation", "explanation": r.Explanation}
	default:
		return map[string]any{"status": "ok"}
	}
}
