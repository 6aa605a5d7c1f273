package tool

import (
	"context"
)

// ConfirmFlagKey is the protocol-level argument a caller sets to
// acknowledge a confirmation question from a prior turn. It is accepted
// on every tool regardless of schema.
const ConfirmFlagKey = "confirm"

// Decision is the outcome of a confirmation check.
type Decision struct {
	Allowed     bool
	Explanation string
}

// Allow permits the call to proceed to the handler.
func Allow() Decision {
	return Decision{Allowed: true}
}

// NeedConfirmation blocks the call and carries a human-readable
// description of the state that would be overridden.
func NeedConfirmation(explanation string) Decision {
	return Decision{Explanation: explanation}
}

// ConfirmRequested reports whether the caller set the explicit
// confirmation flag in the tool arguments.
func ConfirmRequested(args map[string]any) bool {
	flag, ok := args[ConfirmFlagKey].(bool)
	return ok && flag
}

// checkConfirmation runs the descriptor's confirmation gate. The
// handler must never be invoked when the decision is not allowed.
func checkConfirmation(ctx context.Context, d Descriptor, args map[string]any) (Decision, error) {
	if d.SideEffect != SideEffectMutate || d.Confirm == nil {
		return Allow(), nil
	}
	if ConfirmRequested(args) {
		return Allow(), nil
	}
	return d.Confirm(ctx, args)
}
