package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrUnknownTool is returned when the model requests a capability
	// outside the whitelist. The orchestrator treats this as a protocol
	// violation by the model, never as a user-facing failure.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrRegistryFrozen is returned on registration after startup.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

// DefaultDispatchTimeout bounds a single handler invocation.
const DefaultDispatchTimeout = 15 * time.Second

// Registry is the static whitelist of capabilities. It is built once at
// process start, frozen, and then read-only: no locking is needed at
// dispatch time.
type Registry struct {
	descriptors     map[string]Descriptor
	frozen          bool
	dispatchTimeout time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry(dispatchTimeout time.Duration) *Registry {
	if dispatchTimeout <= 0 {
		dispatchTimeout = DefaultDispatchTimeout
	}
	return &Registry{
		descriptors:     make(map[string]Descriptor),
		dispatchTimeout: dispatchTimeout,
	}
}

// Register adds a tool. Fails after Freeze.
func (r *Registry) Register(d Descriptor) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if d.Name == "" {
		return errors.New("tool name is empty")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %q has no handler", d.Name)
	}
	if _, exists := r.descriptors[d.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, d.Name)
	}
	r.descriptors[d.Name] = d
	return nil
}

// Freeze makes the registry immutable. Must be called before serving.
func (r *Registry) Freeze() *Registry {
	r.frozen = true
	return r
}

// Schema exports the model-facing definitions of all registered tools,
// sorted by name for a stable prompt.
func (r *Registry) Schema() []Definition {
	out := make([]Definition, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, Definition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Describe returns the descriptor for a name.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Dispatch runs one model-requested tool call. The whitelist check
// happens before any argument parsing: the tool name is untrusted
// input. Every other failure mode is folded into the Result so the
// model can react to it; only ErrUnknownTool surfaces as an error.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (Result, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	result := Result{Name: name}
	if args == nil {
		args = map[string]any{}
	}

	if err := validateArgs(d.InputSchema, args); err != nil {
		result.Err = fmt.Sprintf("invalid arguments: %s", err)
		return result, nil
	}

	decision, err := checkConfirmation(ctx, d, args)
	if err != nil {
		result.Err = fmt.Sprintf("confirmation check failed: %s", err)
		return result, nil
	}
	if !decision.Allowed {
		result.NeedsConfirmation = true
		result.Explanation = decision.Explanation
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.dispatchTimeout)
	defer cancel()

	data, err := runHandler(ctx, d.Handler, args)
	if err != nil {
		result.Err = err.Error()
		return result, nil
	}
	result.Data = data
	return result, nil
}

type handlerOutcome struct {
	data map[string]any
	err  error
}

// runHandler guards against handlers that ignore context cancellation;
// a dispatch timeout is a tool error, not a turn failure.
func runHandler(ctx context.Context, handler Handler, args map[string]any) (map[string]any, error) {
	done := make(chan handlerOutcome, 1)
	go func() {
		data, err := handler(ctx, args)
		done <- handlerOutcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-ctx.Done():
		return nil, fmt.Errorf("tool execution timed out: %w", ctx.Err())
	}
}
