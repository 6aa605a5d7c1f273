package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func echoDescriptor(name string, calls *atomic.Int64) Descriptor {
	return Descriptor{
		Name:        name,
		Description: "test tool",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
			"required": []any{"id"},
		},
		SideEffect: SideEffectReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			if calls != nil {
				calls.Add(1)
			}
			return map[string]any{"id": args["id"]}, nil
		},
	}
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	if err := r.Register(echoDescriptor("lookup", nil)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(echoDescriptor("lookup", nil))
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
}

func TestRegisterAfterFreeze(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	r.Freeze()
	err := r.Register(echoDescriptor("lookup", nil))
	if !errors.Is(err, ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestRegisterRejectsMissingHandler(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	if err := r.Register(Descriptor{Name: "broken"}); err == nil {
		t.Fatal("expected error for descriptor without handler")
	}
	if err := r.Register(Descriptor{Handler: func(context.Context, map[string]any) (map[string]any, error) { return nil, nil }}); err == nil {
		t.Fatal("expected error for descriptor without name")
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	r.Freeze()
	_, err := r.Dispatch(context.Background(), "delete_everything", map[string]any{"x": 1})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestDispatchInvalidArgs(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry(0)
	if err := r.Register(echoDescriptor("lookup", &calls)); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	cases := []struct {
		name string
		args map[string]any
	}{
		{"missing required", map[string]any{}},
		{"unknown field", map[string]any{"id": "a", "extra": true}},
		{"wrong type", map[string]any{"id": 7}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := r.Dispatch(context.Background(), "lookup", tc.args)
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if result.Err == "" {
				t.Fatal("expected validation error in result")
			}
		})
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("handler invoked %d times on invalid args", got)
	}
}

func TestDispatchSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry(0)
	if err := r.Register(echoDescriptor("lookup", &calls)); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	result, err := r.Dispatch(context.Background(), "lookup", map[string]any{"id": "ORD-123"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err != "" {
		t.Fatalf("unexpected result error: %s", result.Err)
	}
	if result.Data["id"] != "ORD-123" {
		t.Fatalf("unexpected data: %v", result.Data)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler invoked %d times", calls.Load())
	}
}

func TestDispatchHandlerError(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	err := r.Register(Descriptor{
		Name:       "failing",
		SideEffect: SideEffectReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("backend down")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	result, err := r.Dispatch(context.Background(), "failing", nil)
	if err != nil {
		t.Fatalf("dispatch must not return handler errors, got %v", err)
	}
	if result.Err != "backend down" {
		t.Fatalf("unexpected result error: %q", result.Err)
	}
}

func TestDispatchTimeout(t *testing.T) {
	t.Parallel()

	r := NewRegistry(20 * time.Millisecond)
	err := r.Register(Descriptor{
		Name:       "slow",
		SideEffect: SideEffectReadOnly,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			select {
			case <-time.After(5 * time.Second):
				return map[string]any{}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	result, err := r.Dispatch(context.Background(), "slow", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected timeout error in result")
	}
}

func TestDispatchConfirmationGate(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry(0)
	err := r.Register(Descriptor{
		Name: "reschedule",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
			"required": []any{"id"},
		},
		SideEffect: SideEffectMutate,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			calls.Add(1)
			return map[string]any{"ok": true}, nil
		},
		Confirm: func(ctx context.Context, args map[string]any) (Decision, error) {
			return NeedConfirmation("already committed"), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	result, err := r.Dispatch(context.Background(), "reschedule", map[string]any{"id": "a"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.NeedsConfirmation {
		t.Fatal("expected confirmation to be required")
	}
	if result.Explanation != "already committed" {
		t.Fatalf("unexpected explanation: %q", result.Explanation)
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run when confirmation is pending")
	}

	// The explicit flag bypasses the gate.
	result, err = r.Dispatch(context.Background(), "reschedule", map[string]any{"id": "a", ConfirmFlagKey: true})
	if err != nil {
		t.Fatalf("dispatch with confirm: %v", err)
	}
	if result.NeedsConfirmation || result.Err != "" {
		t.Fatalf("expected confirmed call to run, got %+v", result)
	}
	if calls.Load() != 1 {
		t.Fatalf("handler invoked %d times after confirmation", calls.Load())
	}
}

func TestConfirmationSkippedForNonMutating(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	r := NewRegistry(0)
	err := r.Register(Descriptor{
		Name:       "create",
		SideEffect: SideEffectCreate,
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			calls.Add(1)
			return map[string]any{}, nil
		},
		Confirm: func(ctx context.Context, args map[string]any) (Decision, error) {
			return NeedConfirmation("never consulted"), nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	result, err := r.Dispatch(context.Background(), "create", nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.NeedsConfirmation {
		t.Fatal("confirmation gate must only apply to mutating tools")
	}
	if calls.Load() != 1 {
		t.Fatal("handler did not run")
	}
}

func TestSchemaSortedAndComplete(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(echoDescriptor(name, nil)); err != nil {
			t.Fatal(err)
		}
	}
	r.Freeze()

	schema := r.Schema()
	if len(schema) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(schema))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, def := range schema {
		if def.Name != want[i] {
			t.Fatalf("schema order %v, want %v", schema, want)
		}
		if def.InputSchema == nil {
			t.Fatalf("definition %s missing input schema", def.Name)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	r := NewRegistry(0)
	if err := r.Register(echoDescriptor("lookup", nil)); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	d, ok := r.Describe("lookup")
	if !ok || d.SideEffect != SideEffectReadOnly {
		t.Fatalf("describe: %+v ok=%v", d, ok)
	}
	if _, ok := r.Describe("missing"); ok {
		t.Fatal("unregistered name described")
	}
}

func TestResultPayload(t *testing.T) {
	t.Parallel()

	data := Result{Name: "t", Data: map[string]any{"a": 1}}
	if payload := data.Payload(); payload["a"] != 1 {
		t.Fatalf("data payload: %v", payload)
	}

	failed := Result{Name: "t", Err: "boom"}
	if payload := failed.Payload(); payload["error"] != "boom" {
		t.Fatalf("error payload: %v", payload)
	}

	pending := Result{Name: "t", NeedsConfirmation: true, Explanation: "why"}
	payload := pending.Payload()
	if payload["needs_confirmation"] != true || payload["explanation"] != "why" {
		t.Fatalf("confirmation payload: %v", payload)
	}
}
