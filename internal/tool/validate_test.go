package tool

import (
	"testing"
)

func TestValidateArgs(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order_id": map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "integer"},
			"price":    map[string]any{"type": "number"},
			"gift":     map[string]any{"type": "boolean"},
			"options":  map[string]any{"type": "object"},
			"tags":     map[string]any{"type": "array"},
		},
		"required": []any{"order_id"},
	}

	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"all valid", map[string]any{
			"order_id": "ORD-1",
			"quantity": float64(2),
			"price":    9.99,
			"gift":     true,
			"options":  map[string]any{"wrap": "red"},
			"tags":     []any{"a"},
		}, false},
		{"required only", map[string]any{"order_id": "ORD-1"}, false},
		{"missing required", map[string]any{"quantity": float64(1)}, true},
		{"unknown field", map[string]any{"order_id": "ORD-1", "color": "blue"}, true},
		{"string as integer", map[string]any{"order_id": "ORD-1", "quantity": "two"}, true},
		{"fractional integer", map[string]any{"order_id": "ORD-1", "quantity": 2.5}, true},
		{"whole float integer", map[string]any{"order_id": "ORD-1", "quantity": 3.0}, false},
		{"native int integer", map[string]any{"order_id": "ORD-1", "quantity": 3}, false},
		{"int as number", map[string]any{"order_id": "ORD-1", "price": 4}, false},
		{"bool as string", map[string]any{"order_id": true}, true},
		{"confirm flag accepted", map[string]any{"order_id": "ORD-1", ConfirmFlagKey: true}, false},
		{"confirm flag non-bool", map[string]any{"order_id": "ORD-1", ConfirmFlagKey: "yes"}, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validateArgs(schema, tc.args)
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateArgsNilSchema(t *testing.T) {
	t.Parallel()

	// A nil schema accepts only the protocol-level confirm flag.
	if err := validateArgs(nil, map[string]any{ConfirmFlagKey: true}); err != nil {
		t.Fatalf("confirm flag: %v", err)
	}
	if err := validateArgs(nil, map[string]any{"anything": 1}); err == nil {
		t.Fatal("expected unknown argument error")
	}
}

func TestConfirmRequested(t *testing.T) {
	t.Parallel()

	if ConfirmRequested(map[string]any{ConfirmFlagKey: true}) != true {
		t.Fatal("true flag not detected")
	}
	if ConfirmRequested(map[string]any{ConfirmFlagKey: false}) {
		t.Fatal("false flag treated as confirmation")
	}
	if ConfirmRequested(map[string]any{ConfirmFlagKey: "true"}) {
		t.Fatal("non-bool flag treated as confirmation")
	}
	if ConfirmRequested(nil) {
		t.Fatal("nil args treated as confirmation")
	}
}
