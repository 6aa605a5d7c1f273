package shop

import (
	"context"
	"testing"
	"time"

	"github.com/shoplight/copilot-platform/internal/tool"
)

func newTestRegistry(t *testing.T) (*Backend, *tool.Registry) {
	t.Helper()
	backend := NewBackend()
	registry := tool.NewRegistry(time.Second)
	for _, d := range backend.Descriptors() {
		if err := registry.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}
	return backend, registry.Freeze()
}

func TestTrackOrder(t *testing.T) {
	t.Parallel()

	_, registry := newTestRegistry(t)
	result, err := registry.Dispatch(context.Background(), ToolTrackOrder, map[string]any{"order_id": "ORD-123"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err != "" {
		t.Fatalf("result error: %s", result.Err)
	}
	if result.Data["status"] != "shipped" || result.Data["carrier"] != "UPS" {
		t.Fatalf("data: %v", result.Data)
	}

	result, err = registry.Dispatch(context.Background(), ToolTrackOrder, map[string]any{"order_id": "ORD-999"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected error for unknown order")
	}
}

func TestAddToCart(t *testing.T) {
	t.Parallel()

	_, registry := newTestRegistry(t)
	result, err := registry.Dispatch(context.Background(), ToolAddToCart, map[string]any{
		"sku":      "SKU-42",
		"quantity": float64(2),
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err != "" {
		t.Fatalf("result error: %s", result.Err)
	}
	cartID, _ := result.Data["cart_id"].(string)
	if cartID == "" {
		t.Fatal("no cart created")
	}

	// Adding to the same cart grows it.
	result, err = registry.Dispatch(context.Background(), ToolAddToCart, map[string]any{
		"cart_id":  cartID,
		"sku":      "SKU-43",
		"quantity": float64(1),
	})
	if err != nil || result.Err != "" {
		t.Fatalf("second add: %v / %s", err, result.Err)
	}
	if result.Data["line_count"] != 2 {
		t.Fatalf("line count: %v", result.Data["line_count"])
	}

	result, err = registry.Dispatch(context.Background(), ToolAddToCart, map[string]any{
		"sku":      "SKU-44",
		"quantity": float64(0),
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected error for zero quantity")
	}
}

func TestScheduleCampaignConfirmation(t *testing.T) {
	t.Parallel()

	backend, registry := newTestRegistry(t)
	publishAt := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	// Draft campaign schedules without confirmation.
	result, err := registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id": "CMP-1",
		"publish_at":  publishAt,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.NeedsConfirmation || result.Err != "" {
		t.Fatalf("draft schedule: %+v", result)
	}
	if result.Data["status"] != CampaignScheduled {
		t.Fatalf("status: %v", result.Data["status"])
	}

	// Rescheduling the now-scheduled campaign requires confirmation.
	result, err = registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id": "CMP-1",
		"publish_at":  publishAt,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.NeedsConfirmation || result.Explanation == "" {
		t.Fatalf("expected confirmation question: %+v", result)
	}

	// Confirmed reschedule overwrites the existing schedule.
	later := time.Now().Add(48 * time.Hour).Format(time.RFC3339)
	result, err = registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id":       "CMP-1",
		"publish_at":        later,
		tool.ConfirmFlagKey: true,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.NeedsConfirmation || result.Err != "" {
		t.Fatalf("confirmed reschedule: %+v", result)
	}

	campaign, err := backend.GetCampaign(context.Background(), "CMP-1")
	if err != nil {
		t.Fatal(err)
	}
	if campaign.ScheduledAt == nil || campaign.ScheduledAt.Format(time.RFC3339) != later {
		t.Fatalf("schedule not overwritten: %+v", campaign)
	}
}

func TestScheduleCampaignPublished(t *testing.T) {
	t.Parallel()

	_, registry := newTestRegistry(t)
	publishAt := time.Now().Add(time.Hour).Format(time.RFC3339)

	// A published campaign asks for confirmation, and rejects even a
	// confirmed attempt at the handler.
	result, err := registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id": "CMP-2",
		"publish_at":  publishAt,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !result.NeedsConfirmation {
		t.Fatalf("expected confirmation question: %+v", result)
	}

	result, err = registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id":       "CMP-2",
		"publish_at":        publishAt,
		tool.ConfirmFlagKey: true,
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err == "" {
		t.Fatal("published campaign must not be reschedulable")
	}
}

func TestScheduleCampaignBadTimestamp(t *testing.T) {
	t.Parallel()

	_, registry := newTestRegistry(t)
	result, err := registry.Dispatch(context.Background(), ToolScheduleCampaign, map[string]any{
		"campaign_id": "CMP-1",
		"publish_at":  "tomorrow-ish",
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if result.Err == "" {
		t.Fatal("expected parse error")
	}
}
