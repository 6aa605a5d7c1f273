package shop

import (
	"context"
	"fmt"
	"time"

	"github.com/shoplight/copilot-platform/internal/model"
	"github.com/shoplight/copilot-platform/internal/tool"
)

// Tool names.
const (
	ToolTrackOrder       = "track_order"
	ToolAddToCart        = "add_to_cart"
	ToolScheduleCampaign = "schedule_campaign"
)

// Descriptors returns the tool set backed by this backend, ready for
// registration.
func (b *Backend) Descriptors() []tool.Descriptor {
	return []tool.Descriptor{
		{
			Name:        ToolTrackOrder,
			Description: "Look up shipment status, carrier, and estimated arrival for an order.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"order_id": map[string]any{
						"type":        "string",
						"description": "The order identifier, e.g. ORD-123.",
					},
				},
				"required": []any{"order_id"},
			},
			SideEffect: tool.SideEffectReadOnly,
			Handler:    b.trackOrder,
		},
		{
			Name:        ToolAddToCart,
			Description: "Add an item to the shopper's cart. Creates the cart when none exists.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cart_id": map[string]any{
						"type":        "string",
						"description": "Existing cart identifier. Omit to start a new cart.",
					},
					"sku": map[string]any{
						"type":        "string",
						"description": "Product SKU to add.",
					},
					"quantity": map[string]any{
						"type":        "integer",
						"description": "Number of units.",
					},
				},
				"required": []any{"sku", "quantity"},
			},
			SideEffect: tool.SideEffectCreate,
			Handler:    b.addToCart,
		},
		{
			Name:        ToolScheduleCampaign,
			Description: "Schedule a marketing campaign for publication at a given time.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"campaign_id": map[string]any{
						"type":        "string",
						"description": "Campaign identifier.",
					},
					"publish_at": map[string]any{
						"type":        "string",
						"description": "Publication time, RFC 3339.",
					},
				},
				"required": []any{"campaign_id", "publish_at"},
			},
			SideEffect: tool.SideEffectMutate,
			Handler:    b.scheduleCampaign,
			Confirm:    b.confirmScheduleCampaign,
		},
	}
}

func (b *Backend) trackOrder(ctx context.Context, args map[string]any) (map[string]any, error) {
	orderID, _ := args["order_id"].(string)
	order, err := b.TrackOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	}
	if order.Carrier != "" {
		out["carrier"] = order.Carrier
		out["tracking_number"] = order.TrackingNumber
	}
	if order.EstimatedArrive != nil {
		out["estimated_arrival"] = order.EstimatedArrive.Format(time.RFC3339)
	}
	return out, nil
}

func (b *Backend) addToCart(ctx context.Context, args map[string]any) (map[string]any, error) {
	cartID, _ := args["cart_id"].(string)
	sku, _ := args["sku"].(string)
	quantity := intArg(args["quantity"])

	cartID, lines, err := b.AddToCart(ctx, cartID, sku, quantity)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"cart_id":    cartID,
		"sku":        sku,
		"quantity":   quantity,
		"line_count": lines,
	}, nil
}

// intArg normalizes the numeric representations JSON decoding and
// in-process callers produce.
func intArg(value any) int {
	switch n := value.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// confirmScheduleCampaign blocks rescheduling a campaign that already
// has committed schedule state, unless the caller confirmed.
func (b *Backend) confirmScheduleCampaign(ctx context.Context, args map[string]any) (tool.Decision, error) {
	campaignID, _ := args["campaign_id"].(string)
	campaign, err := b.GetCampaign(ctx, campaignID)
	if err != nil {
		return tool.Decision{}, err
	}
	switch campaign.Status {
	case CampaignScheduled:
		when := ""
		if campaign.ScheduledAt != nil {
			when = " for " + campaign.ScheduledAt.Format(time.RFC3339)
		}
		return tool.NeedConfirmation(fmt.Sprintf(
			"Campaign %q is already scheduled%s. Confirm to replace the existing schedule.",
			campaign.Name, when)), nil
	case CampaignPublished:
		return tool.NeedConfirmation(fmt.Sprintf(
			"Campaign %q is already published. Confirm to schedule it again.",
			campaign.Name)), nil
	}
	return tool.Allow(), nil
}

func (b *Backend) scheduleCampaign(ctx context.Context, args map[string]any) (map[string]any, error) {
	campaignID, _ := args["campaign_id"].(string)
	publishAt, _ := args["publish_at"].(string)

	at, err := time.Parse(time.RFC3339, publishAt)
	if err != nil {
		return nil, fmt.Errorf("publish_at must be RFC 3339: %w", err)
	}
	campaign, err := b.ScheduleCampaign(ctx, campaignID, at)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"campaign_id": campaign.ID,
		"name":        campaign.Name,
		"status":      campaign.Status,
		"publish_at":  campaign.ScheduledAt.Format(time.RFC3339),
	}, nil
}

func init() {
	model.RegisterToolViewDecoder(ToolTrackOrder, func(args, result map[string]any) model.ToolView {
		orderID, _ := args["order_id"].(string)
		return model.ToolView{Summary: "Tracked order " + orderID}
	})
	model.RegisterToolViewDecoder(ToolAddToCart, func(args, result map[string]any) model.ToolView {
		sku, _ := args["sku"].(string)
		return model.ToolView{Summary: "Added " + sku + " to cart"}
	})
	model.RegisterToolViewDecoder(ToolScheduleCampaign, func(args, result map[string]any) model.ToolView {
		campaignID, _ := args["campaign_id"].(string)
		summary := "Scheduled campaign " + campaignID
		if status, ok := result["status"].(string); ok && status == "needs_confirmation" {
			summary = "Awaiting confirmation for campaign " + campaignID
		}
		return model.ToolView{Summary: summary}
	})
}
