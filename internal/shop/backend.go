// Package shop adapts commerce backend operations into registry tools.
// The handlers here are intentionally thin: they exist to exercise the
// whitelist, argument validation, the confirmation gate, and the schema
// export against realistic order, cart, and campaign operations.
package shop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Order is a placed order as seen by the tracking tool.
type Order struct {
	ID              string
	Status          string
	Carrier         string
	TrackingNumber  string
	EstimatedArrive *time.Time
}

// CartLine is one item added to a shopper's cart.
type CartLine struct {
	SKU      string
	Quantity int
	AddedAt  time.Time
}

// Campaign is a marketing campaign managed by the back office.
type Campaign struct {
	ID          string
	Name        string
	Status      string // draft, scheduled, published
	ScheduledAt *time.Time
}

// Campaign status values.
const (
	CampaignDraft     = "draft"
	CampaignScheduled = "scheduled"
	CampaignPublished = "published"
)

// Backend is an in-memory stand-in for the commerce services. A real
// deployment replaces this with HTTP clients to the order, cart, and
// campaign services behind the same methods.
type Backend struct {
	mu        sync.Mutex
	orders    map[string]*Order
	carts     map[string][]CartLine
	campaigns map[string]*Campaign
}

// NewBackend creates a backend seeded with demo data.
func NewBackend() *Backend {
	arrive := time.Now().Add(48 * time.Hour)
	return &Backend{
		orders: map[string]*Order{
			"ORD-123": {
				ID:              "ORD-123",
				Status:          "shipped",
				Carrier:         "UPS",
				TrackingNumber:  "1Z999AA10123456784",
				EstimatedArrive: &arrive,
			},
			"ORD-456": {
				ID:     "ORD-456",
				Status: "processing",
			},
		},
		carts: map[string][]CartLine{},
		campaigns: map[string]*Campaign{
			"CMP-1": {ID: "CMP-1", Name: "Spring Sale", Status: CampaignDraft},
			"CMP-2": {ID: "CMP-2", Name: "Clearance", Status: CampaignPublished},
		},
	}
}

// TrackOrder looks up shipment state for an order.
func (b *Backend) TrackOrder(ctx context.Context, orderID string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	copied := *order
	return &copied, nil
}

// AddToCart appends an item to a cart, creating the cart if needed.
func (b *Backend) AddToCart(ctx context.Context, cartID, sku string, quantity int) (string, int, error) {
	if quantity <= 0 {
		return "", 0, fmt.Errorf("quantity must be positive")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cartID == "" {
		cartID = "cart-" + uuid.Must(uuid.NewV7()).String()
	}
	b.carts[cartID] = append(b.carts[cartID], CartLine{
		SKU:      sku,
		Quantity: quantity,
		AddedAt:  time.Now(),
	})
	return cartID, len(b.carts[cartID]), nil
}

// GetCampaign returns the current state of a campaign.
func (b *Backend) GetCampaign(ctx context.Context, campaignID string) (*Campaign, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	campaign, ok := b.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	copied := *campaign
	return &copied, nil
}

// ScheduleCampaign sets a campaign's publish time, overwriting any
// previous schedule.
func (b *Backend) ScheduleCampaign(ctx context.Context, campaignID string, at time.Time) (*Campaign, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	campaign, ok := b.campaigns[campaignID]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", campaignID)
	}
	if campaign.Status == CampaignPublished {
		return nil, fmt.Errorf("campaign %s is already published", campaignID)
	}
	campaign.Status = CampaignScheduled
	campaign.ScheduledAt = &at
	copied := *campaign
	return &copied, nil
}
