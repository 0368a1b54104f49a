package marketplace

import (
	"encoding/hex"
	"strconv"

	"marketescrow/core/types"
)

const (
	EventTypeMarketplaceInitialized = "marketplace.initialized"
	EventTypeMarketplacePaused      = "marketplace.paused"
	EventTypeProductCreated         = "marketplace.product.created"
	EventTypeProductUpdated         = "marketplace.product.updated"
	EventTypeProductPurchased       = "marketplace.product.purchased"
)

type marketplaceEvent struct {
	evt *types.Event
}

func (e marketplaceEvent) EventType() string { return e.evt.Type }

func (e marketplaceEvent) Event() *types.Event { return e.evt }

func newMarketplaceEvent(eventType string, m *Marketplace) *types.Event {
	attrs := map[string]string{
		"id":             hex.EncodeToString(m.ID[:]),
		"authority":      hex.EncodeToString(m.Authority[:]),
		"feeBasisPoints": strconv.FormatUint(uint64(m.FeeBasisPoints), 10),
		"paused":         strconv.FormatBool(m.Paused),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newProductEvent(eventType string, p *Product) *types.Event {
	attrs := map[string]string{
		"id":          hex.EncodeToString(p.ID[:]),
		"marketplace": hex.EncodeToString(p.Marketplace[:]),
		"seller":      hex.EncodeToString(p.Seller[:]),
		"price":       strconv.FormatUint(p.Price, 10),
		"quantity":    strconv.FormatUint(p.Quantity, 10),
		"currency":    p.Currency.String(),
		"status":      p.Status.String(),
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
