package escrow

import (
	"encoding/hex"
	"strconv"

	"marketescrow/core/types"
)

const (
	EventTypeEscrowCreated   = "escrow.created"
	EventTypeEscrowFunded    = "escrow.funded"
	EventTypeEscrowShipped   = "escrow.shipped"
	EventTypeEscrowCompleted = "escrow.completed"
	EventTypeEscrowDisputed  = "escrow.disputed"
	EventTypeEscrowCancelled = "escrow.cancelled"
	EventTypeEscrowResolved  = "escrow.resolved"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e, "") }

// NewFundedEvent returns the payload emitted once the buyer has funded custody.
func NewFundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowFunded, e, "") }

func NewShippedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowShipped, e, "") }

// NewCompletedEvent returns the payload for a delivery confirmation that paid
// the seller.
func NewCompletedEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCompleted, e, "")
}

func NewDisputedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowDisputed, e, "") }

// NewCancelledEvent returns the payload for a buyer cancellation. Funded
// escrows have been refunded when it fires.
func NewCancelledEvent(e *Escrow) *types.Event {
	return newEscrowEvent(EventTypeEscrowCancelled, e, "")
}

// NewResolvedEvent returns the payload emitted when the marketplace authority
// settles a dispute. outcome is "seller" or "buyer".
func NewResolvedEvent(e *Escrow, outcome string) *types.Event {
	return newEscrowEvent(EventTypeEscrowResolved, e, outcome)
}

func newEscrowEvent(eventType string, e *Escrow, outcome string) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(e.ID[:])
	attrs["marketplace"] = hex.EncodeToString(e.Marketplace[:])
	attrs["buyer"] = hex.EncodeToString(e.Buyer[:])
	attrs["seller"] = hex.EncodeToString(e.Seller[:])
	attrs["product"] = hex.EncodeToString(e.Product[:])
	attrs["quantity"] = strconv.FormatUint(e.Quantity, 10)
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	attrs["currency"] = e.Currency.String()
	attrs["status"] = e.Status.String()
	attrs["updatedAt"] = strconv.FormatInt(e.UpdatedAt, 10)
	if e.TrackingID != "" {
		attrs["trackingId"] = e.TrackingID
	}
	if e.DisputeReason != "" {
		attrs["reason"] = e.DisputeReason
	}
	if e.DisputedBy != ([20]byte{}) {
		attrs["disputedBy"] = hex.EncodeToString(e.DisputedBy[:])
	}
	if outcome != "" {
		attrs["outcome"] = outcome
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
