package reputation

import (
	"encoding/hex"
	"strconv"

	"marketescrow/core/types"
)

const (
	EventTypeUserInitialized = "reputation.user.initialized"
	EventTypeReviewCreated   = "reputation.review.created"
	EventTypeUserVerified    = "reputation.user.verified"
	EventTypeSaleRecorded    = "reputation.sale.recorded"
	EventTypePurchaseRecord  = "reputation.purchase.recorded"
)

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string { return e.evt.Type }

func (e reputationEvent) Event() *types.Event { return e.evt }

func newUserEvent(eventType string, u *UserReputation) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"user":           hex.EncodeToString(u.User[:]),
		"reviewCount":    strconv.FormatUint(u.ReviewCount, 10),
		"totalSales":     strconv.FormatUint(u.TotalSales, 10),
		"totalPurchases": strconv.FormatUint(u.TotalPurchases, 10),
		"verified":       strconv.FormatBool(u.Verified),
	}}
}

// NewReviewCreatedEvent returns the canonical payload for a new review.
func NewReviewCreatedEvent(r *Review) *types.Event {
	attrs := map[string]string{
		"author":    hex.EncodeToString(r.Author[:]),
		"recipient": hex.EncodeToString(r.Recipient[:]),
		"rating":    strconv.FormatUint(uint64(r.Rating), 10),
	}
	if r.TransactionRef != ([20]byte{}) {
		attrs["transaction"] = hex.EncodeToString(r.TransactionRef[:])
	}
	return &types.Event{Type: EventTypeReviewCreated, Attributes: attrs}
}
