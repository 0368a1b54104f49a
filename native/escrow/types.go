package escrow

import (
	"fmt"

	"marketescrow/core/types"
	"marketescrow/native/custody"
)

// EscrowStatus represents the lifecycle states of a marketplace escrow.
type EscrowStatus uint8

const (
	EscrowCreated EscrowStatus = iota
	EscrowFunded
	EscrowShipped
	EscrowCompleted
	EscrowDisputed
	EscrowCancelled
	EscrowRefunded
)

const (
	// MaxTrackingIDLength bounds the shipment tracking reference in bytes.
	MaxTrackingIDLength = 50
	// MaxDisputeReasonLength bounds the dispute reason in bytes.
	MaxDisputeReasonLength = 200
)

// Valid reports whether the status value is within the supported range.
func (s EscrowStatus) Valid() bool {
	return s <= EscrowRefunded
}

// Terminal reports whether no further transition can leave the status.
func (s EscrowStatus) Terminal() bool {
	switch s {
	case EscrowCompleted, EscrowCancelled, EscrowRefunded:
		return true
	default:
		return false
	}
}

// HoldsFunds reports whether the custody address must hold the escrow amount
// while the record is in this status.
func (s EscrowStatus) HoldsFunds() bool {
	switch s {
	case EscrowFunded, EscrowShipped, EscrowDisputed:
		return true
	default:
		return false
	}
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowCreated:
		return "created"
	case EscrowFunded:
		return "funded"
	case EscrowShipped:
		return "shipped"
	case EscrowCompleted:
		return "completed"
	case EscrowDisputed:
		return "disputed"
	case EscrowCancelled:
		return "cancelled"
	case EscrowRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Escrow is the persistent record for one (marketplace, buyer, product)
// purchase. ID is the custody address that holds the funds; it is the storage
// key and is not part of the encoded record.
type Escrow struct {
	ID            [20]byte
	Marketplace   [20]byte
	Buyer         [20]byte
	Seller        [20]byte
	Product       [20]byte
	Quantity      uint64
	Amount        uint64
	Currency      types.Currency
	Status        EscrowStatus
	CreatedAt     int64
	UpdatedAt     int64
	Bump          uint8
	TrackingID    string
	DisputeReason string
	DisputedBy    [20]byte
}

// Clone returns a copy callers can mutate freely.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Seeds returns the tuple the custody address is derived from.
func (e *Escrow) Seeds() custody.Seeds {
	return custody.Seeds{Marketplace: e.Marketplace, Buyer: e.Buyer, Product: e.Product}
}

// Product is the read-only view of a listing consumed at creation.
type Product struct {
	ID          [20]byte
	Marketplace [20]byte
	Seller      [20]byte
	Price       uint64
	Currency    types.Currency
}

// Marketplace is the read-only view of the marketplace consumed when a dispute
// is resolved.
type Marketplace struct {
	ID        [20]byte
	Authority [20]byte
}
