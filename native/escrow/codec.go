package escrow

import (
	"encoding/binary"
	"fmt"

	"marketescrow/core/types"
)

// Record layout (little endian):
//
//	marketplace[20] buyer[20] seller[20] product[20]
//	quantity u64 amount u64 currency u8 status u8
//	created_at i64 updated_at i64 bump u8
//	tracking_len u8 tracking[..50]
//	reason_len u8 reason[..200]
//	disputed_by[20]
const headerSize = 4*20 + 8 + 8 + 1 + 1 + 8 + 8 + 1

// MaxEncodedSize is the largest possible encoded record.
const MaxEncodedSize = headerSize + 1 + MaxTrackingIDLength + 1 + MaxDisputeReasonLength + 20

// EncodeEscrow serialises the record into its fixed layout.
func EncodeEscrow(e *Escrow) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow codec: nil escrow")
	}
	if len(e.TrackingID) > MaxTrackingIDLength {
		return nil, ErrTrackingIDTooLong
	}
	if len(e.DisputeReason) > MaxDisputeReasonLength {
		return nil, ErrDisputeReasonTooLong
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("escrow codec: invalid status %d", e.Status)
	}
	buf := make([]byte, 0, headerSize+2+len(e.TrackingID)+len(e.DisputeReason)+20)
	buf = append(buf, e.Marketplace[:]...)
	buf = append(buf, e.Buyer[:]...)
	buf = append(buf, e.Seller[:]...)
	buf = append(buf, e.Product[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Quantity)
	buf = binary.LittleEndian.AppendUint64(buf, e.Amount)
	buf = append(buf, byte(e.Currency), byte(e.Status))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.CreatedAt))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.UpdatedAt))
	buf = append(buf, e.Bump)
	buf = append(buf, byte(len(e.TrackingID)))
	buf = append(buf, e.TrackingID...)
	buf = append(buf, byte(len(e.DisputeReason)))
	buf = append(buf, e.DisputeReason...)
	buf = append(buf, e.DisputedBy[:]...)
	return buf, nil
}

// DecodeEscrow parses a record stored under the custody address id.
func DecodeEscrow(id [20]byte, data []byte) (*Escrow, error) {
	if len(data) < headerSize+2+20 {
		return nil, fmt.Errorf("escrow codec: record too short (%d bytes)", len(data))
	}
	e := &Escrow{ID: id}
	off := 0
	for _, dst := range []*[20]byte{&e.Marketplace, &e.Buyer, &e.Seller, &e.Product} {
		copy(dst[:], data[off:off+20])
		off += 20
	}
	e.Quantity = binary.LittleEndian.Uint64(data[off:])
	off += 8
	e.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	e.Currency = types.Currency(data[off])
	e.Status = EscrowStatus(data[off+1])
	off += 2
	e.CreatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	e.UpdatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	e.Bump = data[off]
	off++

	var err error
	if e.TrackingID, off, err = readBounded(data, off, MaxTrackingIDLength); err != nil {
		return nil, fmt.Errorf("escrow codec: tracking id: %w", err)
	}
	if e.DisputeReason, off, err = readBounded(data, off, MaxDisputeReasonLength); err != nil {
		return nil, fmt.Errorf("escrow codec: dispute reason: %w", err)
	}
	if len(data)-off != 20 {
		return nil, fmt.Errorf("escrow codec: unexpected trailer length %d", len(data)-off)
	}
	copy(e.DisputedBy[:], data[off:])

	if !e.Currency.Valid() {
		return nil, fmt.Errorf("escrow codec: invalid currency %d", e.Currency)
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("escrow codec: invalid status %d", e.Status)
	}
	return e, nil
}

func readBounded(data []byte, off, limit int) (string, int, error) {
	if off >= len(data) {
		return "", off, fmt.Errorf("missing length prefix")
	}
	n := int(data[off])
	off++
	if n > limit {
		return "", off, fmt.Errorf("length %d exceeds %d", n, limit)
	}
	if off+n > len(data) {
		return "", off, fmt.Errorf("truncated")
	}
	return string(data[off : off+n]), off + n, nil
}
