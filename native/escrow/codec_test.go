package escrow

import (
	"strings"
	"testing"

	"marketescrow/core/types"
)

func TestCodecLayout(t *testing.T) {
	esc := &Escrow{
		ID:            newTestAddress(0x01),
		Marketplace:   newTestAddress(0x02),
		Buyer:         newTestAddress(0x03),
		Seller:        newTestAddress(0x04),
		Product:       newTestAddress(0x05),
		Quantity:      3,
		Amount:        300,
		Currency:      types.CurrencyUSDT,
		Status:        EscrowDisputed,
		CreatedAt:     -5,
		UpdatedAt:     1_700_000_123,
		Bump:          254,
		TrackingID:    "1Z999",
		DisputeReason: "damaged",
		DisputedBy:    newTestAddress(0x03),
	}
	raw, err := EncodeEscrow(esc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := headerSize + 1 + 5 + 1 + 7 + 20; len(raw) != want {
		t.Fatalf("encoded length %d, want %d", len(raw), want)
	}
	// quantity sits right after the four keys, little endian.
	if raw[80] != 3 || raw[81] != 0 {
		t.Fatalf("quantity not little endian at offset 80: %x", raw[80:88])
	}
	if raw[96] != byte(types.CurrencyUSDT) || raw[97] != byte(EscrowDisputed) {
		t.Fatalf("currency/status tags misplaced")
	}
	decoded, err := DecodeEscrow(esc.ID, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *decoded != *esc {
		t.Fatalf("decoded record mismatch:\n got %+v\nwant %+v", decoded, esc)
	}
}

func TestCodecRejectsOversizedText(t *testing.T) {
	if _, err := EncodeEscrow(&Escrow{TrackingID: strings.Repeat("x", 51)}); err == nil {
		t.Fatalf("expected tracking id error")
	}
	if _, err := EncodeEscrow(&Escrow{DisputeReason: strings.Repeat("x", 201)}); err == nil {
		t.Fatalf("expected reason error")
	}
	longest := &Escrow{TrackingID: strings.Repeat("x", 50), DisputeReason: strings.Repeat("y", 200)}
	raw, err := EncodeEscrow(longest)
	if err != nil {
		t.Fatalf("encode max: %v", err)
	}
	if len(raw) != MaxEncodedSize {
		t.Fatalf("max record %d bytes, want %d", len(raw), MaxEncodedSize)
	}
}

func TestDecodeRejectsCorruptRecords(t *testing.T) {
	raw, err := EncodeEscrow(&Escrow{Amount: 1, Quantity: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeEscrow([20]byte{}, raw[:len(raw)-1]); err == nil {
		t.Fatalf("expected truncated record error")
	}
	bad := append([]byte(nil), raw...)
	bad[97] = 42
	if _, err := DecodeEscrow([20]byte{}, bad); err == nil {
		t.Fatalf("expected invalid status error")
	}
	bad = append([]byte(nil), raw...)
	bad[headerSize] = MaxTrackingIDLength + 1
	if _, err := DecodeEscrow([20]byte{}, bad); err == nil {
		t.Fatalf("expected oversized tracking prefix error")
	}
}
