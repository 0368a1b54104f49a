package state

import (
	"fmt"

	"marketescrow/native/escrow"
)

var escrowPrefix = []byte("escrow/")

func escrowKey(id [20]byte) []byte {
	return append(append([]byte{}, escrowPrefix...), id[:]...)
}

// EscrowPut stores the escrow record in its fixed layout under its custody
// address.
func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	if e == nil {
		return fmt.Errorf("state: nil escrow")
	}
	encoded, err := escrow.EncodeEscrow(e)
	if err != nil {
		return err
	}
	return m.db.Put(escrowKey(e.ID), encoded)
}

// EscrowGet loads the escrow stored under id.
func (m *Manager) EscrowGet(id [20]byte) (*escrow.Escrow, bool, error) {
	data, ok, err := m.get(escrowKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	esc, err := escrow.DecodeEscrow(id, data)
	if err != nil {
		return nil, false, err
	}
	return esc, true, nil
}

// Escrows visits every stored escrow in key order.
func (m *Manager) Escrows(fn func(*escrow.Escrow) error) error {
	return m.db.Iterate(escrowPrefix, func(key, value []byte) error {
		var id [20]byte
		copy(id[:], key[len(escrowPrefix):])
		esc, err := escrow.DecodeEscrow(id, value)
		if err != nil {
			return err
		}
		return fn(esc)
	})
}
