package state

import (
	"errors"

	errs "marketescrow/core/errors"
)

var (
	noncePrefix      = []byte("nonce/")
	errStopIteration = errors.New("state: stop iteration")

	// ErrNonceReplayed is returned when a signer reuses a request nonce or
	// presents one lower than the last accepted value.
	ErrNonceReplayed = errs.New("auth", 6018, errs.KindAuthorization, "request nonce already used")
)

func nonceKey(signer [20]byte) []byte {
	return append(append([]byte{}, noncePrefix...), signer[:]...)
}

// LastNonce returns the highest request nonce accepted for signer.
func (m *Manager) LastNonce(signer [20]byte) (uint64, error) {
	n, _, err := m.getUint64(nonceKey(signer))
	return n, err
}

// ConsumeNonce accepts nonce for signer when it is strictly greater than every
// previously accepted nonce.
func (m *Manager) ConsumeNonce(signer [20]byte, nonce uint64) error {
	last, seen, err := m.getUint64(nonceKey(signer))
	if err != nil {
		return err
	}
	if seen && nonce <= last {
		return errs.Wrapf(ErrNonceReplayed, "nonce %d, last accepted %d", nonce, last)
	}
	return m.putUint64(nonceKey(signer), nonce)
}
