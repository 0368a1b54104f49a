// Package custody derives escrow-owned addresses that no private key can
// control, and reconstructs the release proof that lets the runtime move funds
// out of them.
package custody

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	seedPrefix = "escrow"
	domainTag  = "custody-derived-address"
)

// DefaultProgramID scopes custody addresses when no program id is configured.
var DefaultProgramID = func() [20]byte {
	var id [20]byte
	copy(id[:], ethcrypto.Keccak256([]byte("marketescrow/escrow-program"))[12:])
	return id
}()

var (
	// ErrNoValidNonce is returned when every nonce in [0, 255] lands on the
	// curve. The probability is about 2^-256.
	ErrNoValidNonce = errors.New("custody: no valid nonce for seeds")
	// ErrInvalidNonce is returned by Prove when the nonce does not produce an
	// off-curve address for the seeds.
	ErrInvalidNonce = errors.New("custody: nonce does not derive a custody address")
)

// Seeds is the stable tuple an escrow custody address is derived from.
type Seeds struct {
	Marketplace [20]byte
	Buyer       [20]byte
	Product     [20]byte
}

// Bytes returns "escrow" || marketplace || buyer || product.
func (s Seeds) Bytes() []byte {
	buf := make([]byte, 0, len(seedPrefix)+60)
	buf = append(buf, seedPrefix...)
	buf = append(buf, s.Marketplace[:]...)
	buf = append(buf, s.Buyer[:]...)
	buf = append(buf, s.Product[:]...)
	return buf
}

// Deriver derives custody addresses scoped to a program identifier so two
// deployments never share custody accounts.
type Deriver struct {
	programID [20]byte
}

// NewDeriver returns a deriver bound to the supplied program identifier.
func NewDeriver(programID [20]byte) *Deriver {
	return &Deriver{programID: programID}
}

// ProgramID returns the identifier the deriver was constructed with.
func (d *Deriver) ProgramID() [20]byte { return d.programID }

// Derive searches nonces from 255 down to 0 and returns the first address that
// is not a valid curve point, together with that nonce.
func (d *Deriver) Derive(seeds Seeds) ([20]byte, uint8, error) {
	for n := 255; n >= 0; n-- {
		addr, ok := d.candidate(seeds, uint8(n))
		if ok {
			return addr, uint8(n), nil
		}
	}
	return [20]byte{}, 0, ErrNoValidNonce
}

// Prove re-derives the custody address for the stored nonce and returns the
// capability that authorizes transfers out of it.
func (d *Deriver) Prove(seeds Seeds, nonce uint8) (ReleaseProof, error) {
	addr, ok := d.candidate(seeds, nonce)
	if !ok {
		return ReleaseProof{}, fmt.Errorf("%w: nonce %d", ErrInvalidNonce, nonce)
	}
	return ReleaseProof{addr: addr, nonce: nonce}, nil
}

func (d *Deriver) candidate(seeds Seeds, nonce uint8) ([20]byte, bool) {
	h := ethcrypto.Keccak256(seeds.Bytes(), []byte{nonce}, d.programID[:], []byte(domainTag))
	var addr [20]byte
	if onCurve(h) {
		return addr, false
	}
	copy(addr[:], h[12:])
	return addr, true
}

var curveB = big.NewInt(7)

// onCurve reports whether x has a matching y on secp256k1.
func onCurve(xBytes []byte) bool {
	p := ethcrypto.S256().Params().P
	x := new(big.Int).SetBytes(xBytes)
	if x.Cmp(p) >= 0 {
		return false
	}
	rhs := new(big.Int).Exp(x, big.NewInt(3), p)
	rhs.Add(rhs, curveB)
	rhs.Mod(rhs, p)
	return new(big.Int).ModSqrt(rhs, p) != nil
}

// ReleaseProof authorizes outbound transfers from exactly one custody address.
// It can only be obtained from Deriver.Prove.
type ReleaseProof struct {
	addr  [20]byte
	nonce uint8
}

// Address returns the custody address the proof is bound to.
func (p ReleaseProof) Address() [20]byte { return p.addr }

// Nonce returns the nonce used to reconstruct the proof.
func (p ReleaseProof) Nonce() uint8 { return p.nonce }

// Authorizes reports whether the proof covers addr.
func (p ReleaseProof) Authorizes(addr [20]byte) bool {
	return p.addr != ([20]byte{}) && p.addr == addr
}
