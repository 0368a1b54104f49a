package types

// Signer is the identity of the party invoking an operation. Callers obtain a
// Signer only after the transport layer has verified the request signature;
// native modules never learn the caller from ambient state.
type Signer struct {
	addr [20]byte
}

// NewSigner wraps an authenticated address.
func NewSigner(addr [20]byte) Signer { return Signer{addr: addr} }

// Address returns the signer's 20-byte key.
func (s Signer) Address() [20]byte { return s.addr }

// IsZero reports whether the signer carries no identity.
func (s Signer) IsZero() bool { return s.addr == ([20]byte{}) }

// Authorizes reports whether the signer may move value out of addr. A signer
// only ever authorizes its own account.
func (s Signer) Authorizes(addr [20]byte) bool {
	return !s.IsZero() && s.addr == addr
}
