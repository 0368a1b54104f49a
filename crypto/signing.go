package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size of a recoverable secp256k1 signature.
const SignatureLength = crypto.SignatureLength

var (
	ErrSignatureLength   = errors.New("crypto: signature must be 65 bytes")
	ErrSignatureMismatch = errors.New("crypto: signature does not match signer")
)

// RequestDigest hashes a signed RPC request. The nonce is appended big-endian
// so that identical params can never be replayed under a new nonce.
func RequestDigest(method string, params []byte, nonce uint64) []byte {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	return crypto.Keccak256([]byte(method), params, n[:])
}

// SignRequest produces a 65-byte recoverable signature over the request digest.
func SignRequest(key *PrivateKey, method string, params []byte, nonce uint64) ([]byte, error) {
	if key == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(RequestDigest(method, params, nonce), key.PrivateKey)
}

// RecoverSigner returns the account key that produced sig.
func RecoverSigner(method string, params []byte, nonce uint64, sig []byte) ([20]byte, error) {
	if len(sig) != SignatureLength {
		return [20]byte{}, ErrSignatureLength
	}
	pub, err := crypto.SigToPub(RequestDigest(method, params, nonce), sig)
	if err != nil {
		return [20]byte{}, fmt.Errorf("recover signer: %w", err)
	}
	var key [20]byte
	copy(key[:], crypto.PubkeyToAddress(*pub).Bytes())
	return key, nil
}

// VerifyRequest checks that sig was produced by expected.
func VerifyRequest(expected [20]byte, method string, params []byte, nonce uint64, sig []byte) error {
	recovered, err := RecoverSigner(method, params, nonce, sig)
	if err != nil {
		return err
	}
	if recovered != expected {
		return ErrSignatureMismatch
	}
	return nil
}
