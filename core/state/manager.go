package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"marketescrow/core/types"
	"marketescrow/storage"
)

// Manager provides typed access to node state on top of any storage backend.
// Wrap a Journal to make a group of writes atomic.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	kvPrefix            = []byte("kv/")
	nativeBalancePrefix = []byte("balance/native/")
	holdingPrefix       = []byte("holding/")
)

func kvKey(key []byte) []byte {
	return append(append([]byte{}, kvPrefix...), ethcrypto.Keccak256(key)...)
}

func nativeBalanceKey(addr [20]byte) []byte {
	return append(append([]byte{}, nativeBalancePrefix...), addr[:]...)
}

func holdingKey(owner [20]byte, currency types.Currency) []byte {
	buf := make([]byte, 0, len(holdingPrefix)+2+20)
	buf = append(buf, holdingPrefix...)
	buf = append(buf, byte(currency), '/')
	return append(buf, owner[:]...)
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (m *Manager) getUint64(key []byte) (uint64, bool, error) {
	data, ok, err := m.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(data) != 8 {
		return 0, false, fmt.Errorf("state: corrupt counter at %x", key)
	}
	return binary.BigEndian.Uint64(data), true, nil
}

func (m *Manager) putUint64(key []byte, v uint64) error {
	return m.db.Put(key, binary.BigEndian.AppendUint64(nil, v))
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so callers may use arbitrary key material.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.get(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// NativeBalance returns the native balance of addr; unknown accounts hold zero.
func (m *Manager) NativeBalance(addr [20]byte) (uint64, error) {
	bal, _, err := m.getUint64(nativeBalanceKey(addr))
	return bal, err
}

// SetNativeBalance overwrites the native balance of addr.
func (m *Manager) SetNativeBalance(addr [20]byte, amount uint64) error {
	if amount == 0 {
		return m.db.Delete(nativeBalanceKey(addr))
	}
	return m.putUint64(nativeBalanceKey(addr), amount)
}

// Holding returns the token balance of owner and whether the holding has been
// opened.
func (m *Manager) Holding(owner [20]byte, currency types.Currency) (uint64, bool, error) {
	return m.getUint64(holdingKey(owner, currency))
}

// SetHolding writes a token holding. Writing a zero balance keeps the holding
// open.
func (m *Manager) SetHolding(owner [20]byte, currency types.Currency, amount uint64) error {
	if !currency.IsToken() {
		return fmt.Errorf("state: %s has no token holdings", currency)
	}
	return m.putUint64(holdingKey(owner, currency), amount)
}
