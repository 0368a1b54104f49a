package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// ErrKeystoreAddress is returned when a decrypted key does not match the
// address recorded in the keystore file.
var ErrKeystoreAddress = errors.New("crypto: keystore address mismatch")

// KeystoreCost selects the scrypt work factor for new keystores.
type KeystoreCost struct {
	N int
	P int
}

var (
	StandardCost = KeystoreCost{N: keystore.StandardScryptN, P: keystore.StandardScryptP}
	// LightCost is meant for tests and throwaway keys.
	LightCost = KeystoreCost{N: keystore.LightScryptN, P: keystore.LightScryptP}
)

// SaveToKeystore encrypts key into a v3 keystore file at path using the
// standard scrypt cost.
func SaveToKeystore(path string, key *PrivateKey, passphrase string) error {
	return SaveToKeystoreWithCost(path, key, passphrase, StandardCost)
}

// SaveToKeystoreWithCost is SaveToKeystore with an explicit scrypt cost. The
// file is written to a temporary name first and renamed into place.
func SaveToKeystoreWithCost(path string, key *PrivateKey, passphrase string, cost KeystoreCost) error {
	if key == nil || key.PrivateKey == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errors.New("crypto: empty keystore path")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	blob, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}, passphrase, cost.N, cost.P)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts the keystore at path.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, err
	}
	if ethcrypto.PubkeyToAddress(decrypted.PrivateKey.PublicKey) != decrypted.Address {
		return nil, ErrKeystoreAddress
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
