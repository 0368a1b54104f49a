package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"marketescrow/storage"
)

// StateVersion is the layout of escrow, marketplace and reputation records
// this binary reads and writes.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")

	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// ReadStateVersion returns the stamped schema version. ok is false for a
// database that was never stamped.
func ReadStateVersion(db storage.Database) (version uint32, ok bool, err error) {
	raw, err := db.Get(stateVersionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 4 {
		return 0, false, fmt.Errorf("state: version record has %d bytes", len(raw))
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

// WriteStateVersion stamps db with version.
func WriteStateVersion(db storage.Database, version uint32) error {
	return db.Put(stateVersionKey, binary.BigEndian.AppendUint32(nil, version))
}

// EnsureStateVersion stamps an empty database and rejects one written by a
// different layout unless allowMigrate is set.
func EnsureStateVersion(db storage.Database, allowMigrate bool) error {
	if db == nil {
		return fmt.Errorf("state: database must not be nil")
	}
	version, ok, err := ReadStateVersion(db)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		return WriteStateVersion(db, StateVersion)
	case version == StateVersion, allowMigrate:
		return nil
	default:
		return fmt.Errorf("%w: on-disk=%d expected=%d", ErrStateVersionMismatch, version, StateVersion)
	}
}
