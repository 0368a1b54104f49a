// Package indexer keeps a queryable SQLite projection of escrow records so
// callers can list escrows by party without scanning state.
package indexer

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"marketescrow/core/types"
	"marketescrow/native/escrow"
)

// DefaultListLimit caps ListByParty when the caller passes no limit.
const DefaultListLimit = 100

// Store is the SQLite-backed projection.
type Store struct {
	db *sql.DB
}

// Entry is one indexed escrow row.
type Entry struct {
	ID          [20]byte
	Marketplace [20]byte
	Buyer       [20]byte
	Seller      [20]byte
	Product     [20]byte
	Quantity    uint64
	Amount      uint64
	Currency    types.Currency
	Status      escrow.EscrowStatus
	CreatedAt   int64
	UpdatedAt   int64
}

// Open opens (or creates) the index at path. ":memory:" keeps the index in
// process memory.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; a single connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS escrows (
            id TEXT PRIMARY KEY,
            marketplace TEXT NOT NULL,
            buyer TEXT NOT NULL,
            seller TEXT NOT NULL,
            product TEXT NOT NULL,
            quantity TEXT NOT NULL,
            amount TEXT NOT NULL,
            currency INTEGER NOT NULL,
            status INTEGER NOT NULL,
            created_at INTEGER NOT NULL,
            updated_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS escrows_buyer ON escrows(buyer, created_at);`,
		`CREATE INDEX IF NOT EXISTS escrows_seller ON escrows(seller, created_at);`,
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY,
            type TEXT NOT NULL,
            escrow_id TEXT,
            payload TEXT NOT NULL
        );`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeKey(k [20]byte) string { return hex.EncodeToString(k[:]) }

func decodeKey(s string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("indexer: key length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// Record upserts the current view of an escrow.
func (s *Store) Record(ctx context.Context, e *escrow.Escrow) error {
	if e == nil {
		return errors.New("indexer: nil escrow")
	}
	const stmt = `INSERT INTO escrows (id, marketplace, buyer, seller, product, quantity, amount, currency, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, stmt,
		encodeKey(e.ID), encodeKey(e.Marketplace), encodeKey(e.Buyer), encodeKey(e.Seller), encodeKey(e.Product),
		strconv.FormatUint(e.Quantity, 10), strconv.FormatUint(e.Amount, 10),
		int(e.Currency), int(e.Status), e.CreatedAt, e.UpdatedAt)
	return err
}

// RecordEvent stores a committed event. Replaying an already indexed sequence
// is a no-op.
func (s *Store) RecordEvent(ctx context.Context, evt types.Event) error {
	payload, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	var escrowID sql.NullString
	if id, ok := evt.Attributes["id"]; ok {
		escrowID = sql.NullString{String: id, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (sequence, type, escrow_id, payload) VALUES (?, ?, ?, ?)`,
		int64(evt.Sequence), evt.Type, escrowID, string(payload))
	return err
}

// LastSequence returns the highest indexed event sequence, or zero.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM events`).Scan(&seq); err != nil {
		return 0, err
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// EventTypes returns the event types recorded for an escrow in sequence
// order.
func (s *Store) EventTypes(ctx context.Context, id [20]byte) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type FROM events WHERE escrow_id = ? ORDER BY sequence ASC`, encodeKey(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByParty returns escrows where party is the buyer or the seller, newest
// first.
func (s *Store) ListByParty(ctx context.Context, party [20]byte, limit int) ([]Entry, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	const query = `SELECT id, marketplace, buyer, seller, product, quantity, amount, currency, status, created_at, updated_at
        FROM escrows WHERE buyer = ? OR seller = ? ORDER BY created_at DESC, id ASC LIMIT ?`
	key := encodeKey(party)
	rows, err := s.db.QueryContext(ctx, query, key, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			id, market, buyer, seller, product string
			quantity, amount                   string
			currency, status                   int
			entry                              Entry
		)
		if err := rows.Scan(&id, &market, &buyer, &seller, &product, &quantity, &amount, &currency, &status, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		for _, f := range []struct {
			dst *[20]byte
			src string
		}{{&entry.ID, id}, {&entry.Marketplace, market}, {&entry.Buyer, buyer}, {&entry.Seller, seller}, {&entry.Product, product}} {
			if *f.dst, err = decodeKey(f.src); err != nil {
				return nil, err
			}
		}
		if entry.Quantity, err = strconv.ParseUint(quantity, 10, 64); err != nil {
			return nil, err
		}
		if entry.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, err
		}
		entry.Currency = types.Currency(currency)
		entry.Status = escrow.EscrowStatus(status)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Rebuild indexes every escrow yielded by walk. Existing rows are updated in
// place.
func (s *Store) Rebuild(ctx context.Context, walk func(func(*escrow.Escrow) error) error) (int, error) {
	count := 0
	err := walk(func(e *escrow.Escrow) error {
		if err := s.Record(ctx, e); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
