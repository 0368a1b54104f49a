package state

import (
	"bytes"
	"errors"
	"sort"

	"marketescrow/storage"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// Journal buffers writes over a base database. Reads see buffered writes
// first. Commit flushes everything as one atomic batch; Discard drops it.
type Journal struct {
	base   storage.Database
	writes map[string]journalEntry
}

// NewJournal opens an empty overlay on base.
func NewJournal(base storage.Database) *Journal {
	return &Journal{base: base, writes: make(map[string]journalEntry)}
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	if entry, ok := j.writes[string(key)]; ok {
		if entry.deleted {
			return nil, storage.ErrNotFound
		}
		return append([]byte{}, entry.value...), nil
	}
	return j.base.Get(key)
}

func (j *Journal) Put(key []byte, value []byte) error {
	j.writes[string(key)] = journalEntry{value: append([]byte{}, value...)}
	return nil
}

func (j *Journal) Delete(key []byte) error {
	j.writes[string(key)] = journalEntry{deleted: true}
	return nil
}

// Write buffers ops; nothing reaches the base until Commit.
func (j *Journal) Write(ops []storage.Op) error {
	for _, op := range ops {
		if op.Value == nil {
			_ = j.Delete(op.Key)
			continue
		}
		_ = j.Put(op.Key, op.Value)
	}
	return nil
}

// Iterate merges buffered writes with the base view in ascending key order.
func (j *Journal) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	return j.IterateFrom(prefix, nil, fn)
}

func (j *Journal) IterateFrom(prefix, start []byte, fn func(key, value []byte) error) error {
	seek := string(storage.SeekKey(prefix, start))
	merged := make(map[string][]byte)
	if err := j.base.IterateFrom(prefix, start, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	}); err != nil {
		return err
	}
	for k, entry := range j.writes {
		if k < seek || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if entry.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = entry.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), append([]byte{}, merged[k]...)); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of buffered keys.
func (j *Journal) Pending() int { return len(j.writes) }

// Commit writes all buffered mutations to the base in a single batch and
// clears the overlay.
func (j *Journal) Commit() error {
	if j == nil {
		return errors.New("state: nil journal")
	}
	if len(j.writes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(j.writes))
	for k := range j.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ops := make([]storage.Op, 0, len(keys))
	for _, k := range keys {
		entry := j.writes[k]
		op := storage.Op{Key: []byte(k)}
		if !entry.deleted {
			op.Value = entry.value
		}
		ops = append(ops, op)
	}
	if err := j.base.Write(ops); err != nil {
		return err
	}
	j.writes = make(map[string]journalEntry)
	return nil
}

// Discard drops every buffered mutation.
func (j *Journal) Discard() {
	j.writes = make(map[string]journalEntry)
}

// Close leaves the base database open; its owner closes it.
func (j *Journal) Close() {}
