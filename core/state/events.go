package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"marketescrow/core/types"
)

var (
	eventPrefix   = []byte("events/")
	eventSeqKey   = []byte("meta/event-seq")
	maxEventsPage = 1000
)

func eventKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, eventPrefix...), seq)
}

// AppendEvent assigns the next sequence number to evt and persists it. Event
// attributes are maps, so the log uses JSON rather than RLP.
func (m *Manager) AppendEvent(evt *types.Event) (uint64, error) {
	last, _, err := m.getUint64(eventSeqKey)
	if err != nil {
		return 0, err
	}
	seq := last + 1
	stored := *evt
	stored.Sequence = seq
	encoded, err := json.Marshal(&stored)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(eventKey(seq), encoded); err != nil {
		return 0, err
	}
	if err := m.putUint64(eventSeqKey, seq); err != nil {
		return 0, err
	}
	evt.Sequence = seq
	return seq, nil
}

// Events returns up to limit events with sequence numbers greater than after.
func (m *Manager) Events(after uint64, limit int) ([]types.Event, error) {
	if limit <= 0 || limit > maxEventsPage {
		limit = maxEventsPage
	}
	out := make([]types.Event, 0)
	if after == ^uint64(0) {
		return out, nil
	}
	err := m.db.IterateFrom(eventPrefix, eventKey(after+1), func(key, value []byte) error {
		var evt types.Event
		if err := json.Unmarshal(value, &evt); err != nil {
			return err
		}
		out = append(out, evt)
		if len(out) >= limit {
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return out, nil
}
