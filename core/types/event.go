package types

// Event represents a typed event emitted during state transitions. Sequence is
// assigned when the event is appended to the node's event log.
type Event struct {
	Sequence   uint64            `json:"sequence,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
