package pubx

import (
	"encoding/json"
)

// SendQueue buffers serialized payload fragments per destination URL until
// the next flush. The per-URL fragment list is created lazily on first
// reference, so callers never need an exists check.
type SendQueue struct {
	pending map[string][]json.RawMessage
}

func NewSendQueue() *SendQueue {
	return &SendQueue{
		pending: make(map[string][]json.RawMessage),
	}
}

// Enqueue appends a fragment to the endpoint's pending list, preserving
// arrival order.
func (q *SendQueue) Enqueue(endpoint string, fragment json.RawMessage) {
	q.pending[endpoint] = append(q.pending[endpoint], fragment)
}

// Drain removes and returns all pending fragments, keyed by endpoint. The
// queue is empty afterwards regardless of what the caller does with the
// result.
func (q *SendQueue) Drain() map[string][]json.RawMessage {
	drained := q.pending
	q.pending = make(map[string][]json.RawMessage)
	return drained
}

// Pending reports the number of fragments queued for endpoint.
func (q *SendQueue) Pending(endpoint string) int {
	return len(q.pending[endpoint])
}
