package pubx

import (
	"bytes"
	"encoding/json"

	"github.com/golang/glog"

	"github.com/pubxai/analytics-client-go/metrics"
)

// defaultMaxBatchBytes is the serialized-size ceiling for one beacon call.
const defaultMaxBatchBytes = int64(64 * 1024)

// Transport drains the send queue into byte-bounded batches and ships each
// batch through the beacon. Delivery is fire-and-forget: the queue is cleared
// whether or not the beacon accepted a batch.
type Transport struct {
	queue   *SendQueue
	beacon  Beacon
	limit   func() int64
	metrics *metrics.AgentMetrics
}

func NewTransport(queue *SendQueue, beacon Beacon, limit func() int64, am *metrics.AgentMetrics) *Transport {
	return &Transport{
		queue:   queue,
		beacon:  beacon,
		limit:   limit,
		metrics: am,
	}
}

// Flush partitions every endpoint's pending fragments into batches no larger
// than the ceiling and sends each one. Invoked synchronously on the page-hide
// transition, and optionally on a timer in headless sessions.
func (t *Transport) Flush() {
	ceiling := t.limit()
	if ceiling <= 0 {
		ceiling = defaultMaxBatchBytes
	}

	for endpoint, fragments := range t.queue.Drain() {
		for _, batch := range splitBatches(fragments, ceiling) {
			body := joinFragments(batch)
			if !t.beacon(endpoint, body) {
				t.metrics.BeaconErrorMeter.Mark(1)
				glog.Warningf("[pubx] beacon rejected batch of %d events for %s", len(batch), endpoint)
				continue
			}
			t.metrics.BatchesSentMeter.Mark(1)
			t.metrics.BytesSentMeter.Mark(int64(len(body)))
		}
	}
}

// splitBatches walks the fragment sequence accumulating a batch, looking one
// fragment ahead: when adding the next fragment would push the serialized
// batch past the ceiling, the accumulated batch is emitted and the next
// fragment starts a new one. A lone fragment that alone exceeds the ceiling
// is still emitted as a batch of one; see TestFlushOversizedFragment.
func splitBatches(fragments []json.RawMessage, ceiling int64) [][]json.RawMessage {
	var batches [][]json.RawMessage
	start := 0
	for i := 0; i < len(fragments); i++ {
		if i == len(fragments)-1 {
			batches = append(batches, fragments[start:])
			break
		}
		if serializedSize(fragments[start:i+2]) > ceiling {
			batches = append(batches, fragments[start:i+1])
			start = i + 1
		}
	}
	return batches
}

// serializedSize is the byte length of the fragments rendered as a JSON
// array, without building the array.
func serializedSize(fragments []json.RawMessage) int64 {
	size := int64(2) // brackets
	for i, f := range fragments {
		if i > 0 {
			size++ // comma
		}
		size += int64(len(f))
	}
	return size
}

func joinFragments(fragments []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, f := range fragments {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(f)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
