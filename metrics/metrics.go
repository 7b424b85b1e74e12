package metrics

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// AgentMetrics carries the module's internal meters. All meters live in the
// supplied registry so an embedding process can attach its own reporter.
type AgentMetrics struct {
	registry metrics.Registry

	BidResponseMeter metrics.Meter
	BidTimeoutMeter  metrics.Meter
	AuctionEndMeter  metrics.Meter
	BidWonMeter      metrics.Meter

	SamplingSkipMeter metrics.Meter

	payloadMeters map[string]metrics.Meter

	BatchesSentMeter metrics.Meter
	BytesSentMeter   metrics.Meter
	BeaconErrorMeter metrics.Meter
}

func NewAgentMetrics(registry metrics.Registry) *AgentMetrics {
	m := &AgentMetrics{
		registry:          registry,
		BidResponseMeter:  metrics.GetOrRegisterMeter("events.bid_response", registry),
		BidTimeoutMeter:   metrics.GetOrRegisterMeter("events.bid_timeout", registry),
		AuctionEndMeter:   metrics.GetOrRegisterMeter("events.auction_end", registry),
		BidWonMeter:       metrics.GetOrRegisterMeter("events.bid_won", registry),
		SamplingSkipMeter: metrics.GetOrRegisterMeter("dispatch.sampling_skips", registry),
		payloadMeters:     make(map[string]metrics.Meter),
		BatchesSentMeter:  metrics.GetOrRegisterMeter("transport.batches_sent", registry),
		BytesSentMeter:    metrics.GetOrRegisterMeter("transport.bytes_sent", registry),
		BeaconErrorMeter:  metrics.GetOrRegisterMeter("transport.beacon_errors", registry),
	}
	return m
}

// PayloadMeter returns the enqueue meter for an event kind, registering it on
// first use.
func (m *AgentMetrics) PayloadMeter(kind string) metrics.Meter {
	if meter, ok := m.payloadMeters[kind]; ok {
		return meter
	}
	meter := metrics.GetOrRegisterMeter(fmt.Sprintf("dispatch.%s.payloads_enqueued", kind), m.registry)
	m.payloadMeters[kind] = meter
	return meter
}

// Registry exposes the backing registry for reporters.
func (m *AgentMetrics) Registry() metrics.Registry {
	return m.registry
}
