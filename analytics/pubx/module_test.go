package pubx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubxai/analytics-client-go/analytics"
	"github.com/pubxai/analytics-client-go/config"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		PubxId:        "pub-42",
		HostName:      "api.pbxai.com",
		SamplingRate:  1,
		MaxBatchSize:  "64KB",
		PrebidVersion: "v8.52.0",
	}
}

func TestNewModuleValidation(t *testing.T) {
	env := newFakeEnvironment()

	tests := []struct {
		name string
		cfg  *config.Configuration
		deps Deps
	}{
		{"nil config", nil, Deps{Environment: env}},
		{"empty pubx id", &config.Configuration{HostName: "h"}, Deps{Environment: env}},
		{"empty host", &config.Configuration{PubxId: "p"}, Deps{Environment: env}},
		{"nil environment", testConfig(), Deps{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			module, err := NewModule(tt.cfg, tt.deps)
			assert.Error(t, err)
			assert.Nil(t, module)
		})
	}
}

func TestModulePageHideDrainsQueues(t *testing.T) {
	beacon := &beaconRecorder{}
	module, err := NewModule(testConfig(), Deps{
		Environment: newFakeEnvironment(),
		Beacon:      beacon.send,
	})
	require.NoError(t, err)

	bid := responseBid("a1", "bid-1", 1.5)
	module.LogBidResponse(&analytics.BidResponseEvent{Bid: bid})
	module.LogAuctionEnd(endEvent("a1"))
	module.LogBidWon(&analytics.BidWonEvent{Bid: bid})

	assert.Empty(t, beacon.calls, "nothing ships before the page-hide transition")

	module.OnPageHide()

	require.Len(t, beacon.calls, 2)
	endpoints := map[string]bool{}
	for _, call := range beacon.calls {
		endpoints[call.endpoint] = true
		var events []json.RawMessage
		require.NoError(t, json.Unmarshal(call.payload, &events))
		assert.Len(t, events, 1)
	}
	assert.Equal(t, map[string]bool{winURL: true, auctionURL: true}, endpoints)

	// A second page-hide finds the queues empty.
	module.OnPageHide()
	assert.Len(t, beacon.calls, 2)
}

func TestModuleAllTimeoutScenario(t *testing.T) {
	beacon := &beaconRecorder{}
	module, err := NewModule(testConfig(), Deps{
		Environment: newFakeEnvironment(),
		Beacon:      beacon.send,
	})
	require.NoError(t, err)

	module.LogBidTimeout(&analytics.BidTimeoutEvent{Bids: []analytics.Bid{
		{AuctionId: "a1", BidId: "t1"},
		{AuctionId: "a1", BidId: "t2"},
	}})
	module.LogAuctionEnd(endEvent("a1"))
	module.OnPageHide()

	require.Len(t, beacon.calls, 1)
	assert.Equal(t, auctionURL, beacon.calls[0].endpoint)
}

func TestApplyRemoteConfig(t *testing.T) {
	module, err := NewModule(testConfig(), Deps{
		Environment: newFakeEnvironment(),
		Beacon:      (&beaconRecorder{}).send,
	})
	require.NoError(t, err)

	module.applyRemoteConfig(&RemoteConfig{SamplingRate: 5, MaxBatchSize: "32KB"})
	opts := module.engineOptions()
	assert.Equal(t, 5, opts.SamplingRate)
	assert.Equal(t, int64(32000), module.maxBatchBytes())

	// Invalid updates are ignored.
	module.applyRemoteConfig(&RemoteConfig{SamplingRate: 0, MaxBatchSize: "huge"})
	assert.Equal(t, 5, module.engineOptions().SamplingRate)
	assert.Equal(t, int64(32000), module.maxBatchBytes())

	module.applyRemoteConfig(nil)
	assert.Equal(t, 5, module.engineOptions().SamplingRate)
}

func TestNewHTTPBeacon(t *testing.T) {
	var gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	beacon := NewHTTPBeacon(server.Client())
	ok := beacon(server.URL+"/analytics/auction", []byte(`[{"a":1}]`))

	assert.True(t, ok)
	assert.Equal(t, "text/json", gotContentType)
	assert.Equal(t, `[{"a":1}]`, string(gotBody))
}

func TestNewHTTPBeaconUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	beacon := NewHTTPBeacon(http.DefaultClient)
	assert.False(t, beacon(server.URL, []byte(`[]`)))
}

func TestModuleShutdownFlushes(t *testing.T) {
	beacon := &beaconRecorder{}
	cfg := testConfig()
	// A running flush task must survive repeated shutdowns too.
	cfg.FlushInterval = "1h"
	module, err := NewModule(cfg, Deps{
		Environment: newFakeEnvironment(),
		Beacon:      beacon.send,
	})
	require.NoError(t, err)

	module.LogBidTimeout(&analytics.BidTimeoutEvent{Bids: []analytics.Bid{{AuctionId: "a1", BidId: "t1"}}})
	module.LogAuctionEnd(endEvent("a1"))
	module.Shutdown()

	assert.Len(t, beacon.calls, 1)
	assert.NotPanics(t, func() {
		module.Shutdown()
	})
}
