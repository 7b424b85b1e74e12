package pubx

import (
	"net/url"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/pubxai/analytics-client-go/metrics"
	"github.com/pubxai/analytics-client-go/util/hashutil"
)

type fakeEnvironment struct {
	userAgent   string
	platform    string
	location    *url.URL
	userIdKeys  []string
	consentKeys []string
}

func newFakeEnvironment() *fakeEnvironment {
	loc, _ := url.Parse("https://news.example.com/sports/page?ref=home")
	return &fakeEnvironment{
		userAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		platform:    "MacIntel",
		location:    loc,
		userIdKeys:  []string{"pubcid", "idl_env"},
		consentKeys: []string{"gdpr", "usp"},
	}
}

func (e *fakeEnvironment) UserAgent() string     { return e.userAgent }
func (e *fakeEnvironment) Platform() string      { return e.platform }
func (e *fakeEnvironment) Location() *url.URL    { return e.location }
func (e *fakeEnvironment) UserIDKeys() []string  { return e.userIdKeys }
func (e *fakeEnvironment) ConsentKeys() []string { return e.consentKeys }

type fakeStorage map[string]string

func (s fakeStorage) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

type fakeSlotLookup map[string]string

func (s fakeSlotLookup) GptSlotCode(adUnitCode string) string {
	return s[adUnitCode]
}

// beaconRecorder captures every beacon call without performing any I/O.
type beaconRecorder struct {
	calls []beaconCall
	// reject makes every send report failure.
	reject bool
}

type beaconCall struct {
	endpoint string
	payload  []byte
}

func (b *beaconRecorder) send(endpoint string, payload []byte) bool {
	b.calls = append(b.calls, beaconCall{endpoint: endpoint, payload: payload})
	return !b.reject
}

// newTestEngine wires an engine over fresh fakes. The returned queue is the
// one the engine enqueues into.
func newTestEngine(opts Options, hasher Hasher) (*Engine, *AuctionStore, *SendQueue) {
	if hasher == nil {
		hasher = hashutil.Hash53
	}
	optionsFn := func() Options { return opts }
	store := NewAuctionStore(newFakeEnvironment(), fakeStorage{}, func() InitOptions {
		return InitOptions{SamplingRate: opts.SamplingRate, Pubxid: opts.Pubxid, HostName: opts.HostName}
	})
	queue := NewSendQueue()
	engine := NewEngine(store, queue, NewExtractor(fakeSlotLookup{}), hasher, optionsFn, newTestMetrics())
	return engine, store, queue
}

func newTestMetrics() *metrics.AgentMetrics {
	return metrics.NewAgentMetrics(gometrics.NewRegistry())
}

func testOptions() Options {
	return Options{
		Pubxid:        "pub-42",
		HostName:      "api.pbxai.com",
		SamplingRate:  1,
		PrebidVersion: "v8.52.0",
	}
}
