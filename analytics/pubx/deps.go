package pubx

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	gometrics "github.com/rcrowley/go-metrics"
)

// Environment exposes the ambient session signals snapshotted into every new
// auction record. Implementations are expected to be cheap and side-effect
// free; in a browser bridge they read navigator/location, in the replay agent
// they return recorded values.
type Environment interface {
	UserAgent() string
	Platform() string
	Location() *url.URL
	UserIDKeys() []string
	ConsentKeys() []string
}

// Storage is a synchronous key-value lookup over the session's persistent
// store. Used only to read the prior-auction statistics blob.
type Storage interface {
	Get(key string) (string, bool)
}

// AdSlotLookup resolves an ad unit code to its ad-server slot code. An empty
// string means the slot is unknown.
type AdSlotLookup interface {
	GptSlotCode(adUnitCode string) string
}

// Beacon attempts a best-effort delivery of payload to endpoint. The return
// value reports whether the payload was accepted for sending; there is no
// completion callback and no retry.
type Beacon func(endpoint string, payload []byte) bool

// Hasher is a deterministic string hash used for modulo sampling.
type Hasher func(s string) uint64

// Deps bundles the collaborators a module is built from. Zero fields fall
// back to production defaults where one exists.
type Deps struct {
	HTTPClient      *http.Client
	Environment     Environment
	Storage         Storage
	SlotLookup      AdSlotLookup
	Beacon          Beacon
	Hasher          Hasher
	Clock           clock.Clock
	MetricsRegistry gometrics.Registry
}

// NewHTTPBeacon adapts an http.Client into a Beacon. The response status is
// intentionally not inspected: delivery is fire-and-forget and a refused
// payload is dropped, matching browser sendBeacon semantics.
func NewHTTPBeacon(client *http.Client) Beacon {
	return func(endpoint string, payload []byte) bool {
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			glog.Errorf("[pubx] malformed beacon endpoint %q: %v", endpoint, err)
			return false
		}
		req.Header.Set("Content-Type", "text/json")

		resp, err := client.Do(req)
		if err != nil {
			glog.Warningf("[pubx] beacon send failed: %v", err)
			return false
		}
		resp.Body.Close()
		return true
	}
}
