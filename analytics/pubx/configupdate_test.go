package pubx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigUpdateHttpTask(t *testing.T) {
	tests := []struct {
		name         string
		refreshDelay string
		wantErr      bool
	}{
		{"valid delay", "1m", false},
		{"invalid delay", "sometimes", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := NewConfigUpdateHttpTask(&http.Client{}, clock.New(), "pub-42", "https://api.pbxai.com", tt.refreshDelay)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, task)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, task)
			}
		})
	}
}

func TestConfigUpdateStopReleasesPendingHandoff(t *testing.T) {
	fetched := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&RemoteConfig{SamplingRate: 2})
		select {
		case fetched <- struct{}{}:
		default:
		}
	}))
	defer server.Close()

	tr, err := NewConfigUpdateHttpTask(server.Client(), clock.New(), "pub-42", server.URL, "1h")
	require.NoError(t, err)

	// Nobody reads the update channel, so the first run blocks on the
	// hand-off after its fetch completes.
	started := make(chan struct{})
	go func() {
		tr.task.Start()
		close(started)
	}()
	<-fetched

	tr.task.Stop()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("pending hand-off still blocked after stop")
	}
}

func TestFetchConfig(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "pub-42", r.URL.Query().Get("pubxId"))
			json.NewEncoder(w).Encode(&RemoteConfig{PubxId: "pub-42", SamplingRate: 4, MaxBatchSize: "32KB"})
		}))
		defer server.Close()

		rc, err := fetchConfig(server.Client(), server.URL+"/config?pubxId=pub-42")
		require.NoError(t, err)
		assert.Equal(t, 4, rc.SamplingRate)
		assert.Equal(t, "32KB", rc.MaxBatchSize)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		rc, err := fetchConfig(server.Client(), server.URL)
		assert.Error(t, err)
		assert.Nil(t, rc)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		rc, err := fetchConfig(server.Client(), server.URL)
		assert.Error(t, err)
		assert.Nil(t, rc)
	})
}
