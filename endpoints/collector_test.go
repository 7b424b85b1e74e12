package endpoints

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectorAcceptsBatches(t *testing.T) {
	handler := NewCollectorHandler()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"auction batch", "/analytics/auction?auctionTimestamp=1700000000", `[{"bids":[]}]`, http.StatusNoContent},
		{"bidwon batch", "/analytics/bidwon", `[{"winningBid":{}}]`, http.StatusNoContent},
		{"empty batch", "/analytics/auction", `[]`, http.StatusNoContent},
		{"malformed body", "/analytics/auction", `{not json`, http.StatusBadRequest},
		{"object instead of array", "/analytics/auction", `{"bids":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "text/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCollectorUnknownPath(t *testing.T) {
	handler := NewCollectorHandler()
	req := httptest.NewRequest(http.MethodPost, "/analytics/unknown", strings.NewReader(`[]`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCollectorAnswersPreflight(t *testing.T) {
	handler := NewCollectorHandler()
	req := httptest.NewRequest(http.MethodOptions, "/analytics/auction", nil)
	req.Header.Set("Origin", "https://news.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "https://news.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
