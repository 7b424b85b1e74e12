package endpoints

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// NewCollectorHandler returns a local debug stand-in for the analytics
// collector: it accepts the module's beacon batches, logs them, and always
// answers 204. Beacons arrive as cross-origin browser POSTs, so the routes
// are wrapped with a permissive CORS policy the way the production intake is.
func NewCollectorHandler() http.Handler {
	router := httprouter.New()
	router.POST("/analytics/auction", logBatch("auction"))
	router.POST("/analytics/bidwon", logBatch("bidwon"))

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		AllowOriginFunc: func(string) bool {
			return true
		},
	})
	return c.Handler(router)
}

func logBatch(kind string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			glog.Warningf("[pubx] collector failed reading %s batch: %v", kind, err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var events []json.RawMessage
		if err := json.Unmarshal(body, &events); err != nil {
			glog.Warningf("[pubx] collector received malformed %s batch (%d bytes): %v", kind, len(body), err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		glog.Infof("[pubx] collector received %s batch: %d events, %d bytes (auctionTimestamp=%s)",
			kind, len(events), len(body), r.URL.Query().Get("auctionTimestamp"))
		w.WriteHeader(http.StatusNoContent)
	}
}
