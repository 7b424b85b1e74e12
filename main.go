package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"net/http"
	"net/url"
	"os"

	"github.com/buger/jsonparser"
	"github.com/gofrs/uuid"
	"github.com/golang/glog"
	"github.com/spf13/viper"

	"github.com/pubxai/analytics-client-go/analytics"
	"github.com/pubxai/analytics-client-go/analytics/pubx"
	"github.com/pubxai/analytics-client-go/config"
	"github.com/pubxai/analytics-client-go/endpoints"
)

const configFileName = "pubx"

func main() {
	flag.Parse() // required for glog flags

	cfg, err := loadConfig()
	if err != nil {
		glog.Exitf("configuration could not be loaded or did not pass validation: %v", err)
	}

	if cfg.Collector.Enabled {
		go func() {
			glog.Infof("[pubx] debug collector listening on %s", cfg.Collector.Addr)
			if err := http.ListenAndServe(cfg.Collector.Addr, endpoints.NewCollectorHandler()); err != nil {
				glog.Exitf("collector failed: %v", err)
			}
		}()
	}

	module, err := pubx.NewModule(cfg, pubx.Deps{
		Environment: newSessionEnvironment(cfg.Session),
		Storage:     sessionStorage{pmac: cfg.Session.Pmac},
	})
	if err != nil {
		glog.Exitf("analytics module could not be created: %v", err)
	}

	if cfg.Replay.File == "" {
		glog.Exit("replay.file must point at a recorded event log")
	}
	if err := replay(cfg.Replay.File, module); err != nil {
		glog.Exitf("replay failed: %v", err)
	}

	// The end of the recording stands in for the page-hide transition.
	module.OnPageHide()
	module.Shutdown()
	glog.Flush()
}

func loadConfig() (*config.Configuration, error) {
	v := viper.New()
	config.SetupViper(v, configFileName)
	return config.New(v)
}

// replay feeds a recorded host-framework event log, one JSON event per line,
// into the module in recording order.
func replay(path string, module analytics.Module) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Recordings captured without auction ids share one synthetic id so
	// their events still aggregate into a single auction.
	fallbackId := ""
	if id, err := uuid.NewV4(); err == nil {
		fallbackId = id.String()
	}

	lines := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++
		dispatch(module, line, fallbackId)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	glog.Infof("[pubx] replayed %d events from %s", lines, path)
	return nil
}

func dispatch(module analytics.Module, line []byte, fallbackId string) {
	eventType, err := jsonparser.GetString(line, "eventType")
	if err != nil {
		glog.Warningf("[pubx] skipping recorded line without eventType: %v", err)
		return
	}
	args, _, _, err := jsonparser.Get(line, "args")
	if err != nil {
		glog.Warningf("[pubx] skipping %s event without args: %v", eventType, err)
		return
	}

	switch analytics.EventType(eventType) {
	case analytics.BidTimeout:
		var ev analytics.BidTimeoutEvent
		if err := json.Unmarshal(args, &ev.Bids); err != nil {
			glog.Warningf("[pubx] malformed bidTimeout args: %v", err)
			return
		}
		for i := range ev.Bids {
			if ev.Bids[i].AuctionId == "" {
				ev.Bids[i].AuctionId = fallbackId
			}
		}
		module.LogBidTimeout(&ev)
	case analytics.BidResponse:
		var ev analytics.BidResponseEvent
		if err := json.Unmarshal(args, &ev.Bid); err != nil {
			glog.Warningf("[pubx] malformed bidResponse args: %v", err)
			return
		}
		if ev.Bid.AuctionId == "" {
			ev.Bid.AuctionId = fallbackId
		}
		module.LogBidResponse(&ev)
	case analytics.AuctionEnd:
		var ev analytics.AuctionEndEvent
		if err := json.Unmarshal(args, &ev); err != nil {
			glog.Warningf("[pubx] malformed auctionEnd args: %v", err)
			return
		}
		if ev.AuctionId == "" {
			ev.AuctionId = fallbackId
		}
		module.LogAuctionEnd(&ev)
	case analytics.BidWon:
		var ev analytics.BidWonEvent
		if err := json.Unmarshal(args, &ev.Bid); err != nil {
			glog.Warningf("[pubx] malformed bidWon args: %v", err)
			return
		}
		if ev.Bid.AuctionId == "" {
			ev.Bid.AuctionId = fallbackId
		}
		module.LogBidWon(&ev)
	default:
		glog.V(2).Infof("[pubx] ignoring recorded event type %s", eventType)
	}
}

// sessionEnvironment presents the recorded browsing context in place of real
// browser globals.
type sessionEnvironment struct {
	session  config.Session
	location *url.URL
}

func newSessionEnvironment(session config.Session) *sessionEnvironment {
	loc, err := url.Parse(session.PageURL)
	if err != nil {
		glog.Warningf("[pubx] unparseable session page_url %q: %v", session.PageURL, err)
		loc = nil
	}
	return &sessionEnvironment{session: session, location: loc}
}

func (e *sessionEnvironment) UserAgent() string     { return e.session.UserAgent }
func (e *sessionEnvironment) Platform() string      { return e.session.Platform }
func (e *sessionEnvironment) Location() *url.URL    { return e.location }
func (e *sessionEnvironment) UserIDKeys() []string  { return e.session.UserIdKeys }
func (e *sessionEnvironment) ConsentKeys() []string { return e.session.ConsentKeys }

// sessionStorage serves the recorded pmac blob under the key the store reads.
type sessionStorage struct {
	pmac string
}

func (s sessionStorage) Get(key string) (string, bool) {
	if key == "pubx:pmac" && s.pmac != "" {
		return s.pmac, true
	}
	return "", false
}
