package pubx

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"

	"github.com/pubxai/analytics-client-go/analytics"
	"github.com/pubxai/analytics-client-go/metrics"
)

// adapterVersion is reported in every destination URL.
const adapterVersion = "v1.2.0"

// Options is the adapter configuration consulted at dispatch time. The module
// refreshes it when remote configuration changes, so the engine reads it
// through a getter instead of holding a copy.
type Options struct {
	Pubxid        string
	HostName      string
	SamplingRate  int
	PrebidVersion string
}

// Engine applies the per-auction eligibility protocol: it folds host
// framework events into auction records and decides when a record has enough
// data to emit a win and/or auction payload.
type Engine struct {
	store     *AuctionStore
	queue     *SendQueue
	extractor *Extractor
	hash      Hasher
	options   func() Options
	metrics   *metrics.AgentMetrics
}

func NewEngine(store *AuctionStore, queue *SendQueue, extractor *Extractor, hash Hasher, options func() Options, am *metrics.AgentMetrics) *Engine {
	return &Engine{
		store:     store,
		queue:     queue,
		extractor: extractor,
		hash:      hash,
		options:   options,
		metrics:   am,
	}
}

// HandleBidTimeout appends each timed-out bid to its auction's bid list.
func (e *Engine) HandleBidTimeout(ev *analytics.BidTimeoutEvent) {
	if ev == nil {
		return
	}
	e.metrics.BidTimeoutMeter.Mark(int64(len(ev.Bids)))
	for i := range ev.Bids {
		rec := e.store.GetOrCreate(ev.Bids[i].AuctionId)
		b := e.extractor.Extract(&ev.Bids[i])
		b.RenderStatus = statusTimeout
		rec.Bids = append(rec.Bids, b)
	}
}

// HandleBidResponse appends a responded bid to its auction's bid list.
func (e *Engine) HandleBidResponse(ev *analytics.BidResponseEvent) {
	if ev == nil {
		return
	}
	e.metrics.BidResponseMeter.Mark(1)
	rec := e.store.GetOrCreate(ev.Bid.AuctionId)
	b := e.extractor.Extract(&ev.Bid)
	b.RenderStatus = statusResponse
	rec.Bids = append(rec.Bids, b)
}

// HandleAuctionEnd merges floor data from the first ad unit reporting any,
// captures the capped device signal from the first bidder request carrying
// one, and records the final ad unit list and timestamp. An auction whose
// every bid timed out will never receive a win event, so it is evaluated for
// sending here.
func (e *Engine) HandleAuctionEnd(ev *analytics.AuctionEndEvent) {
	if ev == nil {
		return
	}
	e.metrics.AuctionEndMeter.Mark(1)
	rec := e.store.GetOrCreate(ev.AuctionId)

	if rec.FloorDetail == (FloorDetail{}) {
		for _, adUnit := range ev.AdUnits {
			if len(adUnit.FloorData) > 0 {
				rec.FloorDetail = floorDetailFromMap(adUnit.FloorData)
				break
			}
		}
	}

	if rec.DeviceDetail.Cdep == "" {
		for _, req := range ev.BidderRequests {
			if len(req.Ortb2) == 0 {
				continue
			}
			if cdep, err := jsonparser.GetString(req.Ortb2, "device", "ext", "cdep"); err == nil && cdep != "" {
				rec.DeviceDetail.Cdep = cdep
				break
			}
		}
	}

	rec.AuctionDetail.AdUnitCodes = ev.AdUnitCodes
	rec.AuctionDetail.Timestamp = ev.Timestamp

	if allTimedOut(rec.Bids) {
		e.prepareSend(rec)
	}
}

// HandleBidWon stores the auction's winning bid, enriched with the floor
// snapshot, the actual rendered size and the scoped ad-server targeting keys,
// then evaluates send eligibility.
func (e *Engine) HandleBidWon(ev *analytics.BidWonEvent) {
	if ev == nil {
		return
	}
	e.metrics.BidWonMeter.Mark(1)
	rec := e.store.GetOrCreate(ev.Bid.AuctionId)

	if rec.WinningBid == nil {
		b := e.extractor.Extract(&ev.Bid)
		b.IsWinningBid = true
		b.RenderStatus = statusWin
		b.Status = "rendered"
		b.RenderedSize = ev.Bid.Size
		b.FloorProvider = rec.FloorDetail.FloorProvider
		b.FloorFetchStatus = rec.FloorDetail.FetchStatus
		b.FloorLocation = rec.FloorDetail.Location
		b.FloorModelVersion = rec.FloorDetail.ModelVersion
		b.FloorSkipRate = rec.FloorDetail.SkipRate
		b.IsFloorSkipped = rec.FloorDetail.Skipped
		b.AdserverTargeting = filterTargeting(ev.Bid.AdserverTargeting)
		rec.WinningBid = &b
	}

	e.prepareSend(rec)
}

// prepareSend applies the deterministic sampling decision and, for each event
// kind not yet dispatched, assembles and enqueues its payload. Safe to call
// repeatedly for the same auction: the sendAs set makes each kind
// at-most-once.
func (e *Engine) prepareSend(rec *AuctionRecord) {
	opts := e.options()

	rate := opts.SamplingRate
	if rate < 1 {
		rate = 1
	}
	if e.hash(rec.AuctionDetail.AuctionId)%uint64(rate) != 0 {
		e.metrics.SamplingSkipMeter.Mark(1)
		return
	}

	if e.eligible(rec, kindWin) {
		e.enqueue(rec, kindWin, "bidwon", WinningBid{
			AuctionDetail: rec.AuctionDetail,
			FloorDetail:   rec.FloorDetail,
			PageDetail:    rec.PageDetail,
			DeviceDetail:  rec.DeviceDetail,
			UserDetail:    rec.UserDetail,
			ConsentDetail: rec.ConsentDetail,
			PmacDetail:    rec.PmacDetail,
			InitOptions:   rec.InitOptions,
			WinningBid:    *rec.WinningBid,
		}, opts)
	}

	if e.eligible(rec, kindAuction) {
		e.enqueue(rec, kindAuction, "auction", AuctionBids{
			AuctionDetail: rec.AuctionDetail,
			FloorDetail:   rec.FloorDetail,
			PageDetail:    rec.PageDetail,
			DeviceDetail:  rec.DeviceDetail,
			UserDetail:    rec.UserDetail,
			ConsentDetail: rec.ConsentDetail,
			PmacDetail:    rec.PmacDetail,
			InitOptions:   rec.InitOptions,
			Bids:          rec.Bids,
		}, opts)
	}
}

// eligible reports whether kind still needs dispatch and every field it
// requires is present. Failing a check is a silent skip, not an error.
func (e *Engine) eligible(rec *AuctionRecord, kind string) bool {
	if rec.SendAs[kind] {
		return false
	}
	if rec.AuctionDetail.AuctionId == "" || rec.PmacDetail == nil {
		return false
	}
	switch kind {
	case kindWin:
		return rec.WinningBid != nil
	case kindAuction:
		return rec.Bids != nil
	}
	return false
}

func (e *Engine) enqueue(rec *AuctionRecord, kind, pathSuffix string, payload interface{}, opts Options) {
	fragment, err := json.Marshal(payload)
	if err != nil {
		glog.Errorf("[pubx] dropping %s payload for auction %s: %v", kind, rec.AuctionDetail.AuctionId, err)
		return
	}
	e.queue.Enqueue(endpointURL(opts, pathSuffix, rec.AuctionDetail.Timestamp), fragment)
	rec.SendAs[kind] = true
	e.metrics.PayloadMeter(kind).Mark(1)
}

func endpointURL(opts Options, pathSuffix string, timestamp int64) string {
	q := url.Values{}
	q.Set("auctionTimestamp", strconv.FormatInt(timestamp, 10))
	q.Set("pubxaiAnalyticsVersion", adapterVersion)
	q.Set("prebidVersion", opts.PrebidVersion)
	u := url.URL{
		Scheme:   "https",
		Host:     opts.HostName,
		Path:     "/analytics/" + pathSuffix,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func allTimedOut(bids []Bid) bool {
	for i := range bids {
		if bids[i].RenderStatus != statusTimeout {
			return false
		}
	}
	return true
}

// filterTargeting keeps only targeting keys scoped to this adapter: the
// pubx- prefix, or hb_ keys without a bidder suffix (exactly one underscore).
func filterTargeting(targeting map[string]string) map[string]string {
	if len(targeting) == 0 {
		return nil
	}
	scoped := make(map[string]string)
	for k, v := range targeting {
		if strings.HasPrefix(k, "pubx-") {
			scoped[k] = v
			continue
		}
		if strings.HasPrefix(k, "hb_") && strings.Count(k, "_") == 1 {
			scoped[k] = v
		}
	}
	if len(scoped) == 0 {
		return nil
	}
	return scoped
}

func floorDetailFromMap(m map[string]interface{}) FloorDetail {
	return FloorDetail{
		FetchStatus:   getString(m, "fetchStatus"),
		FloorProvider: getString(m, "floorProvider"),
		Location:      getString(m, "location"),
		ModelVersion:  getString(m, "modelVersion"),
		SkipRate:      getInt64(m, "skipRate"),
		Skipped:       getBool(m, "skipped"),
	}
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getInt64(m map[string]interface{}, key string) int64 {
	switch val := m[key].(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	}
	return 0
}

func getBool(m map[string]interface{}, key string) bool {
	if val, ok := m[key].(bool); ok {
		return val
	}
	return false
}
