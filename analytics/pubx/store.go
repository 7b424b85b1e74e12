package pubx

import (
	"encoding/json"

	"github.com/golang/glog"

	"github.com/pubxai/analytics-client-go/util/useragentutil"
)

// pmacStorageKey is the persistent-storage key holding the prior-auction
// floor/bid statistics blob.
const pmacStorageKey = "pubx:pmac"

// AuctionStore holds every auction record seen this session, keyed by auction
// id. Records are created lazily on first reference and live until the
// session ends; there is no eviction.
type AuctionStore struct {
	auctions map[string]*AuctionRecord
	env      Environment
	storage  Storage

	// options supplies the configuration snapshot stamped into a record at
	// creation time. Indirect because remote config refresh may change the
	// active options between auctions.
	options func() InitOptions
}

func NewAuctionStore(env Environment, storage Storage, options func() InitOptions) *AuctionStore {
	return &AuctionStore{
		auctions: make(map[string]*AuctionRecord),
		env:      env,
		storage:  storage,
		options:  options,
	}
}

// GetOrCreate returns the record for auctionId, creating it on first
// reference. A new record snapshots the ambient page, device, user and
// consent context plus persisted prior statistics, and is assigned a refresh
// rank equal to the number of auctions already known.
func (s *AuctionStore) GetOrCreate(auctionId string) *AuctionRecord {
	if rec, ok := s.auctions[auctionId]; ok {
		return rec
	}

	opts := s.options()
	opts.AuctionId = auctionId

	rec := &AuctionRecord{
		Bids: []Bid{},
		AuctionDetail: AuctionDetail{
			AuctionId:   auctionId,
			RefreshRank: int64(len(s.auctions)),
		},
		PageDetail:    s.pageDetail(),
		DeviceDetail:  s.deviceDetail(),
		UserDetail:    UserDetail{UserIdTypes: s.env.UserIDKeys()},
		ConsentDetail: ConsentDetail{ConsentTypes: s.env.ConsentKeys()},
		PmacDetail:    s.loadPmac(),
		InitOptions:   opts,
		SendAs:        make(map[string]bool),
	}
	s.auctions[auctionId] = rec
	return rec
}

// Get returns the record for auctionId without creating one.
func (s *AuctionStore) Get(auctionId string) (*AuctionRecord, bool) {
	rec, ok := s.auctions[auctionId]
	return rec, ok
}

// Len reports the number of distinct auctions seen this session.
func (s *AuctionStore) Len() int {
	return len(s.auctions)
}

func (s *AuctionStore) pageDetail() PageDetail {
	loc := s.env.Location()
	if loc == nil {
		return PageDetail{}
	}
	detail := PageDetail{
		Host: loc.Host,
		Path: loc.Path,
	}
	if loc.RawQuery != "" {
		detail.Search = "?" + loc.RawQuery
	}
	return detail
}

func (s *AuctionStore) deviceDetail() DeviceDetail {
	ua := s.env.UserAgent()
	return DeviceDetail{
		Platform:   s.env.Platform(),
		DeviceType: useragentutil.GetDeviceType(ua),
		DeviceOS:   useragentutil.GetOS(ua),
		Browser:    useragentutil.GetBrowser(ua),
	}
}

func (s *AuctionStore) loadPmac() map[string]interface{} {
	pmac := map[string]interface{}{}
	raw, ok := s.storage.Get(pmacStorageKey)
	if !ok || raw == "" {
		return pmac
	}
	if err := json.Unmarshal([]byte(raw), &pmac); err != nil {
		glog.Warningf("[pubx] discarding unreadable pmac blob: %v", err)
		return map[string]interface{}{}
	}
	return pmac
}
