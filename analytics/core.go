package analytics

import (
	"encoding/json"
)

// EventType identifies a host framework event delivered to an analytics
// module.
type EventType string

const (
	BidTimeout  EventType = "bidTimeout"
	BidResponse EventType = "bidResponse"
	AuctionEnd  EventType = "auctionEnd"
	BidWon      EventType = "bidWon"
)

// Module is the interface a telemetry consumer implements to receive the host
// framework's auction lifecycle events. Implementations must tolerate partial
// or missing fields on every event.
type Module interface {
	LogBidTimeout(*BidTimeoutEvent)
	LogBidResponse(*BidResponseEvent)
	LogAuctionEnd(*AuctionEndEvent)
	LogBidWon(*BidWonEvent)
}

// Bid mirrors the host framework's bid object as delivered on response,
// timeout and win events. Timeout records carry only the identifying subset.
type Bid struct {
	AdUnitCode        string                 `json:"adUnitCode"`
	AuctionId         string                 `json:"auctionId"`
	BidderCode        string                 `json:"bidderCode"`
	BidId             string                 `json:"bidId"`
	CreativeId        string                 `json:"creativeId"`
	Cpm               float64                `json:"cpm"`
	Currency          string                 `json:"currency"`
	NetRevenue        bool                   `json:"netRevenue"`
	RequestTimestamp  int64                  `json:"requestTimestamp"`
	ResponseTimestamp int64                  `json:"responseTimestamp"`
	TimeToRespond     int64                  `json:"timeToRespond"`
	Status            string                 `json:"status"`
	StatusMessage     string                 `json:"statusMessage"`
	TransactionId     string                 `json:"transactionId"`
	Sizes             [][]int64              `json:"sizes"`
	Size              string                 `json:"size"`
	Params            []json.RawMessage      `json:"params"`
	FloorData         map[string]interface{} `json:"floorData"`
	AdserverTargeting map[string]string      `json:"adserverTargeting"`
}

// AdUnit is the slice of the host framework's ad unit object this module
// reads: its code and whatever floor metadata the unit reported.
type AdUnit struct {
	Code      string                 `json:"code"`
	FloorData map[string]interface{} `json:"floorData"`
}

// BidderRequest carries the request-level extension blob. Only the capped
// device signal inside it is consumed, so the blob stays raw.
type BidderRequest struct {
	BidderCode string          `json:"bidderCode"`
	Ortb2      json.RawMessage `json:"ortb2"`
}

type BidTimeoutEvent struct {
	Bids []Bid `json:"bids"`
}

type BidResponseEvent struct {
	Bid Bid `json:"bid"`
}

type AuctionEndEvent struct {
	AuctionId      string          `json:"auctionId"`
	Timestamp      int64           `json:"timestamp"`
	AdUnitCodes    []string        `json:"adUnitCodes"`
	AdUnits        []AdUnit        `json:"adUnits"`
	BidderRequests []BidderRequest `json:"bidderRequests"`
}

type BidWonEvent struct {
	Bid Bid `json:"bid"`
}
