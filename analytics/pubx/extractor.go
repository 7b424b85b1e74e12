package pubx

import (
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/pubxai/analytics-client-go/analytics"
)

// Extractor normalizes raw host-framework bid objects into the compact wire
// shape. Extraction never fails: missing optional fields stay at their zero
// values.
type Extractor struct {
	slots AdSlotLookup
}

func NewExtractor(slots AdSlotLookup) *Extractor {
	return &Extractor{slots: slots}
}

// Extract maps a raw bid response or timeout record to a Bid. The caller
// stamps the render status.
func (x *Extractor) Extract(raw *analytics.Bid) Bid {
	b := Bid{
		AdUnitCode:        raw.AdUnitCode,
		AuctionId:         raw.AuctionId,
		BidderCode:        raw.BidderCode,
		BidId:             raw.BidId,
		Cpm:               raw.Cpm,
		CreativeId:        raw.CreativeId,
		Currency:          raw.Currency,
		FloorData:         raw.FloorData,
		NetRevenue:        raw.NetRevenue,
		RequestTimestamp:  raw.RequestTimestamp,
		ResponseTimestamp: raw.ResponseTimestamp,
		Status:            raw.Status,
		StatusMessage:     raw.StatusMessage,
		TimeToRespond:     raw.TimeToRespond,
		TransactionId:     raw.TransactionId,
	}

	if x.slots != nil {
		b.GptSlotCode = x.slots.GptSlotCode(raw.AdUnitCode)
	}

	// First declared size flattened to a display string.
	if len(raw.Sizes) > 0 && len(raw.Sizes[0]) == 2 {
		b.Size = fmt.Sprintf("%dx%d", raw.Sizes[0][0], raw.Sizes[0][1])
	}

	// Placement identifier from the first params entry, when a bidder
	// declares one.
	if len(raw.Params) > 0 {
		if v, err := jsonparser.GetFloat(raw.Params[0], "placement_id"); err == nil {
			b.PlacementId = v
		} else if v, err := jsonparser.GetFloat(raw.Params[0], "placementId"); err == nil {
			b.PlacementId = v
		}
	}

	return b
}
