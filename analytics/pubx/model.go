package pubx

// Render status values carried on every bid record. The numbering is part of
// the collector's wire contract.
const (
	statusResponse int64 = 2
	statusTimeout  int64 = 3
	statusWin      int64 = 4
)

// Event kinds tracked in an auction's sendAs set.
const (
	kindWin     = "win"
	kindAuction = "auction"
)

// Bid is the normalized per-bid record shipped to the collector.
type Bid struct {
	AdUnitCode        string                 `json:"adUnitCode"`
	GptSlotCode       string                 `json:"gptSlotCode"`
	AuctionId         string                 `json:"auctionId"`
	BidderCode        string                 `json:"bidderCode"`
	BidId             string                 `json:"bidId"`
	Cpm               float64                `json:"cpm"`
	CreativeId        string                 `json:"creativeId"`
	Currency          string                 `json:"currency"`
	FloorData         map[string]interface{} `json:"floorData"`
	NetRevenue        bool                   `json:"netRevenue"`
	PlacementId       float64                `json:"placementId"`
	RequestTimestamp  int64                  `json:"requestTimestamp"`
	ResponseTimestamp int64                  `json:"responseTimestamp"`
	Size              string                 `json:"size"`
	Status            string                 `json:"status"`
	StatusMessage     string                 `json:"statusMessage"`
	TimeToRespond     int64                  `json:"timeToRespond"`
	TransactionId     string                 `json:"transactionId"`
	RenderStatus      int64                  `json:"renderStatus"`
	IsWinningBid      bool                   `json:"isWinningBid"`
	RenderedSize      string                 `json:"renderedSize"`
	AdserverTargeting map[string]string      `json:"adServerData,omitempty"`
	FloorProvider     string                 `json:"floorProvider"`
	FloorFetchStatus  string                 `json:"floorFetchStatus"`
	FloorLocation     string                 `json:"floorLocation"`
	FloorModelVersion string                 `json:"floorModelVersion"`
	FloorSkipRate     int64                  `json:"floorSkipRate"`
	IsFloorSkipped    bool                   `json:"isFloorSkipped"`
}

type AuctionDetail struct {
	AdUnitCodes []string `json:"adUnitCodes"`
	RefreshRank int64    `json:"refreshRank"`
	AuctionId   string   `json:"auctionId"`
	Timestamp   int64    `json:"timestamp"`
}

type FloorDetail struct {
	FetchStatus   string `json:"fetchStatus"`
	FloorProvider string `json:"floorProvider"`
	Location      string `json:"location"`
	ModelVersion  string `json:"modelVersion"`
	SkipRate      int64  `json:"skipRate"`
	Skipped       bool   `json:"skipped"`
}

type PageDetail struct {
	Host   string `json:"host"`
	Path   string `json:"path"`
	Search string `json:"search"`
}

type DeviceDetail struct {
	Platform   string `json:"platform"`
	DeviceType int    `json:"deviceType"`
	DeviceOS   int    `json:"deviceOS"`
	Browser    int    `json:"browser"`
	Cdep       string `json:"cdep"`
}

type UserDetail struct {
	UserIdTypes []string `json:"userIdTypes"`
}

type ConsentDetail struct {
	ConsentTypes []string `json:"consentTypes"`
}

// InitOptions echoes the adapter configuration active when the auction was
// first seen. AuctionId is duplicated here for older collector consumers.
type InitOptions struct {
	AuctionId    string `json:"auctionId"`
	SamplingRate int    `json:"samplingRate"`
	Pubxid       string `json:"pubxId"`
	HostName     string `json:"hostName,omitempty"`
}

// AuctionRecord aggregates everything known about one auction for the
// session's lifetime. Records are created on first reference and never
// deleted.
type AuctionRecord struct {
	Bids          []Bid
	AuctionDetail AuctionDetail
	FloorDetail   FloorDetail
	PageDetail    PageDetail
	DeviceDetail  DeviceDetail
	UserDetail    UserDetail
	ConsentDetail ConsentDetail
	PmacDetail    map[string]interface{}
	InitOptions   InitOptions
	WinningBid    *Bid

	// SendAs records which event kinds were already dispatched for this
	// auction, enforcing at-most-once delivery per kind.
	SendAs map[string]bool
}

// AuctionBids is the "auction" event payload: the full bid list plus the
// auction's context snapshot.
type AuctionBids struct {
	AuctionDetail AuctionDetail          `json:"auctionDetail"`
	FloorDetail   FloorDetail            `json:"floorDetail"`
	PageDetail    PageDetail             `json:"pageDetail"`
	DeviceDetail  DeviceDetail           `json:"deviceDetail"`
	UserDetail    UserDetail             `json:"userDetail"`
	ConsentDetail ConsentDetail          `json:"consentDetail"`
	PmacDetail    map[string]interface{} `json:"pmacDetail"`
	InitOptions   InitOptions            `json:"initOptions"`
	Bids          []Bid                  `json:"bids"`
}

// WinningBid is the "win" event payload: the winning bid plus the auction's
// context snapshot.
type WinningBid struct {
	AuctionDetail AuctionDetail          `json:"auctionDetail"`
	FloorDetail   FloorDetail            `json:"floorDetail"`
	PageDetail    PageDetail             `json:"pageDetail"`
	DeviceDetail  DeviceDetail           `json:"deviceDetail"`
	UserDetail    UserDetail             `json:"userDetail"`
	ConsentDetail ConsentDetail          `json:"consentDetail"`
	PmacDetail    map[string]interface{} `json:"pmacDetail"`
	InitOptions   InitOptions            `json:"initOptions"`
	WinningBid    Bid                    `json:"winningBid"`
}
