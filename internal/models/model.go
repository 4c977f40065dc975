package models

import "time"

// Status is the display state of an auction, always derived by auctionstate.Status
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusEnded     Status = "ENDED"
)

// Auction represents a timed listing with a monotonically increasing leading bid
type Auction struct {
	AuctionID   string   `json:"auction_id"`
	SellerID    string   `json:"seller_id"`
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Condition   string   `json:"condition"`
	ImageURL    string   `json:"image_url,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`

	StartingPrice float64  `json:"starting_price"`
	MinIncrement  *float64 `json:"min_increment,omitempty"`
	BuyNowPrice   *float64 `json:"buy_now_price,omitempty"`

	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	AutoExtend bool       `json:"auto_extend"`

	CurrentBid      float64 `json:"current_bid"`
	BidCount        int     `json:"bid_count"`
	HighestBidderID string  `json:"highest_bidder_id,omitempty"`

	Enabled bool `json:"enabled"`
	// Closed is set once the seller declares a winner.
	Closed bool   `json:"closed"`
	Status Status `json:"status"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers never share pointer fields with a store
func (a Auction) Clone() Auction {
	out := a
	if a.MinIncrement != nil {
		v := *a.MinIncrement
		out.MinIncrement = &v
	}
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		out.BuyNowPrice = &v
	}
	if a.StartTime != nil {
		v := *a.StartTime
		out.StartTime = &v
	}
	if a.EndTime != nil {
		v := *a.EndTime
		out.EndTime = &v
	}
	if a.ImageURLs != nil {
		out.ImageURLs = append([]string(nil), a.ImageURLs...)
	}
	return out
}

// Bid represents an accepted offer against an auction. Bids are never mutated.
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	// Sequence is the acceptance order within the auction, used to break timestamp ties.
	Sequence int64 `json:"sequence"`
}

// Severity classifies a notification for display
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Target addresses either a single user or the topic of all watchers of an auction
type Target struct {
	UserID    string `json:"user_id,omitempty"`
	AuctionID string `json:"auction_id,omitempty"`
}

// UserTarget addresses one user.
func UserTarget(userID string) Target { return Target{UserID: userID} }

// AuctionTopic addresses everyone watching an auction.
func AuctionTopic(auctionID string) Target { return Target{AuctionID: auctionID} }

// IsTopic reports whether the target is an auction topic.
func (t Target) IsTopic() bool { return t.AuctionID != "" && t.UserID == "" }

// Key is the pub/sub channel name for the target.
func (t Target) Key() string {
	if t.IsTopic() {
		return "/topic/auction/" + t.AuctionID
	}
	return "/user/" + t.UserID + "/notifications"
}

// Notification is the durable per-user record of a message
type Notification struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Message        string    `json:"message"`
	Severity       Severity  `json:"type"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuctionUpdate is broadcast to an auction topic whenever its leading state changes
type AuctionUpdate struct {
	AuctionID       string     `json:"auction_id"`
	CurrentBid      float64    `json:"current_bid"`
	BidCount        int        `json:"bid_count"`
	BidTime         *time.Time `json:"bid_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Status          Status     `json:"status,omitempty"`
	HighestBidderID string     `json:"highest_bidder_id,omitempty"`
}

// BidOutcome is the result of a single bid attempt
type BidOutcome struct {
	Accepted bool `json:"accepted"`
	// Reason is a display message for rejected bids.
	Reason string `json:"reason,omitempty"`
	// Err is the sentinel cause of a rejection (ErrAuctionEnded or ErrBidTooLow).
	Err error `json:"-"`

	Auction          Auction `json:"auction"`
	Bid              Bid     `json:"bid"`
	PreviousBidderID string  `json:"previous_bidder_id,omitempty"`
}

// Watch links a user to an auction they follow
type Watch struct {
	UserID    string    `json:"user_id"`
	AuctionID string    `json:"auction_id"`
	CreatedAt time.Time `json:"created_at"`
}
