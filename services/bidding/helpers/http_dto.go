package helpers

import (
	"time"

	listing "auction-engine/internal/listingService"
	model "auction-engine/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type AuctionRequest struct {
	ProductName   string     `json:"product_name" binding:"required"`
	Category      string     `json:"category"`
	Description   string     `json:"description"`
	Condition     string     `json:"condition"`
	ImageURL      string     `json:"image_url"`
	ImageURLs     []string   `json:"image_urls"`
	StartingPrice float64    `json:"starting_price" binding:"required,gt=0"`
	MinIncrement  *float64   `json:"min_increment" binding:"omitempty,gt=0"`
	BuyNowPrice   *float64   `json:"buy_now_price" binding:"omitempty,gt=0"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	AutoExtend    bool       `json:"auto_extend"`
	Enabled       *bool      `json:"enabled"`
}

// ToInput converts the request into the listing service input
func (r AuctionRequest) ToInput() listing.AuctionInput {
	return listing.AuctionInput{
		ProductName:   r.ProductName,
		Category:      r.Category,
		Description:   r.Description,
		Condition:     r.Condition,
		ImageURL:      r.ImageURL,
		ImageURLs:     r.ImageURLs,
		StartingPrice: r.StartingPrice,
		MinIncrement:  r.MinIncrement,
		BuyNowPrice:   r.BuyNowPrice,
		StartTime:     utc(r.StartTime),
		EndTime:       utc(r.EndTime),
		AutoExtend:    r.AutoExtend,
		Enabled:       r.Enabled,
	}
}

type SetStatusRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type MarkReadRequest struct {
	Read *bool `json:"read"`
}

type BidResponse struct {
	BidID           string       `json:"bid_id"`
	AuctionID       string       `json:"auction_id"`
	BidderID        string       `json:"bidder_id"`
	Amount          float64      `json:"amount"`
	CreatedAt       string       `json:"created_at"`
	CurrentBid      float64      `json:"current_bid"`
	BidCount        int          `json:"bid_count"`
	HighestBidderID string       `json:"highest_bidder_id"`
	EndTime         string       `json:"end_time,omitempty"`
	Status          model.Status `json:"status"`
}

// NewBidResponse builds the response for an accepted bid so clients can
// reconcile against the authoritative leading bid and close time
func NewBidResponse(outcome model.BidOutcome) BidResponse {
	resp := BidResponse{
		BidID:           outcome.Bid.BidID,
		AuctionID:       outcome.Bid.AuctionID,
		BidderID:        outcome.Bid.BidderID,
		Amount:          outcome.Bid.Amount,
		CreatedAt:       outcome.Bid.CreatedAt.UTC().Format(time.RFC3339),
		CurrentBid:      outcome.Auction.CurrentBid,
		BidCount:        outcome.Auction.BidCount,
		HighestBidderID: outcome.Auction.HighestBidderID,
		Status:          outcome.Auction.Status,
	}
	if outcome.Auction.EndTime != nil {
		resp.EndTime = outcome.Auction.EndTime.UTC().Format(time.RFC3339)
	}
	return resp
}

type WatchResponse struct {
	AuctionID string `json:"auction_id"`
	Watching  bool   `json:"watching"`
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
