package handler

import (
	"context"
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (model.BidOutcome, error)
	DeclareWinner(ctx context.Context, auctionID, callerID string) (model.Auction, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	bidderID := helpers.CurrentUser(c)

	outcome, err := h.service.PlaceBid(c.Request.Context(), auctionID, bidderID, req.Amount)
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": auctionID,
			"user_id":    bidderID,
		})
		return
	}

	if !outcome.Accepted {
		status, _ := helpers.MapErrorToHTTP(outcome.Err)
		utils.JSONError(c, status, outcome.Err, outcome.Reason)
		utils.Info("PlaceBidHandler: bid rejected", map[string]any{
			"auction_id": auctionID,
			"user_id":    bidderID,
			"amount":     req.Amount,
			"reason":     outcome.Reason,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(outcome), "Bid placed successfully!")
	helpers.LogSuccess("PlaceBidHandler", "bid placed", map[string]any{
		"bid_id":     outcome.Bid.BidID,
		"auction_id": auctionID,
		"user_id":    bidderID,
		"amount":     req.Amount,
	})
}

// GetBidsHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// DeclareWinnerHandler handles PUT /auctions/:auction_id/declare-winner
func (h *BiddingHandler) DeclareWinnerHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	callerID := helpers.CurrentUser(c)

	auction, err := h.service.DeclareWinner(c.Request.Context(), auctionID, callerID)
	if err != nil {
		helpers.RespondError(c, "DeclareWinnerHandler", err, map[string]any{"auction_id": auctionID, "user_id": callerID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "winner declared")
	helpers.LogSuccess("DeclareWinnerHandler", "winner declared", map[string]any{
		"auction_id": auctionID,
		"winner_id":  auction.HighestBidderID,
	})
}

// GetMyBidAuctionsHandler handles GET /users/me/bids
func (h *BiddingHandler) GetMyBidAuctionsHandler(c *gin.Context) {
	userID := helpers.CurrentUser(c)
	auctions, err := h.service.GetAuctionsByBidder(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetMyBidAuctionsHandler", err, map[string]any{"user_id": userID})
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess("GetMyBidAuctionsHandler", "auctions retrieved successfully", map[string]any{
		"user_id":        userID,
		"auctions_count": len(auctions),
	})
}

