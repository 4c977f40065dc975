package handler

import (
	"context"
	"net/http"

	listing "auction-engine/internal/listingService"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type ListingServiceInterface interface {
	CreateAuction(ctx context.Context, sellerID string, in listing.AuctionInput) (model.Auction, error)
	UpdateAuction(ctx context.Context, auctionID, callerID string, in listing.AuctionInput) (model.Auction, error)
	SetEnabled(ctx context.Context, auctionID, callerID string, enabled bool) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListAll(ctx context.Context) ([]model.Auction, error)
	ListLive(ctx context.Context) ([]model.Auction, error)
	ListBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error)
	Watchlist(ctx context.Context, userID string) ([]model.Auction, error)
}

type AuctionHandler struct {
	service ListingServiceInterface
}

func NewAuctionHandler(service ListingServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.AuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	sellerID := helpers.CurrentUser(c)
	auction, err := h.service.CreateAuction(c.Request.Context(), sellerID, req.ToInput())
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"user_id": sellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"user_id":    sellerID,
		"status":     auction.Status,
	})
}

// UpdateAuctionHandler handles PUT /auctions/:auction_id
func (h *AuctionHandler) UpdateAuctionHandler(c *gin.Context) {
	var req helpers.AuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "UpdateAuctionHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	callerID := helpers.CurrentUser(c)
	auction, err := h.service.UpdateAuction(c.Request.Context(), auctionID, callerID, req.ToInput())
	if err != nil {
		helpers.RespondError(c, "UpdateAuctionHandler", err, map[string]any{"auction_id": auctionID, "user_id": callerID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction updated successfully")
	helpers.LogSuccess("UpdateAuctionHandler", "auction updated", map[string]any{"auction_id": auctionID})
}

// SetStatusHandler handles PUT /auctions/:auction_id/status
func (h *AuctionHandler) SetStatusHandler(c *gin.Context) {
	var req helpers.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SetStatusHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	callerID := helpers.CurrentUser(c)
	auction, err := h.service.SetEnabled(c.Request.Context(), auctionID, callerID, *req.Enabled)
	if err != nil {
		helpers.RespondError(c, "SetStatusHandler", err, map[string]any{"auction_id": auctionID, "user_id": callerID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction status updated")
	helpers.LogSuccess("SetStatusHandler", "auction status updated", map[string]any{
		"auction_id": auctionID,
		"enabled":    auction.Enabled,
		"status":     auction.Status,
	})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// ListAuctionsHandler handles GET /auctions
func (h *AuctionHandler) ListAuctionsHandler(c *gin.Context) {
	h.respondList(c, "ListAuctionsHandler", func(ctx context.Context) ([]model.Auction, error) {
		return h.service.ListAll(ctx)
	})
}

// ListLiveAuctionsHandler handles GET /auctions/live
func (h *AuctionHandler) ListLiveAuctionsHandler(c *gin.Context) {
	h.respondList(c, "ListLiveAuctionsHandler", h.service.ListLive)
}

// GetMyAuctionsHandler handles GET /users/me/auctions
func (h *AuctionHandler) GetMyAuctionsHandler(c *gin.Context) {
	sellerID := helpers.CurrentUser(c)
	h.respondList(c, "GetMyAuctionsHandler", func(ctx context.Context) ([]model.Auction, error) {
		return h.service.ListBySeller(ctx, sellerID)
	})
}

// GetWatchlistHandler handles GET /users/me/watchlist
func (h *AuctionHandler) GetWatchlistHandler(c *gin.Context) {
	userID := helpers.CurrentUser(c)
	h.respondList(c, "GetWatchlistHandler", func(ctx context.Context) ([]model.Auction, error) {
		return h.service.Watchlist(ctx, userID)
	})
}

// ToggleWatchHandler handles POST /auctions/:auction_id/watch
func (h *AuctionHandler) ToggleWatchHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	userID := helpers.CurrentUser(c)

	watching, err := h.service.ToggleWatch(c.Request.Context(), userID, auctionID)
	if err != nil {
		helpers.RespondError(c, "ToggleWatchHandler", err, map[string]any{"auction_id": auctionID, "user_id": userID})
		return
	}

	message := "removed from watchlist"
	if watching {
		message = "added to watchlist"
	}
	utils.JSONResponse(c, http.StatusOK, helpers.WatchResponse{AuctionID: auctionID, Watching: watching}, message)
}

func (h *AuctionHandler) respondList(c *gin.Context, handlerName string, list func(context.Context) ([]model.Auction, error)) {
	auctions, err := list(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, handlerName, err, nil)
		return
	}

	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
	helpers.LogSuccess(handlerName, "auctions retrieved successfully", map[string]any{
		"user_id":        helpers.CurrentUser(c),
		"auctions_count": len(auctions),
	})
}
