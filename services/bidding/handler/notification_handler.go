package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type NotificationServiceInterface interface {
	ListForUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string, read bool) (model.Notification, error)
}

// Subscriber is the real-time side of notifications
type Subscriber interface {
	Subscribe(key string) (<-chan notify.Message, func())
}

type NotificationHandler struct {
	service  NotificationServiceInterface
	listings ListingServiceInterface
	hub      Subscriber
}

func NewNotificationHandler(service NotificationServiceInterface, listings ListingServiceInterface, hub Subscriber) *NotificationHandler {
	return &NotificationHandler{service: service, listings: listings, hub: hub}
}

// GetNotificationsHandler handles GET /users/me/notifications
func (h *NotificationHandler) GetNotificationsHandler(c *gin.Context) {
	userID := helpers.CurrentUser(c)
	list, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		helpers.RespondError(c, "GetNotificationsHandler", err, map[string]any{"user_id": userID})
		return
	}

	if list == nil {
		list = []model.Notification{}
	}

	utils.JSONResponse(c, http.StatusOK, list, "notifications retrieved successfully")
	helpers.LogSuccess("GetNotificationsHandler", "notifications retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(list),
	})
}

// MarkReadHandler handles PUT /notifications/:notification_id/read.
// The body is optional and defaults to marking the notification read.
func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	var req helpers.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		helpers.HandleBindError(c, "MarkReadHandler", err)
		return
	}
	read := true
	if req.Read != nil {
		read = *req.Read
	}

	notificationID := c.Param("notification_id")
	userID := helpers.CurrentUser(c)
	n, err := h.service.MarkRead(c.Request.Context(), notificationID, userID, read)
	if err != nil {
		helpers.RespondError(c, "MarkReadHandler", err, map[string]any{"notification_id": notificationID, "user_id": userID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, n, "notification updated")
}

// UserStreamHandler handles GET /users/me/stream as server-sent events
func (h *NotificationHandler) UserStreamHandler(c *gin.Context) {
	h.stream(c, model.UserTarget(helpers.CurrentUser(c)))
}

// AuctionStreamHandler handles GET /auctions/:auction_id/stream as server-sent events
func (h *NotificationHandler) AuctionStreamHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if _, err := h.listings.GetAuction(c.Request.Context(), auctionID); err != nil {
		helpers.RespondError(c, "AuctionStreamHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	h.stream(c, model.AuctionTopic(auctionID))
}

func (h *NotificationHandler) stream(c *gin.Context, target model.Target) {
	messages, cancel := h.hub.Subscribe(target.Key())
	defer cancel()

	utils.Info("stream opened", map[string]any{"target": target.Key()})
	c.Stream(func(_ io.Writer) bool {
		select {
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			c.SSEvent(msg.Event, msg.Data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	utils.Info("stream closed", map[string]any{"target": target.Key()})
}
