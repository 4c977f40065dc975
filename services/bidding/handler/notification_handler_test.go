package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// streamRecorder lets gin's Stream run against a recorder and reports flushes
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed  chan bool
	flushed chan struct{}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func (r *streamRecorder) Flush() {
	r.ResponseRecorder.Flush()
	select {
	case r.flushed <- struct{}{}:
	default:
	}
}

// Test notification inbox routes
func TestNotificationHandler_Inbox(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockNotificationServiceInterface(ctrl)
	handler := NewNotificationHandler(mockService, NewMockListingServiceInterface(ctrl), notify.NewHub(1))

	router := gin.New()
	router.GET("/users/me/notifications", withUser("user1"), handler.GetNotificationsHandler)
	router.PUT("/notifications/:notification_id/read", withUser("user1"), handler.MarkReadHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		method         string
		path           string
		body           any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:   "list",
			method: http.MethodGet,
			path:   "/users/me/notifications",
			mockSetup: func() {
				mockService.EXPECT().ListForUser(gomock.Any(), "user1").Return([]model.Notification{
					{NotificationID: "n1", UserID: "user1", Message: "You were outbid on Road Bike", Severity: model.SeverityWarning, CreatedAt: now},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "notifications retrieved successfully",
		},
		{
			name:   "mark_read_default",
			method: http.MethodPut,
			path:   "/notifications/n1/read",
			mockSetup: func() {
				mockService.EXPECT().MarkRead(gomock.Any(), "n1", "user1", true).Return(model.Notification{NotificationID: "n1", Read: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "notification updated",
		},
		{
			name:   "mark_unread",
			method: http.MethodPut,
			path:   "/notifications/n1/read",
			body:   map[string]any{"read": false},
			mockSetup: func() {
				mockService.EXPECT().MarkRead(gomock.Any(), "n1", "user1", false).Return(model.Notification{NotificationID: "n1"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "notification updated",
		},
		{
			name:   "someone_elses",
			method: http.MethodPut,
			path:   "/notifications/n2/read",
			mockSetup: func() {
				mockService.EXPECT().MarkRead(gomock.Any(), "n2", "user1", true).Return(model.Notification{}, biddingerrors.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "not allowed",
		},
		{
			name:   "unknown",
			method: http.MethodPut,
			path:   "/notifications/n3/read",
			mockSetup: func() {
				mockService.EXPECT().MarkRead(gomock.Any(), "n3", "user1", true).Return(model.Notification{}, biddingerrors.ErrNotificationNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "notification not found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(tc.method, tc.path, encodeBody(t, tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, decodeResponse(t, w)["message"], tc.expectedMsg)
		})
	}
}

func TestNotificationHandler_AuctionStream(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	listings := NewMockListingServiceInterface(ctrl)
	hub := notify.NewHub(4)
	handler := NewNotificationHandler(NewMockNotificationServiceInterface(ctrl), listings, hub)

	router := gin.New()
	router.GET("/auctions/:auction_id/stream", handler.AuctionStreamHandler)

	t.Run("unknown_auction", func(t *testing.T) {
		listings.EXPECT().GetAuction(gomock.Any(), "missing").Return(model.Auction{}, biddingerrors.ErrAuctionNotFound)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auctions/missing/stream", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("streams_updates", func(t *testing.T) {
		listings.EXPECT().GetAuction(gomock.Any(), "a1").Return(model.Auction{AuctionID: "a1"}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/auctions/a1/stream", nil).WithContext(ctx)
		w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1), flushed: make(chan struct{}, 1)}

		done := make(chan struct{})
		go func() {
			defer close(done)
			router.ServeHTTP(w, req)
		}()

		key := model.AuctionTopic("a1").Key()
		require.Eventually(t, func() bool { return hub.Subscribers(key) == 1 }, time.Second, 5*time.Millisecond)

		hub.Publish(key, notify.Message{Event: notify.EventAuctionUpdate, Data: model.AuctionUpdate{AuctionID: "a1", CurrentBid: 910}})
		select {
		case <-w.flushed:
		case <-time.After(time.Second):
			t.Fatal("stream did not write the update")
		}

		cancel()
		<-done

		body := w.Body.String()
		require.True(t, strings.Contains(body, "event:"+notify.EventAuctionUpdate), body)
		require.Contains(t, body, `"current_bid":910`)
		require.Zero(t, hub.Subscribers(key))
	})
}
