package server

import (
	handler "auction-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer calls into
type Services struct {
	Bidding       handler.BiddingServiceInterface
	Listings      handler.ListingServiceInterface
	Notifications handler.NotificationServiceInterface
	Hub           handler.Subscriber
	// Limiter throttles bid placement per bidder; nil disables it.
	Limiter *BidLimiter
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(svc Services) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware)

	biddingHandler := handler.NewBiddingHandler(svc.Bidding)
	auctionHandler := handler.NewAuctionHandler(svc.Listings)
	notificationHandler := handler.NewNotificationHandler(svc.Notifications, svc.Listings, svc.Hub)

	limiter := svc.Limiter
	if limiter == nil {
		limiter = NewBidLimiter(0, 1)
	}

	public := router.Group("/auctions")
	{
		public.GET("", auctionHandler.ListAuctionsHandler)
		public.GET("/live", auctionHandler.ListLiveAuctionsHandler)
		public.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		public.GET("/:auction_id/bids", biddingHandler.GetBidsHandler)
		public.GET("/:auction_id/stream", notificationHandler.AuctionStreamHandler)
	}

	auctions := router.Group("/auctions", IdentityMiddleware)
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.PUT("/:auction_id", auctionHandler.UpdateAuctionHandler)
		auctions.PUT("/:auction_id/status", auctionHandler.SetStatusHandler)
		auctions.PUT("/:auction_id/declare-winner", biddingHandler.DeclareWinnerHandler)
		auctions.POST("/:auction_id/bids", limiter.Middleware, biddingHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/watch", auctionHandler.ToggleWatchHandler)
	}

	users := router.Group("/users/me", IdentityMiddleware)
	{
		users.GET("/auctions", auctionHandler.GetMyAuctionsHandler)
		users.GET("/bids", biddingHandler.GetMyBidAuctionsHandler)
		users.GET("/watchlist", auctionHandler.GetWatchlistHandler)
		users.GET("/notifications", notificationHandler.GetNotificationsHandler)
		users.GET("/stream", notificationHandler.UserStreamHandler)
	}

	notifications := router.Group("/notifications", IdentityMiddleware)
	{
		notifications.PUT("/:notification_id/read", notificationHandler.MarkReadHandler)
	}

	return router
}
