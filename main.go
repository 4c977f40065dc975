package main

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/clock"
	"auction-engine/internal/config"
	"auction-engine/internal/fanout"
	listing "auction-engine/internal/listingService"
	notification "auction-engine/internal/notificationService"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// stores is everything the services persist through
type stores interface {
	repository.AuctionStore
	repository.BidLedger
	repository.NotificationRepository
	repository.WatchlistRepository
}

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		utils.Fatal("configuration error", map[string]any{"error": err.Error()})
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("configuration error", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStores(ctx, cfg)
	if err != nil {
		utils.Fatal("storage initialization error", map[string]any{"error": err.Error()})
	}
	defer closeRepo()

	clk := clock.NewSystem()
	hub := notify.NewHub(0)
	dispatcher := fanout.NewDispatcher(notify.NewSink(hub, repo, utils.GenerateID), cfg.NotifyQueueSize)

	biddingSvc := bidding.NewBiddingService(repo, repo, dispatcher, clk)
	listingSvc := listing.NewListingService(repo, repo, clk)
	notificationSvc := notification.NewNotificationService(repo)

	if cfg.SeedDemoData {
		seedAuctions(ctx, listingSvc, clk)
	}

	router := server.SetupRouter(server.Services{
		Bidding:       biddingSvc,
		Listings:      listingSvc,
		Notifications: notificationSvc,
		Hub:           hub,
		Limiter:       server.NewBidLimiter(cfg.BidRateLimit, int(cfg.BidRateLimit)+1),
	})

	srv := server.NewHTTPServer(cfg.RunAddress, router)

	// the dispatcher outlives the server so bids accepted during shutdown still notify
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})

	g.Go(func() error {
		utils.Info("starting auction server", map[string]any{"addr": cfg.RunAddress, "postgres": cfg.DatabaseURI != ""})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		utils.Info("shutting down server", nil)
		defer stopDispatch()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		utils.Info("server stopped gracefully", nil)
		return nil
	})

	if err := g.Wait(); err != nil {
		utils.Error("application terminated with error", map[string]any{"error": err.Error()})
		closeRepo()
		os.Exit(1)
	}
}

// openStores picks Postgres when a database URI is configured and the
// in-memory stores otherwise
func openStores(ctx context.Context, cfg *config.Config) (stores, func(), error) {
	if cfg.DatabaseURI == "" {
		utils.Info("using in-memory storage", nil)
		return repository.NewMemoryRepo(utils.GenerateID), func() {}, nil
	}

	repo, err := repository.NewPostgresRepo(ctx, cfg.DatabaseURI, repository.WithMaxRetries(cfg.StoreMaxRetries))
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

// seedAuctions lists a few sample auctions for local runs
func seedAuctions(ctx context.Context, svc *listing.ListingService, clk clock.Clock) {
	now := clk.Now()
	inc := 10.0
	ending := now.Add(90 * time.Second)
	later := now.Add(24 * time.Hour)
	tomorrow := now.Add(12 * time.Hour)

	samples := []listing.AuctionInput{
		{ProductName: "Vintage Film Camera", Category: "Electronics", Condition: "Used", StartingPrice: 900, MinIncrement: &inc, EndTime: &later},
		{ProductName: "Signed First Edition", Category: "Books", Condition: "Like New", StartingPrice: 200, EndTime: &ending, AutoExtend: true},
		{ProductName: "Mechanical Watch", Category: "Accessories", Condition: "New", StartingPrice: 150, StartTime: &tomorrow, EndTime: &later},
	}

	for _, in := range samples {
		a, err := svc.CreateAuction(ctx, "demo-seller", in)
		if err != nil {
			utils.Warn("failed to seed auction", map[string]any{"product": in.ProductName, "error": err.Error()})
			continue
		}
		utils.Info("seeded auction", map[string]any{"auctionID": a.AuctionID, "status": a.Status})
	}
}
