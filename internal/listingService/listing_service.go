package listing

import (
	"auction-engine/internal/auctionstate"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/clock"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// AuctionInput carries the seller-editable fields of an auction
type AuctionInput struct {
	ProductName   string
	Category      string
	Description   string
	Condition     string
	ImageURL      string
	ImageURLs     []string
	StartingPrice float64
	MinIncrement  *float64
	BuyNowPrice   *float64
	StartTime     *time.Time
	EndTime       *time.Time
	AutoExtend    bool
	// Enabled defaults to true when nil.
	Enabled *bool
}

// ListingService manages auction listings and watchlists on behalf of sellers and buyers
type ListingService struct {
	store   repository.AuctionStore
	watches repository.WatchlistRepository
	clock   clock.Clock
	newID   func() string
}

// NewListingService creates a new ListingService instance
func NewListingService(store repository.AuctionStore, watches repository.WatchlistRepository, clk clock.Clock) *ListingService {
	return &ListingService{
		store:   store,
		watches: watches,
		clock:   clk,
		newID:   utils.GenerateID,
	}
}

// CreateAuction validates the input and lists a new auction for sellerID
func (s *ListingService) CreateAuction(ctx context.Context, sellerID string, in AuctionInput) (models.Auction, error) {
	if sellerID == "" {
		return models.Auction{}, fmt.Errorf("listing: %w - missing seller", biddingerrors.ErrInvalidAuction)
	}

	now := s.clock.Now()
	if in.StartTime == nil {
		start := now
		in.StartTime = &start
	}
	in = truncatePrices(in)
	if err := validateInput(in); err != nil {
		return models.Auction{}, err
	}

	a := models.Auction{
		AuctionID: s.newID(),
		SellerID:  sellerID,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(&a, in)
	a = auctionstate.Apply(a, now)

	if err := s.store.CreateAuction(ctx, a); err != nil {
		return models.Auction{}, fmt.Errorf("listing: failed to create auction: %w", err)
	}

	utils.Info("Auction created", map[string]any{"auctionID": a.AuctionID, "sellerID": sellerID, "status": a.Status})
	return a, nil
}

// UpdateAuction replaces the editable fields of an auction. Only the seller
// may edit, and only before the auction starts or receives a bid.
func (s *ListingService) UpdateAuction(ctx context.Context, auctionID, callerID string, in AuctionInput) (models.Auction, error) {
	in = truncatePrices(in)
	if err := validateInput(in); err != nil {
		return models.Auction{}, err
	}

	updated, err := s.store.AtomicUpdate(ctx, auctionID, func(_ context.Context, a *models.Auction) error {
		now := s.clock.Now()
		if a.SellerID != callerID {
			return fmt.Errorf("listing: %w - only the seller can edit an auction", biddingerrors.ErrForbidden)
		}
		if a.Closed || a.BidCount > 0 || (a.StartTime != nil && now.After(*a.StartTime)) {
			return fmt.Errorf("listing: %w - auction %s can no longer be edited", biddingerrors.ErrAuctionStarted, auctionID)
		}
		if in.StartTime == nil {
			in.StartTime = a.StartTime
			if err := validateInput(in); err != nil {
				return err
			}
		}
		applyInput(a, in)
		a.UpdatedAt = now
		*a = auctionstate.Apply(*a, now)
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("listing: failed to update auction %s: %w", auctionID, err)
	}
	return updated, nil
}

// SetEnabled toggles whether an auction is visible and accepting bids. The
// status is re-derived from the new flag.
func (s *ListingService) SetEnabled(ctx context.Context, auctionID, callerID string, enabled bool) (models.Auction, error) {
	updated, err := s.store.AtomicUpdate(ctx, auctionID, func(_ context.Context, a *models.Auction) error {
		now := s.clock.Now()
		if a.SellerID != callerID {
			return fmt.Errorf("listing: %w - only the seller can change auction status", biddingerrors.ErrForbidden)
		}
		if a.Closed {
			return fmt.Errorf("listing: %w - winner already declared", biddingerrors.ErrAuctionEnded)
		}
		a.Enabled = enabled
		a.UpdatedAt = now
		*a = auctionstate.Apply(*a, now)
		return nil
	})
	if err != nil {
		return models.Auction{}, fmt.Errorf("listing: failed to set status of auction %s: %w", auctionID, err)
	}

	utils.Info("Auction status changed", map[string]any{"auctionID": auctionID, "enabled": enabled, "status": updated.Status})
	return updated, nil
}

// GetAuction returns an auction with its status derived at the current time
func (s *ListingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("listing: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("listing: failed to get auction %s: %w", auctionID, err)
	}
	return auctionstate.Apply(a, s.clock.Now()), nil
}

// ListAll returns every auction
func (s *ListingService) ListAll(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.store.ListAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing: failed to list auctions: %w", err)
	}
	return s.stamp(auctions), nil
}

// ListLive returns the auctions currently accepting bids
func (s *ListingService) ListLive(ctx context.Context) ([]models.Auction, error) {
	auctions, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	live := make([]models.Auction, 0, len(auctions))
	for _, a := range auctions {
		if a.Status == models.StatusLive {
			live = append(live, a)
		}
	}
	return live, nil
}

// ListBySeller returns the auctions listed by sellerID
func (s *ListingService) ListBySeller(ctx context.Context, sellerID string) ([]models.Auction, error) {
	auctions, err := s.store.ListAuctionsBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("listing: failed to list auctions for seller %s: %w", sellerID, err)
	}
	return s.stamp(auctions), nil
}

// ToggleWatch adds or removes an auction from the user's watchlist and
// reports whether it is watched afterwards
func (s *ListingService) ToggleWatch(ctx context.Context, userID, auctionID string) (bool, error) {
	if userID == "" || auctionID == "" {
		return false, fmt.Errorf("listing: %w - missing user or auction", biddingerrors.ErrInvalidAuction)
	}
	watched, err := s.watches.ToggleWatch(ctx, userID, auctionID, s.clock.Now())
	if err != nil {
		return false, fmt.Errorf("listing: failed to toggle watch on auction %s: %w", auctionID, err)
	}
	return watched, nil
}

// Watchlist returns the auctions userID watches
func (s *ListingService) Watchlist(ctx context.Context, userID string) ([]models.Auction, error) {
	auctions, err := s.watches.GetWatchedAuctions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing: failed to get watchlist for user %s: %w", userID, err)
	}
	return s.stamp(auctions), nil
}

func (s *ListingService) stamp(auctions []models.Auction) []models.Auction {
	now := s.clock.Now()
	for i := range auctions {
		auctions[i] = auctionstate.Apply(auctions[i], now)
	}
	return auctions
}

func validateInput(in AuctionInput) error {
	switch {
	case strings.TrimSpace(in.ProductName) == "":
		return fmt.Errorf("listing: %w - product name is required", biddingerrors.ErrInvalidAuction)
	case !positiveAmount(in.StartingPrice):
		return fmt.Errorf("listing: %w - starting price must be positive", biddingerrors.ErrInvalidAuction)
	case in.MinIncrement != nil && !positiveAmount(*in.MinIncrement):
		return fmt.Errorf("listing: %w - minimum increment must be positive", biddingerrors.ErrInvalidAuction)
	case in.BuyNowPrice != nil && (math.IsInf(*in.BuyNowPrice, 0) || !(*in.BuyNowPrice > in.StartingPrice)):
		return fmt.Errorf("listing: %w - buy now price must exceed the starting price", biddingerrors.ErrInvalidAuction)
	case in.StartTime != nil && in.EndTime != nil && !in.StartTime.Before(*in.EndTime):
		return fmt.Errorf("listing: %w - start time must be before end time", biddingerrors.ErrInvalidAuction)
	}
	return nil
}

func positiveAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// truncatePrices cuts prices to whole cents, the precision auctions are stored with
func truncatePrices(in AuctionInput) AuctionInput {
	in.StartingPrice = utils.TruncateMoney(in.StartingPrice)
	if in.MinIncrement != nil {
		v := utils.TruncateMoney(*in.MinIncrement)
		in.MinIncrement = &v
	}
	if in.BuyNowPrice != nil {
		v := utils.TruncateMoney(*in.BuyNowPrice)
		in.BuyNowPrice = &v
	}
	return in
}

// applyInput copies the editable fields; no bids exist yet so the current
// bid tracks the starting price.
func applyInput(a *models.Auction, in AuctionInput) {
	a.ProductName = strings.TrimSpace(in.ProductName)
	a.Category = in.Category
	a.Description = in.Description
	a.Condition = in.Condition
	a.ImageURL = in.ImageURL
	a.ImageURLs = in.ImageURLs
	a.StartingPrice = in.StartingPrice
	a.CurrentBid = in.StartingPrice
	a.MinIncrement = in.MinIncrement
	a.BuyNowPrice = in.BuyNowPrice
	a.StartTime = in.StartTime
	a.EndTime = in.EndTime
	a.AutoExtend = in.AutoExtend
	if in.Enabled != nil {
		a.Enabled = *in.Enabled
	}
}
