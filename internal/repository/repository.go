package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Mutator changes a working copy of an auction while the store holds it
// exclusively. Returning an error aborts the update and nothing is persisted.
type Mutator func(ctx context.Context, auction *model.Auction) error

// AuctionStore owns persisted auction state
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction model.Auction) error
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	// AtomicUpdate runs fn under per-auction exclusivity and persists the result.
	AtomicUpdate(ctx context.Context, auctionID string, fn Mutator) (model.Auction, error)
	ListAuctions(ctx context.Context) ([]model.Auction, error)
	ListAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	ListAuctionsByBidder(ctx context.Context, bidderID string) ([]model.Auction, error)
}

// BidLedger is the append-only store of accepted bids
type BidLedger interface {
	AppendBid(ctx context.Context, bid model.Bid) (model.Bid, error)
	// GetBidsByAuction returns bids newest first.
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
}

// NotificationRepository stores the durable per-user notification records
type NotificationRepository interface {
	PersistNotification(ctx context.Context, n model.Notification) (string, error)
	GetNotification(ctx context.Context, notificationID string) (model.Notification, error)
	// GetNotificationsByUser returns notifications newest first.
	GetNotificationsByUser(ctx context.Context, userID string) ([]model.Notification, error)
	SetNotificationRead(ctx context.Context, notificationID string, read bool) error
}

// WatchlistRepository tracks which auctions a user follows
type WatchlistRepository interface {
	ToggleWatch(ctx context.Context, userID, auctionID string, now time.Time) (bool, error)
	GetWatchedAuctions(ctx context.Context, userID string) ([]model.Auction, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of every store.
// mu guards the maps; each auction additionally has its own lock that is held
// across an AtomicUpdate so bids on one auction serialize while bids on
// different auctions run in parallel.
type MemoryRepo struct {
	mu            sync.RWMutex
	auctions      map[string]model.Auction        // key: auctionID -> value: auction
	bids          map[string][]model.Bid          // key: auctionID -> value: bids in acceptance order
	bidderAuction map[string][]string             // key: bidderID -> value: auctionIDs the bidder has bid on
	notifications map[string]model.Notification   // key: notificationID -> value: notification
	userNotifs    map[string][]string             // key: userID -> value: notificationIDs in creation order
	watches       map[string]map[string]time.Time // key: userID -> auctionID -> watched since

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	newID func() string
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo(newID func() string) *MemoryRepo {
	return &MemoryRepo{
		auctions:      make(map[string]model.Auction),
		bids:          make(map[string][]model.Bid),
		bidderAuction: make(map[string][]string),
		notifications: make(map[string]model.Notification),
		userNotifs:    make(map[string][]string),
		watches:       make(map[string]map[string]time.Time),
		locks:         make(map[string]chan struct{}),
		newID:         newID,
	}
}

// CreateAuction stores a new auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auction.AuctionID]; ok {
		return fmt.Errorf("create auction %s: %w - duplicate ID", auction.AuctionID, biddingerrors.ErrInvalidAuction)
	}
	r.auctions[auction.AuctionID] = auction.Clone()
	return nil
}

// GetAuction returns a copy of the stored auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return a.Clone(), nil
}

// AtomicUpdate holds the auction's lock across read, fn and write.
// Lock acquisition honours ctx so a request that times out while queued
// leaves no trace.
func (r *MemoryRepo) AtomicUpdate(ctx context.Context, auctionID string, fn Mutator) (model.Auction, error) {
	if _, err := r.GetAuction(ctx, auctionID); err != nil {
		return model.Auction{}, err
	}

	lock := r.lockFor(auctionID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return model.Auction{}, fmt.Errorf("lock auction %s: %w", auctionID, ctx.Err())
	}
	defer func() { <-lock }()

	working, err := r.GetAuction(ctx, auctionID)
	if err != nil {
		return model.Auction{}, err
	}

	if err := fn(ctx, &working); err != nil {
		return model.Auction{}, err
	}

	working.Version++

	r.mu.Lock()
	r.auctions[auctionID] = working.Clone()
	r.mu.Unlock()

	return working, nil
}

func (r *MemoryRepo) lockFor(auctionID string) chan struct{} {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[auctionID]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[auctionID] = lock
	}
	return lock
}

// ListAuctions returns all auctions ordered by creation time
func (r *MemoryRepo) ListAuctions(_ context.Context) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		out = append(out, a.Clone())
	}
	sortAuctions(out)
	return out, nil
}

// ListAuctionsBySeller returns the auctions listed by a seller
func (r *MemoryRepo) ListAuctionsBySeller(_ context.Context, sellerID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0)
	for _, a := range r.auctions {
		if a.SellerID == sellerID {
			out = append(out, a.Clone())
		}
	}
	sortAuctions(out)
	return out, nil
}

// ListAuctionsByBidder returns all auctions a user has bid on
func (r *MemoryRepo) ListAuctionsByBidder(_ context.Context, bidderID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bidderAuction[bidderID]
	out := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		if a, ok := r.auctions[id]; ok {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

// AppendBid records an accepted bid and assigns its sequence number
func (r *MemoryRepo) AppendBid(_ context.Context, bid model.Bid) (model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[bid.AuctionID]; !ok {
		return model.Bid{}, fmt.Errorf("append bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}

	bid.Sequence = int64(len(r.bids[bid.AuctionID]) + 1)
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)

	for _, id := range r.bidderAuction[bid.BidderID] {
		if id == bid.AuctionID {
			return bid, nil
		}
	}
	r.bidderAuction[bid.BidderID] = append(r.bidderAuction[bid.BidderID], bid.AuctionID)

	return bid, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	bids := make([]model.Bid, len(r.bids[auctionID]))
	copy(bids, r.bids[auctionID])
	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.After(bids[j].CreatedAt)
		}
		return bids[i].Sequence > bids[j].Sequence
	})
	return bids, nil
}

func sortAuctions(auctions []model.Auction) {
	sort.Slice(auctions, func(i, j int) bool {
		if !auctions[i].CreatedAt.Equal(auctions[j].CreatedAt) {
			return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
		}
		return auctions[i].AuctionID < auctions[j].AuctionID
	})
}
