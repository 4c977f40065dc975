package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Helper to create a new Auction
func newAuction(auctionID, sellerID string, startingPrice float64, createdAt time.Time) model.Auction {
	end := createdAt.Add(time.Hour)
	return model.Auction{
		AuctionID:     auctionID,
		SellerID:      sellerID,
		ProductName:   fmt.Sprintf("%s product", auctionID),
		StartingPrice: startingPrice,
		CurrentBid:    startingPrice,
		EndTime:       &end,
		Enabled:       true,
		Status:        model.StatusLive,
		CreatedAt:     createdAt,
	}
}

// Helper to create a new Bid
func newBid(bidID, auctionID, bidderID string, amount float64, createdAt time.Time) model.Bid {
	return model.Bid{
		BidID:     bidID,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: createdAt,
	}
}

func newTestRepo(t *testing.T, auctions ...model.Auction) *MemoryRepo {
	t.Helper()
	repo := NewMemoryRepo(uuid.NewString)
	for _, a := range auctions {
		require.NoError(t, repo.CreateAuction(context.Background(), a))
	}
	return repo
}

// Test CreateAuction and GetAuction
func TestMemoryRepo_CreateAndGetAuction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

	tests := []struct {
		name      string
		auction   model.Auction
		wantError error
	}{
		{name: "valid_auction", auction: newAuction("auction2", "seller1", 75, now), wantError: nil},
		{name: "duplicate_id", auction: newAuction("auction1", "seller2", 10, now), wantError: biddingerrors.ErrInvalidAuction},
		{name: "empty_id", auction: newAuction("", "seller1", 10, now), wantError: biddingerrors.ErrInvalidAuction},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := repo.CreateAuction(ctx, tc.auction)
			if tc.wantError != nil {
				require.ErrorIs(t, err, tc.wantError)
				return
			}
			require.NoError(t, err)

			got, err := repo.GetAuction(ctx, tc.auction.AuctionID)
			require.NoError(t, err)
			require.Equal(t, tc.auction.AuctionID, got.AuctionID)
			require.Equal(t, tc.auction.StartingPrice, got.CurrentBid)
		})
	}

	t.Run("unknown_auction", func(t *testing.T) {
		t.Parallel()
		_, err := repo.GetAuction(ctx, "auctionX")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("returned_copy_is_detached", func(t *testing.T) {
		t.Parallel()
		got, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		*got.EndTime = got.EndTime.Add(24 * time.Hour)

		again, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.NotEqual(t, *got.EndTime, *again.EndTime)
	})
}

// Test AtomicUpdate
func TestMemoryRepo_AtomicUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("persists_mutation_and_bumps_version", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

		updated, err := repo.AtomicUpdate(ctx, "auction1", func(_ context.Context, a *model.Auction) error {
			a.CurrentBid = 60
			a.BidCount = 1
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, int64(1), updated.Version)

		stored, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, 60.0, stored.CurrentBid)
		require.Equal(t, 1, stored.BidCount)
	})

	t.Run("mutator_error_leaves_state_unchanged", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))
		before, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = repo.AtomicUpdate(ctx, "auction1", func(_ context.Context, a *model.Auction) error {
			a.CurrentBid = 999
			return boom
		})
		require.ErrorIs(t, err, boom)

		after, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("unknown_auction", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t)
		_, err := repo.AtomicUpdate(ctx, "auctionX", func(context.Context, *model.Auction) error { return nil })
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("cancelled_while_waiting_for_lock", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

		holding := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = repo.AtomicUpdate(ctx, "auction1", func(context.Context, *model.Auction) error {
				close(holding)
				<-release
				return nil
			})
		}()
		<-holding

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := repo.AtomicUpdate(waitCtx, "auction1", func(_ context.Context, a *model.Auction) error {
			a.CurrentBid = 1000
			return nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		<-done

		stored, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, 50.0, stored.CurrentBid)
		require.Equal(t, int64(1), stored.Version)
	})

	// concurrency test: read-modify-write under the lock never loses an update
	t.Run("concurrent_increments", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

		var wg sync.WaitGroup
		concurrentCount := 100
		errs := make(chan error, concurrentCount)

		for i := 0; i < concurrentCount; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.AtomicUpdate(ctx, "auction1", func(_ context.Context, a *model.Auction) error {
					a.BidCount++
					return nil
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		stored, err := repo.GetAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Equal(t, concurrentCount, stored.BidCount)
		require.Equal(t, int64(concurrentCount), stored.Version)
	})
}

// Test AppendBid and GetBidsByAuction
func TestMemoryRepo_Bids(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := newTestRepo(t,
		newAuction("auction1", "seller1", 50, now),
		newAuction("auction2", "seller1", 75, now),
		newAuction("auction3", "seller2", 100, now),
	)

	bid1, err := repo.AppendBid(ctx, newBid("bid1", "auction1", "user1", 100, now))
	require.NoError(t, err)
	bid2, err := repo.AppendBid(ctx, newBid("bid2", "auction1", "user2", 150, now.Add(time.Second)))
	require.NoError(t, err)

	// same timestamp: acceptance order decides
	tieA, err := repo.AppendBid(ctx, newBid("tieA", "auction3", "userA", 200, now))
	require.NoError(t, err)
	tieB, err := repo.AppendBid(ctx, newBid("tieB", "auction3", "userB", 210, now))
	require.NoError(t, err)

	tests := []struct {
		name      string
		auctionID string
		wantBids  []model.Bid
		wantError bool
	}{
		{name: "newest_first", auctionID: "auction1", wantBids: []model.Bid{bid2, bid1}},
		{name: "no_bids", auctionID: "auction2", wantBids: []model.Bid{}},
		{name: "ties_by_sequence", auctionID: "auction3", wantBids: []model.Bid{tieB, tieA}},
		{name: "unknown_auction", auctionID: "auctionX", wantError: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			bids, err := repo.GetBidsByAuction(ctx, tc.auctionID)
			if tc.wantError {
				require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantBids, bids)
		})
	}

	t.Run("append_to_unknown_auction", func(t *testing.T) {
		t.Parallel()
		_, err := repo.AppendBid(ctx, newBid("bidX", "auctionX", "user1", 10, now))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("sequence_assigned_in_order", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, int64(1), bid1.Sequence)
		require.Equal(t, int64(2), bid2.Sequence)
	})

	t.Run("auctions_by_bidder_deduplicated", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("a1", "s", 10, now), newAuction("a2", "s", 10, now))
		for i, id := range []string{"a1", "a1", "a2"} {
			_, err := repo.AppendBid(ctx, newBid(fmt.Sprintf("b%d", i), id, "user6", float64(20+i), now))
			require.NoError(t, err)
		}

		auctions, err := repo.ListAuctionsByBidder(ctx, "user6")
		require.NoError(t, err)
		require.Len(t, auctions, 2)

		none, err := repo.ListAuctionsByBidder(ctx, "userX")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("concurrent_appends", func(t *testing.T) {
		t.Parallel()
		repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

		var wg sync.WaitGroup
		concurrentCount := 50
		errs := make(chan error, concurrentCount)
		for i := 0; i < concurrentCount; i++ {
			wg.Add(1)
			i := i
			go func() {
				defer wg.Done()
				_, err := repo.AppendBid(ctx, newBid(fmt.Sprintf("bid-%d", i), "auction1", fmt.Sprintf("user-%d", i), float64(100+i), now))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		bids, err := repo.GetBidsByAuction(ctx, "auction1")
		require.NoError(t, err)
		require.Len(t, bids, concurrentCount)
	})
}

// Test auction listings
func TestMemoryRepo_ListAuctions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := newTestRepo(t,
		newAuction("auction2", "seller1", 50, now.Add(time.Minute)),
		newAuction("auction1", "seller1", 50, now),
		newAuction("auction3", "seller2", 50, now.Add(2*time.Minute)),
	)

	all, err := repo.ListAuctions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "auction1", all[0].AuctionID)
	require.Equal(t, "auction3", all[2].AuctionID)

	bySeller, err := repo.ListAuctionsBySeller(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, bySeller, 2)
	require.Equal(t, "auction1", bySeller[0].AuctionID)
}

// Test notifications
func TestMemoryRepo_Notifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := newTestRepo(t)

	id1, err := repo.PersistNotification(ctx, model.Notification{UserID: "user1", Message: "first", Severity: model.SeverityInfo, CreatedAt: now})
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	id2, err := repo.PersistNotification(ctx, model.Notification{NotificationID: "fixed", UserID: "user1", Message: "second", Severity: model.SeverityWarning, CreatedAt: now})
	require.NoError(t, err)
	require.Equal(t, "fixed", id2)

	_, err = repo.PersistNotification(ctx, model.Notification{Message: "orphan"})
	require.Error(t, err)

	list, err := repo.GetNotificationsByUser(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "second", list[0].Message)

	require.NoError(t, repo.SetNotificationRead(ctx, id1, true))
	n, err := repo.GetNotification(ctx, id1)
	require.NoError(t, err)
	require.True(t, n.Read)

	require.ErrorIs(t, repo.SetNotificationRead(ctx, "missing", true), biddingerrors.ErrNotificationNotFound)
	_, err = repo.GetNotification(ctx, "missing")
	require.ErrorIs(t, err, biddingerrors.ErrNotificationNotFound)
}

// Test watchlist toggling
func TestMemoryRepo_ToggleWatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC()
	repo := newTestRepo(t, newAuction("auction1", "seller1", 50, now))

	watched, err := repo.ToggleWatch(ctx, "user1", "auction1", now)
	require.NoError(t, err)
	require.True(t, watched)

	list, err := repo.GetWatchedAuctions(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	watched, err = repo.ToggleWatch(ctx, "user1", "auction1", now)
	require.NoError(t, err)
	require.False(t, watched)

	list, err = repo.GetWatchedAuctions(ctx, "user1")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = repo.ToggleWatch(ctx, "user1", "auctionX", now)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
}
