package bidding

import (
	"auction-engine/internal/auctionstate"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/clock"
	"auction-engine/internal/fanout"
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMinIncrement applies when an auction has no minimum increment of its own.
	DefaultMinIncrement = 1.0

	// A bid landing within snipeWindow of the close pushes the close out by snipeExtension.
	snipeWindow    = 60 * time.Second
	snipeExtension = 2 * time.Minute
)

// Publisher receives the events produced by each bid and winner declaration.
// Implementations must not block.
type Publisher interface {
	Publish(events []fanout.Event)
}

// BiddingService arbitrates bids: it validates each bid against the current
// auction state and applies it atomically through the store.
type BiddingService struct {
	store     repository.AuctionStore
	ledger    repository.BidLedger
	publisher Publisher
	clock     clock.Clock
	newID     func() string
	tracer    trace.Tracer
}

// Option customises a BiddingService
type Option func(*BiddingService)

// WithIDGenerator overrides how bid IDs are generated
func WithIDGenerator(newID func() string) Option {
	return func(s *BiddingService) { s.newID = newID }
}

// WithTracer overrides the tracer used for spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *BiddingService) { s.tracer = tracer }
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(store repository.AuctionStore, ledger repository.BidLedger, publisher Publisher, clk clock.Clock, opts ...Option) *BiddingService {
	s := &BiddingService{
		store:     store,
		ledger:    ledger,
		publisher: publisher,
		clock:     clk,
		newID:     utils.GenerateID,
		tracer:    otel.Tracer("auction-engine/bidding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates a bid and, when it qualifies, records it and makes the
// bidder the auction's leader in one atomic update.
//
// Rejections (auction ended, bid too low) are reported in the outcome with a
// nil error. Errors are reserved for unknown auctions, malformed input,
// cancellation and storage failures, none of which leave a trace.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64) (models.BidOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "bidding.PlaceBid", trace.WithAttributes(
		attribute.String("auction.id", auctionID),
		attribute.String("bidder.id", bidderID),
		attribute.Float64("bid.amount", amount),
	))
	defer span.End()

	if auctionID == "" || bidderID == "" {
		return models.BidOutcome{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return models.BidOutcome{}, fmt.Errorf("service: %w - bid amount must be a positive number", biddingerrors.ErrInvalidBid)
	}
	// validate, store and report the same cent amount
	amount = utils.TruncateMoney(amount)
	if amount <= 0 {
		return models.BidOutcome{}, fmt.Errorf("service: %w - bid amount must be at least one cent", biddingerrors.ErrInvalidBid)
	}

	var (
		outcome models.BidOutcome
		now     time.Time
	)

	updated, err := s.store.AtomicUpdate(ctx, auctionID, func(ctx context.Context, a *models.Auction) error {
		// the store may retry the mutator; every attempt starts clean
		outcome = models.BidOutcome{}
		if err := ctx.Err(); err != nil {
			return err
		}

		now = s.clock.Now()
		if reason, err := checkBid(*a, amount, now); err != nil {
			outcome = models.BidOutcome{Accepted: false, Reason: reason, Err: err, Auction: auctionstate.Apply(*a, now)}
			return err
		}

		previous := a.HighestBidderID

		extendForSniping(a, now)
		a.CurrentBid = amount
		a.HighestBidderID = bidderID
		a.BidCount++
		a.UpdatedAt = now
		*a = auctionstate.Apply(*a, now)

		bid, err := s.ledger.AppendBid(ctx, models.Bid{
			BidID:     s.newID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("service: failed to record bid on auction %s: %w", auctionID, err)
		}

		outcome = models.BidOutcome{Accepted: true, Bid: bid, PreviousBidderID: previous}
		return nil
	})

	switch {
	case err == nil:
		outcome.Auction = updated
	case isRejection(err):
		span.SetAttributes(attribute.String("bid.rejected", outcome.Reason))
		utils.Info("Bid rejected", map[string]any{"auctionID": auctionID, "bidderID": bidderID, "amount": amount, "reason": outcome.Reason})
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "place bid failed")
		return models.BidOutcome{}, fmt.Errorf("service: failed to place bid on auction %s: %w", auctionID, err)
	}

	s.publisher.Publish(fanout.ForBid(outcome, bidderID, now))
	return outcome, nil
}

// checkBid applies the bid rules in order: the auction must still be open,
// then the amount must clear the current bid by the minimum increment.
func checkBid(a models.Auction, amount float64, now time.Time) (string, error) {
	if a.Closed || (a.EndTime != nil && now.After(*a.EndTime)) {
		return "Bid failed: auction ended", biddingerrors.ErrAuctionEnded
	}

	increment := decimal.NewFromFloat(MinIncrement(a))
	minimum := decimal.NewFromFloat(a.CurrentBid).Add(increment)
	if decimal.NewFromFloat(amount).LessThan(minimum) {
		return fmt.Sprintf("Bid failed: minimum increment is $%s (minimum bid $%s)", formatMoney(increment), formatMoney(minimum)),
			biddingerrors.ErrBidTooLow
	}
	return "", nil
}

// MinIncrement resolves the effective minimum increment for a.
func MinIncrement(a models.Auction) float64 {
	if a.MinIncrement == nil || *a.MinIncrement <= 0 {
		return DefaultMinIncrement
	}
	return *a.MinIncrement
}

// MinimumBid is the smallest amount that would currently be accepted on a.
func MinimumBid(a models.Auction) float64 {
	return decimal.NewFromFloat(a.CurrentBid).Add(decimal.NewFromFloat(MinIncrement(a))).InexactFloat64()
}

// extendForSniping pushes the close time out when a bid lands in the final
// window. It uses the end time before the bid and never extends twice for
// the same window.
func extendForSniping(a *models.Auction, now time.Time) {
	if !a.AutoExtend || a.EndTime == nil {
		return
	}
	remaining := a.EndTime.Sub(now)
	if remaining > 0 && remaining <= snipeWindow {
		extended := a.EndTime.Add(snipeExtension)
		a.EndTime = &extended
	}
}

func formatMoney(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.String()
	}
	return d.StringFixed(2)
}

func isRejection(err error) bool {
	return errors.Is(err, biddingerrors.ErrAuctionEnded) || errors.Is(err, biddingerrors.ErrBidTooLow)
}

// DeclareWinner closes the auction in favour of its highest bidder. Only the
// seller may do this, and only once there is a bidder.
func (s *BiddingService) DeclareWinner(ctx context.Context, auctionID, callerID string) (models.Auction, error) {
	ctx, span := s.tracer.Start(ctx, "bidding.DeclareWinner", trace.WithAttributes(
		attribute.String("auction.id", auctionID),
		attribute.String("caller.id", callerID),
	))
	defer span.End()

	if auctionID == "" || callerID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - missing auctionID or callerID", biddingerrors.ErrInvalidAuction)
	}

	var now time.Time
	updated, err := s.store.AtomicUpdate(ctx, auctionID, func(_ context.Context, a *models.Auction) error {
		now = s.clock.Now()
		if a.SellerID != callerID {
			return fmt.Errorf("service: %w - only the seller can declare a winner", biddingerrors.ErrForbidden)
		}
		if a.Closed {
			return fmt.Errorf("service: %w - winner already declared", biddingerrors.ErrAuctionEnded)
		}
		if a.HighestBidderID == "" {
			return fmt.Errorf("service: %w - auction %s has no bids", biddingerrors.ErrNoBidder, auctionID)
		}

		a.Enabled = false
		a.Closed = true
		if a.EndTime == nil || a.EndTime.After(now) {
			end := now
			a.EndTime = &end
		}
		a.UpdatedAt = now
		*a = auctionstate.Apply(*a, now)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return models.Auction{}, fmt.Errorf("service: failed to declare winner for auction %s: %w", auctionID, err)
	}

	utils.Info("Winner declared", map[string]any{"auctionID": auctionID, "winnerID": updated.HighestBidderID, "amount": updated.CurrentBid})
	s.publisher.Publish(fanout.ForWinner(updated, now))
	return updated, nil
}

// GetAuction returns an auction with its status derived at the current time
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	a, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return auctionstate.Apply(a, s.clock.Now()), nil
}

// GetBidsForAuction returns all bids for an auction, newest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.ledger.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// GetAuctionsByBidder returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByBidder(ctx context.Context, bidderID string) ([]models.Auction, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.store.ListAuctionsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", bidderID, err)
	}

	now := s.clock.Now()
	for i := range auctions {
		auctions[i] = auctionstate.Apply(auctions[i], now)
	}
	return auctions, nil
}
