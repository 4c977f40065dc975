// Package fanout turns bid outcomes and winner declarations into the list of
// events each interested party receives. Deriving events is pure; delivery is
// handled by Dispatcher.
package fanout

import (
	"fmt"
	"time"

	"auction-engine/internal/models"
)

const (
	msgBidPlaced      = "Bid placed successfully!"
	msgOutbid         = "You were outbid on %s"
	msgNewBid         = "New bid placed on your auction: %s"
	msgWon            = "You won %s"
	msgWinnerDeclared = "Winner declared for %s"
)

// Event is one message for one target. Topic targets carry Update, user
// targets carry Severity and Message.
type Event struct {
	Target    models.Target
	Severity  models.Severity
	Message   string
	Update    *models.AuctionUpdate
	CreatedAt time.Time
}

// Notification builds the durable record for a user-targeted event.
func (e Event) Notification() models.Notification {
	return models.Notification{
		UserID:    e.Target.UserID,
		Message:   e.Message,
		Severity:  e.Severity,
		CreatedAt: e.CreatedAt,
	}
}

// ForBid returns the events for a bid attempt by bidderID.
//
// A rejection yields one error event to the bidder. An acceptance yields, in
// order: the auction topic update, success to the bidder, a warning to the
// previous leader when there was one and it is someone else, and info to the
// seller.
func ForBid(outcome models.BidOutcome, bidderID string, now time.Time) []Event {
	if !outcome.Accepted {
		return []Event{userEvent(bidderID, models.SeverityError, outcome.Reason, now)}
	}

	a := outcome.Auction
	bidTime := outcome.Bid.CreatedAt
	events := []Event{
		{
			Target: models.AuctionTopic(a.AuctionID),
			Update: &models.AuctionUpdate{
				AuctionID:       a.AuctionID,
				CurrentBid:      a.CurrentBid,
				BidCount:        a.BidCount,
				BidTime:         &bidTime,
				EndTime:         copyTime(a.EndTime),
				Status:          a.Status,
				HighestBidderID: a.HighestBidderID,
			},
			CreatedAt: now,
		},
		userEvent(bidderID, models.SeveritySuccess, msgBidPlaced, now),
	}

	if prev := outcome.PreviousBidderID; prev != "" && prev != bidderID {
		events = append(events, userEvent(prev, models.SeverityWarning, fmt.Sprintf(msgOutbid, a.ProductName), now))
	}

	events = append(events, userEvent(a.SellerID, models.SeverityInfo, fmt.Sprintf(msgNewBid, a.ProductName), now))
	return events
}

// ForWinner returns the events for a closed auction: the topic update with
// the final status and winner, success to the winner and info to the seller.
func ForWinner(a models.Auction, now time.Time) []Event {
	return []Event{
		{
			Target: models.AuctionTopic(a.AuctionID),
			Update: &models.AuctionUpdate{
				AuctionID:       a.AuctionID,
				CurrentBid:      a.CurrentBid,
				BidCount:        a.BidCount,
				EndTime:         copyTime(a.EndTime),
				Status:          models.StatusEnded,
				HighestBidderID: a.HighestBidderID,
			},
			CreatedAt: now,
		},
		userEvent(a.HighestBidderID, models.SeveritySuccess, fmt.Sprintf(msgWon, a.ProductName), now),
		userEvent(a.SellerID, models.SeverityInfo, fmt.Sprintf(msgWinnerDeclared, a.ProductName), now),
	}
}

func userEvent(userID string, severity models.Severity, message string, now time.Time) Event {
	return Event{
		Target:    models.UserTarget(userID),
		Severity:  severity,
		Message:   message,
		CreatedAt: now,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
