// Package auctionstate derives the display status of an auction. It is the
// only place status is computed; every writer stamps status through Apply.
package auctionstate

import (
	"time"

	"auction-engine/internal/models"
)

// Status computes the status of a at now.
//
// The checks run in a fixed order: a closed auction is ENDED, a disabled one
// is DRAFT regardless of its window, then the end time, then the start time.
func Status(a models.Auction, now time.Time) models.Status {
	switch {
	case a.Closed:
		return models.StatusEnded
	case !a.Enabled:
		return models.StatusDraft
	case a.EndTime != nil && now.After(*a.EndTime):
		return models.StatusEnded
	case a.StartTime != nil && now.Before(*a.StartTime):
		return models.StatusScheduled
	default:
		return models.StatusLive
	}
}

// Apply stamps the derived status onto a and returns it.
func Apply(a models.Auction, now time.Time) models.Auction {
	a.Status = Status(a, now)
	return a
}

// IsLive reports whether a accepts bids at now by its window and enabled flag.
func IsLive(a models.Auction, now time.Time) bool {
	return Status(a, now) == models.StatusLive
}
