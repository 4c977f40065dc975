package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound        = errors.New("auction not found")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrConflictRetryExhausted = errors.New("auction update conflict, retry the request")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrAuctionEnded   = errors.New("auction ended")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrAuctionStarted = errors.New("auction already started")
	ErrForbidden      = errors.New("forbidden")
	ErrNoBidder       = errors.New("no highest bidder")
)
