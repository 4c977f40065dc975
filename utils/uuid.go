package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new random identifier for auctions, bids and notifications
func GenerateID() string {
	return uuid.NewString()
}

