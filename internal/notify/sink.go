package notify

import (
	"auction-engine/internal/models"
	"auction-engine/internal/repository"
	"context"
	"fmt"
)

// SSE event names
const (
	EventAuctionUpdate = "auction_update"
	EventNotification  = "notification"
)

// Sink delivers notifications to the hub and the notification store
type Sink struct {
	hub   *Hub
	repo  repository.NotificationRepository
	newID func() string
}

// NewSink creates a Sink. newID assigns notification IDs.
func NewSink(hub *Hub, repo repository.NotificationRepository, newID func() string) *Sink {
	return &Sink{hub: hub, repo: repo, newID: newID}
}

// Persist writes the durable record and returns it with its ID
func (s *Sink) Persist(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.NotificationID == "" {
		n.NotificationID = s.newID()
	}
	id, err := s.repo.PersistNotification(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("sink: persist notification for user %s: %w", n.UserID, err)
	}
	n.NotificationID = id
	return n, nil
}

// Push publishes payload to the target's live subscribers
func (s *Sink) Push(ctx context.Context, target models.Target, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := EventNotification
	if target.IsTopic() {
		event = EventAuctionUpdate
	}
	if dropped := s.hub.Publish(target.Key(), Message{Event: event, Data: payload}); dropped > 0 {
		return fmt.Errorf("sink: %d slow subscribers on %s missed a message", dropped, target.Key())
	}
	return nil
}
