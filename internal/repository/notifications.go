package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"time"
)

// PersistNotification stores a notification record and returns its ID
func (r *MemoryRepo) PersistNotification(_ context.Context, n model.Notification) (string, error) {
	if n.UserID == "" {
		return "", fmt.Errorf("persist notification: empty user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n.NotificationID == "" {
		n.NotificationID = r.newID()
	}
	r.notifications[n.NotificationID] = n
	r.userNotifs[n.UserID] = append(r.userNotifs[n.UserID], n.NotificationID)
	return n.NotificationID, nil
}

// GetNotification returns a single notification
func (r *MemoryRepo) GetNotification(_ context.Context, notificationID string) (model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[notificationID]
	if !ok {
		return model.Notification{}, fmt.Errorf("get notification %s: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	return n, nil
}

// GetNotificationsByUser returns a user's notifications, newest first
func (r *MemoryRepo) GetNotificationsByUser(_ context.Context, userID string) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.userNotifs[userID]
	out := make([]model.Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, r.notifications[ids[i]])
	}
	return out, nil
}

// SetNotificationRead marks a notification read or unread
func (r *MemoryRepo) SetNotificationRead(_ context.Context, notificationID string, read bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok {
		return fmt.Errorf("mark notification %s: %w", notificationID, biddingerrors.ErrNotificationNotFound)
	}
	n.Read = read
	r.notifications[notificationID] = n
	return nil
}

// ToggleWatch adds the auction to the user's watchlist, or removes it when
// already present. It reports whether the auction is watched afterwards.
func (r *MemoryRepo) ToggleWatch(_ context.Context, userID, auctionID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[auctionID]; !ok {
		return false, fmt.Errorf("watch auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	watched := r.watches[userID]
	if _, ok := watched[auctionID]; ok {
		delete(watched, auctionID)
		return false, nil
	}
	if watched == nil {
		watched = make(map[string]time.Time)
		r.watches[userID] = watched
	}
	watched[auctionID] = now
	return true, nil
}

// GetWatchedAuctions returns the auctions a user watches
func (r *MemoryRepo) GetWatchedAuctions(_ context.Context, userID string) ([]model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Auction, 0, len(r.watches[userID]))
	for id := range r.watches[userID] {
		if a, ok := r.auctions[id]; ok {
			out = append(out, a.Clone())
		}
	}
	sortAuctions(out)
	return out, nil
}
