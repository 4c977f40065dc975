package notification

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// Tests MarkRead
func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	stored := model.Notification{NotificationID: "n1", UserID: "user1", Message: "Bid placed successfully!", Severity: model.SeveritySuccess, CreatedAt: time.Now().UTC()}

	tests := []struct {
		name          string
		userID        string
		mockSetup     func(repo *repository.MockNotificationRepository)
		expectedError error
	}{
		{
			name:   "owner_marks_read",
			userID: "user1",
			mockSetup: func(repo *repository.MockNotificationRepository) {
				repo.EXPECT().GetNotification(gomock.Any(), "n1").Return(stored, nil)
				repo.EXPECT().SetNotificationRead(gomock.Any(), "n1", true).Return(nil)
			},
		},
		{
			name:   "other_user_forbidden",
			userID: "user2",
			mockSetup: func(repo *repository.MockNotificationRepository) {
				repo.EXPECT().GetNotification(gomock.Any(), "n1").Return(stored, nil)
			},
			expectedError: biddingerrors.ErrForbidden,
		},
		{
			name:   "unknown_notification",
			userID: "user1",
			mockSetup: func(repo *repository.MockNotificationRepository) {
				repo.EXPECT().GetNotification(gomock.Any(), "n1").Return(model.Notification{}, biddingerrors.ErrNotificationNotFound)
			},
			expectedError: biddingerrors.ErrNotificationNotFound,
		},
		{
			name:   "write_fails",
			userID: "user1",
			mockSetup: func(repo *repository.MockNotificationRepository) {
				repo.EXPECT().GetNotification(gomock.Any(), "n1").Return(stored, nil)
				repo.EXPECT().SetNotificationRead(gomock.Any(), "n1", true).Return(errors.New("timeout"))
			},
			expectedError: errors.New("timeout"),
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := repository.NewMockNotificationRepository(ctrl)
			tc.mockSetup(repo)

			n, err := NewNotificationService(repo).MarkRead(ctx, "n1", tc.userID, true)
			if tc.expectedError != nil {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.expectedError.Error())
				return
			}
			require.NoError(t, err)
			require.True(t, n.Read)
		})
	}
}

func TestNotificationService_ListForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repository.NewMemoryRepo(func() string { return "" })
	service := NewNotificationService(repo)

	now := time.Now().UTC()
	for _, n := range []model.Notification{
		{NotificationID: "n1", UserID: "user1", Message: "first", CreatedAt: now},
		{NotificationID: "n2", UserID: "user1", Message: "second", CreatedAt: now.Add(time.Second)},
		{NotificationID: "n3", UserID: "user2", Message: "other", CreatedAt: now},
	} {
		_, err := repo.PersistNotification(ctx, n)
		require.NoError(t, err)
	}

	list, err := service.ListForUser(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "second", list[0].Message)

	_, err = service.ListForUser(ctx, "")
	require.ErrorIs(t, err, biddingerrors.ErrForbidden)

	_, err = service.MarkRead(ctx, "n3", "user1", true)
	require.ErrorIs(t, err, biddingerrors.ErrForbidden)

	n, err := service.MarkRead(ctx, "n1", "user1", true)
	require.NoError(t, err)
	require.True(t, n.Read)
}
