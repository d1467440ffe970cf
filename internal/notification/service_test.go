package notification

import (
	"context"
	"errors"
	"testing"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/oplog/oplogtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func setupNotificationServiceTestSuite() (*ServiceImplementation, *MockNotificationRepository, *oplogtest.Recorder) {
	mockRepo := new(MockNotificationRepository)
	rec := &oplogtest.Recorder{}
	service := NewService(mockRepo, rec, zap.NewNop())
	return service, mockRepo, rec
}

func TestGetNotificationsForUser(t *testing.T) {
	service, mockRepo, _ := setupNotificationServiceTestSuite()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		rows := []Notification{
			{ID: uuid.New(), UserID: userID, Type: KindReminder.String(), Title: "Elevator service"},
			{ID: uuid.New(), UserID: userID, Type: "legacy_type", Title: "Old"},
		}
		pagination := common.NewPagination(2, 1, 10)
		mockRepo.On("GetByUserID", ctx, userID, 1, 10).Return(rows, pagination, nil).Once()

		resp, pag, err := service.GetNotificationsForUser(ctx, userID, 1, 10)

		assert.NoError(t, err)
		assert.Len(t, resp, 2)
		assert.Equal(t, "Reminder", resp[0].TypeLabel)
		assert.Empty(t, resp[1].TypeLabel)
		assert.Equal(t, pagination, pag)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		mockRepo.On("GetByUserID", ctx, userID, 2, 10).Return(nil, nil, errors.New("db error")).Once()

		resp, pag, err := service.GetNotificationsForUser(ctx, userID, 2, 10)

		assert.Nil(t, resp)
		assert.Nil(t, pag)
		apiErr, ok := common.IsAPIError(err)
		assert.True(t, ok)
		assert.Equal(t, common.ErrInternalServer.Code, apiErr.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestMarkNotificationAsRead(t *testing.T) {
	service, mockRepo, rec := setupNotificationServiceTestSuite()
	ctx := context.Background()
	userID := uuid.New()
	notificationID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockRepo.On("SetReadState", ctx, notificationID, userID, true).Return(nil).Once()

		err := service.MarkNotificationAsRead(ctx, notificationID, userID)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		entries := rec.ByAction("notifications.set_read_state")
		if assert.Len(t, entries, 1) {
			assert.Equal(t, oplog.StatusSuccess, entries[0].Status)
			assert.Equal(t, userID, *entries[0].UserID)
		}
	})

	t.Run("NotFoundIsPassedThrough", func(t *testing.T) {
		otherID := uuid.New()
		mockRepo.On("SetReadState", ctx, otherID, userID, true).Return(common.ErrNotFound.WithDetails("gone")).Once()

		err := service.MarkNotificationAsRead(ctx, otherID, userID)

		apiErr, ok := common.IsAPIError(err)
		assert.True(t, ok)
		assert.Equal(t, common.ErrNotFound.Code, apiErr.Code)
		mockRepo.AssertExpectations(t)
	})
}

func TestSetNotificationReadState_Unread(t *testing.T) {
	service, mockRepo, _ := setupNotificationServiceTestSuite()
	ctx := context.Background()
	userID := uuid.New()
	notificationID := uuid.New()
	mockRepo.On("SetReadState", ctx, notificationID, userID, false).Return(nil).Once()

	err := service.SetNotificationReadState(ctx, notificationID, userID, false)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestMarkAllUserNotificationsAsRead(t *testing.T) {
	service, mockRepo, rec := setupNotificationServiceTestSuite()
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockRepo.On("MarkAllAsRead", ctx, userID).Return(int64(5), nil).Once()

		count, err := service.MarkAllUserNotificationsAsRead(ctx, userID)

		assert.NoError(t, err)
		assert.Equal(t, int64(5), count)
		mockRepo.AssertExpectations(t)
		assert.Len(t, rec.ByAction("notifications.mark_all_read"), 1)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		mockRepo.On("MarkAllAsRead", ctx, userID).Return(int64(0), errors.New("db error")).Once()

		count, err := service.MarkAllUserNotificationsAsRead(ctx, userID)

		assert.Error(t, err)
		assert.Equal(t, int64(0), count)
		entries := rec.ByAction("notifications.mark_all_read")
		assert.Equal(t, oplog.StatusFail, entries[len(entries)-1].Status)
	})
}

func TestDeleteNotification(t *testing.T) {
	service, mockRepo, _ := setupNotificationServiceTestSuite()
	ctx := context.Background()
	userID := uuid.New()
	notificationID := uuid.New()
	mockRepo.On("Delete", ctx, notificationID, userID).Return(nil).Once()

	err := service.DeleteNotification(ctx, notificationID, userID)

	assert.NoError(t, err)
	mockRepo.AssertCalled(t, "Delete", mock.Anything, notificationID, userID)
}
