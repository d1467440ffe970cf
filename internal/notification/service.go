package notification

import (
	"context"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service covers the read-state lifecycle of a user's notifications.
type Service interface {
	GetNotificationsForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]NotificationResponse, *common.Pagination, error)
	MarkNotificationAsRead(ctx context.Context, notificationID, userID uuid.UUID) error
	SetNotificationReadState(ctx context.Context, notificationID, userID uuid.UUID, isRead bool) error
	MarkAllUserNotificationsAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error
}

type ServiceImplementation struct {
	repo     Repository
	recorder oplog.Recorder
	logger   *zap.Logger
}

func NewService(repo Repository, recorder oplog.Recorder, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{repo: repo, recorder: recorder, logger: logger.Named("NotificationService")}
}

// passthrough keeps APIErrors from the repository and hides everything else
// behind an internal error carrying msg.
func (s *ServiceImplementation) passthrough(err error, msg string) error {
	if apiErr, ok := common.IsAPIError(err); ok {
		return apiErr
	}
	s.logger.Error(msg, zap.Error(err))
	return common.ErrInternalServer.WithDetails(msg)
}

func (s *ServiceImplementation) GetNotificationsForUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]NotificationResponse, *common.Pagination, error) {
	rows, pagination, err := s.repo.GetByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, nil, s.passthrough(err, "Could not retrieve notifications.")
	}
	out := make([]NotificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, ToNotificationResponse(n))
	}
	return out, pagination, nil
}

func (s *ServiceImplementation) MarkNotificationAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.SetNotificationReadState(ctx, notificationID, userID, true)
}

func (s *ServiceImplementation) SetNotificationReadState(ctx context.Context, notificationID, userID uuid.UUID, isRead bool) error {
	start := time.Now()
	err := s.repo.SetReadState(ctx, notificationID, userID, isRead)
	s.recorder.Record(ctx, oplog.NewEntry("notifications.set_read_state", oplog.TypeDB, start,
		map[string]interface{}{"notification_id": notificationID, "is_read": isRead}, err).WithUser(userID))
	if err != nil {
		return s.passthrough(err, "Could not update notification.")
	}
	return nil
}

func (s *ServiceImplementation) MarkAllUserNotificationsAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	start := time.Now()
	count, err := s.repo.MarkAllAsRead(ctx, userID)
	s.recorder.Record(ctx, oplog.NewEntry("notifications.mark_all_read", oplog.TypeDB, start,
		map[string]interface{}{"updated": count}, err).WithUser(userID))
	if err != nil {
		return 0, s.passthrough(err, "Could not mark all notifications as read.")
	}
	return count, nil
}

func (s *ServiceImplementation) DeleteNotification(ctx context.Context, notificationID, userID uuid.UUID) error {
	start := time.Now()
	err := s.repo.Delete(ctx, notificationID, userID)
	s.recorder.Record(ctx, oplog.NewEntry("notifications.delete", oplog.TypeDB, start,
		map[string]interface{}{"notification_id": notificationID}, err).WithUser(userID))
	if err != nil {
		return s.passthrough(err, "Could not delete notification.")
	}
	return nil
}
