package notification

import (
	"context"
	"errors"
	"fmt"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	// CreateBatch inserts rows with a single INSERT statement.
	CreateBatch(ctx context.Context, rows []Notification) error
	GetByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, *common.Pagination, error)
	FindByID(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (*Notification, error) // userID for ownership check
	SetReadState(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID, isRead bool) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) error
}

// GORMRepository implements the Repository interface using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM notification repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) CreateBatch(ctx context.Context, rows []Notification) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert %d notifications: %w", len(rows), err)
	}
	return nil
}

// GetByUserID retrieves a paginated list of notifications for a user, newest first.
func (r *GORMRepository) GetByUserID(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]Notification, *common.Pagination, error) {
	var notifications []Notification
	var total int64

	if err := r.db.WithContext(ctx).Model(&Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("counting notifications for user %s failed: %w", userID, err)
	}

	pq := common.PaginationQuery{Page: page, PageSize: pageSize}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(pq.Limit()).
		Offset(pq.Offset()).
		Find(&notifications).Error
	if err != nil {
		return nil, nil, fmt.Errorf("fetching notifications for user %s failed: %w", userID, err)
	}
	return notifications, common.NewPagination(total, pq.Page, pq.PageSize), nil
}

// FindByID retrieves a notification by its ID, ensuring it belongs to userID.
func (r *GORMRepository) FindByID(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) (*Notification, error) {
	var notification Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", notificationID, userID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Notification not found or not owned by user.")
		}
		return nil, fmt.Errorf("failed to find notification %s for user %s: %w", notificationID, userID, err)
	}
	return &notification, nil
}

func (r *GORMRepository) SetReadState(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID, isRead bool) error {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", isRead)
	if result.Error != nil {
		return fmt.Errorf("failed to set read state of notification %s for user %s: %w", notificationID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Notification not found or not owned by user.")
	}
	return nil
}

// MarkAllAsRead marks all unread notifications for a user as read and
// returns how many changed.
func (r *GORMRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark all notifications as read for user %s: %w", userID, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GORMRepository) Delete(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&Notification{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification %s for user %s: %w", notificationID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Notification not found or not owned by user.")
	}
	return nil
}
