package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for calendar data operations.
type Repository interface {
	Create(ctx context.Context, ev *Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)
	ListByBuilding(ctx context.Context, buildingID uuid.UUID, from time.Time) ([]Event, error)
	// DueForReminder lists events starting in (now, now+window] that have no
	// reminder yet, soonest first.
	DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]Event, error)
	// MarkReminderSent claims the reminder of an event. It reports false when
	// another run claimed it first.
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) Create(ctx context.Context, ev *Event) error {
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to create calendar event: %w", err)
	}
	return nil
}

func (r *GORMRepository) FindByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var ev Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ev).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Calendar event not found.")
		}
		return nil, fmt.Errorf("failed to find calendar event %s: %w", id, err)
	}
	return &ev, nil
}

func (r *GORMRepository) ListByBuilding(ctx context.Context, buildingID uuid.UUID, from time.Time) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("building_id = ? AND start_date_time >= ?", buildingID, from).
		Order("start_date_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list calendar events of building %s: %w", buildingID, err)
	}
	return events, nil
}

func (r *GORMRepository) DueForReminder(ctx context.Context, now time.Time, window time.Duration) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("reminder_sent_at IS NULL AND start_date_time > ? AND start_date_time <= ?", now, now.Add(window)).
		Order("start_date_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar events due for reminder: %w", err)
	}
	return events, nil
}

func (r *GORMRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		Updates(map[string]interface{}{"reminder_sent_at": at, "updated_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark reminder of calendar event %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
