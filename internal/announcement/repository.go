package announcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for announcement data operations.
type Repository interface {
	Create(ctx context.Context, a *Announcement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Announcement, error)
	ListByBuilding(ctx context.Context, buildingID uuid.UUID, includeDrafts bool) ([]Announcement, error)
	// MarkPublished publishes a draft. It fails with ErrConflict when the
	// announcement was already published.
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
}

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) Create(ctx context.Context, a *Announcement) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

func (r *GORMRepository) FindByID(ctx context.Context, id uuid.UUID) (*Announcement, error) {
	var a Announcement
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Announcement not found.")
		}
		return nil, fmt.Errorf("failed to find announcement %s: %w", id, err)
	}
	return &a, nil
}

// ListByBuilding returns published announcements newest first, followed by
// drafts when includeDrafts is set.
func (r *GORMRepository) ListByBuilding(ctx context.Context, buildingID uuid.UUID, includeDrafts bool) ([]Announcement, error) {
	var out []Announcement
	query := r.db.WithContext(ctx).Where("building_id = ?", buildingID)
	if !includeDrafts {
		query = query.Where("published_at IS NOT NULL")
	}
	err := query.
		Order("CASE WHEN published_at IS NULL THEN 1 ELSE 0 END").
		Order("published_at DESC").
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements of building %s: %w", buildingID, err)
	}
	return out, nil
}

func (r *GORMRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Announcement{}).
		Where("id = ? AND published_at IS NULL", id).
		Updates(map[string]interface{}{"published_at": at, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to publish announcement %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrConflict.WithDetails("Announcement is already published.")
	}
	return nil
}
