package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for poll data operations.
type Repository interface {
	Create(ctx context.Context, p *Poll) error
	FindByID(ctx context.Context, id uuid.UUID) (*Poll, error)
	ListByBuilding(ctx context.Context, buildingID uuid.UUID, includeDrafts bool) ([]Poll, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error
}

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC")
}

// Create appends p after the building's last poll and numbers its options
// 0..n-1 in the given order.
func (r *GORMRepository) Create(ctx context.Context, p *Poll) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var next int
		if err := tx.Model(&Poll{}).
			Where("building_id = ?", p.BuildingID).
			Select("COALESCE(MAX(sort_order) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		p.SortOrder = next
		for i := range p.Options {
			p.Options[i].SortOrder = i
		}
		return tx.Create(p).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("Another poll was created at the same time, please retry.")
		}
		return fmt.Errorf("failed to create poll: %w", err)
	}
	return nil
}

func (r *GORMRepository) FindByID(ctx context.Context, id uuid.UUID) (*Poll, error) {
	var p Poll
	err := r.db.WithContext(ctx).Preload("Options", orderedOptions).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Poll not found.")
		}
		return nil, fmt.Errorf("failed to find poll %s: %w", id, err)
	}
	return &p, nil
}

func (r *GORMRepository) ListByBuilding(ctx context.Context, buildingID uuid.UUID, includeDrafts bool) ([]Poll, error) {
	var polls []Poll
	query := r.db.WithContext(ctx).Preload("Options", orderedOptions).Where("building_id = ?", buildingID)
	if !includeDrafts {
		query = query.Where("status <> ?", StatusDraft)
	}
	if err := query.Order("sort_order ASC").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("failed to list polls of building %s: %w", buildingID, err)
	}
	return polls, nil
}

// TransitionStatus moves a poll from one status to another. A poll that is
// not in from yields a conflict.
func (r *GORMRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) error {
	updates := map[string]interface{}{"status": to, "updated_at": at}
	if to == StatusPublished {
		updates["published_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&Poll{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to move poll %s to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrConflict.WithDetails(fmt.Sprintf("Poll is not %s.", from))
	}
	return nil
}
