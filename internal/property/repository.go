package property

import (
	"context"
	"errors"
	"fmt"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads buildings.
type Repository interface {
	FindBuildingByID(ctx context.Context, id uuid.UUID) (*Building, error)
}

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) FindBuildingByID(ctx context.Context, id uuid.UUID) (*Building, error) {
	var b Building
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Building not found.")
		}
		return nil, fmt.Errorf("failed to find building %s: %w", id, err)
	}
	return &b, nil
}
