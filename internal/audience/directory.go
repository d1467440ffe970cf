package audience

import (
	"context"
	"errors"
	"fmt"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/property"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Directory reads tenancy and building data.
type Directory interface {
	TenantsOfBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]TenantRow, error)
	StakeholdersOfBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]StakeholderRow, error)
	// BuildingByID returns common.ErrNotFound for unknown buildings.
	BuildingByID(ctx context.Context, id uuid.UUID) (*property.Building, error)
}

type gormDirectory struct {
	db        *gorm.DB
	buildings property.Repository
}

func NewGORMDirectory(db *gorm.DB, buildings property.Repository) Directory {
	return &gormDirectory{db: db, buildings: buildings}
}

func (d *gormDirectory) TenantsOfBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]TenantRow, error) {
	var rows []TenantRow
	err := d.db.WithContext(ctx).
		Table("apartment_tenants AS t").
		Select(`a.building_id AS building_id, u.id AS user_id, u.email AS email, u.phone_number AS phone_number,
			u.sms_opt_in AS sms_opt_in, u.whatsapp_opt_in AS whats_app_opt_in, u.email_opt_in AS email_opt_in,
			u.viber_opt_in AS viber_opt_in, u.locale AS locale`).
		Joins("JOIN apartments a ON a.id = t.apartment_id").
		Joins("JOIN users u ON u.id = t.user_id").
		Where("a.building_id IN ?", buildingIDs).
		Order("t.created_at ASC").
		Order("u.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants of %d buildings: %w", len(buildingIDs), err)
	}
	return rows, nil
}

func (d *gormDirectory) StakeholdersOfBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]StakeholderRow, error) {
	var rows []StakeholderRow
	err := d.db.WithContext(ctx).
		Table("buildings AS b").
		Select("b.id AS building_id, u.email AS client_email, b.notification_emails AS notification_emails").
		Joins("LEFT JOIN users u ON u.id = b.client_id").
		Where("b.id IN ?", buildingIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stakeholders of %d buildings: %w", len(buildingIDs), err)
	}
	return rows, nil
}

func (d *gormDirectory) BuildingByID(ctx context.Context, id uuid.UUID) (*property.Building, error) {
	b, err := d.buildings.FindBuildingByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}
