// Package property holds the buildings, apartments and tenancies that
// notifications are addressed through. Tenant management owns the writes.
package property

import (
	"strings"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Building is a managed building. ClientID is the managing client user.
type Building struct {
	common.BaseModel
	ClientID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"client_id"`
	Name               string         `gorm:"type:varchar(255);not null" json:"name"`
	AddressLine        string         `gorm:"type:varchar(255)" json:"address_line"`
	City               string         `gorm:"type:varchar(100)" json:"city"`
	PostalCode         string         `gorm:"type:varchar(20)" json:"postal_code"`
	Country            string         `gorm:"type:varchar(100)" json:"country"`
	NotificationEmails pq.StringArray `gorm:"type:text[]" json:"notification_emails,omitempty"`
}

func (Building) TableName() string {
	return "buildings"
}

// FormattedAddress joins the non-empty address parts.
func (b *Building) FormattedAddress() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{b.AddressLine, strings.TrimSpace(b.PostalCode + " " + b.City), b.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Apartment struct {
	common.BaseModel
	BuildingID uuid.UUID `gorm:"type:uuid;not null;index" json:"building_id"`
	Number     string    `gorm:"type:varchar(20);not null" json:"number"`
	Floor      *int      `json:"floor,omitempty"`
}

func (Apartment) TableName() string {
	return "apartments"
}

// ApartmentTenant links a tenant user to an apartment.
type ApartmentTenant struct {
	common.BaseModel
	ApartmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_apartment_tenant" json:"apartment_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_apartment_tenant;index" json:"user_id"`
}

func (ApartmentTenant) TableName() string {
	return "apartment_tenants"
}
