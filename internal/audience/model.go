// Package audience resolves who a building level event reaches.
package audience

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Recipient is a tenant reached through one building.
type Recipient struct {
	UserID        uuid.UUID
	BuildingID    uuid.UUID
	Email         string
	PhoneNumber   string
	SMSOptIn      bool
	WhatsAppOptIn bool
	EmailOptIn    bool
	ViberOptIn    bool
	Locale        string
}

// Address is the postal address of a building.
type Address struct {
	BuildingID   uuid.UUID
	BuildingName string
	Line         string
	City         string
	PostalCode   string
	Country      string
	Formatted    string
}

// TenantRow is one (tenant, building) pair read by the directory.
type TenantRow struct {
	BuildingID    uuid.UUID
	UserID        uuid.UUID
	Email         *string
	PhoneNumber   *string
	SMSOptIn      bool
	WhatsAppOptIn bool
	EmailOptIn    bool
	ViberOptIn    bool
	Locale        string
}

// StakeholderRow carries the non-tenant addresses of one building.
type StakeholderRow struct {
	BuildingID         uuid.UUID
	ClientEmail        *string
	NotificationEmails pq.StringArray
}
