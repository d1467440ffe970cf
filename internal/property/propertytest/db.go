// Package propertytest seeds buildings, apartments and tenants into an
// in-memory sqlite database for tests of packages that read them.
package propertytest

import (
	"testing"

	"buildinghub_backend/internal/property"
	"buildinghub_backend/internal/user"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// buildingsDDL replaces the postgres text[] column with text; pq.StringArray
// round-trips through its literal form.
const buildingsDDL = `CREATE TABLE buildings (
	id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	client_id TEXT NOT NULL,
	name TEXT NOT NULL,
	address_line TEXT,
	city TEXT,
	postal_code TEXT,
	country TEXT,
	notification_emails TEXT
)`

// OpenDB returns a fresh in-memory database with the user and property
// tables plus any extra models.
func OpenDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(buildingsDDL).Error)
	require.NoError(t, db.AutoMigrate(append([]interface{}{&user.User{}, &property.Apartment{}, &property.ApartmentTenant{}}, models...)...))
	return db
}

// Fixture creates rows with terse helpers.
type Fixture struct {
	t  *testing.T
	db *gorm.DB
}

func NewFixture(t *testing.T, db *gorm.DB) *Fixture {
	return &Fixture{t: t, db: db}
}

func (f *Fixture) User(u user.User) *user.User {
	f.t.Helper()
	if u.Role == "" {
		u.Role = "tenant"
	}
	if u.Locale == "" {
		u.Locale = "en"
	}
	require.NoError(f.t, f.db.Create(&u).Error)
	return &u
}

func (f *Fixture) Building(clientID uuid.UUID, name string, extraEmails ...string) *property.Building {
	f.t.Helper()
	b := property.Building{
		ClientID:           clientID,
		Name:               name,
		AddressLine:        "1 Main St",
		City:               "Athens",
		PostalCode:         "10558",
		Country:            "GR",
		NotificationEmails: pq.StringArray(extraEmails),
	}
	require.NoError(f.t, f.db.Create(&b).Error)
	return &b
}

func (f *Fixture) Apartment(buildingID uuid.UUID, number string) *property.Apartment {
	f.t.Helper()
	a := property.Apartment{BuildingID: buildingID, Number: number}
	require.NoError(f.t, f.db.Create(&a).Error)
	return &a
}

// Tenant places userID in apartmentID.
func (f *Fixture) Tenant(apartmentID, userID uuid.UUID) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&property.ApartmentTenant{ApartmentID: apartmentID, UserID: userID}).Error)
}

func StrPtr(s string) *string { return &s }
