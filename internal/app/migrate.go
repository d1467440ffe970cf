package app

import (
	"buildinghub_backend/internal/announcement"
	"buildinghub_backend/internal/calendar"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/platform/database"
	"buildinghub_backend/internal/poll"
	"buildinghub_backend/internal/property"
	"buildinghub_backend/internal/user"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table the service owns, parents before children.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&property.Building{},
		&property.Apartment{},
		&property.ApartmentTenant{},
		&notification.Notification{},
		&poll.Poll{},
		&poll.PollOption{},
		&calendar.Event{},
		&announcement.Announcement{},
		&oplog.Entry{},
	}
}

// Migrate applies Models when DB_AUTO_MIGRATE is set.
func Migrate(cfg *config.Config, db *gorm.DB, logger *zap.Logger) error {
	return database.AutoMigrate(cfg, db, logger, Models()...)
}
