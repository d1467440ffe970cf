package announcement

import (
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
)

// Announcement is a notice posted to a building. It stays a draft until
// PublishedAt is set.
type Announcement struct {
	common.BaseModel
	BuildingID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"building_id"`
	CreatedByID uuid.UUID  `gorm:"type:uuid;not null" json:"created_by_id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Body        string     `gorm:"type:text" json:"body"`
	Urgent      bool       `gorm:"not null;default:false" json:"urgent"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Announcement) TableName() string {
	return "announcements"
}

func (a *Announcement) IsPublished() bool {
	return a.PublishedAt != nil
}

type CreateAnnouncementRequest struct {
	Title  string `json:"title" binding:"required,max=255"`
	Body   string `json:"body" binding:"max=10000"`
	Urgent bool   `json:"urgent"`
}

// PublishAnnouncementRequest is optional; an empty body publishes without email.
type PublishAnnouncementRequest struct {
	SendEmail bool   `json:"send_email"`
	Locale    string `json:"locale" binding:"omitempty,oneof=en el"`
}

type PublishResponse struct {
	Announcement  *Announcement `json:"announcement"`
	Notifications int           `json:"notifications"`
}
