package calendar

import (
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
)

// Event types offered by the dashboard.
const (
	TypeMaintenance = "maintenance"
	TypeMeeting     = "meeting"
	TypeCleaning    = "cleaning"
	TypeInspection  = "inspection"
	TypeOther       = "other"
)

// Event is an entry of a building calendar.
type Event struct {
	common.BaseModel
	BuildingID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"building_id"`
	CreatedByID    uuid.UUID  `gorm:"type:uuid;not null" json:"created_by_id"`
	Title          string     `gorm:"type:varchar(255);not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	EventType      string     `gorm:"type:varchar(50);not null;default:'other'" json:"event_type"`
	StartDateTime  time.Time  `gorm:"not null;index" json:"start_date_time"`
	EndDateTime    *time.Time `json:"end_date_time,omitempty"`
	AllDay         bool       `gorm:"not null;default:false" json:"all_day"`
	ReminderSentAt *time.Time `gorm:"index" json:"reminder_sent_at,omitempty"`
}

// TableName specifies the table name for GORM.
func (Event) TableName() string {
	return "calendar_events"
}

// CreateEventRequest defines the payload for creating a calendar event.
// ExtraBuildingIDs notifies tenants of further buildings managed by the
// same client.
type CreateEventRequest struct {
	Title            string      `json:"title" binding:"required,max=255"`
	Description      string      `json:"description" binding:"max=10000"`
	EventType        string      `json:"event_type" binding:"omitempty,oneof=maintenance meeting cleaning inspection other"`
	StartDateTime    time.Time   `json:"start_date_time" binding:"required"`
	EndDateTime      *time.Time  `json:"end_date_time"`
	AllDay           bool        `json:"all_day"`
	ExtraBuildingIDs []uuid.UUID `json:"extra_building_ids" binding:"max=50"`
	SendEmail        bool        `json:"send_email"`
}

// CreateEventResponse is returned when an event is created.
type CreateEventResponse struct {
	Event         *Event `json:"event"`
	Notifications int    `json:"notifications"`
}
