package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Metadata carries the event specific fields of a notification.
type Metadata struct {
	BuildingID        *uuid.UUID
	PollID            *uuid.UUID
	AnnouncementID    *uuid.UUID
	CalendarEventID   *uuid.UUID
	CalendarEventType string
	StartDateTime     *time.Time
	EndDateTime       *time.Time
	AllDay            *bool
	Extra             map[string]interface{}
}

// Record is a notification built in memory for one recipient, before it is
// persisted.
type Record struct {
	UserID      uuid.UUID `validate:"required"`
	Kind        Kind      `validate:"required"`
	ActionToken string    `validate:"required,max=150"`
	Title       string    `validate:"required,max=255"`
	Description string
	URL         string
	CreatedAt   time.Time `validate:"required"`
	Metadata    Metadata
}

// Notification is the persisted row of a notification.
type Notification struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index:idx_notification_user_status" json:"user_id"`
	Type              string         `gorm:"type:varchar(32);not null" json:"type"`
	ActionToken       string         `gorm:"type:varchar(150);not null" json:"action_token"`
	Title             string         `gorm:"type:varchar(255);not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	URL               string         `gorm:"type:text" json:"url,omitempty"`
	IsRead            bool           `gorm:"not null;default:false;index:idx_notification_user_status" json:"is_read"`
	BuildingID        *uuid.UUID     `gorm:"type:uuid;index" json:"building_id,omitempty"`
	PollID            *uuid.UUID     `gorm:"type:uuid" json:"poll_id,omitempty"`
	AnnouncementID    *uuid.UUID     `gorm:"type:uuid" json:"announcement_id,omitempty"`
	CalendarEventID   *uuid.UUID     `gorm:"type:uuid" json:"calendar_event_id,omitempty"`
	CalendarEventType string         `gorm:"type:varchar(50)" json:"calendar_event_type,omitempty"`
	StartDateTime     *time.Time     `json:"start_date_time,omitempty"`
	EndDateTime       *time.Time     `json:"end_date_time,omitempty"`
	AllDay            *bool          `json:"all_day,omitempty"`
	Metadata          datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;index:idx_notification_user_status" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// toRow maps a record to its row. The kind is stored as its literal only.
func toRow(r Record) (Notification, error) {
	row := Notification{
		UserID:            r.UserID,
		Type:              r.Kind.String(),
		ActionToken:       r.ActionToken,
		Title:             r.Title,
		Description:       r.Description,
		URL:               r.URL,
		IsRead:            false,
		BuildingID:        r.Metadata.BuildingID,
		PollID:            r.Metadata.PollID,
		AnnouncementID:    r.Metadata.AnnouncementID,
		CalendarEventID:   r.Metadata.CalendarEventID,
		CalendarEventType: r.Metadata.CalendarEventType,
		StartDateTime:     r.Metadata.StartDateTime,
		EndDateTime:       r.Metadata.EndDateTime,
		AllDay:            r.Metadata.AllDay,
		CreatedAt:         r.CreatedAt,
	}
	if len(r.Metadata.Extra) > 0 {
		b, err := json.Marshal(r.Metadata.Extra)
		if err != nil {
			return Notification{}, err
		}
		row.Metadata = datatypes.JSON(b)
	}
	return row, nil
}

// NotificationResponse is the API shape of a notification.
type NotificationResponse struct {
	Notification
	TypeLabel string `json:"type_label"`
}

func ToNotificationResponse(n Notification) NotificationResponse {
	resp := NotificationResponse{Notification: n}
	if k, err := ParseKind(n.Type); err == nil {
		resp.TypeLabel = k.Label()
	}
	return resp
}

// SetReadStateRequest toggles the read flag of one notification.
type SetReadStateRequest struct {
	IsRead *bool `json:"is_read" binding:"required"`
}
