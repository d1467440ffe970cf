package poll

import (
	"time"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a poll.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"
)

// Poll is a question put to the tenants of one building.
type Poll struct {
	common.BaseModel
	BuildingID  uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_poll_building_sort" json:"building_id"`
	CreatedByID uuid.UUID    `gorm:"type:uuid;not null" json:"created_by_id"`
	Title       string       `gorm:"type:varchar(255);not null" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	Status      Status       `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	SortOrder   int          `gorm:"not null;uniqueIndex:idx_poll_building_sort" json:"sort_order"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	Options     []PollOption `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"options"`
}

// TableName specifies the table name for GORM.
func (Poll) TableName() string {
	return "polls"
}

// PollOption is one answer of a poll.
type PollOption struct {
	common.BaseModel
	PollID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_option_poll_sort" json:"poll_id"`
	Label     string    `gorm:"type:varchar(255);not null" json:"label"`
	SortOrder int       `gorm:"not null;uniqueIndex:idx_option_poll_sort" json:"sort_order"`
}

// TableName specifies the table name for GORM.
func (PollOption) TableName() string {
	return "poll_options"
}

// CreatePollRequest defines the payload for creating a draft poll.
type CreatePollRequest struct {
	Title       string   `json:"title" binding:"required,max=255"`
	Description string   `json:"description" binding:"max=10000"`
	Options     []string `json:"options" binding:"required,min=2,max=20,dive,required,max=255"`
}

// ReorderRequest lists every child id in the wanted order.
type ReorderRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required"`
}

// PublishResponse is returned when a poll is published.
type PublishResponse struct {
	Poll          *Poll `json:"poll"`
	Notifications int   `json:"notifications"`
}
