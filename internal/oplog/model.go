package oplog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the outcome of a logged operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// Type classifies the operation being logged.
type Type string

const (
	TypeDB       Type = "db"
	TypeAuth     Type = "auth"
	TypeAction   Type = "action"
	TypeExternal Type = "external"
	TypeStorage  Type = "storage"
	TypeJob      Type = "job"
)

// Entry is one append-only operation log record.
type Entry struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action     string         `gorm:"type:varchar(150);not null;index" json:"action"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	Status     Status         `gorm:"type:varchar(20);not null" json:"status"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	DurationMS int64          `gorm:"not null;default:0" json:"duration_ms"`
	Type       Type           `gorm:"type:varchar(20);not null;index" json:"type"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Entry) TableName() string {
	return "operation_logs"
}

func (e *Entry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// NewEntry builds an entry for an operation that started at start. A nil err
// marks it successful.
func NewEntry(action string, typ Type, start time.Time, payload interface{}, err error) Entry {
	entry := Entry{
		Action:     action,
		Type:       typ,
		Status:     StatusSuccess,
		DurationMS: Since(start),
		Payload:    encodePayload(payload),
	}
	if err != nil {
		entry.Status = StatusFail
		entry.Error = err.Error()
	}
	return entry
}

// WithUser attributes the entry to a user.
func (e Entry) WithUser(userID uuid.UUID) Entry {
	if userID != uuid.Nil {
		id := userID
		e.UserID = &id
	}
	return e
}

// Since returns the elapsed milliseconds from start.
func Since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func encodePayload(payload interface{}) datatypes.JSON {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"payload_error": err.Error()})
	}
	return datatypes.JSON(b)
}
