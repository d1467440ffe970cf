package user

import (
	"time"

	"buildinghub_backend/internal/common" // For BaseModel

	"github.com/google/uuid"
)

// User represents the user model in the database.
type User struct {
	common.BaseModel         // Embeds ID, CreatedAt, UpdatedAt
	FirebaseUID      *string `gorm:"type:varchar(128);uniqueIndex"`
	Email            *string `gorm:"type:varchar(255);uniqueIndex"` // Pointer to allow NULL
	PhoneNumber      *string `gorm:"type:varchar(32)"`
	FirstName        *string `gorm:"type:varchar(100)"`
	LastName         *string `gorm:"type:varchar(100)"`
	Role             string  `gorm:"type:varchar(50);not null;default:'tenant'"`
	Locale           string  `gorm:"type:varchar(8);not null;default:'en'"`
	SMSOptIn         bool    `gorm:"column:sms_opt_in;not null;default:false"`
	WhatsAppOptIn    bool    `gorm:"column:whatsapp_opt_in;not null;default:false"`
	EmailOptIn       bool    `gorm:"column:email_opt_in;not null;default:false"`
	ViberOptIn       bool    `gorm:"column:viber_opt_in;not null;default:false"`
	LastLoginAt      *time.Time
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Contact is the delivery view of a user: addresses and channel opt-ins.
type Contact struct {
	UserID        uuid.UUID
	Email         string
	PhoneNumber   string
	FirstName     string
	Locale        string
	SMSOptIn      bool
	WhatsAppOptIn bool
	EmailOptIn    bool
	ViberOptIn    bool
}

// ToContact flattens the nullable columns of u.
func ToContact(u *User) Contact {
	c := Contact{
		UserID:        u.ID,
		Locale:        u.Locale,
		SMSOptIn:      u.SMSOptIn,
		WhatsAppOptIn: u.WhatsAppOptIn,
		EmailOptIn:    u.EmailOptIn,
		ViberOptIn:    u.ViberOptIn,
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.PhoneNumber != nil {
		c.PhoneNumber = *u.PhoneNumber
	}
	if u.FirstName != nil {
		c.FirstName = *u.FirstName
	}
	return c
}

// --- DTOs (Data Transfer Objects) for API requests/responses ---

// UpdatePreferencesRequest changes contact data and channel opt-ins. Omitted
// fields are left as they are.
type UpdatePreferencesRequest struct {
	PhoneNumber   *string `json:"phone_number,omitempty" binding:"omitempty,max=32"`
	Locale        *string `json:"locale,omitempty" binding:"omitempty,oneof=en el"`
	SMSOptIn      *bool   `json:"sms_opt_in,omitempty"`
	WhatsAppOptIn *bool   `json:"whatsapp_opt_in,omitempty"`
	EmailOptIn    *bool   `json:"email_opt_in,omitempty"`
	ViberOptIn    *bool   `json:"viber_opt_in,omitempty"`
}

// columns maps the set fields of the request to user columns.
func (r UpdatePreferencesRequest) columns() map[string]interface{} {
	updates := make(map[string]interface{})
	if r.PhoneNumber != nil {
		updates["phone_number"] = *r.PhoneNumber
	}
	if r.Locale != nil {
		updates["locale"] = *r.Locale
	}
	if r.SMSOptIn != nil {
		updates["sms_opt_in"] = *r.SMSOptIn
	}
	if r.WhatsAppOptIn != nil {
		updates["whatsapp_opt_in"] = *r.WhatsAppOptIn
	}
	if r.EmailOptIn != nil {
		updates["email_opt_in"] = *r.EmailOptIn
	}
	if r.ViberOptIn != nil {
		updates["viber_opt_in"] = *r.ViberOptIn
	}
	return updates
}

// UserResponse defines the structure for user data sent in API responses.
type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Email         *string    `json:"email,omitempty"`
	PhoneNumber   *string    `json:"phone_number,omitempty"`
	FirstName     *string    `json:"first_name,omitempty"`
	LastName      *string    `json:"last_name,omitempty"`
	Role          string     `json:"role"`
	Locale        string     `json:"locale"`
	SMSOptIn      bool       `json:"sms_opt_in"`
	WhatsAppOptIn bool       `json:"whatsapp_opt_in"`
	EmailOptIn    bool       `json:"email_opt_in"`
	ViberOptIn    bool       `json:"viber_opt_in"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(user *User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		PhoneNumber:   user.PhoneNumber,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          user.Role,
		Locale:        user.Locale,
		SMSOptIn:      user.SMSOptIn,
		WhatsAppOptIn: user.WhatsAppOptIn,
		EmailOptIn:    user.EmailOptIn,
		ViberOptIn:    user.ViberOptIn,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
		LastLoginAt:   user.LastLoginAt,
	}
}
