package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"buildinghub_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for user data operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByFirebaseUID(ctx context.Context, firebaseUID string) (*User, error)
	Update(ctx context.Context, user *User) error
	// LookupContactsByUserIDs loads the contacts of ids with one query.
	// Unknown ids are absent from the map.
	LookupContactsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Contact, error)
	UpdateContactPreferences(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	if user.Email != nil {
		*user.Email = strings.ToLower(strings.TrimSpace(*user.Email))
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("User with this email or Firebase account already exists.")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByFirebaseUID retrieves a user by their Firebase UID.
func (r *gormRepository) FindByFirebaseUID(ctx context.Context, firebaseUID string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this Firebase UID.")
		}
		return nil, fmt.Errorf("failed to find user by firebase uid: %w", err)
	}
	return &userModel, nil
}

// FindByID retrieves a user by their ID.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	return &userModel, nil
}

// Update modifies an existing user record in the database.
func (r *gormRepository) Update(ctx context.Context, user *User) error {
	if user.Email != nil {
		*user.Email = strings.ToLower(strings.TrimSpace(*user.Email))
	}
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isUniqueViolation(err) {
			return common.ErrConflict.WithDetails("Update failed: email already taken.")
		}
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

func (r *gormRepository) LookupContactsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Contact, error) {
	contacts := make(map[uuid.UUID]Contact, len(ids))
	if len(ids) == 0 {
		return contacts, nil
	}
	var users []User
	err := r.db.WithContext(ctx).
		Select("id", "email", "phone_number", "first_name", "locale", "sms_opt_in", "whatsapp_opt_in", "email_opt_in", "viber_opt_in").
		Where("id IN ?", ids).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up contacts of %d users: %w", len(ids), err)
	}
	for i := range users {
		contacts[users[i].ID] = ToContact(&users[i])
	}
	return contacts, nil
}

func (r *gormRepository) UpdateContactPreferences(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update preferences of user %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}
