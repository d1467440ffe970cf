package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/oplog"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service exposes user lookups and profile preferences.
type Service interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetOrCreateUserFromFirebaseClaims(ctx context.Context, token *firebaseauth.Token) (usr *User, wasCreated bool, err error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, req UpdatePreferencesRequest) (*User, error)
}

// ServiceImplementation implements the Service interface.
type ServiceImplementation struct {
	repo     Repository
	recorder oplog.Recorder
	logger   *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, recorder oplog.Recorder, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		recorder: recorder,
		logger:   logger.Named("UserService"),
	}
}

func (s *ServiceImplementation) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	dbUser, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("User not found by ID", zap.String("userID", id.String()))
		} else {
			s.logger.Error("Error finding user by ID", zap.Error(err), zap.String("userID", id.String()))
		}
		return nil, err
	}
	return dbUser, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// GetOrCreateUserFromFirebaseClaims resolves the local user of a verified
// Firebase token, creating a tenant account on first sign in. Existing users
// only get their last login time refreshed.
func (s *ServiceImplementation) GetOrCreateUserFromFirebaseClaims(ctx context.Context, token *firebaseauth.Token) (*User, bool, error) {
	if token == nil || token.UID == "" {
		return nil, false, common.ErrUnauthorized.WithDetails("Firebase token has no subject.")
	}
	start := time.Now()
	now := start.UTC()

	dbUser, err := s.repo.FindByFirebaseUID(ctx, token.UID)
	if err == nil {
		dbUser.LastLoginAt = &now
		if err := s.repo.Update(ctx, dbUser); err != nil {
			// Not critical for authentication.
			s.logger.Error("Failed to update last login time", zap.Error(err), zap.String("userID", dbUser.ID.String()))
		}
		return dbUser, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error("Error finding user by Firebase UID", zap.Error(err), zap.String("firebaseUID", token.UID))
		return nil, false, err
	}

	uid := token.UID
	newUser := &User{
		FirebaseUID: &uid,
		Role:        common.RoleTenant,
		Locale:      "en",
		LastLoginAt: &now,
	}
	if email := claimString(token.Claims, "email"); email != "" {
		newUser.Email = &email
	}
	if phone := claimString(token.Claims, "phone_number"); phone != "" {
		newUser.PhoneNumber = &phone
	}
	if name := claimString(token.Claims, "name"); name != "" {
		first, last, _ := strings.Cut(name, " ")
		newUser.FirstName = &first
		if last != "" {
			newUser.LastName = &last
		}
	}

	err = s.repo.Create(ctx, newUser)
	s.recorder.Record(ctx, oplog.NewEntry("users.create_from_firebase", oplog.TypeAuth, start,
		map[string]interface{}{"firebase_uid": uid}, err).WithUser(newUser.ID))
	if err != nil {
		s.logger.Error("Failed to create user from Firebase claims", zap.Error(err), zap.String("firebaseUID", uid))
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, false, apiErr
		}
		return nil, false, common.ErrInternalServer.WithDetails("Could not create new user account.")
	}

	s.logger.Info("New user created from Firebase sign in", zap.String("userID", newUser.ID.String()))
	return newUser, true, nil
}

func (s *ServiceImplementation) UpdatePreferences(ctx context.Context, id uuid.UUID, req UpdatePreferencesRequest) (*User, error) {
	if req.PhoneNumber != nil {
		trimmed := strings.Join(strings.Fields(*req.PhoneNumber), "")
		req.PhoneNumber = &trimmed
	}
	updates := req.columns()

	start := time.Now()
	err := s.repo.UpdateContactPreferences(ctx, id, updates)
	fields := make([]string, 0, len(updates))
	for k := range updates {
		fields = append(fields, k)
	}
	s.recorder.Record(ctx, oplog.NewEntry("users.update_preferences", oplog.TypeDB, start,
		map[string]interface{}{"fields": fields}, err).WithUser(id))
	if err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		s.logger.Error("Failed to update user preferences", zap.Error(err), zap.String("userID", id.String()))
		return nil, common.ErrInternalServer.WithDetails("Could not update preferences.")
	}
	return s.GetUserByID(ctx, id)
}
