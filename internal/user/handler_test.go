package user

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildinghub_backend/internal/common"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserService) GetOrCreateUserFromFirebaseClaims(ctx context.Context, token *firebaseauth.Token) (*User, bool, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*User), args.Bool(1), args.Error(2)
}

func (m *MockUserService) UpdatePreferences(ctx context.Context, id uuid.UUID, req UpdatePreferencesRequest) (*User, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func setupUserRouter(svc Service, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", func(c *gin.Context) {
		c.Set(common.UserIDKey, userID)
		c.Next()
	})
	NewHandler(svc, zap.NewNop()).RegisterRoutes(api)
	return r
}

func TestHandler_GetMe(t *testing.T) {
	svc := new(MockUserService)
	id := uuid.New()
	svc.On("GetUserByID", mock.Anything, id).Return(&User{BaseModel: common.BaseModel{ID: id}, Role: common.RoleTenant, Locale: "en"}, nil)

	w := httptest.NewRecorder()
	setupUserRouter(svc, id).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestHandler_UpdatePreferences_RejectsUnknownLocale(t *testing.T) {
	svc := new(MockUserService)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/preferences", strings.NewReader(`{"locale":"fr"}`))
	req.Header.Set("Content-Type", "application/json")
	setupUserRouter(svc, uuid.New()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	svc.AssertNotCalled(t, "UpdatePreferences", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_UpdatePreferences(t *testing.T) {
	svc := new(MockUserService)
	id := uuid.New()
	svc.On("UpdatePreferences", mock.Anything, id, mock.MatchedBy(func(r UpdatePreferencesRequest) bool {
		return r.SMSOptIn != nil && *r.SMSOptIn && r.Locale == nil
	})).Return(&User{BaseModel: common.BaseModel{ID: id}, SMSOptIn: true}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/users/me/preferences", strings.NewReader(`{"sms_opt_in":true}`))
	req.Header.Set("Content-Type", "application/json")
	setupUserRouter(svc, id).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sms_opt_in":true`)
	svc.AssertExpectations(t)
}
