package user

import (
	"errors"

	"buildinghub_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routes for user operations on an authenticated group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	userGroup := router.Group("/users")
	{
		userGroup.GET("/me", h.getMe)
		userGroup.PATCH("/me/preferences", h.updatePreferences)
	}
}

func (h *Handler) getMe(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		h.logger.Error("User ID not found in context for /me", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("User identifier missing."))
		return
	}
	usr, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User profile retrieved successfully.", ToUserResponse(usr))
}

func (h *Handler) updatePreferences(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}
	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Update preferences: invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}
	usr, err := h.service.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Preferences updated successfully.", ToUserResponse(usr))
}
