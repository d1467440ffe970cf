package notification

import (
	"errors"
	"net/http"

	"buildinghub_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routes for notification operations.
// All routes in this group should be authenticated.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", h.getNotifications)
	router.POST("/mark-all-read", h.markAllNotificationsAsRead)
	router.POST("/:notification_id/mark-read", h.markNotificationAsRead)
	router.PATCH("/:notification_id/read", h.setReadState)
	router.DELETE("/:notification_id", h.deleteNotification)
}

func (h *Handler) requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return uuid.Nil, false
	}
	return userID, true
}

func notificationIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid notification ID format."))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) getNotifications(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	page, pageSize := common.GetPaginationParams(c)

	notifications, pagination, err := h.service.GetNotificationsForUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Notifications retrieved successfully.", notifications, pagination)
}

func (h *Handler) markNotificationAsRead(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(c)
	if !ok {
		return
	}

	if err := h.service.MarkNotificationAsRead(c.Request.Context(), notificationID, userID); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "Notification marked as read successfully.", nil)
}

func (h *Handler) setReadState(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(c)
	if !ok {
		return
	}

	var req SetReadStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	if err := h.service.SetNotificationReadState(c.Request.Context(), notificationID, userID, *req.IsRead); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Notification read state updated.", gin.H{"id": notificationID, "is_read": *req.IsRead})
}

func (h *Handler) markAllNotificationsAsRead(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	count, err := h.service.MarkAllUserNotificationsAsRead(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "All notifications marked as read successfully.", gin.H{"updated": count})
}

func (h *Handler) deleteNotification(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	notificationID, ok := notificationIDParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(c.Request.Context(), notificationID, userID); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
