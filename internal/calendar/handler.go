package calendar

import (
	"errors"

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
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up the calendar routes of a building.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, managerRoleMW gin.HandlerFunc) {
	events := router.Group("/buildings/:building_id/calendar-events", authMW)
	{
		events.GET("", h.listEvents)
		events.POST("", managerRoleMW, h.createEvent)
	}
}

func buildingIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("building_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid building ID format."))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) createEvent(c *gin.Context) {
	buildingID, ok := buildingIDParam(c)
	if !ok {
		return
	}
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	resp, err := h.service.CreateEvent(c.Request.Context(), buildingID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Calendar event created successfully.", resp)
}

func (h *Handler) listEvents(c *gin.Context) {
	buildingID, ok := buildingIDParam(c)
	if !ok {
		return
	}
	events, err := h.service.ListEvents(c.Request.Context(), buildingID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Calendar events retrieved successfully.", events)
}
