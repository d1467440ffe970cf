package announcement

import (
	"errors"
	"io"

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

// RegisterRoutes sets up the announcement routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, managerRoleMW gin.HandlerFunc) {
	building := router.Group("/buildings/:building_id/announcements", authMW)
	{
		building.GET("", h.listAnnouncements)
		building.POST("", managerRoleMW, h.createAnnouncement)
	}
	router.POST("/announcements/:announcement_id/publish", authMW, managerRoleMW, h.publishAnnouncement)
}

func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid "+label+" ID format."))
		return uuid.Nil, false
	}
	return id, true
}

func respondBindError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
		return
	}
	common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
}

func (h *Handler) createAnnouncement(c *gin.Context) {
	buildingID, ok := uuidParam(c, "building_id", "building")
	if !ok {
		return
	}
	var req CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	a, err := h.service.CreateAnnouncement(c.Request.Context(), buildingID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Announcement created successfully.", a)
}

func (h *Handler) listAnnouncements(c *gin.Context) {
	buildingID, ok := uuidParam(c, "building_id", "building")
	if !ok {
		return
	}
	out, err := h.service.ListAnnouncements(c.Request.Context(), buildingID, common.GetUserRoleFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcements retrieved successfully.", out)
}

func (h *Handler) publishAnnouncement(c *gin.Context) {
	id, ok := uuidParam(c, "announcement_id", "announcement")
	if !ok {
		return
	}
	var req PublishAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}
	resp, err := h.service.PublishAnnouncement(c.Request.Context(), id, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Announcement published successfully.", resp)
}
