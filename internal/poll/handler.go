package poll

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

// RegisterRoutes sets up the poll routes. Reads need authentication, writes
// also need a building manager role.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, managerRoleMW gin.HandlerFunc) {
	buildingPolls := router.Group("/buildings/:building_id/polls", authMW)
	{
		buildingPolls.GET("", h.listPolls)

		managed := buildingPolls.Group("", managerRoleMW)
		managed.POST("", h.createPoll)
		managed.PUT("/order", h.reorderPolls)
	}

	polls := router.Group("/polls", authMW)
	{
		polls.GET("/:poll_id", h.getPoll)

		managed := polls.Group("", managerRoleMW)
		managed.POST("/:poll_id/publish", h.publishPoll)
		managed.PUT("/:poll_id/options/order", h.reorderOptions)
	}
}

func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid "+label+" ID format."))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return false
	}
	return true
}

func (h *Handler) createPoll(c *gin.Context) {
	buildingID, ok := uuidParam(c, "building_id", "building")
	if !ok {
		return
	}
	var req CreatePollRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePoll(c.Request.Context(), buildingID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Poll created successfully.", p)
}

func (h *Handler) listPolls(c *gin.Context) {
	buildingID, ok := uuidParam(c, "building_id", "building")
	if !ok {
		return
	}
	polls, err := h.service.ListPolls(c.Request.Context(), buildingID, common.GetUserRoleFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Polls retrieved successfully.", polls)
}

func (h *Handler) getPoll(c *gin.Context) {
	pollID, ok := uuidParam(c, "poll_id", "poll")
	if !ok {
		return
	}
	p, err := h.service.GetPoll(c.Request.Context(), pollID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Poll retrieved successfully.", p)
}

func (h *Handler) publishPoll(c *gin.Context) {
	pollID, ok := uuidParam(c, "poll_id", "poll")
	if !ok {
		return
	}
	resp, err := h.service.PublishPoll(c.Request.Context(), pollID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Poll published successfully.", resp)
}

func (h *Handler) reorderOptions(c *gin.Context) {
	pollID, ok := uuidParam(c, "poll_id", "poll")
	if !ok {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ReorderOptions(c.Request.Context(), pollID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req.IDs); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Poll options reordered successfully.", gin.H{"ids": req.IDs})
}

func (h *Handler) reorderPolls(c *gin.Context) {
	buildingID, ok := uuidParam(c, "building_id", "building")
	if !ok {
		return
	}
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.service.ReorderPolls(c.Request.Context(), buildingID, common.GetUserIDFromContext(c), common.GetUserRoleFromContext(c), req.IDs); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Polls reordered successfully.", gin.H{"ids": req.IDs})
}
