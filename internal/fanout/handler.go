package fanout

import (
	"context"
	"errors"
	"time"

	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BuildingAuthorizer checks that a user manages a building.
type BuildingAuthorizer interface {
	AuthorizeManager(ctx context.Context, buildingID, userID uuid.UUID, role string) error
}

// BroadcastRequest is a free-form message to every tenant of a building.
type BroadcastRequest struct {
	Title  string `json:"title" binding:"required,max=255"`
	Body   string `json:"body" binding:"max=5000"`
	Kind   string `json:"kind" binding:"omitempty,oneof=message alert system announcement"`
	Email  bool   `json:"email"`
	Locale string `json:"locale" binding:"omitempty,oneof=en el"`
}

// MessageEvent builds the event of a broadcast to buildingID.
func MessageEvent(req BroadcastRequest, buildingID, actorID uuid.UUID) (Event, error) {
	kind := notification.KindMessage
	if req.Kind != "" {
		k, err := notification.ParseKind(req.Kind)
		if err != nil {
			return Event{}, err
		}
		kind = k
	}
	msg := notification.Message{
		Kind:       kind,
		Title:      req.Title,
		Body:       req.Body,
		BuildingID: &buildingID,
	}
	ev := Event{
		Action:      "buildings.broadcast_message",
		ActorID:     actorID,
		BuildingIDs: []uuid.UUID{buildingID},
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildMessage(msg, r.UserID, createdAt)
		},
	}
	if req.Email {
		ev.Email = &EmailSpec{
			Template: email.TemplateAnnouncementPublished,
			Locale:   req.Locale,
			Path:     "/messages",
			Data:     email.Data{Title: req.Title, Body: req.Body, Urgent: kind == notification.KindAlert},
		}
	}
	return ev, nil
}

type Handler struct {
	publisher  Publisher
	authorizer BuildingAuthorizer
	logger     *zap.Logger
}

func NewHandler(publisher Publisher, authorizer BuildingAuthorizer, logger *zap.Logger) *Handler {
	return &Handler{publisher: publisher, authorizer: authorizer, logger: logger}
}

// RegisterRoutes sets up the building broadcast route for managers.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, managerRoleMW gin.HandlerFunc) {
	router.POST("/buildings/:building_id/messages", authMW, managerRoleMW, h.broadcastMessage)
}

func (h *Handler) broadcastMessage(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}
	buildingID, err := uuid.Parse(c.Param("building_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid building ID format."))
		return
	}

	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	ctx := c.Request.Context()
	if err := h.authorizer.AuthorizeManager(ctx, buildingID, userID, common.GetUserRoleFromContext(c)); err != nil {
		common.RespondWithError(c, err)
		return
	}

	ev, err := MessageEvent(req, buildingID, userID)
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}
	report, err := h.publisher.Publish(ctx, ev)
	if err != nil {
		h.logger.Error("Broadcast failed", zap.String("buildingID", buildingID.String()), zap.Error(err))
		if apiErr, ok := common.IsAPIError(err); ok {
			common.RespondWithError(c, apiErr)
			return
		}
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not deliver the message to every tenant."))
		return
	}
	common.RespondCreated(c, "Message sent.", report)
}
