package announcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/common"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/fanout"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// Authorizer checks that a user manages a building.
type Authorizer interface {
	AuthorizeManager(ctx context.Context, buildingID, userID uuid.UUID, role string) error
}

// Service defines the interface for announcement business logic.
type Service interface {
	CreateAnnouncement(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreateAnnouncementRequest) (*Announcement, error)
	ListAnnouncements(ctx context.Context, buildingID uuid.UUID, role string) ([]Announcement, error)
	PublishAnnouncement(ctx context.Context, id, actorID uuid.UUID, role string, req PublishAnnouncementRequest) (*PublishResponse, error)
}

type ServiceImplementation struct {
	repo       Repository
	authorizer Authorizer
	publisher  fanout.Publisher
	recorder   oplog.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo Repository, authorizer Authorizer, publisher fanout.Publisher, recorder oplog.Recorder, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:       repo,
		authorizer: authorizer,
		publisher:  publisher,
		recorder:   recorder,
		logger:     logger.Named("AnnouncementService"),
		now:        time.Now,
	}
}

func (s *ServiceImplementation) internal(err error, msg string) error {
	if apiErr, ok := common.IsAPIError(err); ok {
		return apiErr
	}
	s.logger.Error(msg, zap.Error(err))
	return common.ErrInternalServer.WithDetails(msg)
}

func (s *ServiceImplementation) CreateAnnouncement(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreateAnnouncementRequest) (*Announcement, error) {
	if err := s.authorizer.AuthorizeManager(ctx, buildingID, actorID, role); err != nil {
		return nil, err
	}
	start := time.Now()
	a := &Announcement{
		BuildingID:  buildingID,
		CreatedByID: actorID,
		Title:       strings.TrimSpace(req.Title),
		Body:        req.Body,
		Urgent:      req.Urgent,
	}
	err := s.repo.Create(ctx, a)
	s.recorder.Record(ctx, oplog.NewEntry("announcements.create", oplog.TypeDB, start,
		map[string]interface{}{"building_id": buildingID, "urgent": a.Urgent}, err).WithUser(actorID))
	if err != nil {
		return nil, s.internal(err, "Could not create announcement.")
	}
	return a, nil
}

// ListAnnouncements hides drafts from everyone but building managers.
func (s *ServiceImplementation) ListAnnouncements(ctx context.Context, buildingID uuid.UUID, role string) ([]Announcement, error) {
	out, err := s.repo.ListByBuilding(ctx, buildingID, common.CanManageBuildings(role))
	if err != nil {
		return nil, s.internal(err, "Could not retrieve announcements.")
	}
	return out, nil
}

// PublishAnnouncement publishes a draft and notifies the building's tenants.
// Notification failures are logged; the announcement stays published.
func (s *ServiceImplementation) PublishAnnouncement(ctx context.Context, id, actorID uuid.UUID, role string, req PublishAnnouncementRequest) (*PublishResponse, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal(err, "Could not retrieve announcement.")
	}
	if err := s.authorizer.AuthorizeManager(ctx, a.BuildingID, actorID, role); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.MarkPublished(ctx, a.ID, now); err != nil {
		return nil, s.internal(err, "Could not publish announcement.")
	}
	a.PublishedAt = &now

	report, err := s.publisher.Publish(ctx, PublishedEvent(a, actorID, req))
	if err != nil {
		s.logger.Error("Failed to notify tenants of announcement",
			zap.String("announcementID", a.ID.String()),
			zap.Int("inserted", report.Inserted),
			zap.Error(err))
	}
	return &PublishResponse{Announcement: a, Notifications: report.Inserted}, nil
}

// PublishedEvent is the fan-out event of a published announcement. Urgent
// announcements are delivered as alerts.
func PublishedEvent(a *Announcement, actorID uuid.UUID, req PublishAnnouncementRequest) fanout.Event {
	payload := notification.AnnouncementPublished{
		AnnouncementID: a.ID,
		BuildingID:     a.BuildingID,
		Title:          a.Title,
		Body:           a.Body,
		Urgent:         a.Urgent,
	}
	ev := fanout.Event{
		Action:      "announcements.publish",
		ActorID:     actorID,
		BuildingIDs: []uuid.UUID{a.BuildingID},
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildAnnouncementPublished(payload, r.UserID, createdAt)
		},
	}
	if req.SendEmail {
		ev.Email = &fanout.EmailSpec{
			Template: email.TemplateAnnouncementPublished,
			Locale:   req.Locale,
			Path:     fmt.Sprintf("/announcements/%s-%s", a.ID, slug.Make(a.Title)),
			Data:     email.Data{Title: a.Title, Body: a.Body, Urgent: a.Urgent},
		}
	}
	return ev
}
