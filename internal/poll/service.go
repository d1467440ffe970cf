package poll

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
	"go.uber.org/zap"
)

// Authorizer checks that a user manages a building.
type Authorizer interface {
	AuthorizeManager(ctx context.Context, buildingID, userID uuid.UUID, role string) error
}

// Reorderer renumbers the children of one parent.
type Reorderer interface {
	Reorder(ctx context.Context, parentID uuid.UUID, orderedIDs []uuid.UUID) error
}

// Service defines the interface for poll business logic.
type Service interface {
	CreatePoll(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreatePollRequest) (*Poll, error)
	GetPoll(ctx context.Context, id uuid.UUID) (*Poll, error)
	ListPolls(ctx context.Context, buildingID uuid.UUID, role string) ([]Poll, error)
	PublishPoll(ctx context.Context, id, actorID uuid.UUID, role string) (*PublishResponse, error)
	ReorderOptions(ctx context.Context, pollID, actorID uuid.UUID, role string, ids []uuid.UUID) error
	ReorderPolls(ctx context.Context, buildingID, actorID uuid.UUID, role string, ids []uuid.UUID) error
}

type ServiceImplementation struct {
	repo       Repository
	authorizer Authorizer
	publisher  fanout.Publisher
	options    Reorderer
	polls      Reorderer
	recorder   oplog.Recorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(
	repo Repository,
	authorizer Authorizer,
	publisher fanout.Publisher,
	optionReorderer Reorderer,
	pollReorderer Reorderer,
	recorder oplog.Recorder,
	logger *zap.Logger,
) *ServiceImplementation {
	return &ServiceImplementation{
		repo:       repo,
		authorizer: authorizer,
		publisher:  publisher,
		options:    optionReorderer,
		polls:      pollReorderer,
		recorder:   recorder,
		logger:     logger.Named("PollService"),
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

func (s *ServiceImplementation) CreatePoll(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreatePollRequest) (*Poll, error) {
	if err := s.authorizer.AuthorizeManager(ctx, buildingID, actorID, role); err != nil {
		return nil, err
	}
	start := time.Now()

	p := &Poll{
		BuildingID:  buildingID,
		CreatedByID: actorID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      StatusDraft,
	}
	for _, label := range req.Options {
		p.Options = append(p.Options, PollOption{Label: strings.TrimSpace(label)})
	}

	err := s.repo.Create(ctx, p)
	s.recorder.Record(ctx, oplog.NewEntry("polls.create", oplog.TypeDB, start,
		map[string]interface{}{"building_id": buildingID, "options": len(p.Options)}, err).WithUser(actorID))
	if err != nil {
		return nil, s.internal(err, "Could not create poll.")
	}
	s.logger.Info("Poll created", zap.String("pollID", p.ID.String()), zap.String("buildingID", buildingID.String()))
	return p, nil
}

func (s *ServiceImplementation) GetPoll(ctx context.Context, id uuid.UUID) (*Poll, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal(err, "Could not retrieve poll.")
	}
	return p, nil
}

// ListPolls hides drafts from everyone but building managers.
func (s *ServiceImplementation) ListPolls(ctx context.Context, buildingID uuid.UUID, role string) ([]Poll, error) {
	polls, err := s.repo.ListByBuilding(ctx, buildingID, common.CanManageBuildings(role))
	if err != nil {
		return nil, s.internal(err, "Could not retrieve polls.")
	}
	return polls, nil
}

// PublishPoll makes a draft poll visible and notifies the building's tenants.
// Notification failures are logged; the poll stays published.
func (s *ServiceImplementation) PublishPoll(ctx context.Context, id, actorID uuid.UUID, role string) (*PublishResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.internal(err, "Could not retrieve poll.")
	}
	if err := s.authorizer.AuthorizeManager(ctx, p.BuildingID, actorID, role); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.repo.TransitionStatus(ctx, p.ID, StatusDraft, StatusPublished, now); err != nil {
		return nil, s.internal(err, "Could not publish poll.")
	}
	p.Status = StatusPublished
	p.PublishedAt = &now

	resp := &PublishResponse{Poll: p}
	report, err := s.publisher.Publish(ctx, PublishedEvent(p, actorID))
	if err != nil {
		s.logger.Error("Failed to notify tenants of published poll",
			zap.String("pollID", p.ID.String()),
			zap.Int("inserted", report.Inserted),
			zap.Error(err))
	}
	resp.Notifications = report.Inserted
	return resp, nil
}

// PublishedEvent is the fan-out event of a published poll.
func PublishedEvent(p *Poll, actorID uuid.UUID) fanout.Event {
	ev := notification.PollPublished{
		PollID:      p.ID,
		BuildingID:  p.BuildingID,
		Title:       p.Title,
		Description: p.Description,
	}
	return fanout.Event{
		Action:      "polls.publish",
		ActorID:     actorID,
		BuildingIDs: []uuid.UUID{p.BuildingID},
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildPollPublished(ev, r.UserID, createdAt)
		},
		Email: &fanout.EmailSpec{
			Template: email.TemplatePollPublished,
			Path:     fmt.Sprintf("/polls/%s", p.ID),
			Data:     email.Data{Title: p.Title, Body: p.Description},
		},
	}
}

func (s *ServiceImplementation) ReorderOptions(ctx context.Context, pollID, actorID uuid.UUID, role string, ids []uuid.UUID) error {
	p, err := s.repo.FindByID(ctx, pollID)
	if err != nil {
		return s.internal(err, "Could not retrieve poll.")
	}
	if err := s.authorizer.AuthorizeManager(ctx, p.BuildingID, actorID, role); err != nil {
		return err
	}
	if err := s.options.Reorder(ctx, pollID, ids); err != nil {
		return s.internal(err, "Could not reorder poll options.")
	}
	return nil
}

func (s *ServiceImplementation) ReorderPolls(ctx context.Context, buildingID, actorID uuid.UUID, role string, ids []uuid.UUID) error {
	if err := s.authorizer.AuthorizeManager(ctx, buildingID, actorID, role); err != nil {
		return err
	}
	if err := s.polls.Reorder(ctx, buildingID, ids); err != nil {
		return s.internal(err, "Could not reorder polls.")
	}
	return nil
}
