package calendar

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

// Service defines the interface for calendar business logic.
type Service interface {
	CreateEvent(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreateEventRequest) (*CreateEventResponse, error)
	ListEvents(ctx context.Context, buildingID uuid.UUID) ([]Event, error)
	SendDueReminders(ctx context.Context, leadTime time.Duration) (int, error)
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
		logger:     logger.Named("CalendarService"),
		now:        time.Now,
	}
}

func (s *ServiceImplementation) CreateEvent(ctx context.Context, buildingID, actorID uuid.UUID, role string, req CreateEventRequest) (*CreateEventResponse, error) {
	if req.EndDateTime != nil && req.EndDateTime.Before(req.StartDateTime) {
		return nil, common.NewValidationAPIError(map[string]string{
			"EndDateTime": "The end_date_time field must not be before start_date_time.",
		})
	}

	targets := []uuid.UUID{buildingID}
	for _, id := range req.ExtraBuildingIDs {
		if id != buildingID {
			targets = append(targets, id)
		}
	}
	for _, id := range targets {
		if err := s.authorizer.AuthorizeManager(ctx, id, actorID, role); err != nil {
			return nil, err
		}
	}

	eventType := req.EventType
	if eventType == "" {
		eventType = TypeOther
	}
	ev := &Event{
		BuildingID:    buildingID,
		CreatedByID:   actorID,
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		EventType:     eventType,
		StartDateTime: req.StartDateTime.UTC(),
		EndDateTime:   req.EndDateTime,
		AllDay:        req.AllDay,
	}
	start := time.Now()
	err := s.repo.Create(ctx, ev)
	s.recorder.Record(ctx, oplog.NewEntry("calendar_events.create", oplog.TypeDB, start,
		map[string]interface{}{"building_id": buildingID, "targets": len(targets)}, err).WithUser(actorID))
	if err != nil {
		s.logger.Error("Failed to create calendar event", zap.Error(err))
		return nil, common.ErrInternalServer.WithDetails("Could not create calendar event.")
	}

	resp := &CreateEventResponse{Event: ev}
	report, err := s.publisher.Publish(ctx, CreatedEvent(ev, targets, actorID, req.SendEmail))
	if err != nil {
		s.logger.Error("Failed to notify tenants of calendar event",
			zap.String("eventID", ev.ID.String()),
			zap.Int("inserted", report.Inserted),
			zap.Error(err))
	}
	resp.Notifications = report.Inserted
	return resp, nil
}

func notificationEvent(ev *Event) notification.CalendarEvent {
	return notification.CalendarEvent{
		EventID:     ev.ID,
		BuildingID:  ev.BuildingID,
		Title:       ev.Title,
		Description: ev.Description,
		EventType:   ev.EventType,
		Start:       ev.StartDateTime,
		End:         ev.EndDateTime,
		AllDay:      ev.AllDay,
	}
}

func emailSpec(template string, ev *Event) *fanout.EmailSpec {
	start := ev.StartDateTime
	return &fanout.EmailSpec{
		Template: template,
		Path:     fmt.Sprintf("/calendar/%s", ev.ID),
		Data: email.Data{
			Title:  ev.Title,
			Body:   ev.Description,
			Start:  &start,
			End:    ev.EndDateTime,
			AllDay: ev.AllDay,
		},
	}
}

// CreatedEvent is the fan-out event of a new calendar entry reaching the
// tenants of targets.
func CreatedEvent(ev *Event, targets []uuid.UUID, actorID uuid.UUID, withEmail bool) fanout.Event {
	payload := notificationEvent(ev)
	out := fanout.Event{
		Action:      "calendar_events.create",
		ActorID:     actorID,
		BuildingIDs: targets,
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildCalendarEventCreated(payload, r.UserID, createdAt)
		},
	}
	if withEmail {
		out.Email = emailSpec(email.TemplateCalendarEventCreated, ev)
	}
	return out
}

// ReminderEvent is the fan-out event of an upcoming calendar entry.
func ReminderEvent(ev *Event) fanout.Event {
	payload := notificationEvent(ev)
	return fanout.Event{
		Action:      "calendar_events.reminder",
		BuildingIDs: []uuid.UUID{ev.BuildingID},
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildCalendarEventReminder(payload, r.UserID, createdAt)
		},
		Email: emailSpec(email.TemplateCalendarEventReminder, ev),
	}
}

func (s *ServiceImplementation) ListEvents(ctx context.Context, buildingID uuid.UUID) ([]Event, error) {
	// Events that started today stay listed.
	y, m, d := s.now().UTC().Date()
	events, err := s.repo.ListByBuilding(ctx, buildingID, time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	if err != nil {
		s.logger.Error("Failed to list calendar events", zap.Error(err))
		return nil, common.ErrInternalServer.WithDetails("Could not retrieve calendar events.")
	}
	return events, nil
}

// SendDueReminders notifies the tenants of every event starting within
// leadTime. Each reminder is claimed before it is published, so a reminder
// is sent at most once even with several instances running the job.
func (s *ServiceImplementation) SendDueReminders(ctx context.Context, leadTime time.Duration) (int, error) {
	start := time.Now()
	now := s.now().UTC()
	due, err := s.repo.DueForReminder(ctx, now, leadTime)
	if err != nil {
		s.recorder.Record(ctx, oplog.NewEntry("calendar_events.reminders", oplog.TypeJob, start, nil, err))
		return 0, err
	}

	sent := 0
	for i := range due {
		ev := &due[i]
		claimed, err := s.repo.MarkReminderSent(ctx, ev.ID, now)
		if err != nil {
			s.logger.Error("Failed to claim reminder", zap.String("eventID", ev.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if _, err := s.publisher.Publish(ctx, ReminderEvent(ev)); err != nil {
			s.logger.Error("Failed to publish reminder", zap.String("eventID", ev.ID.String()), zap.Error(err))
			continue
		}
		sent++
	}

	s.recorder.Record(ctx, oplog.NewEntry("calendar_events.reminders", oplog.TypeJob, start,
		map[string]interface{}{"due": len(due), "sent": sent}, nil))
	return sent, nil
}
