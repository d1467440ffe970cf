package notification

import (
	"errors"
	"fmt"
	"time"

	"buildinghub_backend/internal/common"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Action tokens are i18n keys resolved by the clients.
const (
	ActionPollPublished         = "notifications.poll_published"
	ActionCalendarEventCreated  = "notifications.calendar_event_created"
	ActionCalendarEventReminder = "notifications.calendar_event_reminder"
	ActionAnnouncementPublished = "notifications.announcement_published"
	ActionMessageReceived       = "notifications.message_received"
)

var validate = validator.New()

// Validate checks the required fields of a record.
func Validate(r Record) error {
	if err := validate.Struct(r); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return common.NewValidationAPIError(common.FormatValidationErrors(ve))
		}
		return fmt.Errorf("validating notification record: %w", err)
	}
	if !r.Kind.Valid() {
		return common.NewValidationAPIError(map[string]string{"Kind": fmt.Sprintf("Unknown notification type %d.", int(r.Kind))})
	}
	return nil
}

func build(r Record) (Record, error) {
	if err := Validate(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// PollPublished describes a poll that became visible to tenants.
type PollPublished struct {
	PollID      uuid.UUID
	BuildingID  uuid.UUID
	Title       string
	Description string
}

func BuildPollPublished(ev PollPublished, userID uuid.UUID, createdAt time.Time) (Record, error) {
	pollID, buildingID := ev.PollID, ev.BuildingID
	return build(Record{
		UserID:      userID,
		Kind:        KindAnnouncement,
		ActionToken: ActionPollPublished,
		Title:       ev.Title,
		Description: ev.Description,
		URL:         fmt.Sprintf("/polls/%s", ev.PollID),
		CreatedAt:   createdAt,
		Metadata: Metadata{
			PollID:     &pollID,
			BuildingID: &buildingID,
		},
	})
}

// CalendarEvent describes a building calendar entry.
type CalendarEvent struct {
	EventID     uuid.UUID
	BuildingID  uuid.UUID
	Title       string
	Description string
	EventType   string
	Start       time.Time
	End         *time.Time
	AllDay      bool
}

func (ev CalendarEvent) metadata() Metadata {
	eventID, buildingID, start, allDay := ev.EventID, ev.BuildingID, ev.Start, ev.AllDay
	return Metadata{
		CalendarEventID:   &eventID,
		BuildingID:        &buildingID,
		CalendarEventType: ev.EventType,
		StartDateTime:     &start,
		EndDateTime:       ev.End,
		AllDay:            &allDay,
	}
}

func BuildCalendarEventCreated(ev CalendarEvent, userID uuid.UUID, createdAt time.Time) (Record, error) {
	return build(Record{
		UserID:      userID,
		Kind:        KindReminder,
		ActionToken: ActionCalendarEventCreated,
		Title:       ev.Title,
		Description: ev.Description,
		URL:         fmt.Sprintf("/calendar/%s", ev.EventID),
		CreatedAt:   createdAt,
		Metadata:    ev.metadata(),
	})
}

// BuildCalendarEventReminder is sent ahead of an upcoming calendar event.
func BuildCalendarEventReminder(ev CalendarEvent, userID uuid.UUID, createdAt time.Time) (Record, error) {
	return build(Record{
		UserID:      userID,
		Kind:        KindReminder,
		ActionToken: ActionCalendarEventReminder,
		Title:       ev.Title,
		Description: ev.Description,
		URL:         fmt.Sprintf("/calendar/%s", ev.EventID),
		CreatedAt:   createdAt,
		Metadata:    ev.metadata(),
	})
}

// AnnouncementPublished describes a published building announcement.
type AnnouncementPublished struct {
	AnnouncementID uuid.UUID
	BuildingID     uuid.UUID
	Title          string
	Body           string
	Urgent         bool
}

func BuildAnnouncementPublished(ev AnnouncementPublished, userID uuid.UUID, createdAt time.Time) (Record, error) {
	announcementID, buildingID := ev.AnnouncementID, ev.BuildingID
	kind := KindAnnouncement
	if ev.Urgent {
		kind = KindAlert
	}
	return build(Record{
		UserID:      userID,
		Kind:        kind,
		ActionToken: ActionAnnouncementPublished,
		Title:       ev.Title,
		Description: ev.Body,
		URL:         fmt.Sprintf("/announcements/%s-%s", ev.AnnouncementID, slug.Make(ev.Title)),
		CreatedAt:   createdAt,
		Metadata: Metadata{
			AnnouncementID: &announcementID,
			BuildingID:     &buildingID,
		},
	})
}

// Message is a free-form notification. Kind defaults to KindMessage and
// ActionToken to ActionMessageReceived.
type Message struct {
	Kind        Kind
	ActionToken string
	Title       string
	Body        string
	URL         string
	BuildingID  *uuid.UUID
	Extra       map[string]interface{}
}

func BuildMessage(msg Message, userID uuid.UUID, createdAt time.Time) (Record, error) {
	if msg.Kind == 0 {
		msg.Kind = KindMessage
	}
	if msg.ActionToken == "" {
		msg.ActionToken = ActionMessageReceived
	}
	if msg.URL == "" {
		msg.URL = "/messages"
	}
	return build(Record{
		UserID:      userID,
		Kind:        msg.Kind,
		ActionToken: msg.ActionToken,
		Title:       msg.Title,
		Description: msg.Body,
		URL:         msg.URL,
		CreatedAt:   createdAt,
		Metadata: Metadata{
			BuildingID: msg.BuildingID,
			Extra:      msg.Extra,
		},
	})
}
