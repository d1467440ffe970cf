// Package fanout turns a building level domain event into persisted
// notifications, channel deliveries and an optional e-mail.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/channel"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AudienceResolver finds the people reached by a building event.
type AudienceResolver interface {
	ResolveTenantsForBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]audience.Recipient, error)
	ResolveNotificationEmailsForBuildings(ctx context.Context, buildingIDs []uuid.UUID) ([]string, error)
	ResolveBuildingAddress(ctx context.Context, buildingID uuid.UUID) (*audience.Address, error)
}

// Emitter persists notification records.
type Emitter interface {
	Emit(ctx context.Context, records []notification.Record) (notification.EmitResult, error)
}

// Dispatcher delivers persisted records over the phone and e-mail channels.
type Dispatcher interface {
	FanOut(ctx context.Context, records []notification.Record) channel.Report
}

// BuildFunc builds the record of one recipient.
type BuildFunc func(r audience.Recipient, createdAt time.Time) (notification.Record, error)

// EmailSpec describes the announcement e-mail sent alongside the
// notifications. Path is appended to the public app URL.
type EmailSpec struct {
	Template string
	Locale   string
	Path     string
	Data     email.Data
}

// Event is a domain event reaching the tenants of BuildingIDs.
type Event struct {
	Action      string
	ActorID     uuid.UUID
	BuildingIDs []uuid.UUID
	Build       BuildFunc
	Email       *EmailSpec
}

// Report summarises a publish.
type Report struct {
	Recipients int            `json:"recipients"`
	Inserted   int            `json:"inserted"`
	Delivery   channel.Report `json:"delivery"`
	Emailed    int            `json:"emailed"`
}

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) (Report, error)
}

type Orchestrator struct {
	audience   AudienceResolver
	store      Emitter
	dispatcher Dispatcher
	mailer     channel.Mailer
	templates  *email.Templates
	recorder   oplog.Recorder
	appURL     string
	// digest is set when the dispatcher e-mails opted-in tenants itself.
	digest bool
	now    func() time.Time
	logger *zap.Logger
}

func NewOrchestrator(
	resolver AudienceResolver,
	store Emitter,
	dispatcher Dispatcher,
	mailer channel.Mailer,
	templates *email.Templates,
	recorder oplog.Recorder,
	cfg *config.Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		audience:   resolver,
		store:      store,
		dispatcher: dispatcher,
		mailer:     mailer,
		templates:  templates,
		recorder:   recorder,
		appURL:     strings.TrimRight(cfg.PublicAppURL, "/"),
		digest:     cfg.HasChannel(channel.Email),
		now:        time.Now,
		logger:     logger.Named("FanoutOrchestrator"),
	}
}

// Publish resolves the tenants of the event's buildings, builds and stores
// one record each, and delivers the records that were stored. A failed
// emission is returned with the partial count after the stored prefix has
// been delivered. E-mail failures are logged only.
func (o *Orchestrator) Publish(ctx context.Context, ev Event) (report Report, err error) {
	start := time.Now()
	defer func() {
		entry := oplog.NewEntry(ev.Action, oplog.TypeAction, start, map[string]interface{}{
			"building_ids": ev.BuildingIDs,
			"recipients":   report.Recipients,
			"inserted":     report.Inserted,
			"sent":         report.Delivery.Sent,
			"failed":       report.Delivery.Failed,
			"emailed":      report.Emailed,
		}, err)
		o.recorder.Record(ctx, entry.WithUser(ev.ActorID))
	}()

	if ev.Build == nil {
		return report, errors.New("fanout event has no record builder")
	}

	recipients, err := o.audience.ResolveTenantsForBuildings(ctx, ev.BuildingIDs)
	if err != nil {
		return report, fmt.Errorf("resolving audience of %s: %w", ev.Action, err)
	}
	report.Recipients = len(recipients)

	createdAt := o.now().UTC()
	records := make([]notification.Record, 0, len(recipients))
	for _, r := range recipients {
		rec, buildErr := ev.Build(r, createdAt)
		if buildErr != nil {
			return report, fmt.Errorf("building %s record for user %s: %w", ev.Action, r.UserID, buildErr)
		}
		records = append(records, rec)
	}

	res, emitErr := o.store.Emit(ctx, records)
	report.Inserted = res.InsertedCount
	if res.InsertedCount > 0 {
		report.Delivery = o.dispatcher.FanOut(ctx, records[:res.InsertedCount])
	}
	if emitErr != nil {
		o.logger.Error("Notification emission stopped early",
			zap.String("action", ev.Action),
			zap.Int("inserted", res.InsertedCount),
			zap.Int("records", len(records)),
			zap.Error(emitErr))
		return report, emitErr
	}

	if ev.Email != nil {
		report.Emailed = o.sendEmail(ctx, ev, recipients)
	}

	o.logger.Info("Event published",
		zap.String("action", ev.Action),
		zap.Int("recipients", report.Recipients),
		zap.Int("inserted", report.Inserted),
		zap.Int("sent", report.Delivery.Sent),
		zap.Int("emailed", report.Emailed))
	return report, nil
}

// coveredByDigest returns the addresses of tenants that already receive the
// e-mail digest for this event.
func (o *Orchestrator) coveredByDigest(recipients []audience.Recipient) map[string]bool {
	if !o.digest {
		return nil
	}
	covered := make(map[string]bool)
	for _, r := range recipients {
		if r.EmailOptIn && r.Email != "" {
			covered[strings.ToLower(strings.TrimSpace(r.Email))] = true
		}
	}
	return covered
}

func (o *Orchestrator) sendEmail(ctx context.Context, ev Event, recipients []audience.Recipient) int {
	if o.mailer == nil || o.templates == nil {
		return 0
	}
	log := o.logger.With(zap.String("action", ev.Action), zap.String("template", ev.Email.Template))

	addresses, err := o.audience.ResolveNotificationEmailsForBuildings(ctx, ev.BuildingIDs)
	if err != nil {
		log.Error("Failed to resolve e-mail audience", zap.Error(err))
		return 0
	}
	if covered := o.coveredByDigest(recipients); len(covered) > 0 {
		kept := addresses[:0:0]
		for _, a := range addresses {
			if !covered[strings.ToLower(strings.TrimSpace(a))] {
				kept = append(kept, a)
			}
		}
		addresses = kept
	}
	if len(addresses) == 0 {
		return 0
	}

	data := ev.Email.Data
	if ev.Email.Path != "" {
		data.Link = o.appURL + ev.Email.Path
	}
	if len(ev.BuildingIDs) > 0 {
		addr, err := o.audience.ResolveBuildingAddress(ctx, ev.BuildingIDs[0])
		if err != nil {
			log.Warn("Failed to resolve building address", zap.Error(err))
		} else if addr != nil {
			if data.BuildingName == "" {
				data.BuildingName = addr.BuildingName
			}
			data.Address = addr.Formatted
		}
	}

	rendered, err := o.templates.Render(ev.Email.Template, ev.Email.Locale, data)
	if err != nil {
		log.Error("Failed to render e-mail", zap.Error(err))
		return 0
	}
	start := time.Now()
	res, err := o.mailer.Send(ctx, addresses, rendered.Subject, rendered.HTML)
	o.recorder.Record(ctx, oplog.NewEntry("notifications.send.email_broadcast", oplog.TypeExternal, start,
		map[string]interface{}{"template": ev.Email.Template, "recipients": len(addresses), "accepted": res.Accepted}, err).WithUser(ev.ActorID))
	if err != nil {
		log.Error("Failed to send e-mail", zap.Int("recipients", len(addresses)), zap.Error(err))
		return 0
	}
	return res.Accepted
}
