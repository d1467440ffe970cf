package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/user"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ContactResolver loads the contact data of many users in one call.
type ContactResolver interface {
	LookupContactsByUserIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]user.Contact, error)
}

// Mailer sends one HTML e-mail.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, html string) (email.SendResult, error)
}

// Report summarises a fan-out. Sent, Failed and Skipped count deliveries,
// one per recipient and channel.
type Report struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

func (r *Report) add(o Report) {
	r.Sent += o.Sent
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Dispatcher delivers persisted notifications to their recipients.
type Dispatcher struct {
	contacts    ContactResolver
	senders     []Sender
	mailer      Mailer
	templates   *email.Templates
	recorder    oplog.Recorder
	channels    []string
	concurrency int
	appURL      string
	logger      *zap.Logger
}

func NewDispatcher(
	contacts ContactResolver,
	senders []Sender,
	mailer Mailer,
	templates *email.Templates,
	recorder oplog.Recorder,
	cfg *config.Config,
	logger *zap.Logger,
) *Dispatcher {
	concurrency := cfg.DispatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		contacts:    contacts,
		senders:     senders,
		mailer:      mailer,
		templates:   templates,
		recorder:    recorder,
		channels:    cfg.NotifyChannels,
		concurrency: concurrency,
		appURL:      strings.TrimRight(cfg.PublicAppURL, "/"),
		logger:      logger.Named("ChannelDispatcher"),
	}
}

type recipientGroup struct {
	userID  uuid.UUID
	records []notification.Record
}

// groupByUser keeps the first-seen order of users and the input order of
// each user's records.
func groupByUser(records []notification.Record) []recipientGroup {
	index := make(map[uuid.UUID]int)
	var groups []recipientGroup
	for _, r := range records {
		i, ok := index[r.UserID]
		if !ok {
			i = len(groups)
			index[r.UserID] = i
			groups = append(groups, recipientGroup{userID: r.UserID})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}

// enabled returns the configured channels this dispatcher can serve.
func (d *Dispatcher) enabled() []string {
	var out []string
	for _, name := range d.channels {
		switch name {
		case Email:
			if d.mailer != nil && d.templates != nil {
				out = append(out, name)
			}
		default:
			if d.sender(name) != nil {
				out = append(out, name)
			}
		}
	}
	return out
}

func (d *Dispatcher) sender(name string) Sender {
	for _, s := range d.senders {
		if s.Channel() == name {
			return s
		}
	}
	return nil
}

// FanOut delivers records over every enabled channel. It always returns a
// report: lookup errors, provider errors and provider panics are counted as
// failures and never escape.
func (d *Dispatcher) FanOut(ctx context.Context, records []notification.Record) Report {
	groups := groupByUser(records)
	report := Report{Recipients: len(groups)}
	channels := d.enabled()
	if len(groups) == 0 || len(channels) == 0 {
		return report
	}
	start := time.Now()

	ids := make([]uuid.UUID, len(groups))
	for i, g := range groups {
		ids[i] = g.userID
	}
	contacts, err := d.contacts.LookupContactsByUserIDs(ctx, ids)
	if err != nil {
		report.Failed = len(groups) * len(channels)
		d.logger.Error("Failed to look up recipient contacts", zap.Int("recipients", len(groups)), zap.Error(err))
		d.recorder.Record(ctx, oplog.NewEntry("notifications.fan_out", oplog.TypeExternal, start,
			map[string]interface{}{"recipients": len(groups), "channels": channels}, err))
		return report
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(d.concurrency)
	for _, g := range groups {
		contact, found := contacts[g.userID]
		p.Go(func() {
			var out Report
			defer func() {
				if rec := recover(); rec != nil {
					d.logger.Error("Recovered panic while dispatching",
						zap.String("user_id", g.userID.String()),
						zap.String("panic", fmt.Sprint(rec)))
					// Deliveries not yet counted are failures.
					missing := len(channels) - (out.Sent + out.Failed + out.Skipped)
					if missing > 0 {
						out.Failed += missing
					}
				}
				mu.Lock()
				report.add(out)
				mu.Unlock()
			}()
			if !found {
				out.Skipped += len(channels)
				return
			}
			d.deliver(ctx, contact, Consolidate(g.records), channels, &out)
		})
	}
	p.Wait()

	d.recorder.Record(ctx, oplog.NewEntry("notifications.fan_out", oplog.TypeExternal, start,
		map[string]interface{}{
			"recipients": report.Recipients,
			"sent":       report.Sent,
			"failed":     report.Failed,
			"skipped":    report.Skipped,
		}, nil))
	d.logger.Info("Notification fan-out finished",
		zap.Int("recipients", report.Recipients),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, contact user.Contact, msg Message, channels []string, out *Report) {
	link := ""
	if msg.URL != "" {
		link = d.appURL + msg.URL
	}
	for _, name := range channels {
		if name == Email {
			d.deliverEmail(ctx, contact, msg, link, out)
			continue
		}
		d.deliverPhone(ctx, d.sender(name), contact, msg, link, out)
	}
}

func (d *Dispatcher) deliverPhone(ctx context.Context, s Sender, contact user.Contact, msg Message, link string, out *Report) {
	if !contact.SMSOptIn || contact.PhoneNumber == "" {
		out.Skipped++
		return
	}
	start := time.Now()
	payload := map[string]interface{}{"channel": s.Channel(), "kind": msg.Kind.String(), "items": len(msg.Items)}

	phone, err := NormalizePhone(contact.PhoneNumber)
	if err != nil {
		out.Failed++
		d.logger.Warn("Skipping recipient with malformed phone number",
			zap.String("user_id", contact.UserID.String()), zap.String("channel", s.Channel()))
		d.recorder.Record(ctx, oplog.NewEntry("notifications.send."+s.Channel(), oplog.TypeExternal, start, payload, err).WithUser(contact.UserID))
		return
	}

	resp, err := s.Send(ctx, phone, Decorate(s.Channel(), msg, link))
	if err != nil {
		out.Failed++
		d.logger.Warn("Provider send failed",
			zap.String("user_id", contact.UserID.String()), zap.String("channel", s.Channel()), zap.Error(err))
	} else {
		out.Sent++
		payload["message_id"] = resp.MessageID
	}
	d.recorder.Record(ctx, oplog.NewEntry("notifications.send."+s.Channel(), oplog.TypeExternal, start, payload, err).WithUser(contact.UserID))
}

func (d *Dispatcher) deliverEmail(ctx context.Context, contact user.Contact, msg Message, link string, out *Report) {
	if !contact.EmailOptIn || contact.Email == "" {
		out.Skipped++
		return
	}
	start := time.Now()
	payload := map[string]interface{}{"channel": Email, "kind": msg.Kind.String(), "items": len(msg.Items)}

	data := email.Data{Title: msg.Title, Link: link, Urgent: msg.Kind == notification.KindAlert}
	if len(msg.Items) > 1 {
		for _, r := range msg.Items {
			data.Items = append(data.Items, email.DigestItem{Title: r.Title, Body: StripHTML(r.Description)})
		}
	} else {
		data.Body = msg.Body
	}

	rendered, err := d.templates.Render(email.TemplateDigest, contact.Locale, data)
	if err == nil {
		var res email.SendResult
		res, err = d.mailer.Send(ctx, []string{contact.Email}, rendered.Subject, rendered.HTML)
		if err == nil && res.Accepted == 0 {
			// A disabled mailer accepts nothing without failing.
			out.Skipped++
			return
		}
	}
	if err != nil {
		out.Failed++
		d.logger.Warn("E-mail send failed", zap.String("user_id", contact.UserID.String()), zap.Error(err))
	} else {
		out.Sent++
	}
	d.recorder.Record(ctx, oplog.NewEntry("notifications.send.email", oplog.TypeExternal, start, payload, err).WithUser(contact.UserID))
}
