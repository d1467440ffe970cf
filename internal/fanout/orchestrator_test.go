package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"buildinghub_backend/internal/audience"
	"buildinghub_backend/internal/channel"
	"buildinghub_backend/internal/config"
	"buildinghub_backend/internal/email"
	"buildinghub_backend/internal/notification"
	"buildinghub_backend/internal/oplog"
	"buildinghub_backend/internal/oplog/oplogtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var publishedAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeAudience struct {
	recipients []audience.Recipient
	emails     []string
	address    *audience.Address
	err        error
	emailsErr  error
}

func (f *fakeAudience) ResolveTenantsForBuildings(context.Context, []uuid.UUID) ([]audience.Recipient, error) {
	return f.recipients, f.err
}

func (f *fakeAudience) ResolveNotificationEmailsForBuildings(context.Context, []uuid.UUID) ([]string, error) {
	return f.emails, f.emailsErr
}

func (f *fakeAudience) ResolveBuildingAddress(context.Context, uuid.UUID) (*audience.Address, error) {
	return f.address, nil
}

type fakeEmitter struct {
	inserted *int
	err      error
	calls    int
	records  []notification.Record
}

func (f *fakeEmitter) Emit(_ context.Context, records []notification.Record) (notification.EmitResult, error) {
	f.calls++
	f.records = records
	n := len(records)
	if f.inserted != nil {
		n = *f.inserted
	}
	return notification.EmitResult{InsertedCount: n}, f.err
}

type fakeDispatcher struct {
	records []notification.Record
	calls   int
}

func (f *fakeDispatcher) FanOut(_ context.Context, records []notification.Record) channel.Report {
	f.calls++
	f.records = records
	return channel.Report{Recipients: len(records), Sent: len(records)}
}

type fakeMailer struct {
	to      []string
	subject string
	html    string
	err     error
}

func (f *fakeMailer) Send(_ context.Context, to []string, subject, html string) (email.SendResult, error) {
	f.to, f.subject, f.html = to, subject, html
	if f.err != nil {
		return email.SendResult{}, f.err
	}
	return email.SendResult{Accepted: len(to)}, nil
}

type orchestratorFixture struct {
	audience   *fakeAudience
	emitter    *fakeEmitter
	dispatcher *fakeDispatcher
	mailer     *fakeMailer
	recorder   *oplogtest.Recorder
	o          *Orchestrator
}

func setupOrchestrator(t *testing.T, recipients ...audience.Recipient) *orchestratorFixture {
	t.Helper()
	tmpls, err := email.NewTemplates()
	require.NoError(t, err)
	f := &orchestratorFixture{
		audience:   &fakeAudience{recipients: recipients},
		emitter:    &fakeEmitter{},
		dispatcher: &fakeDispatcher{},
		mailer:     &fakeMailer{},
		recorder:   &oplogtest.Recorder{},
	}
	cfg := &config.Config{PublicAppURL: "https://app.example.com"}
	f.o = NewOrchestrator(f.audience, f.emitter, f.dispatcher, f.mailer, tmpls, f.recorder, cfg, zap.NewNop())
	f.o.now = func() time.Time { return publishedAt }
	return f
}

func tenants(n int) []audience.Recipient {
	out := make([]audience.Recipient, n)
	buildingID := uuid.New()
	for i := range out {
		out[i] = audience.Recipient{UserID: uuid.New(), BuildingID: buildingID}
	}
	return out
}

func pollEvent(actor uuid.UUID, withEmail bool) Event {
	poll := notification.PollPublished{PollID: uuid.New(), BuildingID: uuid.New(), Title: "Paint the lobby?"}
	ev := Event{
		Action:      "polls.publish",
		ActorID:     actor,
		BuildingIDs: []uuid.UUID{poll.BuildingID},
		Build: func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
			return notification.BuildPollPublished(poll, r.UserID, createdAt)
		},
	}
	if withEmail {
		ev.Email = &EmailSpec{
			Template: email.TemplatePollPublished,
			Path:     "/polls/" + poll.PollID.String(),
			Data:     email.Data{Title: poll.Title},
		}
	}
	return ev
}

func TestPublish_StoresThenDelivers(t *testing.T) {
	f := setupOrchestrator(t, tenants(3)...)
	actor := uuid.New()

	report, err := f.o.Publish(context.Background(), pollEvent(actor, false))

	require.NoError(t, err)
	assert.Equal(t, Report{Recipients: 3, Inserted: 3, Delivery: channel.Report{Recipients: 3, Sent: 3}}, report)
	require.Len(t, f.emitter.records, 3)
	for _, r := range f.emitter.records {
		assert.Equal(t, publishedAt, r.CreatedAt)
		assert.Equal(t, notification.ActionPollPublished, r.ActionToken)
	}
	assert.Equal(t, f.emitter.records, f.dispatcher.records)

	entries := f.recorder.ByAction("polls.publish")
	require.Len(t, entries, 1)
	assert.Equal(t, oplog.TypeAction, entries[0].Type)
	assert.Equal(t, oplog.StatusSuccess, entries[0].Status)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, actor, *entries[0].UserID)
}

func TestPublish_PartialEmitDeliversOnlyStoredPrefix(t *testing.T) {
	f := setupOrchestrator(t, tenants(5)...)
	two := 2
	f.emitter.inserted = &two
	f.emitter.err = errors.New("notification batch 2 of 3 failed after 2 inserted")

	report, err := f.o.Publish(context.Background(), pollEvent(uuid.New(), true))

	require.Error(t, err)
	assert.Equal(t, 2, report.Inserted)
	require.Len(t, f.dispatcher.records, 2)
	assert.Equal(t, f.emitter.records[:2], f.dispatcher.records)
	assert.Nil(t, f.mailer.to, "no e-mail after a failed emission")
	assert.Equal(t, oplog.StatusFail, f.recorder.ByAction("polls.publish")[0].Status)
}

func TestPublish_NothingStoredNothingDelivered(t *testing.T) {
	f := setupOrchestrator(t)

	report, err := f.o.Publish(context.Background(), pollEvent(uuid.New(), false))

	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Equal(t, 0, f.dispatcher.calls)
}

func TestPublish_AudienceErrorStopsBeforeStore(t *testing.T) {
	f := setupOrchestrator(t)
	f.audience.err = errors.New("db down")

	_, err := f.o.Publish(context.Background(), pollEvent(uuid.New(), false))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 0, f.emitter.calls)
}

func TestPublish_BuildErrorStopsBeforeStore(t *testing.T) {
	f := setupOrchestrator(t, tenants(2)...)
	ev := pollEvent(uuid.New(), false)
	ev.Build = func(r audience.Recipient, createdAt time.Time) (notification.Record, error) {
		return notification.BuildMessage(notification.Message{}, r.UserID, createdAt)
	}

	_, err := f.o.Publish(context.Background(), ev)

	require.Error(t, err)
	assert.Equal(t, 0, f.emitter.calls)
}

func TestPublish_SendsEmailToResolvedAddresses(t *testing.T) {
	f := setupOrchestrator(t, tenants(1)...)
	f.audience.emails = []string{"a@example.com", "manager@example.com"}
	f.audience.address = &audience.Address{BuildingName: "Acropolis View", Formatted: "1 Main St, 10558 Athens, GR"}

	report, err := f.o.Publish(context.Background(), pollEvent(uuid.New(), true))

	require.NoError(t, err)
	assert.Equal(t, 2, report.Emailed)
	assert.Equal(t, []string{"a@example.com", "manager@example.com"}, f.mailer.to)
	assert.Equal(t, "New poll: Paint the lobby?", f.mailer.subject)
	assert.Contains(t, f.mailer.html, "Acropolis View")
	assert.Contains(t, f.mailer.html, "https://app.example.com/polls/")
	assert.Len(t, f.recorder.ByAction("notifications.send.email_broadcast"), 1)
}

func TestPublish_DigestRecipientsAreLeftOutOfBroadcast(t *testing.T) {
	tmpls, err := email.NewTemplates()
	require.NoError(t, err)
	buildingID := uuid.New()
	recipients := []audience.Recipient{
		{UserID: uuid.New(), BuildingID: buildingID, Email: "Tenant@Example.com", EmailOptIn: true},
		{UserID: uuid.New(), BuildingID: buildingID, Email: "quiet@example.com"},
	}
	aud := &fakeAudience{
		recipients: recipients,
		emails:     []string{"tenant@example.com", "manager@example.com"},
	}
	mailer := &fakeMailer{}
	cfg := &config.Config{PublicAppURL: "https://app.example.com", NotifyChannels: []string{channel.SMS, channel.Email}}
	o := NewOrchestrator(aud, &fakeEmitter{}, &fakeDispatcher{}, mailer, tmpls, &oplogtest.Recorder{}, cfg, zap.NewNop())

	report, err := o.Publish(context.Background(), pollEvent(uuid.New(), true))

	require.NoError(t, err)
	assert.Equal(t, []string{"manager@example.com"}, mailer.to)
	assert.Equal(t, 1, report.Emailed)
}

func TestPublish_OnlyDigestRecipientsSkipsBroadcast(t *testing.T) {
	tmpls, err := email.NewTemplates()
	require.NoError(t, err)
	aud := &fakeAudience{
		recipients: []audience.Recipient{{UserID: uuid.New(), Email: "tenant@example.com", EmailOptIn: true}},
		emails:     []string{"tenant@example.com"},
	}
	mailer := &fakeMailer{}
	cfg := &config.Config{NotifyChannels: []string{channel.Email}}
	o := NewOrchestrator(aud, &fakeEmitter{}, &fakeDispatcher{}, mailer, tmpls, &oplogtest.Recorder{}, cfg, zap.NewNop())

	report, err := o.Publish(context.Background(), pollEvent(uuid.New(), true))

	require.NoError(t, err)
	assert.Nil(t, mailer.to)
	assert.Equal(t, 0, report.Emailed)
}

func TestPublish_EmailFailureIsNotReturned(t *testing.T) {
	f := setupOrchestrator(t, tenants(1)...)
	f.audience.emails = []string{"a@example.com"}
	f.mailer.err = errors.New("smtp down")

	report, err := f.o.Publish(context.Background(), pollEvent(uuid.New(), true))

	require.NoError(t, err)
	assert.Equal(t, 0, report.Emailed)
	assert.Equal(t, 1, report.Inserted)
}

func TestMessageEvent(t *testing.T) {
	buildingID, actor := uuid.New(), uuid.New()

	ev, err := MessageEvent(BroadcastRequest{Title: "Water cut", Body: "From 9 to 11", Kind: "alert", Email: true}, buildingID, actor)
	require.NoError(t, err)

	rec, err := ev.Build(audience.Recipient{UserID: uuid.New()}, publishedAt)
	require.NoError(t, err)
	assert.Equal(t, notification.KindAlert, rec.Kind)
	assert.Equal(t, &buildingID, rec.Metadata.BuildingID)
	require.NotNil(t, ev.Email)
	assert.True(t, ev.Email.Data.Urgent)

	_, err = MessageEvent(BroadcastRequest{Title: "x", Kind: "shout"}, buildingID, actor)
	assert.Error(t, err)
}
