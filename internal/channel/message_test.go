package channel

import (
	"strings"
	"testing"
	"time"

	"buildinghub_backend/internal/notification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func record(t *testing.T, userID uuid.UUID, kind notification.Kind, title, body string) notification.Record {
	t.Helper()
	rec, err := notification.BuildMessage(notification.Message{Kind: kind, Title: title, Body: body}, userID, sentAt)
	require.NoError(t, err)
	return rec
}

func TestConsolidate_Single(t *testing.T) {
	rec := record(t, uuid.New(), notification.KindReminder, "Lift maintenance", "<p>Tomorrow <b>9:00</b></p>")

	msg := Consolidate([]notification.Record{rec})

	assert.Equal(t, "Lift maintenance", msg.Title)
	assert.Equal(t, "Tomorrow 9:00", msg.Body)
	assert.Equal(t, notification.KindReminder, msg.Kind)
	assert.Equal(t, rec.URL, msg.URL)
}

func TestConsolidate_Many(t *testing.T) {
	userID := uuid.New()
	records := []notification.Record{
		record(t, userID, notification.KindAlert, "Water cut", "<p>No water</p>"),
		record(t, userID, notification.KindAnnouncement, "New poll", "Vote &amp; win"),
		record(t, userID, notification.KindReminder, "Meeting", "<div>Room 1</div>"),
	}

	msg := Consolidate(records)

	assert.Equal(t, "3 new notifications", msg.Title)
	assert.Equal(t, "No water\nVote & win\nRoom 1", msg.Body)
	assert.Equal(t, notification.KindAlert, msg.Kind)
	assert.Equal(t, "/notifications", msg.URL)
	assert.Len(t, msg.Items, 3)
	// Stored records keep their own content.
	assert.Equal(t, "<p>No water</p>", records[0].Description)
}

func TestConsolidate_PlainTextKeepsLineBreaks(t *testing.T) {
	userID := uuid.New()
	records := []notification.Record{
		record(t, userID, notification.KindMessage, "a", "Line one\nline two"),
		record(t, userID, notification.KindMessage, "b", "<p>b</p>"),
		record(t, userID, notification.KindMessage, "c", "c  d"),
	}

	msg := Consolidate(records)

	assert.Equal(t, "Line one\nline two\nb\nc  d", msg.Body)
}

func TestConsolidate_Empty(t *testing.T) {
	assert.Equal(t, Message{}, Consolidate(nil))
}

func TestDecorate(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		kind    notification.Kind
		want    string
	}{
		{"sms alert", SMS, notification.KindAlert, "URGENT: Title\nBody\nhttps://app/x"},
		{"sms reminder", SMS, notification.KindReminder, "Reminder: Title\nBody\nhttps://app/x"},
		{"sms message", SMS, notification.KindMessage, "Title\nBody\nhttps://app/x"},
		{"whatsapp alert", WhatsApp, notification.KindAlert, "*URGENT* *Title*\nBody\nhttps://app/x"},
		{"whatsapp reminder", WhatsApp, notification.KindReminder, "_Title_\nBody\nhttps://app/x"},
		{"whatsapp announcement", WhatsApp, notification.KindAnnouncement, "*Title*\nBody\nhttps://app/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decorate(tt.channel, Message{Title: "Title", Body: "Body", Kind: tt.kind}, "https://app/x")
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "Title", Decorate(SMS, Message{Title: "Title"}, ""))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain \n text", StripHTML("  plain \n text "))
	assert.Equal(t, "Hello world", StripHTML("<p>Hello</p><p>world</p>"))
	assert.Equal(t, "a < b", StripHTML("a &lt; b"))
	assert.Equal(t, "keep", StripHTML("<script>alert(1)</script><style>p{}</style>keep"))
	assert.Equal(t, "", StripHTML(""))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"+30 694 123 4567", "+306941234567", false},
		{"6941234567", "6941234567", false},
		{" \t+1 555\n0100 ", "+15550100", false},
		{"+30-694-123", "", true},
		{"call me", "", true},
		{"++30", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPhone, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("α", MaxTextLength+10)
	got := Truncate(long)
	assert.Equal(t, MaxTextLength, len([]rune(got)))
}
