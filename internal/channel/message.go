// Package channel delivers persisted notifications over SMS, WhatsApp and
// e-mail.
package channel

import (
	"fmt"
	"strings"

	"buildinghub_backend/internal/notification"

	"golang.org/x/net/html"
)

// Channel names as configured in NOTIFY_CHANNELS.
const (
	SMS      = "sms"
	WhatsApp = "whatsapp"
	Email    = "email"
)

// Message is the consolidated content sent to one recipient.
type Message struct {
	Title string
	Body  string
	Kind  notification.Kind
	URL   string
	Items []notification.Record
}

// Consolidate merges the records of one recipient. A single record keeps its
// own title, body and kind. Several records become "N new notifications" with
// their stripped descriptions joined by newlines, in input order, under the
// kind of the first record.
func Consolidate(records []notification.Record) Message {
	if len(records) == 0 {
		return Message{}
	}
	if len(records) == 1 {
		r := records[0]
		return Message{
			Title: r.Title,
			Body:  StripHTML(r.Description),
			Kind:  r.Kind,
			URL:   r.URL,
			Items: records,
		}
	}
	bodies := make([]string, 0, len(records))
	for _, r := range records {
		bodies = append(bodies, StripHTML(r.Description))
	}
	return Message{
		Title: fmt.Sprintf("%d new notifications", len(records)),
		Body:  strings.Join(bodies, "\n"),
		Kind:  records[0].Kind,
		URL:   "/notifications",
		Items: records,
	}
}

// Decorate renders m as the text body for a phone channel. The decoration
// depends on the kind only and never touches stored records.
func Decorate(channelName string, m Message, link string) string {
	title := m.Title
	switch channelName {
	case WhatsApp:
		switch m.Kind {
		case notification.KindAlert:
			title = "*URGENT* " + "*" + title + "*"
		case notification.KindReminder:
			title = "_" + title + "_"
		case notification.KindAnnouncement:
			title = "*" + title + "*"
		}
	default:
		switch m.Kind {
		case notification.KindAlert:
			title = "URGENT: " + title
		case notification.KindReminder:
			title = "Reminder: " + title
		}
	}

	var b strings.Builder
	b.WriteString(title)
	if m.Body != "" {
		b.WriteString("\n")
		b.WriteString(m.Body)
	}
	if link != "" {
		b.WriteString("\n")
		b.WriteString(link)
	}
	return b.String()
}

var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "td": true, "th": true, "blockquote": true,
}

// StripHTML returns the text content of s with entities decoded and
// whitespace collapsed. Block elements separate words. Plain text is only
// trimmed so its own line breaks survive.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; keep what was read.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if blockTags[tag] {
				b.WriteByte(' ')
			}
		}
	}
}
