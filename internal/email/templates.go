// Package email renders building notification e-mails and sends them over SMTP.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Template names.
const (
	TemplatePollPublished         = "poll_published"
	TemplateCalendarEventCreated  = "calendar_event_created"
	TemplateCalendarEventReminder = "calendar_event_reminder"
	TemplateAnnouncementPublished = "announcement_published"
	TemplateDigest                = "digest"
)

const DefaultLocale = "en"

//go:embed templates/*.html
var templateFS embed.FS

// DigestItem is one notification listed in a digest.
type DigestItem struct {
	Title string
	Body  string
}

// Data feeds a template. Body is plain text; blank lines separate paragraphs.
type Data struct {
	Title        string
	Body         string
	Link         string
	BuildingName string
	Address      string
	Start        *time.Time
	End          *time.Time
	AllDay       bool
	Urgent       bool
	Items        []DigestItem
}

// Rendered is a ready to send message.
type Rendered struct {
	Subject string
	HTML    string
}

type localeStrings struct {
	subjects    map[string]string
	linkLabel   string
	urgentLabel string
	footer      string
	dateLayout  string
	timeLayout  string
}

var locales = map[string]localeStrings{
	"en": {
		subjects: map[string]string{
			TemplatePollPublished:         "New poll: %s",
			TemplateCalendarEventCreated:  "New event: %s",
			TemplateCalendarEventReminder: "Reminder: %s",
			TemplateAnnouncementPublished: "Announcement: %s",
			TemplateDigest:                "%s",
		},
		linkLabel:   "Open in BuildingHub",
		urgentLabel: "URGENT",
		footer:      "You receive this e-mail because you live in or manage this building.",
		dateLayout:  "Mon 2 Jan 2006",
		timeLayout:  "15:04",
	},
	"el": {
		subjects: map[string]string{
			TemplatePollPublished:         "Νέα ψηφοφορία: %s",
			TemplateCalendarEventCreated:  "Νέο συμβάν: %s",
			TemplateCalendarEventReminder: "Υπενθύμιση: %s",
			TemplateAnnouncementPublished: "Ανακοίνωση: %s",
			TemplateDigest:                "%s",
		},
		linkLabel:   "Άνοιγμα στο BuildingHub",
		urgentLabel: "ΕΠΕΙΓΟΝ",
		footer:      "Λαμβάνετε αυτό το μήνυμα επειδή διαμένετε ή διαχειρίζεστε αυτό το κτίριο.",
		dateLayout:  "02/01/2006",
		timeLayout:  "15:04",
	},
}

// view is what the layout sees.
type view struct {
	Data
	Locale      string
	Subject     string
	Paragraphs  []string
	When        string
	LinkLabel   string
	UrgentLabel string
	Footer      string
}

// Templates holds the parsed layout and bodies.
type Templates struct {
	set map[string]*template.Template
}

func NewTemplates() (*Templates, error) {
	names := []string{
		TemplatePollPublished,
		TemplateCalendarEventCreated,
		TemplateCalendarEventReminder,
		TemplateAnnouncementPublished,
		TemplateDigest,
	}
	t := &Templates{set: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		t.set[name] = tmpl
	}
	return t, nil
}

// Render executes template name. Unknown locales fall back to English.
func (t *Templates) Render(name, locale string, data Data) (Rendered, error) {
	tmpl, ok := t.set[name]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown email template %q", name)
	}
	locale = strings.ToLower(strings.TrimSpace(locale))
	ls, ok := locales[locale]
	if !ok {
		locale, ls = DefaultLocale, locales[DefaultLocale]
	}

	v := view{
		Data:        data,
		Locale:      locale,
		Subject:     fmt.Sprintf(ls.subjects[name], data.Title),
		Paragraphs:  paragraphs(data.Body),
		When:        formatWhen(ls, data.Start, data.End, data.AllDay),
		LinkLabel:   ls.linkLabel,
		UrgentLabel: ls.urgentLabel,
		Footer:      ls.footer,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", v); err != nil {
		return Rendered{}, fmt.Errorf("execute email template %s: %w", name, err)
	}
	return Rendered{Subject: v.Subject, HTML: buf.String()}, nil
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func formatWhen(ls localeStrings, start, end *time.Time, allDay bool) string {
	if start == nil {
		return ""
	}
	if allDay {
		if end != nil && !sameDay(*start, *end) {
			return start.Format(ls.dateLayout) + " - " + end.Format(ls.dateLayout)
		}
		return start.Format(ls.dateLayout)
	}
	when := start.Format(ls.dateLayout) + " " + start.Format(ls.timeLayout)
	if end != nil {
		if sameDay(*start, *end) {
			when += " - " + end.Format(ls.timeLayout)
		} else {
			when += " - " + end.Format(ls.dateLayout) + " " + end.Format(ls.timeLayout)
		}
	}
	return when
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
