package notification

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of notification types. Only its literal (String)
// is ever persisted; Label is for display.
type Kind int

const (
	KindAlert Kind = iota + 1
	KindAnnouncement
	KindReminder
	KindMessage
	KindSystem
)

var kindInfo = map[Kind]struct {
	literal string
	label   string
}{
	KindAlert:        {"alert", "Alert"},
	KindAnnouncement: {"announcement", "Announcement"},
	KindReminder:     {"reminder", "Reminder"},
	KindMessage:      {"message", "Message"},
	KindSystem:       {"system", "System"},
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindAlert, KindAnnouncement, KindReminder, KindMessage, KindSystem}
}

// String returns the persisted literal, e.g. "reminder".
func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.literal
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Label returns the display label, e.g. "Reminder".
func (k Kind) Label() string {
	if info, ok := kindInfo[k]; ok {
		return info.label
	}
	return ""
}

func (k Kind) Valid() bool {
	_, ok := kindInfo[k]
	return ok
}

// ParseKind maps a persisted literal back to its Kind.
func ParseKind(literal string) (Kind, error) {
	for k, info := range kindInfo {
		if info.literal == literal {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown notification type %q", literal)
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid notification kind %d", int(k))
	}
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var literal string
	if err := json.Unmarshal(data, &literal); err != nil {
		return err
	}
	parsed, err := ParseKind(literal)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
