package channel

import (
	"errors"
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)

// ErrInvalidPhone marks a stored number that cannot be dialled.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone removes whitespace and checks the result is digits with an
// optional leading plus.
func NormalizePhone(raw string) (string, error) {
	phone := strings.Join(strings.Fields(raw), "")
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
