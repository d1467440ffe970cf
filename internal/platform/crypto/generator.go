package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateSecureRandomString creates a cryptographically secure random string
// from n bytes of randomness. Used for lock ownership tokens.
func GenerateSecureRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
