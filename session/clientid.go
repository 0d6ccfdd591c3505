package session

import (
	"crypto/rand"
	"fmt"
)

// generateClientID mints a random client identifier for a CONNECT that
// arrived with an empty client id: 16 random bytes with the RFC 4122
// version-4 and variant bits set, formatted as 8-4-4-4-12 hex digits.
func generateClientID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0F) | 0x40
	b[8] = (b[8] & 0x3F) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
