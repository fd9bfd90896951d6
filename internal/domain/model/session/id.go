package session

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID is a value object identifying one resumable run.
type SessionID string

// NewSessionID generates a new ULID-based session ID
func NewSessionID() SessionID {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return SessionID(id.String())
}

// ParseSessionID validates a session ID string
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return "", fmt.Errorf("session id is empty")
	}
	if _, err := ulid.ParseStrict(s); err != nil {
		return "", fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return SessionID(s), nil
}

// String returns the string representation of the session ID
func (id SessionID) String() string {
	return string(id)
}
