package repository

import (
	"context"
	"errors"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
)

// ErrSessionNotFound is returned when a session id has no persisted state
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists and restores session state verbatim. It never
// interprets engine-internal fields. Save must be atomic from the engine's
// viewpoint: either the new state is fully written or the prior state
// remains retrievable.
type SessionRepository interface {
	// Save persists the full session state
	Save(ctx context.Context, state *session.SessionState) error

	// Load restores a session by id, or ErrSessionNotFound
	Load(ctx context.Context, id session.SessionID) (*session.SessionState, error)

	// List returns all persisted sessions, newest first
	List(ctx context.Context) ([]*session.SessionState, error)

	// Delete removes a session
	Delete(ctx context.Context, id session.SessionID) error
}
