package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
)

// RunLeaseRepository enforces at most one active run per session id. The
// PRIMARY KEY on session_id makes acquisition atomic: whoever inserts the
// row owns the lease until it expires or is released.
type RunLeaseRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunLeaseRepository creates a lease repository
func NewRunLeaseRepository(db *sql.DB) *RunLeaseRepository {
	return &RunLeaseRepository{db: db, now: time.Now}
}

// Acquire tries to take the lease for a session. Returns false when a
// live lease is held elsewhere. Expired leases are reaped first.
func (r *RunLeaseRepository) Acquire(ctx context.Context, id session.SessionID, ttl time.Duration) (bool, error) {
	now := r.now().UTC()

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM run_leases WHERE session_id = ? AND expires_at < ?`,
		id.String(), now.Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("reap expired lease: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO run_leases (session_id, pid, hostname, acquired_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), os.Getpid(), hostname,
		now.Format(time.RFC3339Nano),
		now.Add(ttl).Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lease for %s: %w", id, err)
	}
	return true, nil
}

// Release drops the lease for a session
func (r *RunLeaseRepository) Release(ctx context.Context, id session.SessionID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM run_leases WHERE session_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("release lease for %s: %w", id, err)
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
