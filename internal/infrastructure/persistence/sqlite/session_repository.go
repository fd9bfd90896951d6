package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
)

// SessionRepositoryImpl implements repository.SessionRepository with
// SQLite. The full session state lives in state_json; a row upsert makes
// Save atomic.
type SessionRepositoryImpl struct {
	db *sql.DB
}

// NewSessionRepository creates a SQLite-backed session repository
func NewSessionRepository(db *sql.DB) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{db: db}
}

// Save upserts the full session state
func (r *SessionRepositoryImpl) Save(ctx context.Context, state *session.SessionState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	query := `
		INSERT INTO sessions (session_id, spec_name, pattern, status, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			spec_name = excluded.spec_name,
			pattern = excluded.pattern,
			status = excluded.status,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		state.SessionID.String(),
		state.SpecName,
		string(state.Pattern),
		state.Status.String(),
		string(stateJSON),
		state.CreatedAt.Format(time.RFC3339Nano),
		state.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", state.SessionID, err)
	}
	return nil
}

// Load restores a session by id
func (r *SessionRepositoryImpl) Load(ctx context.Context, id session.SessionID) (*session.SessionState, error) {
	var stateJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE session_id = ?`, id.String(),
	).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, repository.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var state session.SessionState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &state, nil
}

// List returns all sessions, newest first
func (r *SessionRepositoryImpl) List(ctx context.Context) ([]*session.SessionState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT state_json FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var states []*session.SessionState
	for rows.Next() {
		var stateJSON string
		if err := rows.Scan(&stateJSON); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		var state session.SessionState
		if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
			return nil, fmt.Errorf("unmarshal session row: %w", err)
		}
		states = append(states, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return states, nil
}

// Delete removes a session
func (r *SessionRepositoryImpl) Delete(ctx context.Context, id session.SessionID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
