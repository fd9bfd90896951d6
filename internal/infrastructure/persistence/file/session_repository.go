// Package file persists sessions as JSON documents on a filesystem, for
// environments where SQLite is unavailable.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
)

// SessionRepository stores one <session id>.json per session under a base
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written session behind.
type SessionRepository struct {
	fs      afero.Fs
	baseDir string
}

// NewSessionRepository creates a file-backed session repository
func NewSessionRepository(fs afero.Fs, baseDir string) (*SessionRepository, error) {
	dir := filepath.Join(baseDir, "sessions")
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return &SessionRepository{fs: fs, baseDir: dir}, nil
}

// Save writes the session atomically
func (r *SessionRepository) Save(_ context.Context, state *session.SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", state.SessionID, err)
	}

	path := r.path(state.SessionID)
	tmp, err := afero.TempFile(r.fs, r.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		r.fs.Remove(tmpName)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		r.fs.Remove(tmpName)
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := r.fs.Rename(tmpName, path); err != nil {
		r.fs.Remove(tmpName)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Load restores a session by id
func (r *SessionRepository) Load(_ context.Context, id session.SessionID) (*session.SessionState, error) {
	data, err := afero.ReadFile(r.fs, r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s: %w", id, repository.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var state session.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &state, nil
}

// List returns all sessions, newest first by update time
func (r *SessionRepository) List(ctx context.Context) ([]*session.SessionState, error) {
	entries, err := afero.ReadDir(r.fs, r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var states []*session.SessionState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := session.ParseSessionID(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // foreign file in the directory
		}
		state, err := r.Load(ctx, id)
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states, nil
}

// Delete removes a session file. Deleting an absent session is an error.
func (r *SessionRepository) Delete(_ context.Context, id session.SessionID) error {
	if err := r.fs.Remove(r.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("session %s: %w", id, repository.ErrSessionNotFound)
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (r *SessionRepository) path(id session.SessionID) string {
	return filepath.Join(r.baseDir, id.String()+".json")
}
