package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
)

// LocalArtifactStore implements StorageGateway on a filesystem.
// Directory structure: <baseDir>/artifacts/<sessionID>/
//   - <name>: artifact content
//   - <name>.meta.json: artifact metadata
type LocalArtifactStore struct {
	fs      afero.Fs
	baseDir string
}

// NewLocalArtifactStore creates a filesystem-backed artifact store
func NewLocalArtifactStore(fs afero.Fs, baseDir string) (*LocalArtifactStore, error) {
	if err := fs.MkdirAll(filepath.Join(baseDir, "artifacts"), 0755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &LocalArtifactStore{fs: fs, baseDir: baseDir}, nil
}

// SaveArtifact writes content and metadata for a session artifact. Both
// writes go through a temp file and rename so readers never observe a
// partial artifact.
func (g *LocalArtifactStore) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	if req.SessionID == "" || req.Name == "" {
		return nil, fmt.Errorf("artifact requires session id and name")
	}

	dir := g.sessionDir(req.SessionID)
	if err := g.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	contentPath := filepath.Join(dir, req.Name)
	if err := writeFileAtomic(g.fs, contentPath, req.Content, 0644); err != nil {
		return nil, fmt.Errorf("write artifact content: %w", err)
	}

	meta := output.ArtifactMetadata{
		SessionID:   req.SessionID,
		Name:        req.Name,
		StoragePath: contentPath,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		SavedAt:     time.Now().UTC(),
		Metadata:    req.Metadata,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal artifact metadata: %w", err)
	}
	if err := writeFileAtomic(g.fs, contentPath+".meta.json", metaJSON, 0644); err != nil {
		return nil, fmt.Errorf("write artifact metadata: %w", err)
	}
	return &meta, nil
}

// LoadArtifact reads an artifact's content
func (g *LocalArtifactStore) LoadArtifact(ctx context.Context, sessionID, name string) ([]byte, error) {
	content, err := afero.ReadFile(g.fs, filepath.Join(g.sessionDir(sessionID), name))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s/%s: %w", sessionID, name, err)
	}
	return content, nil
}

// ListArtifacts returns metadata for every artifact of a session, sorted
// by name. A session without artifacts yields an empty list, not an error.
func (g *LocalArtifactStore) ListArtifacts(ctx context.Context, sessionID string) ([]*output.ArtifactMetadata, error) {
	dir := g.sessionDir(sessionID)
	if ok, _ := afero.DirExists(g.fs, dir); !ok {
		return []*output.ArtifactMetadata{}, nil
	}

	entries, err := afero.ReadDir(g.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	var metas []*output.ArtifactMetadata
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		raw, err := afero.ReadFile(g.fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var meta output.ArtifactMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		metas = append(metas, &meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

func (g *LocalArtifactStore) sessionDir(sessionID string) string {
	return filepath.Join(g.baseDir, "artifacts", sessionID)
}

// writeFileAtomic writes via a temp file in the same directory and renames
// it over the destination.
func writeFileAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, perm); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
