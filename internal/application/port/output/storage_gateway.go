package output

import (
	"context"
	"time"
)

// StorageGateway is the interface for artifact storage.
// Supports both local filesystem and cloud storage (S3).
type StorageGateway interface {
	// SaveArtifact persists a run artifact to storage
	SaveArtifact(ctx context.Context, req SaveArtifactRequest) (*ArtifactMetadata, error)

	// LoadArtifact retrieves an artifact from storage
	LoadArtifact(ctx context.Context, sessionID, name string) ([]byte, error)

	// ListArtifacts lists artifacts recorded for a session
	ListArtifacts(ctx context.Context, sessionID string) ([]*ArtifactMetadata, error)
}

// SaveArtifactRequest represents a request to save an artifact
type SaveArtifactRequest struct {
	SessionID   string            // Owning session id
	Name        string            // Artifact file name (e.g. "response.md")
	Content     []byte            // Artifact content
	ContentType string            // MIME type (optional)
	Metadata    map[string]string // Additional metadata
}

// ArtifactMetadata describes a stored artifact
type ArtifactMetadata struct {
	SessionID   string            // Owning session id
	Name        string            // Artifact file name
	StoragePath string            // Storage path (file path or s3://bucket/key)
	ContentType string            // MIME type
	Size        int64             // Size in bytes
	SavedAt     time.Time         // Save timestamp
	Metadata    map[string]string // Additional metadata
}
