package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
)

// S3ArtifactStore implements StorageGateway on an S3 bucket.
// Key layout: <prefix>/artifacts/<sessionID>/<name> plus a sibling
// <name>.meta.json object.
type S3ArtifactStore struct {
	client S3API
	bucket string
	prefix string
}

// S3Config holds the S3 artifact store configuration
type S3Config struct {
	Bucket string
	Prefix string
	Region string // optional; default AWS resolution applies when empty
}

// NewS3ArtifactStore builds a store against real AWS credentials
func NewS3ArtifactStore(ctx context.Context, cfg S3Config) (*S3ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 artifact store requires a bucket")
	}
	awsCfg, err := awsconfig(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	return &S3ArtifactStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func awsconfig(ctx context.Context, region string) (aws.Config, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	if region != "" {
		awsCfg.Region = region
	}
	return awsCfg, nil
}

// NewS3ArtifactStoreWithClient injects a custom client, used by tests
func NewS3ArtifactStoreWithClient(client S3API, bucket, prefix string) *S3ArtifactStore {
	return &S3ArtifactStore{client: client, bucket: bucket, prefix: prefix}
}

// SaveArtifact uploads content and a metadata sidecar object
func (g *S3ArtifactStore) SaveArtifact(ctx context.Context, req output.SaveArtifactRequest) (*output.ArtifactMetadata, error) {
	if req.SessionID == "" || req.Name == "" {
		return nil, fmt.Errorf("artifact requires session id and name")
	}

	contentKey := g.key(req.SessionID, req.Name)
	put := &s3.PutObjectInput{
		Bucket:   aws.String(g.bucket),
		Key:      aws.String(contentKey),
		Body:     bytes.NewReader(req.Content),
		Metadata: req.Metadata,
	}
	if req.ContentType != "" {
		put.ContentType = aws.String(req.ContentType)
	}
	if _, err := g.client.PutObject(ctx, put); err != nil {
		return nil, fmt.Errorf("upload artifact to S3: %w", err)
	}

	meta := output.ArtifactMetadata{
		SessionID:   req.SessionID,
		Name:        req.Name,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, contentKey),
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		SavedAt:     time.Now().UTC(),
		Metadata:    req.Metadata,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact metadata: %w", err)
	}
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(contentKey + ".meta.json"),
		Body:        bytes.NewReader(metaJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload artifact metadata to S3: %w", err)
	}
	return &meta, nil
}

// LoadArtifact downloads an artifact's content
func (g *S3ArtifactStore) LoadArtifact(ctx context.Context, sessionID, name string) ([]byte, error) {
	obj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.key(sessionID, name)),
	})
	if err != nil {
		return nil, fmt.Errorf("download artifact %s/%s: %w", sessionID, name, err)
	}
	defer obj.Body.Close()

	content, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	return content, nil
}

// ListArtifacts lists the metadata sidecars under a session's prefix
func (g *S3ArtifactStore) ListArtifacts(ctx context.Context, sessionID string) ([]*output.ArtifactMetadata, error) {
	prefix := g.key(sessionID, "")
	list, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list S3 artifacts: %w", err)
	}

	metas := []*output.ArtifactMetadata{}
	for _, obj := range list.Contents {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, ".meta.json") {
			continue
		}
		metaObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			continue
		}
		raw, err := io.ReadAll(metaObj.Body)
		metaObj.Body.Close()
		if err != nil {
			continue
		}
		var meta output.ArtifactMetadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			continue
		}
		metas = append(metas, &meta)
	}
	return metas, nil
}

func (g *S3ArtifactStore) key(sessionID, name string) string {
	parts := []string{"artifacts", sessionID}
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	if name != "" {
		parts = append(parts, name)
	}
	key := strings.Join(parts, "/")
	if name == "" {
		key += "/"
	}
	return key
}
