package cli

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/ThomasRohde/strands-cli-sub001/internal/adapter/gateway/agent"
	"github.com/ThomasRohde/strands-cli-sub001/internal/adapter/gateway/storage"
	appconfig "github.com/ThomasRohde/strands-cli-sub001/internal/app/config"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/usecase/orchestrate"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
	"github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/persistence/file"
	"github.com/ThomasRohde/strands-cli-sub001/internal/infrastructure/persistence/sqlite"
)

// container assembles the persistence and gateway implementations selected
// by the configuration. Commands build one container per invocation and
// close it when done.
type container struct {
	cfg      appconfig.Config
	db       *sql.DB
	sessions repository.SessionRepository
	leases   orchestrate.RunLeaser
	storage  output.StorageGateway
}

func newContainer(ctx context.Context, cfg appconfig.Config) (*container, error) {
	c := &container{cfg: cfg}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Home(), 0755); err != nil {
		return nil, fmt.Errorf("create home directory %s: %w", cfg.Home(), err)
	}

	switch cfg.SessionStore() {
	case "sqlite", "":
		db, err := sqlite.Open(filepath.Join(cfg.Home(), "strands.db"))
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		c.db = db
		c.sessions = sqlite.NewSessionRepository(db)
		c.leases = sqlite.NewRunLeaseRepository(db)
	case "file":
		repo, err := file.NewSessionRepository(osFs, cfg.Home())
		if err != nil {
			return nil, err
		}
		c.sessions = repo
	default:
		return nil, fmt.Errorf("unknown session store %q (use sqlite or file)", cfg.SessionStore())
	}

	switch cfg.ArtifactStore() {
	case "local", "":
		store, err := storage.NewLocalArtifactStore(osFs, cfg.Home())
		if err != nil {
			c.Close()
			return nil, err
		}
		c.storage = store
	case "s3":
		store, err := storage.NewS3ArtifactStore(ctx, storage.S3Config{
			Bucket: cfg.S3Bucket(),
			Prefix: cfg.S3Prefix(),
			Region: cfg.S3Region(),
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.storage = store
	default:
		c.Close()
		return nil, fmt.Errorf("unknown artifact store %q (use local or s3)", cfg.ArtifactStore())
	}
	return c, nil
}

// Close releases held resources
func (c *container) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// agentGateway builds the gateway for a provider declaration, honoring the
// configured agent binary for the CLI provider.
func (c *container) agentGateway(provider spec.ProviderConfig) (output.AgentGateway, error) {
	if provider.Name == "claude-cli" && c.cfg.AgentBin() != "" {
		return agent.NewClaudeCLIGatewayWithBin(c.cfg.AgentBin()), nil
	}
	return agent.NewAgentGateway(provider)
}

// useCase wires an orchestrate use case for one specification
func (c *container) useCase(sp *spec.Specification) (*orchestrate.UseCase, error) {
	gw, err := c.agentGateway(sp.Runtime.Provider)
	if err != nil {
		return nil, err
	}
	log := GetLogger()
	return &orchestrate.UseCase{
		Sessions: c.sessions,
		Gateway:  gw,
		Storage:  c.storage,
		Leases:   c.leases,
		LeaseTTL: time.Duration(c.cfg.LeaseTTLSec()) * time.Second,
		Logf:     log.Info,
	}, nil
}
