// Package config loads application configuration from setting.json and
// the environment, producing the read-only app-layer Config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	appconfig "github.com/ThomasRohde/strands-cli-sub001/internal/app/config"
)

// Defaults applied when neither setting.json nor the environment sets a
// value.
const (
	DefaultHome          = ".strands"
	DefaultAgentBin      = "claude"
	DefaultTimeoutSec    = 600
	DefaultSessionStore  = "sqlite"
	DefaultArtifactStore = "local"
	DefaultLeaseTTLSec   = 600
	DefaultStderrLevel   = "info"
)

// RawSettings is the structure of setting.json. Pointer fields distinguish
// "absent" from zero values.
type RawSettings struct {
	Home       *string `json:"home"`
	AgentBin   *string `json:"agent_bin"`
	TimeoutSec *int    `json:"timeout_sec"`

	SessionStore  *string `json:"session_store"`
	ArtifactStore *string `json:"artifact_store"`

	S3Bucket *string `json:"s3_bucket"`
	S3Prefix *string `json:"s3_prefix"`
	S3Region *string `json:"s3_region"`

	LeaseTTLSec *int    `json:"lease_ttl_sec"`
	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings builds the configuration for a base directory.
// Priority: setting.json > environment > defaults.
func LoadSettings(fs afero.Fs, baseDir string) (*appconfig.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := afero.ReadFile(fs, jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
		configSource = "json"
		settingPath = jsonPath
	}

	if applyEnv(settings) && configSource == "default" {
		configSource = "env"
	}
	applyDefaults(settings, baseDir)

	return appconfig.NewAppConfig(
		*settings.Home, *settings.AgentBin, *settings.TimeoutSec,
		*settings.SessionStore, *settings.ArtifactStore,
		*settings.S3Bucket, *settings.S3Prefix, *settings.S3Region,
		*settings.LeaseTTLSec, *settings.StderrLevel,
		configSource, settingPath,
	), nil
}

// applyEnv fills fields setting.json left absent from the environment. It
// reports whether any environment value was used.
func applyEnv(s *RawSettings) bool {
	used := false
	setStr := func(field **string, key string) {
		if *field != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			*field = &v
			used = true
		}
	}
	setInt := func(field **int, key string) {
		if *field != nil {
			return
		}
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*field = &n
				used = true
			}
		}
	}

	setStr(&s.Home, "STRANDS_HOME")
	setStr(&s.AgentBin, "STRANDS_AGENT_BIN")
	setInt(&s.TimeoutSec, "STRANDS_TIMEOUT_SEC")
	setStr(&s.SessionStore, "STRANDS_SESSION_STORE")
	setStr(&s.ArtifactStore, "STRANDS_ARTIFACT_STORE")
	setStr(&s.S3Bucket, "STRANDS_S3_BUCKET")
	setStr(&s.S3Prefix, "STRANDS_S3_PREFIX")
	setStr(&s.S3Region, "STRANDS_S3_REGION")
	setInt(&s.LeaseTTLSec, "STRANDS_LEASE_TTL_SEC")
	setStr(&s.StderrLevel, "STRANDS_STDERR_LEVEL")
	return used
}

func applyDefaults(s *RawSettings, baseDir string) {
	defStr := func(field **string, def string) {
		if *field == nil {
			*field = &def
		}
	}
	defInt := func(field **int, def int) {
		if *field == nil {
			*field = &def
		}
	}

	home := DefaultHome
	if baseDir != "" {
		home = baseDir
	}
	defStr(&s.Home, home)
	defStr(&s.AgentBin, DefaultAgentBin)
	defInt(&s.TimeoutSec, DefaultTimeoutSec)
	defStr(&s.SessionStore, DefaultSessionStore)
	defStr(&s.ArtifactStore, DefaultArtifactStore)
	defStr(&s.S3Bucket, "")
	defStr(&s.S3Prefix, "")
	defStr(&s.S3Region, "")
	defInt(&s.LeaseTTLSec, DefaultLeaseTTLSec)
	defStr(&s.StderrLevel, DefaultStderrLevel)
}
