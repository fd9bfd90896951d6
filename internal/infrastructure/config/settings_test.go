package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsDefaults(t *testing.T) {
	cfg, err := LoadSettings(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultHome, cfg.Home())
	assert.Equal(t, DefaultAgentBin, cfg.AgentBin())
	assert.Equal(t, DefaultTimeoutSec, cfg.TimeoutSec())
	assert.Equal(t, DefaultSessionStore, cfg.SessionStore())
	assert.Equal(t, DefaultArtifactStore, cfg.ArtifactStore())
	assert.Equal(t, "default", cfg.ConfigSource())
	assert.Empty(t, cfg.SettingPath())
}

func TestLoadSettingsFromJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc := `{
  "agent_bin": "/usr/local/bin/claude",
  "timeout_sec": 120,
  "session_store": "file",
  "artifact_store": "s3",
  "s3_bucket": "runs",
  "s3_prefix": "prod",
  "stderr_level": "debug"
}`
	require.NoError(t, afero.WriteFile(fs, "/home/.strands/setting.json", []byte(doc), 0644))

	cfg, err := LoadSettings(fs, "/home/.strands")
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/claude", cfg.AgentBin())
	assert.Equal(t, 120, cfg.TimeoutSec())
	assert.Equal(t, "file", cfg.SessionStore())
	assert.Equal(t, "s3", cfg.ArtifactStore())
	assert.Equal(t, "runs", cfg.S3Bucket())
	assert.Equal(t, "prod", cfg.S3Prefix())
	assert.Equal(t, "debug", cfg.StderrLevel())
	assert.Equal(t, "json", cfg.ConfigSource())
	assert.Equal(t, "/home/.strands/setting.json", cfg.SettingPath())
	// Unset fields keep their defaults.
	assert.Equal(t, "/home/.strands", cfg.Home())
	assert.Equal(t, DefaultLeaseTTLSec, cfg.LeaseTTLSec())
}

func TestLoadSettingsEnvFillsGaps(t *testing.T) {
	t.Setenv("STRANDS_AGENT_BIN", "/opt/agent")
	t.Setenv("STRANDS_LEASE_TTL_SEC", "30")

	cfg, err := LoadSettings(afero.NewMemMapFs(), "/base")
	require.NoError(t, err)

	assert.Equal(t, "/opt/agent", cfg.AgentBin())
	assert.Equal(t, 30, cfg.LeaseTTLSec())
	assert.Equal(t, "env", cfg.ConfigSource())
}

func TestLoadSettingsJSONWinsOverEnv(t *testing.T) {
	t.Setenv("STRANDS_SESSION_STORE", "sqlite")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/setting.json", []byte(`{"session_store": "file"}`), 0644))

	cfg, err := LoadSettings(fs, "/b")
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.SessionStore())
}

func TestLoadSettingsRejectsMalformedJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/b/setting.json", []byte("{not json"), 0644))

	_, err := LoadSettings(fs, "/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting.json")
}
