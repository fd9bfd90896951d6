// Package config defines read-only access to application configuration.
// The interface abstracts the configuration source (setting.json, ENV,
// defaults) so upper layers never read the environment directly.
package config

import "time"

// Config provides read-only access to runtime configuration.
type Config interface {
	// Core settings
	Home() string           // Base directory for engine state (STRANDS_HOME)
	AgentBin() string       // Agent CLI binary path (STRANDS_AGENT_BIN)
	TimeoutSec() int        // Agent invocation timeout in seconds (STRANDS_TIMEOUT_SEC)
	Timeout() time.Duration // Invocation timeout as Duration

	// Persistence selection
	SessionStore() string  // "sqlite" or "file" (STRANDS_SESSION_STORE)
	ArtifactStore() string // "local" or "s3" (STRANDS_ARTIFACT_STORE)

	// S3 artifact settings, used when ArtifactStore is "s3"
	S3Bucket() string // STRANDS_S3_BUCKET
	S3Prefix() string // STRANDS_S3_PREFIX
	S3Region() string // STRANDS_S3_REGION

	// Run exclusivity
	LeaseTTLSec() int // Run lease lifetime in seconds (STRANDS_LEASE_TTL_SEC)

	// Logging
	StderrLevel() string // Stderr log level (STRANDS_STDERR_LEVEL)

	// Metadata
	ConfigSource() string // "json", "env", or "default"
	SettingPath() string  // Path to setting.json if loaded from file
}

// AppConfig is the concrete implementation of Config.
type AppConfig struct {
	home       string
	agentBin   string
	timeoutSec int

	sessionStore  string
	artifactStore string

	s3Bucket string
	s3Prefix string
	s3Region string

	leaseTTLSec int
	stderrLevel string

	configSource string
	settingPath  string
}

// NewAppConfig constructs a config from explicit values
func NewAppConfig(
	home, agentBin string, timeoutSec int,
	sessionStore, artifactStore string,
	s3Bucket, s3Prefix, s3Region string,
	leaseTTLSec int, stderrLevel string,
	configSource, settingPath string,
) *AppConfig {
	return &AppConfig{
		home:          home,
		agentBin:      agentBin,
		timeoutSec:    timeoutSec,
		sessionStore:  sessionStore,
		artifactStore: artifactStore,
		s3Bucket:      s3Bucket,
		s3Prefix:      s3Prefix,
		s3Region:      s3Region,
		leaseTTLSec:   leaseTTLSec,
		stderrLevel:   stderrLevel,
		configSource:  configSource,
		settingPath:   settingPath,
	}
}

// Home returns the base directory for engine state
func (c *AppConfig) Home() string { return c.home }

// AgentBin returns the agent CLI binary path
func (c *AppConfig) AgentBin() string { return c.agentBin }

// TimeoutSec returns the invocation timeout in seconds
func (c *AppConfig) TimeoutSec() int { return c.timeoutSec }

// Timeout returns the invocation timeout as a Duration
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.timeoutSec) * time.Second
}

// SessionStore returns the session store kind
func (c *AppConfig) SessionStore() string { return c.sessionStore }

// ArtifactStore returns the artifact store kind
func (c *AppConfig) ArtifactStore() string { return c.artifactStore }

// S3Bucket returns the artifact bucket name
func (c *AppConfig) S3Bucket() string { return c.s3Bucket }

// S3Prefix returns the artifact key prefix
func (c *AppConfig) S3Prefix() string { return c.s3Prefix }

// S3Region returns the artifact bucket region
func (c *AppConfig) S3Region() string { return c.s3Region }

// LeaseTTLSec returns the run lease lifetime in seconds
func (c *AppConfig) LeaseTTLSec() int { return c.leaseTTLSec }

// StderrLevel returns the stderr log level
func (c *AppConfig) StderrLevel() string { return c.stderrLevel }

// ConfigSource returns where the configuration came from
func (c *AppConfig) ConfigSource() string { return c.configSource }

// SettingPath returns the setting.json path when loaded from file
func (c *AppConfig) SettingPath() string { return c.settingPath }
