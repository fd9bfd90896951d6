package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainSpecYAML = `
name: digest
agents:
  writer:
    model: m
    prompt: "Write about {{input}}"
pattern:
  type: chain
  chain:
    steps:
      - id: draft
        agent: writer
runtime:
  provider:
    name: claude-cli
    model: m
variables:
  input: go
`

func writeSpec(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

// execute runs the root command with isolated home and captured output
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("STRANDS_HOME", t.TempDir())
	t.Setenv("STRANDS_SESSION_STORE", "file")
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"input=go news", "lang=en"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"input": "go news", "lang": "en"}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=x"})
	assert.Error(t, err)

	vars, err = parseVars(nil)
	require.NoError(t, err)
	assert.Nil(t, vars)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LogLevelError, ParseLogLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("bogus"))
}

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogLevelWarn, &buf)
	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown %d", 1)
	log.Error("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown 1")
	assert.Contains(t, out, "ERROR: also shown")
}

func TestVersionCommand(t *testing.T) {
	isolateHome(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "strands dev")
}

func TestValidateCommandAcceptsGoodSpec(t *testing.T) {
	isolateHome(t)
	path := writeSpec(t, chainSpecYAML)
	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: digest")
}

func TestValidateCommandReportsIssues(t *testing.T) {
	isolateHome(t)
	bad := strings.Replace(chainSpecYAML, "name: claude-cli", "name: mystery-llm", 1)
	path := writeSpec(t, bad)

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, out, "NOT SUPPORTED")
	assert.Contains(t, out, "/runtime/provider/name")
}

func TestRunCommandCompletesWithScriptedAgent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script agent")
	}
	isolateHome(t)

	bin := filepath.Join(t.TempDir(), "fake-agent.sh")
	script := "#!/bin/sh\nprintf '{\"result\":\"scripted digest\",\"is_error\":false}'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))
	t.Setenv("STRANDS_AGENT_BIN", bin)

	path := writeSpec(t, chainSpecYAML)
	out, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scripted digest")
}

func TestRunThenSessionsListAndShow(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script agent")
	}
	isolateHome(t)

	bin := filepath.Join(t.TempDir(), "fake-agent.sh")
	script := "#!/bin/sh\nprintf '{\"result\":\"done\",\"is_error\":false}'\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))
	t.Setenv("STRANDS_AGENT_BIN", bin)

	path := writeSpec(t, chainSpecYAML)
	_, err := execute(t, "run", path)
	require.NoError(t, err)

	out, err := execute(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "digest")
	assert.Contains(t, out, "completed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	sessionID := strings.Fields(lines[1])[0]

	out, err = execute(t, "sessions", "show", sessionID)
	require.NoError(t, err)
	assert.Contains(t, out, `"spec_name": "digest"`)
}

func TestResumeRequiresValidAction(t *testing.T) {
	isolateHome(t)
	path := writeSpec(t, chainSpecYAML)
	_, err := execute(t, "resume", path, "--session", "01J0000000000000000000000X", "--action", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--action")
}
