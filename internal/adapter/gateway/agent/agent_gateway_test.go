package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
	"github.com/ThomasRohde/strands-cli-sub001/internal/interface/external/agentcli"
)

type scriptedRunner struct {
	result string
	err    error
	last   agentcli.Request
}

func (r *scriptedRunner) Run(_ context.Context, req agentcli.Request) (string, error) {
	r.last = req
	return r.result, r.err
}

func TestClaudeCLIGatewayInvoke(t *testing.T) {
	runner := &scriptedRunner{result: "done"}
	gw := newClaudeCLIGatewayWithRunner(runner)

	resp, err := gw.Invoke(context.Background(), output.AgentRequest{
		AgentID:      "writer",
		Model:        "opus",
		SystemPrompt: "be brief",
		Prompt:       "write a haiku",
		Timeout:      time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Output)
	assert.Equal(t, "claude-cli", resp.Provider)
	assert.Zero(t, resp.TokensUsed)
	assert.Equal(t, "opus", runner.last.Model)
	assert.Equal(t, "be brief", runner.last.SystemPrompt)
	assert.Equal(t, time.Minute, runner.last.Timeout)
}

func TestClaudeCLIGatewayMapsTimeoutToTransient(t *testing.T) {
	runner := &scriptedRunner{err: agentcli.ErrTimedOut}
	gw := newClaudeCLIGatewayWithRunner(runner)

	_, err := gw.Invoke(context.Background(), output.AgentRequest{AgentID: "writer"})
	require.Error(t, err)
	assert.ErrorIs(t, err, output.ErrInvocationTimeout)
	assert.True(t, output.IsTransient(err))
}

func TestClaudeCLIGatewayOtherErrorsAreFatal(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("bad prompt")}
	gw := newClaudeCLIGatewayWithRunner(runner)

	_, err := gw.Invoke(context.Background(), output.AgentRequest{AgentID: "writer"})
	require.Error(t, err)
	assert.False(t, output.IsTransient(err))
}

func TestMockGatewayIsDeterministic(t *testing.T) {
	gw := NewMockGateway("bedrock")
	req := output.AgentRequest{AgentID: "summarizer", Model: "claude-3", Prompt: "summarize the report"}

	first, err := gw.Invoke(context.Background(), req)
	require.NoError(t, err)
	second, err := gw.Invoke(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, "bedrock", first.Provider)
	assert.Positive(t, first.TokensUsed)
	assert.NoError(t, gw.HealthCheck(context.Background()))
}

func TestNewAgentGatewayFactory(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cases := []struct {
		name     string
		provider spec.ProviderConfig
		wantErr  bool
	}{
		{"claude-cli", spec.ProviderConfig{Name: "claude-cli"}, false},
		{"bedrock", spec.ProviderConfig{Name: "bedrock", Region: "us-east-1"}, false},
		{"bedrock missing region", spec.ProviderConfig{Name: "bedrock"}, true},
		{"ollama", spec.ProviderConfig{Name: "ollama", Host: "http://localhost:11434"}, false},
		{"ollama missing host", spec.ProviderConfig{Name: "ollama"}, true},
		{"openai", spec.ProviderConfig{Name: "openai", APIKeyEnv: "TEST_OPENAI_KEY"}, false},
		{"openai unset env", spec.ProviderConfig{Name: "openai", APIKeyEnv: "TEST_UNSET_KEY"}, true},
		{"anthropic missing env name", spec.ProviderConfig{Name: "anthropic"}, true},
		{"unknown", spec.ProviderConfig{Name: "watsonx"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw, err := NewAgentGateway(tc.provider)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, gw)
		})
	}
}
