package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
)

// MockGateway is a deterministic AgentGateway standing in for providers
// without a wired backend (bedrock, anthropic, openai, ollama). It echoes
// a summary of the request so runs stay inspectable end to end.
type MockGateway struct {
	provider string
}

// NewMockGateway creates a mock gateway labelled with its provider name
func NewMockGateway(provider string) *MockGateway {
	return &MockGateway{provider: provider}
}

// Invoke returns a synthetic response derived from the prompt
func (g *MockGateway) Invoke(_ context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s/%s] %s: ", g.provider, req.Model, req.AgentID)
	prompt := req.Prompt
	if len(prompt) > 120 {
		prompt = prompt[:120] + "…"
	}
	b.WriteString(prompt)

	out := b.String()
	return &output.AgentResponse{
		Output:     out,
		TokensUsed: len(strings.Fields(req.Prompt)) + len(strings.Fields(out)),
		Duration:   time.Millisecond,
		Provider:   g.provider,
	}, nil
}

// HealthCheck always succeeds for a mock backend
func (g *MockGateway) HealthCheck(context.Context) error { return nil }
