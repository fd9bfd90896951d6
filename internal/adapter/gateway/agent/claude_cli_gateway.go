package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/interface/external/agentcli"
)

// promptRunner is the slice of agentcli.Runner the gateway needs. Tests
// substitute a scripted implementation.
type promptRunner interface {
	Run(ctx context.Context, req agentcli.Request) (string, error)
}

// ClaudeCLIGateway implements AgentGateway by shelling out to the local
// agent CLI. Token usage is not reported by the CLI; callers fall back to
// the estimation heuristic.
type ClaudeCLIGateway struct {
	runner promptRunner
}

// NewClaudeCLIGateway creates a gateway over the default CLI binary
func NewClaudeCLIGateway() *ClaudeCLIGateway {
	return &ClaudeCLIGateway{runner: agentcli.NewRunner("claude")}
}

// NewClaudeCLIGatewayWithBin creates a gateway over a specific CLI binary
func NewClaudeCLIGatewayWithBin(bin string) *ClaudeCLIGateway {
	return &ClaudeCLIGateway{runner: agentcli.NewRunner(bin)}
}

// newClaudeCLIGatewayWithRunner injects a runner, used by tests
func newClaudeCLIGatewayWithRunner(r promptRunner) *ClaudeCLIGateway {
	return &ClaudeCLIGateway{runner: r}
}

// Invoke runs one prompt through the CLI. Deadline kills map to the
// transient timeout class so the retry policy applies.
func (g *ClaudeCLIGateway) Invoke(ctx context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	start := time.Now()
	result, err := g.runner.Run(ctx, agentcli.Request{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Timeout:      req.Timeout,
	})
	if err != nil {
		if errors.Is(err, agentcli.ErrTimedOut) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: agent %s: %v", output.ErrInvocationTimeout, req.AgentID, err)
		}
		return nil, fmt.Errorf("agent %s: %w", req.AgentID, err)
	}
	return &output.AgentResponse{
		Output:   result,
		Duration: time.Since(start),
		Provider: "claude-cli",
	}, nil
}

// HealthCheck runs a trivial prompt to verify the CLI is on the PATH
func (g *ClaudeCLIGateway) HealthCheck(ctx context.Context) error {
	_, err := g.runner.Run(ctx, agentcli.Request{Prompt: "ping", Timeout: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("agent CLI health check: %w", err)
	}
	return nil
}
