package agent

import (
	"fmt"
	"os"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// NewAgentGateway builds the gateway for a provider declaration. The
// capability checker validates required provider fields before execution;
// the factory re-checks only what it needs to construct the gateway.
func NewAgentGateway(provider spec.ProviderConfig) (output.AgentGateway, error) {
	switch provider.Name {
	case "claude-cli":
		return NewClaudeCLIGateway(), nil

	case "bedrock":
		if provider.Region == "" {
			return nil, fmt.Errorf("bedrock provider requires a region")
		}
		return NewMockGateway("bedrock"), nil

	case "ollama":
		if provider.Host == "" {
			return nil, fmt.Errorf("ollama provider requires a host")
		}
		return NewMockGateway("ollama"), nil

	case "anthropic", "openai":
		if provider.APIKeyEnv == "" {
			return nil, fmt.Errorf("%s provider requires api_key_env", provider.Name)
		}
		if os.Getenv(provider.APIKeyEnv) == "" {
			return nil, fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv)
		}
		return NewMockGateway(provider.Name), nil

	default:
		return nil, fmt.Errorf("unknown provider %q (supported: bedrock, anthropic, openai, ollama, claude-cli)", provider.Name)
	}
}
