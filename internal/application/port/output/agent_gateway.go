package output

import (
	"context"
	"errors"
	"time"
)

// AgentGateway is the interface for AI agent invocation.
// This abstraction allows different model backends (Bedrock, Anthropic,
// OpenAI, Ollama, Claude Code CLI) behind one contract.
type AgentGateway interface {
	// Invoke runs the agent with the given request
	Invoke(ctx context.Context, req AgentRequest) (*AgentResponse, error)

	// HealthCheck verifies if the agent backend is available
	HealthCheck(ctx context.Context) error
}

// AgentRequest represents a request to an AI agent
type AgentRequest struct {
	AgentID      string            // Agent id from the specification
	Model        string            // Model identifier (provider-specific)
	SystemPrompt string            // Optional system prompt
	Prompt       string            // The rendered prompt text
	Timeout      time.Duration     // Invocation timeout
	Metadata     map[string]string // Additional context information
}

// AgentResponse represents the response from an AI agent
type AgentResponse struct {
	Output     string        // Generated text
	TokensUsed int           // Token usage reported by the provider; 0 when unknown
	Duration   time.Duration // Invocation duration
	Provider   string        // Backend that produced the response
}

// Transient failure classes. Exactly timeout and connection failures are
// retryable; everything else from a gateway is fatal.
var (
	ErrInvocationTimeout = errors.New("agent invocation timed out")
	ErrConnectionFailure = errors.New("agent connection failure")
)

// IsTransient reports whether an invocation error belongs to a retryable
// failure class
func IsTransient(err error) bool {
	return errors.Is(err, ErrInvocationTimeout) || errors.Is(err, ErrConnectionFailure)
}
