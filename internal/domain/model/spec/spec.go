package spec

// Specification is the typed workflow specification consumed by the engine.
// It is produced by the loader (or constructed programmatically) and is
// treated as read-only once execution starts.
type Specification struct {
	Name      string
	Agents    map[string]AgentConfig
	Pattern   Pattern
	Runtime   RuntimeConfig
	Variables map[string]string
}

// AgentConfig describes a single named agent.
type AgentConfig struct {
	ID           string
	Model        string
	SystemPrompt string
	Prompt       string   // prompt template rendered against run variables
	Tools        []string // named tools; must appear in the checker allowlist
	MCPServers   []string // MCP declarations; rejected by the capability checker
}

// Pattern holds the topology type and exactly one populated pattern config.
// Only the config matching Type is ever read by the engine.
type Pattern struct {
	Type     PatternType
	Chain    *ChainConfig
	Workflow *WorkflowConfig
	Parallel *ParallelConfig
	Routing  *RoutingConfig
}

// ChainConfig is a linear sequence of steps executed in declared order.
type ChainConfig struct {
	Steps []Step
}

// Step is one unit of a chain, branch or route: either an agent invocation
// or a manual gate. Exactly one of Agent / Gate is set.
type Step struct {
	ID            string
	Agent         string            // agent id for agent steps
	Gate          *GateConfig       // non-nil for gate steps
	ToolOverrides map[string]string // per-step tool overrides, validated by the checker
}

// IsGate returns true if the step is a gate step
func (s Step) IsGate() bool {
	return s.Gate != nil
}

// GateConfig declares a pause point requiring an external decision.
type GateConfig struct {
	Type       string // manual_gate, tool_approval, quality_gate, conditional
	Name       string
	Prompt     string // human-facing prompt template
	Condition  string // optional; gate is skipped when it evaluates false
	TimeoutSec int    // 0 means no timeout
	Fallback   string // continue or cancel, applied when the timeout elapses
}

// WorkflowConfig is a dependency DAG of tasks scheduled in layers.
type WorkflowConfig struct {
	Tasks []Task
}

// Task is one node of a workflow DAG.
type Task struct {
	ID        string
	Agent     string
	Gate      *GateConfig // non-nil for gate tasks
	DependsOn []string
	Retry     *FailurePolicy // task-level override of the run failure policy
}

// IsGate returns true if the task is a gate task
func (t Task) IsGate() bool {
	return t.Gate != nil
}

// ParallelConfig fans out branches concurrently and reduces their outputs.
type ParallelConfig struct {
	Branches []Branch
	Reduce   ReduceStep
}

// Branch is an independently executed mini-chain of steps.
type Branch struct {
	ID    string
	Steps []Step
}

// ReduceStep runs after every branch reaches a terminal state. The reduce
// agent receives the concatenation of all branch outputs.
type ReduceStep struct {
	Agent  string
	Prompt string
}

// RoutingConfig dispatches to exactly one route chosen by a router agent.
type RoutingConfig struct {
	Router string // agent id of the router
	Routes []Route
}

// Route is one named dispatch target of a routing pattern.
type Route struct {
	Name        string
	Description string // shown to the router agent when selecting
	Steps       []Step
}

// RuntimeConfig carries the run-level policy shared by all patterns.
type RuntimeConfig struct {
	Provider      ProviderConfig
	FailurePolicy *FailurePolicy
	MaxParallel   int
	Budget        *BudgetConfig
	Secrets       *SecretsConfig
}

// ProviderConfig names the model provider and its provider-specific fields.
type ProviderConfig struct {
	Name      string // bedrock, anthropic, openai, ollama, claude-cli
	Model     string
	Region    string // required for bedrock
	Host      string // required for ollama
	APIKeyEnv string // required for anthropic and openai
}

// FailurePolicy configures transient-failure retries. Nil fields fall back
// to engine defaults.
type FailurePolicy struct {
	Retries    *int // number of retries after the first attempt; must be >= 0
	WaitMinSec *int // minimum backoff in seconds
	WaitMaxSec *int // maximum backoff in seconds
}

// BudgetConfig is a ceiling on cumulative token usage for a run.
type BudgetConfig struct {
	MaxTokens     int
	WarnThreshold float64 // fraction of MaxTokens; 0 means the default 0.8
}

// SecretsConfig declares where agent credentials come from.
type SecretsConfig struct {
	Source string // only "env" is permitted by the capability checker
}

// PrimaryAgentID returns the id of the agent that drives the pattern:
// the first chain step's agent, the first workflow task's agent, the
// router for routing, or the reduce agent for parallel. Empty when the
// pattern config is missing.
func (s *Specification) PrimaryAgentID() string {
	switch s.Pattern.Type {
	case PatternChain:
		if s.Pattern.Chain != nil {
			for _, st := range s.Pattern.Chain.Steps {
				if st.Agent != "" {
					return st.Agent
				}
			}
		}
	case PatternWorkflow:
		if s.Pattern.Workflow != nil {
			for _, t := range s.Pattern.Workflow.Tasks {
				if t.Agent != "" {
					return t.Agent
				}
			}
		}
	case PatternParallel:
		if s.Pattern.Parallel != nil {
			return s.Pattern.Parallel.Reduce.Agent
		}
	case PatternRouting:
		if s.Pattern.Routing != nil {
			return s.Pattern.Routing.Router
		}
	}
	return ""
}
