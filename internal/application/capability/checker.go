package capability

import (
	"fmt"
	"strings"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// Config scopes the checker's feature surface to one validation call.
// There is no process-wide registry; callers pass the surface explicitly.
type Config struct {
	AllowedTools         []string
	AllowedSecretSources []string
}

// DefaultConfig returns the engine's stock feature surface
func DefaultConfig() Config {
	return Config{
		AllowedTools: []string{
			"calculator",
			"current_time",
			"editor",
			"environment",
			"file_read",
			"file_write",
			"http_request",
			"python_repl",
			"shell",
		},
		AllowedSecretSources: []string{"env"},
	}
}

// Checker validates a specification against the engine's supported feature
// surface. It is stateless across calls and performs no mutation; it must
// run before any agent invocation.
type Checker struct {
	allowedTools   map[string]bool
	allowedSecrets map[string]bool
}

// NewChecker creates a checker from an explicit feature surface
func NewChecker(cfg Config) *Checker {
	c := &Checker{
		allowedTools:   make(map[string]bool, len(cfg.AllowedTools)),
		allowedSecrets: make(map[string]bool, len(cfg.AllowedSecretSources)),
	}
	for _, t := range cfg.AllowedTools {
		c.allowedTools[t] = true
	}
	for _, s := range cfg.AllowedSecretSources {
		c.allowedSecrets[s] = true
	}
	return c
}

// Check runs the fixed ordered validator sequence. Validators never
// short-circuit each other, so the report is exhaustive on a single pass.
// Normalized values are computed only when no issues exist.
func (c *Checker) Check(sp *spec.Specification) *Report {
	report := &Report{Issues: []Issue{}}
	if sp == nil {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/",
			Reason:      "specification is nil",
			Remediation: "provide a specification",
		})
		return report
	}

	c.checkAgentsPresent(sp, report)
	c.checkProvider(sp, report)
	c.checkPatternType(sp, report)
	c.checkPatternStructure(sp, report)
	c.checkSecretsSource(sp, report)
	c.checkTools(sp, report)

	report.Supported = len(report.Issues) == 0
	if report.Supported {
		report.Normalized = c.normalize(sp)
	}
	return report
}

func (c *Checker) checkAgentsPresent(sp *spec.Specification, report *Report) {
	if len(sp.Agents) == 0 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/agents",
			Reason:      "no agents declared",
			Remediation: "declare at least one agent",
		})
	}
	for id, agent := range sp.Agents {
		if agent.Prompt == "" && agent.SystemPrompt == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     fmt.Sprintf("/agents/%s", id),
				Reason:      "agent has neither prompt nor system_prompt",
				Remediation: "give the agent a prompt template",
			})
		}
	}
}

func (c *Checker) checkProvider(sp *spec.Specification, report *Report) {
	p := sp.Runtime.Provider
	switch p.Name {
	case "bedrock":
		if p.Region == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     "/runtime/provider/region",
				Reason:      "bedrock requires a region",
				Remediation: "set runtime.provider.region, e.g. us-west-2",
			})
		}
	case "ollama":
		if p.Host == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     "/runtime/provider/host",
				Reason:      "ollama requires a host",
				Remediation: "set runtime.provider.host, e.g. http://localhost:11434",
			})
		}
	case "anthropic", "openai":
		if p.APIKeyEnv == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     "/runtime/provider/api_key_env",
				Reason:      fmt.Sprintf("%s requires a credential environment variable", p.Name),
				Remediation: "set runtime.provider.api_key_env naming the env var holding the API key",
			})
		}
	case "claude-cli":
		// No provider-specific fields; the CLI carries its own auth.
	case "":
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/runtime/provider/name",
			Reason:      "provider is not set",
			Remediation: "set runtime.provider.name to one of: bedrock, anthropic, openai, ollama, claude-cli",
		})
	default:
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/runtime/provider/name",
			Reason:      fmt.Sprintf("unsupported provider %q", p.Name),
			Remediation: "use one of: bedrock, anthropic, openai, ollama, claude-cli",
		})
	}
}

func (c *Checker) checkPatternType(sp *spec.Specification, report *Report) {
	if !sp.Pattern.Type.IsValid() {
		names := make([]string, 0, 4)
		for _, p := range spec.SupportedPatterns() {
			names = append(names, p.String())
		}
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/type",
			Reason:      fmt.Sprintf("unsupported pattern type %q", sp.Pattern.Type),
			Remediation: "use one of: " + strings.Join(names, ", "),
		})
	}
}

func (c *Checker) checkPatternStructure(sp *spec.Specification, report *Report) {
	switch sp.Pattern.Type {
	case spec.PatternChain:
		c.checkChain(sp, report)
	case spec.PatternWorkflow:
		c.checkWorkflow(sp, report)
	case spec.PatternParallel:
		c.checkParallel(sp, report)
	case spec.PatternRouting:
		c.checkRouting(sp, report)
	}
}

func (c *Checker) checkChain(sp *spec.Specification, report *Report) {
	cfg := sp.Pattern.Chain
	if cfg == nil || len(cfg.Steps) == 0 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/chain/steps",
			Reason:      "chain has no steps",
			Remediation: "declare at least one step",
		})
		return
	}
	c.checkSteps(sp, cfg.Steps, "/pattern/chain/steps", report)
}

// checkSteps validates a step list shared by chain, branches and routes
func (c *Checker) checkSteps(sp *spec.Specification, steps []spec.Step, pointer string, report *Report) {
	for i, step := range steps {
		ptr := fmt.Sprintf("%s/%d", pointer, i)
		if step.IsGate() {
			if step.Agent != "" {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr,
					Reason:      "step declares both an agent and a gate",
					Remediation: "split into an agent step followed by a gate step",
				})
			}
			c.checkGate(step.Gate, ptr+"/gate", report)
			continue
		}
		if step.Agent == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     ptr,
				Reason:      "step has no agent",
				Remediation: "reference a declared agent",
			})
		} else if _, ok := sp.Agents[step.Agent]; !ok {
			report.Issues = append(report.Issues, Issue{
				Pointer:     ptr + "/agent",
				Reason:      fmt.Sprintf("unknown agent %q", step.Agent),
				Remediation: "reference an agent declared under /agents",
			})
		}
		for tool := range step.ToolOverrides {
			if !c.allowedTools[tool] {
				report.Issues = append(report.Issues, Issue{
					Pointer:     fmt.Sprintf("%s/tool_overrides/%s", ptr, tool),
					Reason:      fmt.Sprintf("tool override references unknown tool %q", tool),
					Remediation: "override only allowlisted tools",
				})
			}
		}
	}
}

func (c *Checker) checkGate(gate *spec.GateConfig, pointer string, report *Report) {
	switch gate.Fallback {
	case "", "continue", "cancel":
	default:
		report.Issues = append(report.Issues, Issue{
			Pointer:     pointer + "/fallback",
			Reason:      fmt.Sprintf("unknown fallback action %q", gate.Fallback),
			Remediation: "use continue or cancel",
		})
	}
	if gate.TimeoutSec < 0 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     pointer + "/timeout",
			Reason:      "gate timeout is negative",
			Remediation: "use a positive timeout in seconds, or omit it",
		})
	}
}

func (c *Checker) checkWorkflow(sp *spec.Specification, report *Report) {
	cfg := sp.Pattern.Workflow
	if cfg == nil || len(cfg.Tasks) == 0 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/workflow/tasks",
			Reason:      "workflow has no tasks",
			Remediation: "declare at least one task",
		})
		return
	}

	known := make(map[string]bool, len(cfg.Tasks))
	for _, t := range cfg.Tasks {
		known[t.ID] = true
	}

	for i, t := range cfg.Tasks {
		ptr := fmt.Sprintf("/pattern/workflow/tasks/%d", i)
		if t.ID == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     ptr + "/id",
				Reason:      "task has no id",
				Remediation: "give every task a unique id",
			})
		}
		if !t.IsGate() {
			if t.Agent == "" {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr + "/agent",
					Reason:      "task has no agent",
					Remediation: "reference a declared agent",
				})
			} else if _, ok := sp.Agents[t.Agent]; !ok {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr + "/agent",
					Reason:      fmt.Sprintf("unknown agent %q", t.Agent),
					Remediation: "reference an agent declared under /agents",
				})
			}
		} else {
			c.checkGate(t.Gate, ptr+"/gate", report)
		}
		for _, dep := range t.DependsOn {
			if !known[dep] {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr + "/depends_on",
					Reason:      fmt.Sprintf("dependency %q does not exist", dep),
					Remediation: "reference a declared task id",
				})
			}
		}
	}

	// Full DAG check, not merely missing-edge detection.
	if cycle := DetectCycle(cfg.Tasks); cycle != nil {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/workflow/tasks",
			Reason:      fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
			Remediation: "break the cycle so tasks form a DAG",
		})
	}
}

func (c *Checker) checkParallel(sp *spec.Specification, report *Report) {
	cfg := sp.Pattern.Parallel
	if cfg == nil || len(cfg.Branches) < 2 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/parallel/branches",
			Reason:      "parallel requires at least 2 branches",
			Remediation: "declare two or more branches, or use a chain",
		})
	}
	if cfg != nil {
		for i, b := range cfg.Branches {
			ptr := fmt.Sprintf("/pattern/parallel/branches/%d", i)
			if b.ID == "" {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr + "/id",
					Reason:      "branch has no id",
					Remediation: "give every branch a unique id",
				})
			}
			if len(b.Steps) == 0 {
				report.Issues = append(report.Issues, Issue{
					Pointer:     ptr + "/steps",
					Reason:      "branch has no steps",
					Remediation: "declare at least one step per branch",
				})
			}
			c.checkSteps(sp, b.Steps, ptr+"/steps", report)
		}
		if cfg.Reduce.Agent == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     "/pattern/parallel/reduce/agent",
				Reason:      "reduce step has no agent",
				Remediation: "reference a declared agent to combine branch outputs",
			})
		} else if _, ok := sp.Agents[cfg.Reduce.Agent]; !ok {
			report.Issues = append(report.Issues, Issue{
				Pointer:     "/pattern/parallel/reduce/agent",
				Reason:      fmt.Sprintf("unknown agent %q", cfg.Reduce.Agent),
				Remediation: "reference an agent declared under /agents",
			})
		}
	}
}

func (c *Checker) checkRouting(sp *spec.Specification, report *Report) {
	cfg := sp.Pattern.Routing
	if cfg == nil {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/routing",
			Reason:      "routing config is missing",
			Remediation: "declare a router agent and at least one route",
		})
		return
	}
	if cfg.Router == "" {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/routing/router",
			Reason:      "router agent is not set",
			Remediation: "reference a declared agent as router",
		})
	} else if _, ok := sp.Agents[cfg.Router]; !ok {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/routing/router",
			Reason:      fmt.Sprintf("unknown router agent %q", cfg.Router),
			Remediation: "reference an agent declared under /agents",
		})
	}
	if len(cfg.Routes) == 0 {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/pattern/routing/routes",
			Reason:      "routing has no routes",
			Remediation: "declare at least one route",
		})
	}
	for i, r := range cfg.Routes {
		ptr := fmt.Sprintf("/pattern/routing/routes/%d", i)
		if r.Name == "" {
			report.Issues = append(report.Issues, Issue{
				Pointer:     ptr + "/name",
				Reason:      "route has no name",
				Remediation: "give every route a unique name",
			})
		}
		if len(r.Steps) == 0 {
			report.Issues = append(report.Issues, Issue{
				Pointer:     ptr + "/steps",
				Reason:      "route has no steps",
				Remediation: "declare at least one step per route",
			})
		}
		c.checkSteps(sp, r.Steps, ptr+"/steps", report)
	}
}

func (c *Checker) checkSecretsSource(sp *spec.Specification, report *Report) {
	if sp.Runtime.Secrets == nil {
		return
	}
	if !c.allowedSecrets[sp.Runtime.Secrets.Source] {
		report.Issues = append(report.Issues, Issue{
			Pointer:     "/runtime/secrets/source",
			Reason:      fmt.Sprintf("secret source %q is not permitted", sp.Runtime.Secrets.Source),
			Remediation: "use an approved secret source",
		})
	}
}

func (c *Checker) checkTools(sp *spec.Specification, report *Report) {
	for id, agent := range sp.Agents {
		for _, tool := range agent.Tools {
			if !c.allowedTools[tool] {
				report.Issues = append(report.Issues, Issue{
					Pointer:     fmt.Sprintf("/agents/%s/tools", id),
					Reason:      fmt.Sprintf("tool %q is not in the allowlist", tool),
					Remediation: "use only allowlisted tools",
				})
			}
		}
		// MCP tool declarations are always rejected in this engine.
		if len(agent.MCPServers) > 0 {
			report.Issues = append(report.Issues, Issue{
				Pointer:     fmt.Sprintf("/agents/%s/mcp_servers", id),
				Reason:      "MCP tool declarations are not supported",
				Remediation: "remove mcp_servers or run the spec with an MCP-capable runtime",
			})
		}
	}
}

// normalize derives convenience values for downstream components. Only
// called when the specification passed every validator.
func (c *Checker) normalize(sp *spec.Specification) map[string]string {
	n := map[string]string{
		"primary_agent": sp.PrimaryAgentID(),
		"provider":      sp.Runtime.Provider.Name,
		"model":         sp.Runtime.Provider.Model,
	}
	if sp.Runtime.Provider.Region != "" {
		n["region"] = sp.Runtime.Provider.Region
	}
	if sp.Runtime.Provider.Host != "" {
		n["host"] = sp.Runtime.Provider.Host
	}
	return n
}
