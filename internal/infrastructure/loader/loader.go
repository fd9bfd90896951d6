// Package loader reads a YAML workflow document into the typed
// specification model. It is strictly syntactic: unknown fields fail the
// decode, but semantic validation belongs to the capability checker.
package loader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// Raw YAML document shapes. These mirror the file format; the typed model
// in domain/model/spec stays free of serialization tags.

type specDoc struct {
	Name      string              `yaml:"name"`
	Agents    map[string]agentDoc `yaml:"agents"`
	Pattern   patternDoc          `yaml:"pattern"`
	Runtime   runtimeDoc          `yaml:"runtime"`
	Variables map[string]string   `yaml:"variables"`
}

type agentDoc struct {
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
	Prompt       string   `yaml:"prompt"`
	Tools        []string `yaml:"tools"`
	MCPServers   []string `yaml:"mcp_servers"`
}

type patternDoc struct {
	Type     string       `yaml:"type"`
	Chain    *chainDoc    `yaml:"chain"`
	Workflow *workflowDoc `yaml:"workflow"`
	Parallel *parallelDoc `yaml:"parallel"`
	Routing  *routingDoc  `yaml:"routing"`
}

type chainDoc struct {
	Steps []stepDoc `yaml:"steps"`
}

type stepDoc struct {
	ID            string            `yaml:"id"`
	Agent         string            `yaml:"agent"`
	Gate          *gateDoc          `yaml:"gate"`
	ToolOverrides map[string]string `yaml:"tool_overrides"`
}

type gateDoc struct {
	Type       string `yaml:"type"`
	Name       string `yaml:"name"`
	Prompt     string `yaml:"prompt"`
	Condition  string `yaml:"condition"`
	TimeoutSec int    `yaml:"timeout_sec"`
	Fallback   string `yaml:"fallback"`
}

type workflowDoc struct {
	Tasks []taskDoc `yaml:"tasks"`
}

type taskDoc struct {
	ID        string            `yaml:"id"`
	Agent     string            `yaml:"agent"`
	Gate      *gateDoc          `yaml:"gate"`
	DependsOn []string          `yaml:"depends_on"`
	Retry     *failurePolicyDoc `yaml:"retry"`
}

type parallelDoc struct {
	Branches []branchDoc `yaml:"branches"`
	Reduce   reduceDoc   `yaml:"reduce"`
}

type branchDoc struct {
	ID    string    `yaml:"id"`
	Steps []stepDoc `yaml:"steps"`
}

type reduceDoc struct {
	Agent  string `yaml:"agent"`
	Prompt string `yaml:"prompt"`
}

type routingDoc struct {
	Router string     `yaml:"router"`
	Routes []routeDoc `yaml:"routes"`
}

type routeDoc struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Steps       []stepDoc `yaml:"steps"`
}

type runtimeDoc struct {
	Provider      providerDoc       `yaml:"provider"`
	FailurePolicy *failurePolicyDoc `yaml:"failure_policy"`
	MaxParallel   int               `yaml:"max_parallel"`
	Budget        *budgetDoc        `yaml:"budget"`
	Secrets       *secretsDoc       `yaml:"secrets"`
}

type providerDoc struct {
	Name      string `yaml:"name"`
	Model     string `yaml:"model"`
	Region    string `yaml:"region"`
	Host      string `yaml:"host"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type failurePolicyDoc struct {
	Retries    *int `yaml:"retries"`
	WaitMinSec *int `yaml:"wait_min_sec"`
	WaitMaxSec *int `yaml:"wait_max_sec"`
}

type budgetDoc struct {
	MaxTokens     int     `yaml:"max_tokens"`
	WarnThreshold float64 `yaml:"warn_threshold"`
}

type secretsDoc struct {
	Source string `yaml:"source"`
}

// LoadFile reads and parses a workflow document from a filesystem
func LoadFile(fs afero.Fs, path string) (*spec.Specification, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file %s: %w", path, err)
	}
	sp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse workflow file %s: %w", path, err)
	}
	return sp, nil
}

// Parse decodes a YAML workflow document. Unknown fields are rejected so
// typos surface at load time instead of silently changing behavior.
func Parse(data []byte) (*spec.Specification, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc specDoc
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("workflow document is empty")
		}
		return nil, fmt.Errorf("decode workflow document: %w", err)
	}
	return doc.toSpec(), nil
}

// toSpec maps the raw document to the typed model. Names and ids are NFC
// normalized so visually identical specs compare equal.
func (d *specDoc) toSpec() *spec.Specification {
	sp := &spec.Specification{
		Name:      nfc(d.Name),
		Agents:    make(map[string]spec.AgentConfig, len(d.Agents)),
		Variables: d.Variables,
	}
	for id, a := range d.Agents {
		id = nfc(id)
		sp.Agents[id] = spec.AgentConfig{
			ID:           id,
			Model:        a.Model,
			SystemPrompt: a.SystemPrompt,
			Prompt:       a.Prompt,
			Tools:        a.Tools,
			MCPServers:   a.MCPServers,
		}
	}

	sp.Pattern.Type = spec.PatternType(d.Pattern.Type)
	if d.Pattern.Chain != nil {
		sp.Pattern.Chain = &spec.ChainConfig{Steps: toSteps(d.Pattern.Chain.Steps)}
	}
	if d.Pattern.Workflow != nil {
		tasks := make([]spec.Task, 0, len(d.Pattern.Workflow.Tasks))
		for _, t := range d.Pattern.Workflow.Tasks {
			deps := make([]string, 0, len(t.DependsOn))
			for _, dep := range t.DependsOn {
				deps = append(deps, nfc(dep))
			}
			tasks = append(tasks, spec.Task{
				ID:        nfc(t.ID),
				Agent:     nfc(t.Agent),
				Gate:      toGate(t.Gate),
				DependsOn: deps,
				Retry:     toFailurePolicy(t.Retry),
			})
		}
		sp.Pattern.Workflow = &spec.WorkflowConfig{Tasks: tasks}
	}
	if d.Pattern.Parallel != nil {
		branches := make([]spec.Branch, 0, len(d.Pattern.Parallel.Branches))
		for _, b := range d.Pattern.Parallel.Branches {
			branches = append(branches, spec.Branch{ID: nfc(b.ID), Steps: toSteps(b.Steps)})
		}
		sp.Pattern.Parallel = &spec.ParallelConfig{
			Branches: branches,
			Reduce: spec.ReduceStep{
				Agent:  nfc(d.Pattern.Parallel.Reduce.Agent),
				Prompt: d.Pattern.Parallel.Reduce.Prompt,
			},
		}
	}
	if d.Pattern.Routing != nil {
		routes := make([]spec.Route, 0, len(d.Pattern.Routing.Routes))
		for _, r := range d.Pattern.Routing.Routes {
			routes = append(routes, spec.Route{
				Name:        nfc(r.Name),
				Description: r.Description,
				Steps:       toSteps(r.Steps),
			})
		}
		sp.Pattern.Routing = &spec.RoutingConfig{
			Router: nfc(d.Pattern.Routing.Router),
			Routes: routes,
		}
	}

	sp.Runtime = spec.RuntimeConfig{
		Provider: spec.ProviderConfig{
			Name:      d.Runtime.Provider.Name,
			Model:     d.Runtime.Provider.Model,
			Region:    d.Runtime.Provider.Region,
			Host:      d.Runtime.Provider.Host,
			APIKeyEnv: d.Runtime.Provider.APIKeyEnv,
		},
		FailurePolicy: toFailurePolicy(d.Runtime.FailurePolicy),
		MaxParallel:   d.Runtime.MaxParallel,
	}
	if d.Runtime.Budget != nil {
		sp.Runtime.Budget = &spec.BudgetConfig{
			MaxTokens:     d.Runtime.Budget.MaxTokens,
			WarnThreshold: d.Runtime.Budget.WarnThreshold,
		}
	}
	if d.Runtime.Secrets != nil {
		sp.Runtime.Secrets = &spec.SecretsConfig{Source: d.Runtime.Secrets.Source}
	}
	return sp
}

func toSteps(docs []stepDoc) []spec.Step {
	steps := make([]spec.Step, 0, len(docs))
	for _, s := range docs {
		steps = append(steps, spec.Step{
			ID:            nfc(s.ID),
			Agent:         nfc(s.Agent),
			Gate:          toGate(s.Gate),
			ToolOverrides: s.ToolOverrides,
		})
	}
	return steps
}

func toGate(g *gateDoc) *spec.GateConfig {
	if g == nil {
		return nil
	}
	return &spec.GateConfig{
		Type:       g.Type,
		Name:       nfc(g.Name),
		Prompt:     g.Prompt,
		Condition:  g.Condition,
		TimeoutSec: g.TimeoutSec,
		Fallback:   g.Fallback,
	}
}

func toFailurePolicy(f *failurePolicyDoc) *spec.FailurePolicy {
	if f == nil {
		return nil
	}
	return &spec.FailurePolicy{
		Retries:    f.Retries,
		WaitMinSec: f.WaitMinSec,
		WaitMaxSec: f.WaitMaxSec,
	}
}

func nfc(s string) string {
	return norm.NFC.String(s)
}
