// Package executor implements the four pattern state machines that drive
// a specification to completion or pause: chain, workflow, parallel and
// routing. Every entry point returns a tagged Outcome; pausing is a
// first-class result, not an error.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/interrupt"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/policy"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
)

// Executor runs one topology pattern over a session.
type Executor interface {
	// Run drives the session forward from its current position
	Run(ctx context.Context, sess *session.SessionState) Outcome

	// Resume applies an interrupt response to a paused session and
	// continues from the persisted position
	Resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse) Outcome
}

// Env bundles the collaborators shared by all pattern executors. Retries
// and budget checks always go through the policy package; executors never
// implement their own retry loops.
type Env struct {
	Spec       *spec.Specification
	Gateway    output.AgentGateway
	Sessions   repository.SessionRepository
	Interrupts *interrupt.Controller
	Retry      policy.RetryPolicy
	Budget     *policy.BudgetTracker
	Logf       func(format string, args ...interface{})
}

// New builds the executor matching the specification's pattern type
func New(env Env) (Executor, error) {
	if env.Spec == nil {
		return nil, fmt.Errorf("executor env has no specification")
	}
	if env.Logf == nil {
		env.Logf = func(string, ...interface{}) {}
	}
	switch env.Spec.Pattern.Type {
	case spec.PatternChain:
		return newChainExecutor(env)
	case spec.PatternWorkflow:
		return newWorkflowExecutor(env)
	case spec.PatternParallel:
		return newParallelExecutor(env)
	case spec.PatternRouting:
		return newRoutingExecutor(env)
	default:
		return nil, fmt.Errorf("no executor for pattern type %q", env.Spec.Pattern.Type)
	}
}

// runVars builds the template context: run variables plus every completed
// unit's output under outputs.<unit id>, plus the latest output.
func (e *Env) runVars(sess *session.SessionState) map[string]string {
	vars := make(map[string]string, len(sess.Variables)+len(sess.Completed)+1)
	for k, v := range sess.Variables {
		vars[k] = v
	}
	for _, u := range sess.Completed {
		if !u.Skipped {
			vars["outputs."+u.UnitID] = u.Output
		}
	}
	vars["previous_output"] = sess.LastOutput()
	return vars
}

// invokeAgent renders the prompt, calls the gateway through the retry
// boundary and returns the response with its token usage (estimated when
// the provider does not report it).
func (e *Env) invokeAgent(ctx context.Context, agentID, promptOverride string, vars map[string]string, pol policy.RetryPolicy) (*output.AgentResponse, int, error) {
	agent, ok := e.Spec.Agents[agentID]
	if !ok {
		return nil, 0, fmt.Errorf("agent %q not declared", agentID)
	}
	promptTpl := agent.Prompt
	if promptOverride != "" {
		promptTpl = promptOverride
	}
	prompt := renderTemplate(promptTpl, vars)

	model := agent.Model
	if model == "" {
		model = e.Spec.Runtime.Provider.Model
	}
	req := output.AgentRequest{
		AgentID:      agentID,
		Model:        model,
		SystemPrompt: renderTemplate(agent.SystemPrompt, vars),
		Prompt:       prompt,
	}

	resp, err := policy.InvokeWithRetry(ctx, e.Gateway, req, pol)
	if err != nil {
		return nil, 0, err
	}
	tokens := resp.TokensUsed
	if tokens == 0 {
		tokens = policy.EstimateTokens(prompt, resp.Output)
	}
	return resp, tokens, nil
}

// gateMeta constructs the interrupt record for a gate, rendering the
// human-facing prompt against the current context and attaching a preview
// of the prior output for review.
func (e *Env) gateMeta(sess *session.SessionState, gate *spec.GateConfig, fallbackName string) session.InterruptMetadata {
	name := gate.Name
	if name == "" {
		name = fallbackName
	}
	itype := session.InterruptManualGate
	switch gate.Type {
	case "tool_approval":
		itype = session.InterruptToolApproval
	case "quality_gate":
		itype = session.InterruptQualityGate
	case "conditional":
		itype = session.InterruptConditional
	}

	vars := e.runVars(sess)
	meta := session.NewInterruptMetadata(itype, name, renderTemplate(gate.Prompt, vars))
	meta.DataToReview = map[string]string{
		"previous_output": truncatePreview(sess.LastOutput(), 500),
		"spec":            e.Spec.Name,
	}
	if gate.Fallback == string(session.FallbackCancel) {
		meta.Fallback = session.FallbackCancel
	}
	if gate.TimeoutSec > 0 {
		deadline := meta.CreatedAt.Add(time.Duration(gate.TimeoutSec) * time.Second)
		meta.TimeoutAt = &deadline
	}
	return meta
}

// failRun moves the session to failed and persists it. Persistence
// failures are logged, not surfaced; the run error wins.
func (e *Env) failRun(ctx context.Context, sess *session.SessionState, cause error) Outcome {
	if err := sess.MarkFailed(cause); err != nil {
		e.Logf("mark session %s failed: %v", sess.SessionID, err)
	}
	if err := e.Sessions.Save(ctx, sess); err != nil {
		e.Logf("persist failed session %s: %v", sess.SessionID, err)
	}
	return Failed(sess.SessionID, cause)
}

// completeRun moves the session to completed and persists it
func (e *Env) completeRun(ctx context.Context, sess *session.SessionState, startedAt time.Time) Outcome {
	if err := sess.MarkCompleted(); err != nil {
		return e.failRun(ctx, sess, err)
	}
	if err := e.Sessions.Save(ctx, sess); err != nil {
		return e.failRun(ctx, sess, fmt.Errorf("persist completed session: %w", err))
	}
	return Completed(sess.SessionID, RunResult{
		LastResponse: sess.LastOutput(),
		Duration:     time.Since(startedAt),
	})
}

// cancelled checks for a run-level cancel request. New units must not be
// scheduled once the context ends; in-flight units finish naturally.
func (e *Env) cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRunCancelled, err)
	}
	return nil
}

// terminalOutcome derives the outcome for a resume call that arrives after
// the session already reached a terminal state. Duplicate resume calls are
// no-ops against completedUnits, not errors.
func (e *Env) terminalOutcome(sess *session.SessionState) (Outcome, bool) {
	switch sess.Status {
	case session.StatusCompleted:
		return Completed(sess.SessionID, RunResult{LastResponse: sess.LastOutput()}), true
	case session.StatusFailed:
		return Failed(sess.SessionID, fmt.Errorf("session %s already failed: %s", sess.SessionID, sess.LastError)), true
	default:
		return Outcome{}, false
	}
}
