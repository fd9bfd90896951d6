package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// parallelExecutor fans branches out concurrently, then reduces their
// outputs with a single reduce agent. Branch goroutines never touch the
// session; they report results back and the scheduler goroutine records
// them, so persistence stays single-writer.
type parallelExecutor struct {
	env Env
	cfg *spec.ParallelConfig
}

func newParallelExecutor(env Env) (*parallelExecutor, error) {
	if env.Spec.Pattern.Parallel == nil {
		return nil, fmt.Errorf("parallel pattern has no parallel config")
	}
	return &parallelExecutor{env: env, cfg: env.Spec.Pattern.Parallel}, nil
}

// branchPause captures a gate reached inside a branch. Only one interrupt
// is active at a time: the first paused branch in declared order wins and
// the rest are re-encountered on the next run.
type branchPause struct {
	stepIndex  int
	gate       *spec.GateConfig
	unitID     string
	prevOutput string
}

// branchOutcome is what one branch goroutine hands back to the scheduler
type branchOutcome struct {
	units []session.CompletedUnit
	pause *branchPause
	err   error
}

// Run executes all branches and, once every branch completed, the reduce
// step. Already-recorded units are skipped so reruns after a pause only
// execute what is left.
func (x *parallelExecutor) Run(ctx context.Context, sess *session.SessionState) Outcome {
	started := time.Now()
	if out, done := x.runBranches(ctx, sess); done {
		return out
	}
	if out, done := x.runReduce(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

func (x *parallelExecutor) runBranches(ctx context.Context, sess *session.SessionState) (Outcome, bool) {
	if err := x.env.cancelled(ctx); err != nil {
		return x.env.failRun(ctx, sess, err), true
	}

	limit := x.env.Spec.Runtime.MaxParallel
	if limit <= 0 {
		limit = len(x.cfg.Branches)
	}
	sem := make(chan struct{}, limit)
	baseVars := x.env.runVars(sess)

	outcomes := make([]branchOutcome, len(x.cfg.Branches))
	var wg sync.WaitGroup
	for i := range x.cfg.Branches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = x.runBranch(ctx, &x.cfg.Branches[i], sess, baseVars)
		}(i)
	}
	wg.Wait()

	// Record every branch's progress before deciding the run's fate, so a
	// failure in one branch never discards completed work in another.
	for _, bo := range outcomes {
		for _, u := range bo.units {
			sess.RecordUnit(u)
		}
	}
	if err := x.env.Sessions.Save(ctx, sess); err != nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
	}

	for i, bo := range outcomes {
		if bo.err != nil {
			return x.env.failRun(ctx, sess, fmt.Errorf("branch %q: %w", x.cfg.Branches[i].ID, bo.err)), true
		}
	}
	for i, bo := range outcomes {
		if bo.pause == nil {
			continue
		}
		sess.Position.BranchID = x.cfg.Branches[i].ID
		sess.Position.StepIndex = bo.pause.stepIndex
		meta := x.env.gateMeta(sess, bo.pause.gate, bo.pause.unitID)
		meta.DataToReview["previous_output"] = truncatePreview(bo.pause.prevOutput, 500)
		if err := x.env.Interrupts.Pause(ctx, sess, meta); err != nil {
			return x.env.failRun(ctx, sess, err), true
		}
		return Paused(sess.SessionID, meta), true
	}
	return Outcome{}, false
}

// runBranch executes one branch's steps in order against a private copy
// of the run variables. It reads the session for completed units but
// never writes it.
func (x *parallelExecutor) runBranch(ctx context.Context, b *spec.Branch, sess *session.SessionState, baseVars map[string]string) branchOutcome {
	vars := make(map[string]string, len(baseVars)+len(b.Steps))
	for k, v := range baseVars {
		vars[k] = v
	}

	var out branchOutcome
	prev := ""
	for i, step := range b.Steps {
		if err := ctx.Err(); err != nil {
			out.err = fmt.Errorf("%w: %v", ErrRunCancelled, err)
			return out
		}

		uid := x.branchUnitID(b, i)
		if sess.HasUnit(uid) {
			if !step.IsGate() {
				if o, ok := sess.UnitOutput(uid); ok {
					vars["outputs."+uid] = o
					prev = o
				}
			}
			continue
		}

		if step.IsGate() {
			if step.Gate.Condition != "" && !evalCondition(step.Gate.Condition, vars) {
				out.units = append(out.units, session.CompletedUnit{UnitID: uid, Skipped: true})
				continue
			}
			out.pause = &branchPause{stepIndex: i, gate: step.Gate, unitID: uid, prevOutput: prev}
			return out
		}

		vars["previous_output"] = prev
		resp, tokens, err := x.env.invokeAgent(ctx, step.Agent, "", vars, x.env.Retry)
		if err != nil {
			out.err = err
			return out
		}
		if err := x.env.Budget.Add(tokens, uid); err != nil {
			out.err = err
			return out
		}
		out.units = append(out.units, session.CompletedUnit{UnitID: uid, Output: resp.Output, TokensUsed: tokens})
		vars["outputs."+uid] = resp.Output
		prev = resp.Output
	}
	return out
}

func (x *parallelExecutor) branchUnitID(b *spec.Branch, i int) string {
	id := b.Steps[i].ID
	if id == "" {
		id = fmt.Sprintf("step-%d", i)
	}
	return "branch/" + b.ID + "/" + id
}

// runReduce invokes the reduce agent over the concatenated branch outputs
// in declared branch order.
func (x *parallelExecutor) runReduce(ctx context.Context, sess *session.SessionState) (Outcome, bool) {
	const reduceUnit = "reduce"
	if sess.HasUnit(reduceUnit) {
		return Outcome{}, false
	}
	if err := x.env.cancelled(ctx); err != nil {
		return x.env.failRun(ctx, sess, err), true
	}

	var parts []string
	for i := range x.cfg.Branches {
		if o := x.branchOutput(&x.cfg.Branches[i], sess); o != "" {
			parts = append(parts, o)
		}
	}
	joined := strings.Join(parts, "\n\n")

	vars := x.env.runVars(sess)
	vars["branch_outputs"] = joined
	vars["previous_output"] = joined

	promptOverride := x.cfg.Reduce.Prompt
	if promptOverride == "" && x.env.Spec.Agents[x.cfg.Reduce.Agent].Prompt == "" {
		promptOverride = "{{branch_outputs}}"
	}
	resp, tokens, err := x.env.invokeAgent(ctx, x.cfg.Reduce.Agent, promptOverride, vars, x.env.Retry)
	if err != nil {
		return x.env.failRun(ctx, sess, err), true
	}
	sess.RecordUnit(session.CompletedUnit{UnitID: reduceUnit, Output: resp.Output, TokensUsed: tokens})
	if err := x.env.Budget.Add(tokens, reduceUnit); err != nil {
		return x.env.failRun(ctx, sess, err), true
	}
	if err := x.env.Sessions.Save(ctx, sess); err != nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
	}
	return Outcome{}, false
}

// branchOutput is the last non-gate output a branch produced
func (x *parallelExecutor) branchOutput(b *spec.Branch, sess *session.SessionState) string {
	for i := len(b.Steps) - 1; i >= 0; i-- {
		if b.Steps[i].IsGate() {
			continue
		}
		if o, ok := sess.UnitOutput(x.branchUnitID(b, i)); ok {
			return o
		}
	}
	return ""
}

// Resume resolves the interrupt owned by the paused branch and reruns the
// fan-out; completed branches are no-ops against the recorded units.
func (x *parallelExecutor) Resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse) Outcome {
	started := time.Now()
	if out, ok := x.env.terminalOutcome(sess); ok {
		return out
	}
	if sess.Status != session.StatusPaused || sess.Interrupt == nil {
		return Failed(sess.SessionID, fmt.Errorf("session %s is not paused", sess.SessionID))
	}
	meta := *sess.Interrupt

	if x.env.Interrupts.CheckTimeout(meta) {
		resp = x.env.Interrupts.FallbackResponse(meta)
	}

	branch := x.branchByID(sess.Position.BranchID)
	if branch == nil {
		return Failed(sess.SessionID, fmt.Errorf("paused branch %q not declared", sess.Position.BranchID))
	}
	i := sess.Position.StepIndex
	if i < 0 || i >= len(branch.Steps) {
		return Failed(sess.SessionID, fmt.Errorf("paused position %d outside branch %q", i, branch.ID))
	}

	switch resp.Action {
	case session.ActionDefer:
		if err := x.env.Interrupts.Defer(ctx, sess); err != nil {
			return Failed(sess.SessionID, err)
		}
		return Paused(sess.SessionID, meta)

	case session.ActionReject:
		if err := x.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		cause := fmt.Errorf("%w: gate %q", ErrWorkflowRejected, meta.Name)
		if resp.Feedback != "" {
			cause = fmt.Errorf("%w: gate %q: %s", ErrWorkflowRejected, meta.Name, resp.Feedback)
		}
		return x.env.failRun(ctx, sess, cause)

	case session.ActionModify:
		if sess.ModifyCount(meta.Name) >= MaxModifyPerGate {
			if err := x.env.Interrupts.Resolve(sess, resp); err != nil {
				return Failed(sess.SessionID, err)
			}
			return x.env.failRun(ctx, sess, fmt.Errorf("%w: gate %q exceeded %d modifies", ErrModifyLimit, meta.Name, MaxModifyPerGate))
		}
		if err := x.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		if resp.Feedback != "" {
			sess.SetVariable("feedback", resp.Feedback)
		}
		for j := i - 1; j >= 0; j-- {
			if branch.Steps[j].IsGate() {
				continue
			}
			if sess.RemoveUnit(x.branchUnitID(branch, j)) {
				break
			}
		}

	case session.ActionApprove:
		if err := x.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		sess.RecordUnit(session.CompletedUnit{UnitID: x.branchUnitID(branch, i), Output: resp.Feedback, Skipped: true})

	default:
		return Failed(sess.SessionID, fmt.Errorf("unknown interrupt action %q", resp.Action))
	}

	sess.Position.BranchID = ""
	sess.Position.StepIndex = 0
	if err := x.env.Sessions.Save(ctx, sess); err != nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err))
	}

	if out, done := x.runBranches(ctx, sess); done {
		return out
	}
	if out, done := x.runReduce(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

func (x *parallelExecutor) branchByID(id string) *spec.Branch {
	for i := range x.cfg.Branches {
		if x.cfg.Branches[i].ID == id {
			return &x.cfg.Branches[i]
		}
	}
	return nil
}
