package executor

import (
	"context"
	"fmt"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// seqRunner executes an ordered step list with pause support. Chain runs
// one of these over its steps; routing runs one over the chosen route.
// The cursor lives in sess.Position.StepIndex; completed units make
// re-entry idempotent.
type seqRunner struct {
	env    *Env
	steps  []spec.Step
	prefix string // unit id prefix, e.g. "route/billing/"
}

// unitID derives the completed-unit id for a step
func (r *seqRunner) unitID(i int) string {
	id := r.steps[i].ID
	if id == "" {
		id = fmt.Sprintf("step-%d", i)
	}
	return r.prefix + id
}

// run drives the sequence from the session cursor. Returns done=false
// when every step finished and the caller owns completion.
func (r *seqRunner) run(ctx context.Context, sess *session.SessionState) (Outcome, bool) {
	for i := sess.Position.StepIndex; i < len(r.steps); i++ {
		sess.Position.StepIndex = i
		if err := r.env.cancelled(ctx); err != nil {
			return r.env.failRun(ctx, sess, err), true
		}

		step := r.steps[i]
		uid := r.unitID(i)
		if sess.HasUnit(uid) {
			continue
		}

		if step.IsGate() {
			// A false condition skips the gate entirely.
			if step.Gate.Condition != "" && !evalCondition(step.Gate.Condition, r.env.runVars(sess)) {
				sess.RecordUnit(session.CompletedUnit{UnitID: uid, Skipped: true})
				if err := r.env.Sessions.Save(ctx, sess); err != nil {
					return r.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
				}
				continue
			}
			meta := r.env.gateMeta(sess, step.Gate, uid)
			if err := r.env.Interrupts.Pause(ctx, sess, meta); err != nil {
				return r.env.failRun(ctx, sess, err), true
			}
			return Paused(sess.SessionID, meta), true
		}

		resp, tokens, err := r.env.invokeAgent(ctx, step.Agent, "", r.env.runVars(sess), r.env.Retry)
		if err != nil {
			return r.env.failRun(ctx, sess, err), true
		}
		sess.RecordUnit(session.CompletedUnit{UnitID: uid, Output: resp.Output, TokensUsed: tokens})
		if err := r.env.Budget.Add(tokens, uid); err != nil {
			return r.env.failRun(ctx, sess, err), true
		}
		if err := r.env.Sessions.Save(ctx, sess); err != nil {
			return r.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
		}
	}
	return Outcome{}, false
}

// resume applies an interrupt response to the gate at the paused cursor
// and continues the sequence. complete is called when every step is done.
func (r *seqRunner) resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse, complete func() Outcome) Outcome {
	if out, ok := r.env.terminalOutcome(sess); ok {
		return out
	}
	if sess.Status != session.StatusPaused || sess.Interrupt == nil {
		return Failed(sess.SessionID, fmt.Errorf("session %s is not paused", sess.SessionID))
	}
	meta := *sess.Interrupt

	// An elapsed deadline overrides the caller's response.
	if r.env.Interrupts.CheckTimeout(meta) {
		resp = r.env.Interrupts.FallbackResponse(meta)
	}

	i := sess.Position.StepIndex
	if i < 0 || i >= len(r.steps) {
		return Failed(sess.SessionID, fmt.Errorf("paused position %d outside step range", i))
	}

	switch resp.Action {
	case session.ActionDefer:
		if err := r.env.Interrupts.Defer(ctx, sess); err != nil {
			return Failed(sess.SessionID, err)
		}
		return Paused(sess.SessionID, meta)

	case session.ActionReject:
		if err := r.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		cause := fmt.Errorf("%w: gate %q", ErrWorkflowRejected, meta.Name)
		if resp.Feedback != "" {
			cause = fmt.Errorf("%w: gate %q: %s", ErrWorkflowRejected, meta.Name, resp.Feedback)
		}
		return r.env.failRun(ctx, sess, cause)

	case session.ActionModify:
		if sess.ModifyCount(meta.Name) >= MaxModifyPerGate {
			if err := r.env.Interrupts.Resolve(sess, resp); err != nil {
				return Failed(sess.SessionID, err)
			}
			return r.env.failRun(ctx, sess, fmt.Errorf("%w: gate %q exceeded %d modifies", ErrModifyLimit, meta.Name, MaxModifyPerGate))
		}
		if err := r.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		if resp.Feedback != "" {
			sess.SetVariable("feedback", resp.Feedback)
		}
		// Bounded retry of one prior unit: step back to the nearest
		// completed agent step and re-run it with the feedback.
		for j := i - 1; j >= 0; j-- {
			if r.steps[j].IsGate() {
				continue
			}
			if sess.HasUnit(r.unitID(j)) {
				sess.RemoveUnit(r.unitID(j))
				sess.Position.StepIndex = j
				break
			}
		}
		if err := r.env.Sessions.Save(ctx, sess); err != nil {
			return r.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err))
		}

	case session.ActionApprove:
		if err := r.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		sess.RecordUnit(session.CompletedUnit{UnitID: r.unitID(i), Output: resp.Feedback, Skipped: true})
		if err := r.env.Sessions.Save(ctx, sess); err != nil {
			return r.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err))
		}

	default:
		return Failed(sess.SessionID, fmt.Errorf("unknown interrupt action %q", resp.Action))
	}

	out, done := r.run(ctx, sess)
	if done {
		return out
	}
	return complete()
}
