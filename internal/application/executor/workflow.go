package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/policy"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// workflowExecutor schedules a dependency DAG in layers. A task's layer is
// the longest path from any root to it, so every dependency lives in an
// earlier layer and a whole layer can run concurrently.
type workflowExecutor struct {
	env      Env
	tasks    map[string]spec.Task
	layers   [][]string // task ids per layer, sorted for determinism
	policies map[string]policy.RetryPolicy
}

func newWorkflowExecutor(env Env) (*workflowExecutor, error) {
	cfg := env.Spec.Pattern.Workflow
	if cfg == nil {
		return nil, fmt.Errorf("workflow pattern has no workflow config")
	}

	x := &workflowExecutor{
		env:      env,
		tasks:    make(map[string]spec.Task, len(cfg.Tasks)),
		policies: make(map[string]policy.RetryPolicy, len(cfg.Tasks)),
	}
	for _, t := range cfg.Tasks {
		x.tasks[t.ID] = t
		pol := env.Retry
		if t.Retry != nil {
			resolved, err := policy.ResolveRetryPolicy(t.Retry)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", t.ID, err)
			}
			pol = resolved
		}
		x.policies[t.ID] = pol
	}

	layers, err := layerTasks(cfg.Tasks)
	if err != nil {
		return nil, err
	}
	x.layers = layers
	return x, nil
}

// layerTasks assigns each task the length of the longest dependency path
// leading to it. The capability checker rejects cycles before execution,
// but a depth guard keeps a malformed graph from recursing forever.
func layerTasks(tasks []spec.Task) ([][]string, error) {
	byID := make(map[string]spec.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	memo := make(map[string]int, len(tasks))
	var layerOf func(id string, depth int) (int, error)
	layerOf = func(id string, depth int) (int, error) {
		if depth > len(tasks) {
			return 0, fmt.Errorf("dependency cycle through task %q", id)
		}
		if l, ok := memo[id]; ok {
			return l, nil
		}
		t, ok := byID[id]
		if !ok {
			return 0, fmt.Errorf("task %q depends on unknown task", id)
		}
		layer := 0
		for _, dep := range t.DependsOn {
			dl, err := layerOf(dep, depth+1)
			if err != nil {
				return 0, err
			}
			if dl+1 > layer {
				layer = dl + 1
			}
		}
		memo[id] = layer
		return layer, nil
	}

	max := 0
	for _, t := range tasks {
		l, err := layerOf(t.ID, 0)
		if err != nil {
			return nil, err
		}
		if l > max {
			max = l
		}
	}

	layers := make([][]string, max+1)
	for _, t := range tasks {
		layers[memo[t.ID]] = append(layers[memo[t.ID]], t.ID)
	}
	for _, ids := range layers {
		sort.Strings(ids)
	}
	return layers, nil
}

// taskResult is the in-flight result of one concurrently executed task
type taskResult struct {
	taskID string
	output string
	tokens int
	err    error
}

// Run schedules layers from the persisted cursor. Agent tasks within a
// layer run concurrently bounded by max_parallel; gate tasks are handled
// after the layer's agent tasks, in id order.
func (x *workflowExecutor) Run(ctx context.Context, sess *session.SessionState) Outcome {
	started := time.Now()
	if out, done := x.runLayers(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

func (x *workflowExecutor) runLayers(ctx context.Context, sess *session.SessionState) (Outcome, bool) {
	for layer := sess.Position.Layer; layer < len(x.layers); layer++ {
		sess.Position.Layer = layer
		if err := x.env.cancelled(ctx); err != nil {
			return x.env.failRun(ctx, sess, err), true
		}

		var agents, gates []string
		for _, id := range x.layers[layer] {
			if sess.HasUnit(id) {
				continue
			}
			if x.tasks[id].IsGate() {
				gates = append(gates, id)
			} else {
				agents = append(agents, id)
			}
		}

		if out, failed := x.runAgentTasks(ctx, sess, agents); failed {
			return out, true
		}

		for _, id := range gates {
			task := x.tasks[id]
			if task.Gate.Condition != "" && !evalCondition(task.Gate.Condition, x.env.runVars(sess)) {
				sess.RecordUnit(session.CompletedUnit{UnitID: id, Skipped: true})
				if err := x.env.Sessions.Save(ctx, sess); err != nil {
					return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
				}
				continue
			}
			meta := x.env.gateMeta(sess, task.Gate, id)
			if err := x.env.Interrupts.Pause(ctx, sess, meta); err != nil {
				return x.env.failRun(ctx, sess, err), true
			}
			return Paused(sess.SessionID, meta), true
		}
	}
	return Outcome{}, false
}

// runAgentTasks fans a layer's agent tasks out over a bounded worker set.
// The session is only mutated here, after every goroutine has finished;
// results are recorded in sorted task order so reruns are deterministic.
func (x *workflowExecutor) runAgentTasks(ctx context.Context, sess *session.SessionState, ids []string) (Outcome, bool) {
	if len(ids) == 0 {
		return Outcome{}, false
	}

	limit := x.env.Spec.Runtime.MaxParallel
	if limit <= 0 {
		limit = len(ids)
	}
	sem := make(chan struct{}, limit)
	vars := x.env.runVars(sess)

	results := make([]taskResult, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp, tokens, err := x.env.invokeAgent(ctx, x.tasks[id].Agent, "", vars, x.policies[id])
			if err != nil {
				results[i] = taskResult{taskID: id, err: fmt.Errorf("task %q: %w", id, err)}
				return
			}
			results[i] = taskResult{taskID: id, output: resp.Output, tokens: tokens}
		}(i, id)
	}
	wg.Wait()

	var firstErr error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		sess.RecordUnit(session.CompletedUnit{UnitID: r.taskID, Output: r.output, TokensUsed: r.tokens})
		if err := x.env.Budget.Add(r.tokens, r.taskID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return x.env.failRun(ctx, sess, firstErr), true
	}
	if err := x.env.Sessions.Save(ctx, sess); err != nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
	}
	return Outcome{}, false
}

// Resume applies the interrupt response to the gate task the session
// paused on and reschedules from that layer.
func (x *workflowExecutor) Resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse) Outcome {
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

	gateID, _, err := x.pausedGate(sess)
	if err != nil {
		return Failed(sess.SessionID, err)
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
		// Re-run the gate's completed dependencies with the feedback in
		// scope. The cursor moves back to the shallowest reopened layer.
		reopened := sess.Position.Layer
		for _, dep := range x.tasks[gateID].DependsOn {
			if x.tasks[dep].IsGate() {
				continue
			}
			if sess.RemoveUnit(dep) {
				if l := x.layerIndex(dep); l < reopened {
					reopened = l
				}
			}
		}
		sess.Position.Layer = reopened
		if err := x.env.Sessions.Save(ctx, sess); err != nil {
			return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err))
		}

	case session.ActionApprove:
		if err := x.env.Interrupts.Resolve(sess, resp); err != nil {
			return Failed(sess.SessionID, err)
		}
		sess.RecordUnit(session.CompletedUnit{UnitID: gateID, Output: resp.Feedback, Skipped: true})
		if err := x.env.Sessions.Save(ctx, sess); err != nil {
			return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err))
		}

	default:
		return Failed(sess.SessionID, fmt.Errorf("unknown interrupt action %q", resp.Action))
	}

	if out, done := x.runLayers(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

// pausedGate locates the gate task the session is paused on: the first
// unexecuted gate, in id order, within the cursor layer.
func (x *workflowExecutor) pausedGate(sess *session.SessionState) (string, spec.Task, error) {
	layer := sess.Position.Layer
	if layer < 0 || layer >= len(x.layers) {
		return "", spec.Task{}, fmt.Errorf("paused layer %d outside range", layer)
	}
	for _, id := range x.layers[layer] {
		if x.tasks[id].IsGate() && !sess.HasUnit(id) {
			return id, x.tasks[id], nil
		}
	}
	return "", spec.Task{}, fmt.Errorf("no pending gate in layer %d", layer)
}

// layerIndex returns the layer a task was assigned to
func (x *workflowExecutor) layerIndex(id string) int {
	for l, ids := range x.layers {
		for _, tid := range ids {
			if tid == id {
				return l
			}
		}
	}
	return 0
}
