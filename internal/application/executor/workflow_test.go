package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

func workflowSpec(tasks ...spec.Task) *spec.Specification {
	agents := make(map[string]spec.AgentConfig)
	for _, tk := range tasks {
		if tk.Agent != "" {
			agents[tk.Agent] = spec.AgentConfig{ID: tk.Agent, Prompt: "run " + tk.Agent}
		}
	}
	return &spec.Specification{
		Name:    "workflow-test",
		Agents:  agents,
		Pattern: spec.Pattern{Type: spec.PatternWorkflow, Workflow: &spec.WorkflowConfig{Tasks: tasks}},
	}
}

func TestLayerTasksLongestPath(t *testing.T) {
	tasks := []spec.Task{
		{ID: "a", Agent: "a"},
		{ID: "b", Agent: "b", DependsOn: []string{"a"}},
		{ID: "c", Agent: "c", DependsOn: []string{"a"}},
		{ID: "d", Agent: "d", DependsOn: []string{"b", "c"}},
		{ID: "e", Agent: "e", DependsOn: []string{"a", "d"}},
	}
	layers, err := layerTasks(tasks)
	require.NoError(t, err)
	require.Len(t, layers, 4)
	assert.Equal(t, []string{"a"}, layers[0])
	assert.Equal(t, []string{"b", "c"}, layers[1])
	assert.Equal(t, []string{"d"}, layers[2])
	// e depends on both a and d; the longest path wins.
	assert.Equal(t, []string{"e"}, layers[3])
}

func TestLayerTasksRejectsCycleAndUnknownDep(t *testing.T) {
	_, err := layerTasks([]spec.Task{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})
	assert.Error(t, err)

	_, err = layerTasks([]spec.Task{
		{ID: "a", DependsOn: []string{"ghost"}},
	})
	assert.Error(t, err)
}

func TestWorkflowRunsDiamondInDependencyOrder(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "fetch", Agent: "fetcher"},
		spec.Task{ID: "summarize", Agent: "summarizer", DependsOn: []string{"fetch"}},
		spec.Task{ID: "classify", Agent: "classifier", DependsOn: []string{"fetch"}},
		spec.Task{ID: "report", Agent: "reporter", DependsOn: []string{"summarize", "classify"}},
	)
	sp.Agents["reporter"] = spec.AgentConfig{ID: "reporter", Prompt: "{{outputs.summarize}} / {{outputs.classify}}"}
	gw := newFakeGateway()
	gw.responses["summarizer"] = "the summary"
	gw.responses["classifier"] = "the class"
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "fetcher", gw.calls[0])
	assert.Equal(t, "reporter", gw.calls[len(gw.calls)-1])
	assert.Equal(t, "the summary / the class", gw.prompts["reporter"][0])
	assert.Equal(t, session.StatusCompleted, sess.Status)
}

func TestWorkflowHonorsMaxParallel(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "t1", Agent: "a1"},
		spec.Task{ID: "t2", Agent: "a2"},
		spec.Task{ID: "t3", Agent: "a3"},
		spec.Task{ID: "t4", Agent: "a4"},
	)
	sp.Runtime.MaxParallel = 2
	gw := newFakeGateway()
	gw.delay = 20 * time.Millisecond
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	out := ex.Run(context.Background(), newSession(sp))
	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.LessOrEqual(t, gw.maxInflight, 2)
	assert.Len(t, gw.calls, 4)
}

func TestWorkflowTaskRetryOverride(t *testing.T) {
	zero := 0
	two := 2
	sp := workflowSpec(
		spec.Task{ID: "flaky", Agent: "flaky", Retry: &spec.FailurePolicy{
			Retries: &two, WaitMinSec: &zero, WaitMaxSec: &zero,
		}},
	)
	gw := newFakeGateway()
	gw.failures["flaky"] = output.ErrConnectionFailure
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	out := ex.Run(context.Background(), newSession(sp))
	require.Equal(t, OutcomeFailed, out.Kind)
	// retries=2 means three attempts, even though the run default is one.
	assert.Equal(t, 3, gw.callCount("flaky"))
}

func TestWorkflowInvalidTaskRetryRejectedAtConstruction(t *testing.T) {
	neg := -1
	sp := workflowSpec(
		spec.Task{ID: "bad", Agent: "bad", Retry: &spec.FailurePolicy{Retries: &neg}},
	)
	_, err := New(testEnv(t, sp, newFakeGateway(), newMemStore()))
	assert.Error(t, err)
}

func TestWorkflowGatePausesAfterLayerAgents(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "build", Agent: "builder"},
		spec.Task{ID: "approve", Gate: &spec.GateConfig{Name: "ship-it"}, DependsOn: []string{"build"}},
		spec.Task{ID: "deploy", Agent: "deployer", DependsOn: []string{"approve"}},
	)
	gw := newFakeGateway()
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomePaused, out.Kind)
	assert.Equal(t, "ship-it", out.Interrupt.Name)
	assert.True(t, sess.HasUnit("build"))
	assert.Zero(t, gw.callCount("deployer"))

	out = ex.Resume(context.Background(), sess, session.InterruptResponse{Action: session.ActionApprove})
	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, 1, gw.callCount("builder"))
	assert.Equal(t, 1, gw.callCount("deployer"))
}

func TestWorkflowModifyRerunsGateDependencies(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "build", Agent: "builder"},
		spec.Task{ID: "approve", Gate: &spec.GateConfig{Name: "ship-it"}, DependsOn: []string{"build"}},
	)
	sp.Agents["builder"] = spec.AgentConfig{ID: "builder", Prompt: "build. feedback: {{feedback}}"}
	gw := newFakeGateway()
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)
	require.Equal(t, OutcomePaused, out.Kind)

	out = ex.Resume(context.Background(), sess, session.InterruptResponse{
		Action:   session.ActionModify,
		Feedback: "use the staging image",
	})
	require.Equal(t, OutcomePaused, out.Kind)
	assert.Equal(t, 2, gw.callCount("builder"))
	assert.Contains(t, gw.prompts["builder"][1], "use the staging image")
}

func TestWorkflowRejectFailsRun(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "build", Agent: "builder"},
		spec.Task{ID: "approve", Gate: &spec.GateConfig{Name: "ship-it"}, DependsOn: []string{"build"}},
		spec.Task{ID: "deploy", Agent: "deployer", DependsOn: []string{"approve"}},
	)
	gw := newFakeGateway()
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)
	require.Equal(t, OutcomePaused, out.Kind)

	out = ex.Resume(context.Background(), sess, session.InterruptResponse{Action: session.ActionReject})
	require.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, ErrWorkflowRejected)
	assert.Zero(t, gw.callCount("deployer"))
}

func TestWorkflowFailureKeepsSiblingProgress(t *testing.T) {
	sp := workflowSpec(
		spec.Task{ID: "good", Agent: "good"},
		spec.Task{ID: "bad", Agent: "bad"},
	)
	gw := newFakeGateway()
	gw.failures["bad"] = assert.AnError
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomeFailed, out.Kind)
	// The sibling that finished is recorded even though the layer failed.
	assert.True(t, sess.HasUnit("good"))
	assert.False(t, sess.HasUnit("bad"))
}
