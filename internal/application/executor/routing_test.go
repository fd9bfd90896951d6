package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

func routingSpec(routes ...spec.Route) *spec.Specification {
	agents := map[string]spec.AgentConfig{
		"router": {ID: "router"},
	}
	for _, r := range routes {
		for _, st := range r.Steps {
			if st.Agent != "" {
				agents[st.Agent] = spec.AgentConfig{ID: st.Agent, Prompt: "handle {{input}}"}
			}
		}
	}
	return &spec.Specification{
		Name:      "routing-test",
		Agents:    agents,
		Variables: map[string]string{"input": "my invoice is wrong"},
		Pattern: spec.Pattern{
			Type:    spec.PatternRouting,
			Routing: &spec.RoutingConfig{Router: "router", Routes: routes},
		},
	}
}

func TestRoutingDispatchesToSelectedRoute(t *testing.T) {
	sp := routingSpec(
		spec.Route{Name: "billing", Description: "payment issues", Steps: []spec.Step{{ID: "handle", Agent: "billing-agent"}}},
		spec.Route{Name: "technical", Description: "product defects", Steps: []spec.Step{{ID: "handle", Agent: "tech-agent"}}},
	)
	gw := newFakeGateway()
	gw.responses["router"] = "billing"
	gw.responses["billing-agent"] = "refund issued"
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Equal(t, "refund issued", out.Result.LastResponse)
	assert.Equal(t, "billing", sess.Position.Route)
	assert.True(t, sess.HasUnit("router"))
	assert.True(t, sess.HasUnit("route/billing/handle"))
	assert.Zero(t, gw.callCount("tech-agent"))
	// The default router prompt lists every declared route.
	assert.Contains(t, gw.prompts["router"][0], "billing: payment issues")
	assert.Contains(t, gw.prompts["router"][0], "technical: product defects")
}

func TestRoutingNormalizesRouterAnswer(t *testing.T) {
	cases := []struct {
		name   string
		answer string
	}{
		{"upper case", "BILLING"},
		{"quoted", `"Billing".`},
		{"trailing prose", "billing\nbecause the user mentions an invoice"},
		{"padded", "  billing  "},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sp := routingSpec(
				spec.Route{Name: "billing", Steps: []spec.Step{{ID: "handle", Agent: "billing-agent"}}},
			)
			gw := newFakeGateway()
			gw.responses["router"] = tc.answer
			ex, err := New(testEnv(t, sp, gw, newMemStore()))
			require.NoError(t, err)

			out := ex.Run(context.Background(), newSession(sp))
			require.Equal(t, OutcomeCompleted, out.Kind)
		})
	}
}

func TestRoutingInvalidSelectionIsFatalNotRetried(t *testing.T) {
	sp := routingSpec(
		spec.Route{Name: "billing", Steps: []spec.Step{{ID: "handle", Agent: "billing-agent"}}},
	)
	gw := newFakeGateway()
	gw.responses["router"] = "shipping"
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomeFailed, out.Kind)
	assert.ErrorIs(t, out.Err, ErrRoutingSelection)
	assert.Equal(t, 1, gw.callCount("router"))
	assert.Zero(t, gw.callCount("billing-agent"))
	assert.Equal(t, session.StatusFailed, sess.Status)
}

func TestRoutingGatePauseResumesPinnedRoute(t *testing.T) {
	sp := routingSpec(
		spec.Route{Name: "billing", Steps: []spec.Step{
			{ID: "triage", Agent: "billing-agent"},
			{ID: "confirm", Gate: &spec.GateConfig{Name: "confirm-refund"}},
			{ID: "close", Agent: "closer"},
		}},
	)
	gw := newFakeGateway()
	gw.responses["router"] = "billing"
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomePaused, out.Kind)
	assert.Equal(t, "confirm-refund", out.Interrupt.Name)
	assert.Equal(t, "billing", sess.Position.Route)

	out = ex.Resume(context.Background(), sess, session.InterruptResponse{Action: session.ActionApprove})
	require.Equal(t, OutcomeCompleted, out.Kind)
	// Resume continues the pinned route; the router never runs again.
	assert.Equal(t, 1, gw.callCount("router"))
	assert.Equal(t, 1, gw.callCount("billing-agent"))
	assert.Equal(t, 1, gw.callCount("closer"))
}

func TestRoutingRunWithPinnedRouteSkipsRouter(t *testing.T) {
	sp := routingSpec(
		spec.Route{Name: "billing", Steps: []spec.Step{{ID: "handle", Agent: "billing-agent"}}},
	)
	gw := newFakeGateway()
	store := newMemStore()
	ex, err := New(testEnv(t, sp, gw, store))
	require.NoError(t, err)

	sess := newSession(sp)
	sess.Position.Route = "billing"
	out := ex.Run(context.Background(), sess)

	require.Equal(t, OutcomeCompleted, out.Kind)
	assert.Zero(t, gw.callCount("router"))
	assert.Equal(t, 1, gw.callCount("billing-agent"))
}
