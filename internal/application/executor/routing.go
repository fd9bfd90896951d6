package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// routingExecutor asks a router agent to pick exactly one route, then runs
// the chosen route's steps like a chain. The chosen route is pinned in the
// session so resume never re-routes.
type routingExecutor struct {
	env Env
	cfg *spec.RoutingConfig
}

func newRoutingExecutor(env Env) (*routingExecutor, error) {
	if env.Spec.Pattern.Routing == nil {
		return nil, fmt.Errorf("routing pattern has no routing config")
	}
	return &routingExecutor{env: env, cfg: env.Spec.Pattern.Routing}, nil
}

const routerUnit = "router"

// Run routes once, then drives the chosen route to completion or pause
func (x *routingExecutor) Run(ctx context.Context, sess *session.SessionState) Outcome {
	started := time.Now()

	if sess.Position.Route == "" {
		if out, failed := x.route(ctx, sess); failed {
			return out
		}
	}

	route := x.routeByName(sess.Position.Route)
	if route == nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("%w: persisted route %q not declared", ErrRoutingSelection, sess.Position.Route))
	}
	seq := x.routeRunner(route)
	if out, done := seq.run(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

// route invokes the router agent and pins its selection. A selection that
// matches no declared route is fatal; ambiguity is never retried because
// re-asking a confused router is not a transient failure.
func (x *routingExecutor) route(ctx context.Context, sess *session.SessionState) (Outcome, bool) {
	if err := x.env.cancelled(ctx); err != nil {
		return x.env.failRun(ctx, sess, err), true
	}

	vars := x.env.runVars(sess)
	vars["routes"] = x.routeCatalog()

	promptOverride := ""
	if x.env.Spec.Agents[x.cfg.Router].Prompt == "" {
		promptOverride = "Select exactly one route for the input below. Respond with the route name only.\n\nRoutes:\n{{routes}}\n\nInput:\n{{input}}"
	}
	resp, tokens, err := x.env.invokeAgent(ctx, x.cfg.Router, promptOverride, vars, x.env.Retry)
	if err != nil {
		return x.env.failRun(ctx, sess, err), true
	}

	route := x.matchRoute(resp.Output)
	if route == nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("%w: router answered %q, declared routes: %s",
			ErrRoutingSelection, strings.TrimSpace(resp.Output), x.routeNames())), true
	}

	sess.RecordUnit(session.CompletedUnit{UnitID: routerUnit, Output: route.Name, TokensUsed: tokens})
	if err := x.env.Budget.Add(tokens, routerUnit); err != nil {
		return x.env.failRun(ctx, sess, err), true
	}
	sess.Position.Route = route.Name
	sess.Position.StepIndex = 0
	if err := x.env.Sessions.Save(ctx, sess); err != nil {
		return x.env.failRun(ctx, sess, fmt.Errorf("persist session: %w", err)), true
	}
	x.env.Logf("router selected route %q", route.Name)
	return Outcome{}, false
}

// Resume resolves the gate inside the pinned route and continues it
func (x *routingExecutor) Resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse) Outcome {
	started := time.Now()
	if out, ok := x.env.terminalOutcome(sess); ok {
		return out
	}
	route := x.routeByName(sess.Position.Route)
	if route == nil {
		return Failed(sess.SessionID, fmt.Errorf("%w: paused route %q not declared", ErrRoutingSelection, sess.Position.Route))
	}
	seq := x.routeRunner(route)
	return seq.resume(ctx, sess, resp, func() Outcome {
		return x.env.completeRun(ctx, sess, started)
	})
}

func (x *routingExecutor) routeRunner(route *spec.Route) *seqRunner {
	return &seqRunner{env: &x.env, steps: route.Steps, prefix: "route/" + route.Name + "/"}
}

func (x *routingExecutor) routeByName(name string) *spec.Route {
	for i := range x.cfg.Routes {
		if x.cfg.Routes[i].Name == name {
			return &x.cfg.Routes[i]
		}
	}
	return nil
}

// routeCatalog formats the routes for the router prompt
func (x *routingExecutor) routeCatalog() string {
	var b strings.Builder
	for _, r := range x.cfg.Routes {
		fmt.Fprintf(&b, "- %s: %s\n", r.Name, r.Description)
	}
	return b.String()
}

func (x *routingExecutor) routeNames() string {
	names := make([]string, len(x.cfg.Routes))
	for i, r := range x.cfg.Routes {
		names[i] = r.Name
	}
	return strings.Join(names, ", ")
}

// matchRoute maps a raw router answer to a declared route. The first line
// is normalized (trimmed, lowercased, stripped of surrounding punctuation)
// and compared case-insensitively against route names.
func (x *routingExecutor) matchRoute(answer string) *spec.Route {
	line := answer
	if idx := strings.IndexByte(line, '\n'); idx != -1 {
		line = line[:idx]
	}
	norm := normalizeSelection(line)
	if norm == "" {
		return nil
	}
	for i := range x.cfg.Routes {
		if strings.EqualFold(norm, x.cfg.Routes[i].Name) {
			return &x.cfg.Routes[i]
		}
	}
	return nil
}

// normalizeSelection strips whitespace and surrounding punctuation from a
// router answer
func normalizeSelection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case '"', '\'', '`', '.', ',', ':', ';', '!', '?', '(', ')', '[', ']', '*', '-', ' ':
			return true
		}
		return false
	})
	return strings.ToLower(s)
}
