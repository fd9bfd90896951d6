// Package orchestrate is the application entry point for running and
// resuming workflow sessions. It owns the pre-flight capability gate, the
// single-runner lease, executor construction and artifact persistence;
// the pattern state machines themselves live in the executor package.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/capability"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/executor"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/interrupt"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/policy"
	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
)

// ErrSessionBusy is returned when another process holds the run lease for
// a session.
var ErrSessionBusy = errors.New("session is already being executed")

// DefaultLeaseTTL bounds how long a crashed runner can block a session.
const DefaultLeaseTTL = 10 * time.Minute

// FinalArtifactName is the artifact holding the run's final response.
const FinalArtifactName = "response.md"

// RunLeaser grants exclusive execution of one session at a time.
type RunLeaser interface {
	// Acquire takes the lease, or reports false when it is held elsewhere
	Acquire(ctx context.Context, id session.SessionID, ttl time.Duration) (bool, error)

	// Release frees the lease
	Release(ctx context.Context, id session.SessionID) error
}

// UseCase wires the engine's collaborators for run and resume. Storage and
// Leases are optional; a nil lease means single-process operation.
type UseCase struct {
	Sessions repository.SessionRepository
	Gateway  output.AgentGateway
	Storage  output.StorageGateway
	Leases   RunLeaser
	Checker  *capability.Checker
	LeaseTTL time.Duration
	Logf     func(format string, args ...interface{})
}

// RunInput starts a fresh session for a specification.
type RunInput struct {
	Spec      *spec.Specification
	Variables map[string]string // CLI overrides, applied over the spec's variables
}

// ResumeInput continues a paused session. The specification must be
// supplied again; sessions persist position and outputs, not the spec.
type ResumeInput struct {
	Spec      *spec.Specification
	SessionID session.SessionID
	Response  session.InterruptResponse
}

// Result is the caller-facing summary of a run or resume call.
type Result struct {
	SessionID        session.SessionID
	Outcome          executor.Outcome
	ArtifactsWritten []string
}

// Run validates the specification, creates a session and drives it until
// it completes, pauses or fails. No agent is invoked when validation finds
// any issue.
func (u *UseCase) Run(ctx context.Context, in RunInput) (*Result, error) {
	if in.Spec == nil {
		return nil, fmt.Errorf("run requires a specification")
	}
	if err := u.checker().Check(in.Spec).Err(); err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(in.Spec.Variables)+len(in.Variables))
	for k, v := range in.Spec.Variables {
		vars[k] = v
	}
	for k, v := range in.Variables {
		vars[k] = v
	}

	sess := session.NewSessionState(in.Spec.Name, in.Spec.Pattern.Type, vars)
	if err := u.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	release, err := u.acquireLease(ctx, sess.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	exec, err := u.buildExecutor(in.Spec, 0)
	if err != nil {
		return nil, err
	}
	outcome := exec.Run(ctx, sess)
	return u.finish(ctx, sess.SessionID, outcome)
}

// Resume applies a human decision to a paused session and continues it.
func (u *UseCase) Resume(ctx context.Context, in ResumeInput) (*Result, error) {
	if in.Spec == nil {
		return nil, fmt.Errorf("resume requires a specification")
	}
	if err := u.checker().Check(in.Spec).Err(); err != nil {
		return nil, err
	}

	sess, err := u.Sessions.Load(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.SpecName != in.Spec.Name {
		return nil, fmt.Errorf("session %s belongs to spec %q, not %q",
			in.SessionID, sess.SpecName, in.Spec.Name)
	}
	if sess.Pattern != in.Spec.Pattern.Type {
		return nil, fmt.Errorf("session %s was created for pattern %s, specification now declares %s",
			in.SessionID, sess.Pattern, in.Spec.Pattern.Type)
	}

	release, err := u.acquireLease(ctx, sess.SessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A resumed session is the same run: re-seed the budget from the
	// persisted units so the ceiling stays cumulative across the pause.
	exec, err := u.buildExecutor(in.Spec, sess.TokensUsed())
	if err != nil {
		return nil, err
	}
	outcome := exec.Resume(ctx, sess, in.Response)
	return u.finish(ctx, sess.SessionID, outcome)
}

func (u *UseCase) checker() *capability.Checker {
	if u.Checker != nil {
		return u.Checker
	}
	return capability.NewChecker(capability.DefaultConfig())
}

func (u *UseCase) logf(format string, args ...interface{}) {
	if u.Logf != nil {
		u.Logf(format, args...)
	}
}

func (u *UseCase) acquireLease(ctx context.Context, id session.SessionID) (func(), error) {
	if u.Leases == nil {
		return func() {}, nil
	}
	ttl := u.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	ok, err := u.Leases.Acquire(ctx, id, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire run lease for %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionBusy)
	}
	return func() {
		if err := u.Leases.Release(context.WithoutCancel(ctx), id); err != nil {
			u.logf("release run lease for %s: %v", id, err)
		}
	}, nil
}

func (u *UseCase) buildExecutor(sp *spec.Specification, spentTokens int) (executor.Executor, error) {
	retry, err := policy.ResolveRetryPolicy(sp.Runtime.FailurePolicy)
	if err != nil {
		return nil, err
	}
	budget := policy.NewBudgetTracker(sp.Runtime.Budget, func(contextID string, usagePct float64) {
		u.logf("budget warning: %s at %.1f%% of token ceiling", contextID, usagePct)
	})
	budget.Seed(spentTokens)
	return executor.New(executor.Env{
		Spec:       sp,
		Gateway:    u.Gateway,
		Sessions:   u.Sessions,
		Interrupts: interrupt.NewController(u.Sessions),
		Retry:      retry,
		Budget:     budget,
		Logf:       u.logf,
	})
}

// finish translates the executor outcome into the use case result and, on
// completion, persists the final response as an artifact. Artifact write
// failures do not fail an otherwise completed run.
func (u *UseCase) finish(ctx context.Context, id session.SessionID, outcome executor.Outcome) (*Result, error) {
	res := &Result{SessionID: id, Outcome: outcome}
	if outcome.Kind != executor.OutcomeCompleted || u.Storage == nil {
		return res, nil
	}

	meta, err := u.Storage.SaveArtifact(ctx, output.SaveArtifactRequest{
		SessionID:   id.String(),
		Name:        FinalArtifactName,
		Content:     []byte(outcome.Result.LastResponse),
		ContentType: "text/markdown",
	})
	if err != nil {
		u.logf("save final artifact for %s: %v", id, err)
		return res, nil
	}
	res.ArtifactsWritten = append(res.ArtifactsWritten, meta.StoragePath)
	outcome.Result.ArtifactsWritten = res.ArtifactsWritten
	return res, nil
}
