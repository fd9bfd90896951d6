package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
)

// chainExecutor runs the steps of a chain pattern in declared order,
// carrying each output forward as previous_output.
type chainExecutor struct {
	env Env
	seq *seqRunner
}

func newChainExecutor(env Env) (*chainExecutor, error) {
	if env.Spec.Pattern.Chain == nil {
		return nil, fmt.Errorf("chain pattern has no chain config")
	}
	x := &chainExecutor{env: env}
	x.seq = &seqRunner{env: &x.env, steps: env.Spec.Pattern.Chain.Steps}
	return x, nil
}

// Run drives the chain from the persisted cursor to completion or pause
func (x *chainExecutor) Run(ctx context.Context, sess *session.SessionState) Outcome {
	started := time.Now()
	if out, done := x.seq.run(ctx, sess); done {
		return out
	}
	return x.env.completeRun(ctx, sess, started)
}

// Resume applies the interrupt response at the paused gate and continues
func (x *chainExecutor) Resume(ctx context.Context, sess *session.SessionState, resp session.InterruptResponse) Outcome {
	started := time.Now()
	return x.seq.resume(ctx, sess, resp, func() Outcome {
		return x.env.completeRun(ctx, sess, started)
	})
}
