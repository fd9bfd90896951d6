package executor

import (
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
)

// OutcomeKind tags the three-way result of a run or resume call.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomePaused
	OutcomeFailed
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomePaused:
		return "paused"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult summarizes a completed run.
type RunResult struct {
	Success          bool
	LastResponse     string
	Duration         time.Duration
	Err              error
	ArtifactsWritten []string // filled by the caller, not the engine
}

// Outcome is the tagged result returned by every executor entry point.
// Pausing is communicated by value, never by unwinding the call stack.
type Outcome struct {
	Kind      OutcomeKind
	SessionID session.SessionID
	Result    *RunResult                 // set when Kind == OutcomeCompleted
	Interrupt *session.InterruptMetadata // set when Kind == OutcomePaused
	Err       error                      // set when Kind == OutcomeFailed
}

// Completed builds a success outcome
func Completed(id session.SessionID, result RunResult) Outcome {
	result.Success = true
	return Outcome{Kind: OutcomeCompleted, SessionID: id, Result: &result}
}

// Paused builds a pause outcome carrying the interrupt for the caller
func Paused(id session.SessionID, meta session.InterruptMetadata) Outcome {
	return Outcome{Kind: OutcomePaused, SessionID: id, Interrupt: &meta}
}

// Failed builds a failure outcome
func Failed(id session.SessionID, err error) Outcome {
	return Outcome{Kind: OutcomeFailed, SessionID: id, Err: err}
}
