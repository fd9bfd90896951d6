package executor

import "errors"

var (
	// ErrWorkflowRejected marks a run terminated by an explicit human
	// rejection at a gate. Distinguished from system errors for reporting.
	ErrWorkflowRejected = errors.New("workflow rejected at gate")

	// ErrRoutingSelection marks an invalid or unparseable router decision.
	// Selection ambiguity is not transient; it is never retried.
	ErrRoutingSelection = errors.New("invalid routing selection")

	// ErrRunCancelled marks a run stopped by a cancellation request.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrModifyLimit marks a gate that received more modify responses
	// than the per-gate cap allows.
	ErrModifyLimit = errors.New("modify limit reached for gate")
)

// MaxModifyPerGate caps modify responses per gate so one step cannot be
// re-run without bound.
const MaxModifyPerGate = 3
