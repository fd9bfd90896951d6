package capability

import (
	"fmt"
	"strings"
)

// Issue is a single reason a specification cannot be executed.
type Issue struct {
	Pointer     string `json:"pointer"`     // JSON-pointer-style location, e.g. /pattern/workflow/tasks/2
	Reason      string `json:"reason"`      // what is wrong
	Remediation string `json:"remediation"` // how to fix it
}

// Report is the pass/fail verdict of pre-flight validation. Built once per
// run and immutable afterward.
type Report struct {
	Supported  bool              `json:"supported"`
	Issues     []Issue           `json:"issues"`
	Normalized map[string]string `json:"normalized,omitempty"`
}

// UnsupportedError aggregates every capability issue so a caller can fix a
// specification in one pass.
type UnsupportedError struct {
	Issues []Issue
}

// Error formats the aggregated issue list
func (e *UnsupportedError) Error() string {
	if len(e.Issues) == 0 {
		return "specification not supported"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "specification not supported (%d issues):", len(e.Issues))
	for _, is := range e.Issues {
		fmt.Fprintf(&b, "\n  %s: %s", is.Pointer, is.Reason)
	}
	return b.String()
}

// Err returns an UnsupportedError when the report has issues, nil otherwise
func (r *Report) Err() error {
	if r.Supported {
		return nil
	}
	return &UnsupportedError{Issues: r.Issues}
}
