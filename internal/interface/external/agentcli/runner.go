// Package agentcli wraps the external agent CLI process. It shells out to
// the `claude` binary in print mode and parses its JSON result envelope.
package agentcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single CLI invocation when the caller sets none.
const DefaultTimeout = 10 * time.Minute

// Runner executes the agent CLI binary once per prompt.
type Runner struct {
	Bin     string
	Timeout time.Duration
}

// NewRunner creates a runner for the given binary
func NewRunner(bin string) *Runner {
	if bin == "" {
		bin = "claude"
	}
	return &Runner{Bin: bin, Timeout: DefaultTimeout}
}

// resultEnvelope is the JSON document the CLI prints with --output-format json
type resultEnvelope struct {
	Type       string `json:"type"`
	IsError    bool   `json:"is_error"`
	DurationMs int    `json:"duration_ms"`
	Result     string `json:"result"`
	SessionID  string `json:"session_id"`
}

// Request carries one prompt to the CLI.
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Timeout      time.Duration // overrides the runner timeout when > 0
}

// ErrTimedOut marks an invocation killed by its deadline.
var ErrTimedOut = errors.New("agent CLI timed out")

// Run executes the CLI and returns the result text. A non-JSON reply is
// returned verbatim for older CLI versions that print plain text.
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	args := []string{"-p", "--output-format", "json"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	args = append(args, req.Prompt)

	timeout := r.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, r.Bin, args...)
	out, err := cmd.CombinedOutput()
	if cctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w after %s", ErrTimedOut, timeout)
	}
	if err != nil {
		return "", fmt.Errorf("agent CLI failed: %w (output: %s)", err, string(out))
	}

	var env resultEnvelope
	if err := json.Unmarshal(out, &env); err != nil {
		return string(out), nil
	}
	if env.IsError {
		return "", fmt.Errorf("agent CLI returned error: %s", env.Result)
	}
	return env.Result, nil
}
