// Package interrupt manages the pause/resume/timeout lifecycle shared by
// every pattern executor.
package interrupt

import (
	"context"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/session"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/repository"
)

// Controller creates interrupt records, persists paused session state,
// evaluates timeouts and interprets human decisions. A paused run is not
// an error; callers receive a tagged pause result, never an exception.
type Controller struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

// NewController creates an interrupt controller backed by a session store
func NewController(sessions repository.SessionRepository) *Controller {
	return &Controller{sessions: sessions, now: time.Now}
}

// NewControllerWithClock creates a controller with an injected clock,
// used by tests to drive timeout evaluation deterministically.
func NewControllerWithClock(sessions repository.SessionRepository, now func() time.Time) *Controller {
	return &Controller{sessions: sessions, now: now}
}

// Pause marks the session paused with the interrupt metadata and persists
// it. The executor returns a pause outcome to its caller afterwards.
func (c *Controller) Pause(ctx context.Context, sess *session.SessionState, meta session.InterruptMetadata) error {
	if err := sess.MarkPaused(meta); err != nil {
		return fmt.Errorf("pause session %s: %w", sess.SessionID, err)
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist paused session %s: %w", sess.SessionID, err)
	}
	return nil
}

// Resolve validates a response against the active interrupt and moves the
// session back to running, archiving the interrupt into history. The defer
// action is handled by Defer, not here.
func (c *Controller) Resolve(sess *session.SessionState, resp session.InterruptResponse) error {
	if sess.Status != session.StatusPaused {
		return fmt.Errorf("session %s is %s, not paused", sess.SessionID, sess.Status)
	}
	if sess.Interrupt == nil {
		return fmt.Errorf("session %s is paused without interrupt metadata", sess.SessionID)
	}
	if err := resp.Validate(*sess.Interrupt); err != nil {
		return err
	}
	if resp.ProvidedAt.IsZero() {
		resp.ProvidedAt = c.now().UTC()
	}
	if err := sess.MarkRunning(&resp); err != nil {
		return err
	}
	sess.ApplyOverrides(resp.VariableOverrides)
	return nil
}

// Defer re-persists the paused state unchanged and returns control to the
// caller without advancing.
func (c *Controller) Defer(ctx context.Context, sess *session.SessionState) error {
	if sess.Status != session.StatusPaused {
		return fmt.Errorf("session %s is %s, not paused", sess.SessionID, sess.Status)
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist deferred session %s: %w", sess.SessionID, err)
	}
	return nil
}

// CheckTimeout reports whether the interrupt's deadline has elapsed
func (c *Controller) CheckTimeout(meta session.InterruptMetadata) bool {
	return meta.TimedOut(c.now())
}

// FallbackResponse synthesizes the response applied when a timed-out gate
// is encountered before a human answered. A continue fallback approves
// with a system-generated note; a cancel fallback rejects.
func (c *Controller) FallbackResponse(meta session.InterruptMetadata) session.InterruptResponse {
	action := session.ActionApprove
	feedback := fmt.Sprintf("auto-approved: gate %q timed out at %s with fallback=continue",
		meta.Name, meta.TimeoutAt.Format(time.RFC3339))
	if meta.Fallback == session.FallbackCancel {
		action = session.ActionReject
		feedback = fmt.Sprintf("auto-rejected: gate %q timed out at %s with fallback=cancel",
			meta.Name, meta.TimeoutAt.Format(time.RFC3339))
	}
	return session.InterruptResponse{
		Action:     action,
		Feedback:   feedback,
		ProvidedAt: c.now().UTC(),
	}
}
