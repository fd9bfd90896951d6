package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InterruptType classifies a pause condition.
type InterruptType string

const (
	InterruptManualGate   InterruptType = "manual_gate"
	InterruptToolApproval InterruptType = "tool_approval"
	InterruptQualityGate  InterruptType = "quality_gate"
	InterruptConditional  InterruptType = "conditional"
)

// FallbackAction is applied when a gate times out before a human responds.
type FallbackAction string

const (
	FallbackContinue FallbackAction = "continue"
	FallbackCancel   FallbackAction = "cancel"
)

// Action is the decision a human (or programmatic handler) returns for an
// interrupt. Exactly one action is valid per resume call.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionModify  Action = "modify"
	ActionDefer   Action = "defer"
)

// IsValid returns true for a known action
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionModify, ActionDefer:
		return true
	default:
		return false
	}
}

// InterruptMetadata is created by an executor the instant it must pause.
// It is immutable once created.
type InterruptMetadata struct {
	InterruptID  string            `json:"interrupt_id"`
	Type         InterruptType     `json:"type"`
	Name         string            `json:"name"`
	Prompt       string            `json:"prompt"`
	CreatedAt    time.Time         `json:"created_at"`
	TimeoutAt    *time.Time        `json:"timeout_at,omitempty"`
	Fallback     FallbackAction    `json:"fallback_action"`
	DataToReview map[string]string `json:"data_to_review,omitempty"`
	Options      map[Action]string `json:"options"`
}

// NewInterruptMetadata creates interrupt metadata with a fresh UUID and the
// standard option set.
func NewInterruptMetadata(itype InterruptType, name, prompt string) InterruptMetadata {
	return InterruptMetadata{
		InterruptID: uuid.NewString(),
		Type:        itype,
		Name:        name,
		Prompt:      prompt,
		CreatedAt:   time.Now().UTC(),
		Fallback:    FallbackContinue,
		Options: map[Action]string{
			ActionApprove: "Continue the run past this gate",
			ActionReject:  "Terminate the run as rejected",
			ActionModify:  "Re-run the prior unit with feedback",
			ActionDefer:   "Leave the run paused",
		},
	}
}

// AllowsAction returns true if the action is one of the offered options
func (m InterruptMetadata) AllowsAction(a Action) bool {
	_, ok := m.Options[a]
	return ok
}

// TimedOut reports whether the gate's deadline has elapsed at the given time
func (m InterruptMetadata) TimedOut(now time.Time) bool {
	return m.TimeoutAt != nil && now.After(*m.TimeoutAt)
}

// InterruptResponse is the externally produced decision for an interrupt.
// It is consumed exactly once by the resuming executor.
type InterruptResponse struct {
	Action            Action            `json:"action"`
	Feedback          string            `json:"feedback,omitempty"`
	VariableOverrides map[string]string `json:"variable_overrides,omitempty"`
	ProvidedAt        time.Time         `json:"provided_at"`
}

// Validate checks the response against the interrupt's offered options
func (r InterruptResponse) Validate(meta InterruptMetadata) error {
	if !r.Action.IsValid() {
		return fmt.Errorf("unknown interrupt action %q", r.Action)
	}
	if !meta.AllowsAction(r.Action) {
		return fmt.Errorf("action %q not offered by interrupt %s", r.Action, meta.InterruptID)
	}
	return nil
}

// InterruptRecord is one resolved interrupt in the session's append-only
// history.
type InterruptRecord struct {
	Metadata   InterruptMetadata  `json:"metadata"`
	Response   *InterruptResponse `json:"response,omitempty"`
	ResolvedAt time.Time          `json:"resolved_at"`
}
