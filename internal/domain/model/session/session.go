package session

import (
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo validates a status transition
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusRunning:
		return next == StatusPaused || next == StatusCompleted || next == StatusFailed
	case StatusPaused:
		return next == StatusRunning || next == StatusFailed || next == StatusPaused
	default:
		return false
	}
}

// CompletedUnit records one executed unit of work (step, task, branch step
// or gate) together with its output. The persisted record is authoritative:
// resuming must never re-execute a unit present here.
type CompletedUnit struct {
	UnitID      string    `json:"unit_id"`
	Output      string    `json:"output"`
	TokensUsed  int       `json:"tokens_used"`
	Skipped     bool      `json:"skipped,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Position locates where a paused or running executor is within its
// pattern. Only the fields relevant to the pattern type are meaningful.
type Position struct {
	StepIndex int    `json:"step_index"`          // chain and route step cursor
	Layer     int    `json:"layer"`               // workflow layer index
	Route     string `json:"route,omitempty"`     // routing: chosen route name
	BranchID  string `json:"branch_id,omitempty"` // parallel: branch owning the interrupt
}

// SessionState is the durable, resumable record of a run. It is owned by
// exactly one executor instance per run; the store persists it verbatim.
type SessionState struct {
	SessionID   SessionID          `json:"session_id"`
	SpecName    string             `json:"spec_name"`
	Pattern     spec.PatternType   `json:"pattern"`
	Status      Status             `json:"status"`
	Position    Position           `json:"position"`
	Completed   []CompletedUnit    `json:"completed_units"`
	Interrupt   *InterruptMetadata `json:"interrupt_metadata,omitempty"`
	History     []InterruptRecord  `json:"interrupt_history"`
	Variables   map[string]string  `json:"variables"`
	LastError   string             `json:"last_error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// NewSessionState creates a running session for a specification
func NewSessionState(specName string, pattern spec.PatternType, variables map[string]string) *SessionState {
	now := time.Now().UTC()
	vars := make(map[string]string, len(variables))
	for k, v := range variables {
		vars[k] = v
	}
	return &SessionState{
		SessionID: NewSessionID(),
		SpecName:  specName,
		Pattern:   pattern,
		Status:    StatusRunning,
		Completed: []CompletedUnit{},
		History:   []InterruptRecord{},
		Variables: vars,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transition moves the session to the next status with validation
func (s *SessionState) transition(next Status) error {
	if s.Status == next {
		s.UpdatedAt = time.Now().UTC()
		return nil
	}
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("invalid session transition from %s to %s", s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaused records the interrupt and pauses the session
func (s *SessionState) MarkPaused(meta InterruptMetadata) error {
	if err := s.transition(StatusPaused); err != nil {
		return err
	}
	s.Interrupt = &meta
	return nil
}

// MarkRunning resumes a paused session, moving the active interrupt into
// the append-only history together with the response that resolved it.
func (s *SessionState) MarkRunning(resp *InterruptResponse) error {
	if s.Status != StatusPaused {
		return fmt.Errorf("cannot resume session in status %s", s.Status)
	}
	if s.Interrupt != nil {
		s.History = append(s.History, InterruptRecord{
			Metadata:   *s.Interrupt,
			Response:   resp,
			ResolvedAt: time.Now().UTC(),
		})
		s.Interrupt = nil
	}
	return s.transition(StatusRunning)
}

// MarkCompleted moves the session to its completed terminal state
func (s *SessionState) MarkCompleted() error {
	if err := s.transition(StatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// MarkFailed moves the session to its failed terminal state
func (s *SessionState) MarkFailed(cause error) error {
	// A paused session may fail directly (rejection, timeout cancel).
	if s.Status == StatusPaused && s.Interrupt != nil {
		s.History = append(s.History, InterruptRecord{
			Metadata:   *s.Interrupt,
			ResolvedAt: time.Now().UTC(),
		})
		s.Interrupt = nil
	}
	if err := s.transition(StatusFailed); err != nil {
		return err
	}
	if cause != nil {
		s.LastError = cause.Error()
	}
	now := time.Now().UTC()
	s.CompletedAt = &now
	return nil
}

// RecordUnit appends a completed unit. Recording the same unit twice is a
// no-op so that duplicate resume calls stay idempotent.
func (s *SessionState) RecordUnit(unit CompletedUnit) {
	if s.HasUnit(unit.UnitID) {
		return
	}
	if unit.CompletedAt.IsZero() {
		unit.CompletedAt = time.Now().UTC()
	}
	s.Completed = append(s.Completed, unit)
	s.UpdatedAt = time.Now().UTC()
}

// RemoveUnit drops a completed unit so it can be re-executed. Used by the
// modify action to re-run the prior step with feedback.
func (s *SessionState) RemoveUnit(unitID string) bool {
	for i, u := range s.Completed {
		if u.UnitID == unitID {
			s.Completed = append(s.Completed[:i], s.Completed[i+1:]...)
			s.UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// HasUnit reports whether a unit was already executed
func (s *SessionState) HasUnit(unitID string) bool {
	for _, u := range s.Completed {
		if u.UnitID == unitID {
			return true
		}
	}
	return false
}

// UnitOutput returns the recorded output of a completed unit
func (s *SessionState) UnitOutput(unitID string) (string, bool) {
	for _, u := range s.Completed {
		if u.UnitID == unitID {
			return u.Output, true
		}
	}
	return "", false
}

// TokensUsed returns the cumulative token usage recorded across all
// completed units. A resumed run re-seeds its budget from this value.
func (s *SessionState) TokensUsed() int {
	total := 0
	for _, u := range s.Completed {
		total += u.TokensUsed
	}
	return total
}

// LastOutput returns the output of the most recently completed non-skipped
// unit, or empty when nothing has run yet.
func (s *SessionState) LastOutput() string {
	for i := len(s.Completed) - 1; i >= 0; i-- {
		if !s.Completed[i].Skipped {
			return s.Completed[i].Output
		}
	}
	return ""
}

// ModifyCount counts resolved modify responses for a gate name. Executors
// use it to cap modify retries per gate.
func (s *SessionState) ModifyCount(gateName string) int {
	n := 0
	for _, rec := range s.History {
		if rec.Metadata.Name == gateName && rec.Response != nil && rec.Response.Action == ActionModify {
			n++
		}
	}
	return n
}

// SetVariable sets a run variable
func (s *SessionState) SetVariable(key, value string) {
	if s.Variables == nil {
		s.Variables = make(map[string]string)
	}
	s.Variables[key] = value
	s.UpdatedAt = time.Now().UTC()
}

// ApplyOverrides merges variable overrides from an interrupt response
func (s *SessionState) ApplyOverrides(overrides map[string]string) {
	for k, v := range overrides {
		s.SetVariable(k, v)
	}
}
