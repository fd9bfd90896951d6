package session

import (
	"errors"
	"testing"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// TestStatusCanTransitionTo verifies the status transition table
func TestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{"running to paused", StatusRunning, StatusPaused, true},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"paused to running", StatusPaused, StatusRunning, true},
		{"paused to failed", StatusPaused, StatusFailed, true},
		{"paused to paused", StatusPaused, StatusPaused, true},
		{"paused to completed", StatusPaused, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusRunning, false},
		{"failed is terminal", StatusFailed, StatusRunning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

// TestPauseResumeLifecycle verifies the pause/resume round trip including
// interrupt history bookkeeping
func TestPauseResumeLifecycle(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)

	meta := NewInterruptMetadata(InterruptManualGate, "review", "Approve the draft?")
	if err := sess.MarkPaused(meta); err != nil {
		t.Fatalf("MarkPaused failed: %v", err)
	}
	if sess.Status != StatusPaused {
		t.Fatalf("expected paused, got %s", sess.Status)
	}
	if sess.Interrupt == nil || sess.Interrupt.Name != "review" {
		t.Fatal("interrupt metadata not stored")
	}

	resp := InterruptResponse{Action: ActionApprove}
	if err := sess.MarkRunning(&resp); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	if sess.Interrupt != nil {
		t.Error("interrupt metadata should be cleared on resume")
	}
	if len(sess.History) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(sess.History))
	}
	if sess.History[0].Metadata.Name != "review" {
		t.Errorf("history holds wrong interrupt: %s", sess.History[0].Metadata.Name)
	}
	if sess.History[0].Response == nil || sess.History[0].Response.Action != ActionApprove {
		t.Error("history should record the resolving response")
	}
}

// TestMarkFailedFromPaused verifies a rejection at a gate archives the
// interrupt and lands in the failed terminal state
func TestMarkFailedFromPaused(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)
	meta := NewInterruptMetadata(InterruptManualGate, "review", "ok?")
	if err := sess.MarkPaused(meta); err != nil {
		t.Fatalf("MarkPaused failed: %v", err)
	}

	if err := sess.MarkFailed(errors.New("rejected at gate")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if sess.Status != StatusFailed {
		t.Errorf("expected failed, got %s", sess.Status)
	}
	if sess.Interrupt != nil {
		t.Error("interrupt should be archived on failure")
	}
	if len(sess.History) != 1 {
		t.Errorf("expected archived interrupt in history, got %d records", len(sess.History))
	}
	if sess.LastError != "rejected at gate" {
		t.Errorf("unexpected last error: %s", sess.LastError)
	}

	if err := sess.MarkCompleted(); err == nil {
		t.Error("expected error completing a failed session")
	}
}

// TestRecordUnitIdempotent verifies duplicate unit records are no-ops
func TestRecordUnitIdempotent(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)

	sess.RecordUnit(CompletedUnit{UnitID: "step-1", Output: "first"})
	sess.RecordUnit(CompletedUnit{UnitID: "step-1", Output: "duplicate"})

	if len(sess.Completed) != 1 {
		t.Fatalf("expected 1 completed unit, got %d", len(sess.Completed))
	}
	out, ok := sess.UnitOutput("step-1")
	if !ok || out != "first" {
		t.Errorf("expected original output preserved, got %q", out)
	}
}

// TestRemoveUnit verifies modify can un-record a unit for re-execution
func TestRemoveUnit(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)
	sess.RecordUnit(CompletedUnit{UnitID: "a", Output: "1"})
	sess.RecordUnit(CompletedUnit{UnitID: "b", Output: "2"})

	if !sess.RemoveUnit("a") {
		t.Fatal("RemoveUnit should report success")
	}
	if sess.HasUnit("a") {
		t.Error("unit a should be removed")
	}
	if !sess.HasUnit("b") {
		t.Error("unit b should survive")
	}
	if sess.RemoveUnit("a") {
		t.Error("removing a missing unit should report false")
	}
}

// TestLastOutputSkipsSkippedUnits verifies skipped gates do not shadow
// agent outputs
func TestLastOutputSkipsSkippedUnits(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)
	sess.RecordUnit(CompletedUnit{UnitID: "draft", Output: "the draft"})
	sess.RecordUnit(CompletedUnit{UnitID: "gate", Skipped: true})

	if got := sess.LastOutput(); got != "the draft" {
		t.Errorf("LastOutput = %q, want %q", got, "the draft")
	}
}

// TestModifyCount verifies modify responses are counted per gate name
func TestModifyCount(t *testing.T) {
	sess := NewSessionState("demo", spec.PatternChain, nil)

	for i := 0; i < 2; i++ {
		meta := NewInterruptMetadata(InterruptManualGate, "review", "ok?")
		if err := sess.MarkPaused(meta); err != nil {
			t.Fatalf("MarkPaused failed: %v", err)
		}
		resp := InterruptResponse{Action: ActionModify, Feedback: "tighten it"}
		if err := sess.MarkRunning(&resp); err != nil {
			t.Fatalf("MarkRunning failed: %v", err)
		}
	}

	if got := sess.ModifyCount("review"); got != 2 {
		t.Errorf("ModifyCount(review) = %d, want 2", got)
	}
	if got := sess.ModifyCount("other"); got != 0 {
		t.Errorf("ModifyCount(other) = %d, want 0", got)
	}
}

// TestInterruptResponseValidate verifies actions are checked against the
// offered options
func TestInterruptResponseValidate(t *testing.T) {
	meta := NewInterruptMetadata(InterruptManualGate, "review", "ok?")

	if err := (InterruptResponse{Action: ActionApprove}).Validate(meta); err != nil {
		t.Errorf("approve should validate: %v", err)
	}
	if err := (InterruptResponse{Action: "escalate"}).Validate(meta); err == nil {
		t.Error("unknown action should fail validation")
	}

	restricted := meta
	restricted.Options = map[Action]string{ActionApprove: "", ActionReject: ""}
	if err := (InterruptResponse{Action: ActionModify}).Validate(restricted); err == nil {
		t.Error("action outside offered options should fail validation")
	}
}

// TestSessionIDRoundTrip verifies ULID parse/format
func TestSessionIDRoundTrip(t *testing.T) {
	id := NewSessionID()
	parsed, err := ParseSessionID(id.String())
	if err != nil {
		t.Fatalf("ParseSessionID failed: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: %s vs %s", parsed, id)
	}

	if _, err := ParseSessionID(""); err == nil {
		t.Error("empty id should fail")
	}
	if _, err := ParseSessionID("not-a-ulid"); err == nil {
		t.Error("malformed id should fail")
	}
}
