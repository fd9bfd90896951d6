package policy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// ErrBudgetExceeded is fatal for the run; it is never retried.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// DefaultWarnThreshold is the fraction of the ceiling at which a warning
// is emitted.
const DefaultWarnThreshold = 0.8

// WarnFunc receives budget warnings; contextID names the unit that crossed
// the threshold.
type WarnFunc func(contextID string, usagePct float64)

// CheckBudget evaluates cumulative token usage against a ceiling. It is a
// no-op when maxTokens is 0. At or above 100% it returns ErrBudgetExceeded;
// at or above the warn threshold it calls warn and continues. Monotone:
// once exceeded, every later check with the same ceiling also exceeds
// because cumulative usage never decreases within a run.
func CheckBudget(cumulative, maxTokens int, contextID string, warnThreshold float64, warn WarnFunc) error {
	if maxTokens <= 0 {
		return nil
	}
	if warnThreshold <= 0 {
		warnThreshold = DefaultWarnThreshold
	}

	usagePct := float64(cumulative) / float64(maxTokens) * 100
	if usagePct >= 100 {
		return fmt.Errorf("%s used %d of %d tokens (%.1f%%): %w",
			contextID, cumulative, maxTokens, usagePct, ErrBudgetExceeded)
	}
	if usagePct >= warnThreshold*100 && warn != nil {
		warn(contextID, usagePct)
	}
	return nil
}

// BudgetTracker owns cumulative token usage for one run. All mutations go
// through a single critical section so that concurrent branches never
// lose updates and usage never under-reports.
type BudgetTracker struct {
	mu            sync.Mutex
	cumulative    int
	maxTokens     int
	warnThreshold float64
	warned        bool
	warn          WarnFunc
}

// NewBudgetTracker builds a tracker from the run budget config. A nil
// config means no ceiling: usage is tracked but never enforced.
func NewBudgetTracker(cfg *spec.BudgetConfig, warn WarnFunc) *BudgetTracker {
	t := &BudgetTracker{warnThreshold: DefaultWarnThreshold, warn: warn}
	if cfg != nil {
		t.maxTokens = cfg.MaxTokens
		if cfg.WarnThreshold > 0 {
			t.warnThreshold = cfg.WarnThreshold
		}
	}
	return t
}

// Seed initializes cumulative usage from persisted state when a paused
// run resumes, keeping the budget monotone across the whole run. It does
// not evaluate the ceiling; the next Add or Check does.
func (t *BudgetTracker) Seed(tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tokens > 0 {
		t.cumulative = tokens
	}
}

// Add records token usage for a unit and checks the ceiling atomically
func (t *BudgetTracker) Add(tokens int, contextID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tokens > 0 {
		t.cumulative += tokens
	}
	return t.checkLocked(contextID)
}

// Check re-evaluates the ceiling without recording usage
func (t *BudgetTracker) Check(contextID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.checkLocked(contextID)
}

func (t *BudgetTracker) checkLocked(contextID string) error {
	warn := t.warn
	if t.warned {
		warn = nil // one warning per run is enough
	}
	err := CheckBudget(t.cumulative, t.maxTokens, contextID, t.warnThreshold, func(id string, pct float64) {
		t.warned = true
		if warn != nil {
			warn(id, pct)
		}
	})
	return err
}

// Cumulative returns the tokens recorded so far
func (t *BudgetTracker) Cumulative() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cumulative
}

// EstimateTokens is the whitespace word-count heuristic used when the
// provider does not report exact usage. Deterministic and side-effect-free.
func EstimateTokens(inputText, outputText string) int {
	return len(strings.Fields(inputText)) + len(strings.Fields(outputText))
}
