package policy

import (
	"errors"
	"sync"
	"testing"

	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// TestCheckBudgetNoCeiling verifies the check is a no-op without a ceiling
func TestCheckBudgetNoCeiling(t *testing.T) {
	if err := CheckBudget(1_000_000, 0, "run", 0.8, nil); err != nil {
		t.Errorf("expected nil without ceiling, got %v", err)
	}
}

// TestCheckBudgetExceeded verifies the 100% boundary
func TestCheckBudgetExceeded(t *testing.T) {
	tests := []struct {
		name       string
		cumulative int
		max        int
		exceeded   bool
	}{
		{"below threshold", 500, 1000, false},
		{"just below ceiling", 999, 1000, false},
		{"at ceiling", 1000, 1000, true},
		{"above ceiling", 1200, 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckBudget(tt.cumulative, tt.max, "run", 0.8, nil)
			if got := errors.Is(err, ErrBudgetExceeded); got != tt.exceeded {
				t.Errorf("exceeded = %v, want %v (err: %v)", got, tt.exceeded, err)
			}
		})
	}
}

// TestCheckBudgetMonotone verifies that once exceeded at C, every
// cumulative >= C with the same ceiling also exceeds
func TestCheckBudgetMonotone(t *testing.T) {
	const max = 1000
	threshold := -1
	for c := 0; c <= 2*max; c += 50 {
		err := CheckBudget(c, max, "run", 0.8, nil)
		if errors.Is(err, ErrBudgetExceeded) {
			if threshold == -1 {
				threshold = c
			}
		} else if threshold != -1 {
			t.Fatalf("budget passed at %d after exceeding at %d", c, threshold)
		}
	}
	if threshold != max {
		t.Errorf("first exceeded at %d, want %d", threshold, max)
	}
}

// TestCheckBudgetWarning verifies the warning threshold emits but continues
func TestCheckBudgetWarning(t *testing.T) {
	var warnedID string
	var warnedPct float64
	warn := func(id string, pct float64) {
		warnedID = id
		warnedPct = pct
	}

	if err := CheckBudget(850, 1000, "step-2", 0.8, warn); err != nil {
		t.Fatalf("expected warning not error, got %v", err)
	}
	if warnedID != "step-2" {
		t.Errorf("warn context = %q, want step-2", warnedID)
	}
	if warnedPct != 85 {
		t.Errorf("warn pct = %.1f, want 85.0", warnedPct)
	}

	warnedID = ""
	if err := CheckBudget(700, 1000, "step-3", 0.8, warn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warnedID != "" {
		t.Error("no warning expected below threshold")
	}
}

// TestBudgetTrackerConcurrentAdds verifies lost-update-free accounting
// across concurrent branches
func TestBudgetTrackerConcurrentAdds(t *testing.T) {
	tracker := NewBudgetTracker(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = tracker.Add(1, "branch")
			}
		}()
	}
	wg.Wait()

	if got := tracker.Cumulative(); got != 2000 {
		t.Errorf("Cumulative = %d, want 2000", got)
	}
}

// TestBudgetTrackerEnforcesCeiling verifies the tracker fails the run at
// the ceiling even when every unit individually succeeded
func TestBudgetTrackerEnforcesCeiling(t *testing.T) {
	tracker := NewBudgetTracker(&spec.BudgetConfig{MaxTokens: 1000}, nil)

	if err := tracker.Add(400, "b1"); err != nil {
		t.Fatalf("b1 should pass: %v", err)
	}
	if err := tracker.Add(400, "b2"); err != nil {
		t.Fatalf("b2 should pass: %v", err)
	}
	err := tracker.Add(400, "b3")
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("b3 should exceed (cumulative 1200 >= 1000), got %v", err)
	}

	// Monotone: later checks keep failing.
	if err := tracker.Check("b3"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("Check after exceeding should still fail, got %v", err)
	}
}

// TestBudgetTrackerWarnsOnce verifies a single warning per run
func TestBudgetTrackerWarnsOnce(t *testing.T) {
	warns := 0
	tracker := NewBudgetTracker(&spec.BudgetConfig{MaxTokens: 1000}, func(string, float64) { warns++ })

	_ = tracker.Add(850, "s1")
	_ = tracker.Add(50, "s2")
	if warns != 1 {
		t.Errorf("warns = %d, want 1", warns)
	}
}

// TestBudgetTrackerSeedCarriesSpentTokens verifies that usage restored
// from a persisted session counts against the ceiling
func TestBudgetTrackerSeedCarriesSpentTokens(t *testing.T) {
	tracker := NewBudgetTracker(&spec.BudgetConfig{MaxTokens: 1000}, nil)
	tracker.Seed(600)

	if got := tracker.Cumulative(); got != 600 {
		t.Errorf("Cumulative after seed = %d, want 600", got)
	}
	if err := tracker.Add(600, "editor"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded after seed 600 + add 600, got %v", err)
	}

	// Non-positive seeds leave the tracker untouched.
	fresh := NewBudgetTracker(&spec.BudgetConfig{MaxTokens: 1000}, nil)
	fresh.Seed(0)
	fresh.Seed(-5)
	if got := fresh.Cumulative(); got != 0 {
		t.Errorf("Cumulative after zero seeds = %d, want 0", got)
	}
}

// TestEstimateTokens verifies the word-count heuristic
func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		output   string
		expected int
	}{
		{"empty", "", "", 0},
		{"input only", "three small words", "", 3},
		{"both sides", "one two", "three four five", 5},
		{"extra whitespace", "  a \n b\t c  ", "d", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.input, tt.output); got != tt.expected {
				t.Errorf("EstimateTokens = %d, want %d", got, tt.expected)
			}
		})
	}
}
