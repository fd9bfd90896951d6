package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

func intPtr(v int) *int { return &v }

// TestResolveRetryPolicyDefaults verifies engine defaults
func TestResolveRetryPolicyDefaults(t *testing.T) {
	pol, err := ResolveRetryPolicy(nil)
	if err != nil {
		t.Fatalf("ResolveRetryPolicy(nil) failed: %v", err)
	}
	if pol.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", pol.MaxAttempts)
	}
	if pol.WaitMin != time.Second {
		t.Errorf("WaitMin = %s, want 1s", pol.WaitMin)
	}
	if pol.WaitMax != 60*time.Second {
		t.Errorf("WaitMax = %s, want 60s", pol.WaitMax)
	}
}

// TestResolveRetryPolicyMaxAttempts verifies maxAttempts = retries + 1
func TestResolveRetryPolicyMaxAttempts(t *testing.T) {
	tests := []struct {
		retries  int
		expected int
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{5, 6},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("retries=%d", tt.retries), func(t *testing.T) {
			pol, err := ResolveRetryPolicy(&spec.FailurePolicy{Retries: intPtr(tt.retries)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pol.MaxAttempts != tt.expected {
				t.Errorf("MaxAttempts = %d, want %d", pol.MaxAttempts, tt.expected)
			}
		})
	}
}

// TestResolveRetryPolicyInvalid verifies validation failures
func TestResolveRetryPolicyInvalid(t *testing.T) {
	tests := []struct {
		name string
		fp   *spec.FailurePolicy
	}{
		{"negative retries", &spec.FailurePolicy{Retries: intPtr(-1)}},
		{"negative wait_min", &spec.FailurePolicy{WaitMinSec: intPtr(-2)}},
		{"wait_min above wait_max", &spec.FailurePolicy{WaitMinSec: intPtr(30), WaitMaxSec: intPtr(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveRetryPolicy(tt.fp)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

// scriptedGateway returns canned results per attempt
type scriptedGateway struct {
	calls   int
	results []error
	output  string
}

func (g *scriptedGateway) Invoke(ctx context.Context, req output.AgentRequest) (*output.AgentResponse, error) {
	idx := g.calls
	g.calls++
	if idx < len(g.results) && g.results[idx] != nil {
		return nil, g.results[idx]
	}
	return &output.AgentResponse{Output: g.output, TokensUsed: 10}, nil
}

func (g *scriptedGateway) HealthCheck(ctx context.Context) error { return nil }

// TestInvokeWithRetryTransient verifies transient failures are retried up
// to maxAttempts
func TestInvokeWithRetryTransient(t *testing.T) {
	gw := &scriptedGateway{
		results: []error{output.ErrInvocationTimeout, output.ErrConnectionFailure, nil},
		output:  "ok",
	}
	pol := RetryPolicy{MaxAttempts: 3, WaitMin: time.Millisecond, WaitMax: 2 * time.Millisecond}

	resp, err := InvokeWithRetry(context.Background(), gw, output.AgentRequest{AgentID: "a"}, pol)
	if err != nil {
		t.Fatalf("InvokeWithRetry failed: %v", err)
	}
	if resp.Output != "ok" {
		t.Errorf("Output = %q, want ok", resp.Output)
	}
	if gw.calls != 3 {
		t.Errorf("calls = %d, want 3", gw.calls)
	}
}

// TestInvokeWithRetryExhaustion verifies the last transient error surfaces
// after retries are exhausted
func TestInvokeWithRetryExhaustion(t *testing.T) {
	gw := &scriptedGateway{
		results: []error{output.ErrInvocationTimeout, output.ErrInvocationTimeout},
	}
	pol := RetryPolicy{MaxAttempts: 2, WaitMin: time.Millisecond, WaitMax: time.Millisecond}

	_, err := InvokeWithRetry(context.Background(), gw, output.AgentRequest{AgentID: "a"}, pol)
	if !errors.Is(err, output.ErrInvocationTimeout) {
		t.Errorf("expected wrapped timeout error, got %v", err)
	}
	if gw.calls != 2 {
		t.Errorf("calls = %d, want 2", gw.calls)
	}
}

// TestInvokeWithRetryFatal verifies non-transient failures propagate
// without retry
func TestInvokeWithRetryFatal(t *testing.T) {
	fatal := errors.New("model refused the request")
	gw := &scriptedGateway{results: []error{fatal}}
	pol := RetryPolicy{MaxAttempts: 5, WaitMin: time.Millisecond, WaitMax: time.Millisecond}

	_, err := InvokeWithRetry(context.Background(), gw, output.AgentRequest{AgentID: "a"}, pol)
	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if gw.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on fatal)", gw.calls)
	}
}

// TestInvokeWithRetryCancelled verifies a cancelled context stops retries
func TestInvokeWithRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := &scriptedGateway{}
	_, err := InvokeWithRetry(ctx, gw, output.AgentRequest{AgentID: "a"}, RetryPolicy{MaxAttempts: 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if gw.calls != 0 {
		t.Errorf("calls = %d, want 0", gw.calls)
	}
}

// TestBackoffBounds verifies exponential backoff stays within [min, max]
func TestBackoffBounds(t *testing.T) {
	pol := RetryPolicy{WaitMin: time.Second, WaitMax: 5 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second}, // capped
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := backoffFor(tt.attempt, pol); got != tt.expected {
			t.Errorf("backoffFor(%d) = %s, want %s", tt.attempt, got, tt.expected)
		}
	}
}
