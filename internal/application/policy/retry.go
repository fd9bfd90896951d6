package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThomasRohde/strands-cli-sub001/internal/application/port/output"
	"github.com/ThomasRohde/strands-cli-sub001/internal/domain/model/spec"
)

// ErrInvalidPolicy is returned for failure policies that fail validation.
// It is never retried.
var ErrInvalidPolicy = errors.New("invalid failure policy")

// RetryPolicy is the resolved retry configuration for agent invocations.
type RetryPolicy struct {
	MaxAttempts int
	WaitMin     time.Duration
	WaitMax     time.Duration
}

// Engine defaults applied when the failure policy leaves fields unset.
const (
	DefaultMaxAttempts = 3
	DefaultWaitMin     = 1 * time.Second
	DefaultWaitMax     = 60 * time.Second
)

// ResolveRetryPolicy derives a RetryPolicy from a specification failure
// policy. Pure function: maxAttempts = retries + 1, retries must be >= 0
// and waitMin <= waitMax.
func ResolveRetryPolicy(fp *spec.FailurePolicy) (RetryPolicy, error) {
	pol := RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		WaitMin:     DefaultWaitMin,
		WaitMax:     DefaultWaitMax,
	}
	if fp == nil {
		return pol, nil
	}

	if fp.Retries != nil {
		if *fp.Retries < 0 {
			return RetryPolicy{}, fmt.Errorf("retries must be >= 0, got %d: %w", *fp.Retries, ErrInvalidPolicy)
		}
		pol.MaxAttempts = *fp.Retries + 1
	}
	if fp.WaitMinSec != nil {
		if *fp.WaitMinSec < 0 {
			return RetryPolicy{}, fmt.Errorf("wait_min must be >= 0, got %d: %w", *fp.WaitMinSec, ErrInvalidPolicy)
		}
		pol.WaitMin = time.Duration(*fp.WaitMinSec) * time.Second
	}
	if fp.WaitMaxSec != nil {
		if *fp.WaitMaxSec < 0 {
			return RetryPolicy{}, fmt.Errorf("wait_max must be >= 0, got %d: %w", *fp.WaitMaxSec, ErrInvalidPolicy)
		}
		pol.WaitMax = time.Duration(*fp.WaitMaxSec) * time.Second
	}
	if pol.WaitMin > pol.WaitMax {
		return RetryPolicy{}, fmt.Errorf("wait_min %s exceeds wait_max %s: %w", pol.WaitMin, pol.WaitMax, ErrInvalidPolicy)
	}
	return pol, nil
}

// InvokeWithRetry calls the agent gateway, retrying transient failures
// (timeout, connection) with exponential backoff bounded by
// [WaitMin, WaitMax]. Non-transient failures propagate immediately.
// This is the sole retry boundary; executors never retry on their own.
func InvokeWithRetry(ctx context.Context, gw output.AgentGateway, req output.AgentRequest, pol RetryPolicy) (*output.AgentResponse, error) {
	attempts := pol.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := gw.Invoke(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !output.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		if err := sleepBackoff(ctx, backoffFor(attempt, pol)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("agent %s failed after %d attempts: %w", req.AgentID, attempts, lastErr)
}

// backoffFor computes the bounded exponential backoff for an attempt
func backoffFor(attempt int, pol RetryPolicy) time.Duration {
	wait := pol.WaitMin
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= pol.WaitMax {
			return pol.WaitMax
		}
	}
	if wait > pol.WaitMax {
		return pol.WaitMax
	}
	return wait
}

// sleepBackoff waits for the backoff duration or until the context ends
func sleepBackoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
