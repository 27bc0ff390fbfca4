package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdfrag/internal/contextutil"
)

// RetryPolicy controls how a failing step is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per step. Values below 1 mean 1.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per attempt.
	Backoff time.Duration
	// MaxBackoff caps the delay. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy retries four times starting at one second.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 4,
	Backoff:     time.Second,
	MaxBackoff:  30 * time.Second,
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// delay returns the wait before attempt n (n >= 2).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.Backoff
	for i := 2; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// Steps is the step executor handed to a running function.
// A nil *Steps runs every step exactly once without persistence.
type Steps struct {
	runID  string
	store  StepStore
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	// onStage is called with the step name before it executes.
	onStage func(ctx context.Context, name string)
}

// NewSteps creates a step executor for one run.
func NewSteps(runID string, store StepStore, policy RetryPolicy) *Steps {
	return &Steps{
		runID:  runID,
		store:  store,
		policy: policy,
		sleep:  sleepContext,
	}
}

// RunID returns the id of the run the steps belong to.
func (s *Steps) RunID() string {
	if s == nil {
		return ""
	}
	return s.runID
}

// Step runs fn as the named durable unit of work.
// If the run already completed a step with this name, the saved output is
// decoded and returned without calling fn. Otherwise fn is attempted up to
// the retry policy's limit while its error is retryable, and the JSON-encoded
// result is saved before it is returned.
func Step[T any](ctx context.Context, s *Steps, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if s == nil {
		return fn(ctx)
	}
	logger := contextutil.LoggerFromContext(ctx)

	saved, ok, err := s.store.LoadStep(ctx, s.runID, name)
	if err != nil {
		return zero, fmt.Errorf("failed to load step %s: %w", name, err)
	}
	if ok {
		var out T
		if err := json.Unmarshal(saved, &out); err != nil {
			return zero, fmt.Errorf("failed to decode saved step %s: %w", name, err)
		}
		logger.DebugContext(ctx, "step already completed, using saved output", "step", name)
		return out, nil
	}

	if s.onStage != nil {
		s.onStage(ctx, name)
	}

	var out T
	attempts := s.policy.attempts()
	for attempt := 1; ; attempt++ {
		out, err = fn(ctx)
		if err == nil {
			break
		}
		if attempt >= attempts || !IsRetryable(err) {
			logger.WarnContext(ctx, "step failed", "step", name, "attempt", attempt, "error", err)
			return zero, err
		}
		wait := s.policy.delay(attempt + 1)
		logger.WarnContext(ctx, "step failed, retrying", "step", name, "attempt", attempt, "backoff", wait, "error", err)
		if err := s.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("failed to encode step %s output: %w", name, err)
	}
	if err := s.store.SaveStep(ctx, s.runID, name, encoded); err != nil {
		return zero, fmt.Errorf("failed to save step %s: %w", name, err)
	}
	logger.DebugContext(ctx, "step completed", "step", name)
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
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
