package resilience

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/logship"
)

// Classifier decides whether a failed operation is worth retrying.
type Classifier func(err error) bool

// ExecutorConfig configures a retry executor.
type ExecutorConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff computes the delay between attempts.
	Backoff *Backoff
	// Breaker gates each individual attempt. Optional.
	Breaker *Breaker
	// Classify decides whether an error is retryable. Defaults to
	// DefaultClassifier.
	Classify Classifier
	// OnRetry is invoked before each retry sleep, with the attempt that just
	// failed. Optional.
	OnRetry func(attempt int, err error)
}

// Executor wraps a fallible operation with classification-aware retry.
// Attempts are sequential, never parallel, for a single logical operation.
// The executor holds no shared state across calls; it is safe for concurrent
// use.
type Executor struct {
	config ExecutorConfig

	// sleep waits for the given delay or until the context is done.
	// Overridable in tests.
	sleep func(ctx context.Context, delay time.Duration) error
}

// NewExecutor creates an executor. MaxAttempts below 1 is treated as 1.
func NewExecutor(config ExecutorConfig) *Executor {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	if config.Classify == nil {
		config.Classify = DefaultClassifier
	}

	return &Executor{
		config: config,
		sleep:  sleepContext,
	}
}

// Execute invokes op, retrying on retryable failures up to the attempt
// budget. Each attempt consults the breaker first: an open breaker
// short-circuits the whole sequence with ErrCircuitOpen, without a backoff
// sleep. Terminal errors surface on first occurrence. A server-supplied
// retry hint on the error overrides the computed backoff for the next
// attempt only.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if e.config.Breaker != nil {
			err := e.config.Breaker.Allow()
			if err != nil {
				return err
			}
		}

		err := op(ctx)
		if err == nil {
			if e.config.Breaker != nil {
				e.config.Breaker.OnSuccess()
			}

			return nil
		}

		if e.config.Breaker != nil {
			e.config.Breaker.OnFailure()
		}

		if !e.config.Classify(err) {
			return err
		}

		lastErr = err

		if attempt == e.config.MaxAttempts {
			break
		}

		if e.config.OnRetry != nil {
			e.config.OnRetry(attempt, err)
		}

		delay := logship.RetryAfterHint(err)
		if delay <= 0 {
			delay = e.config.Backoff.Delay(attempt)
		}

		err = e.sleep(ctx, delay)
		if err != nil {
			return err
		}
	}

	return ewrap.Wrapf(lastErr, "retry attempts exhausted after %d tries", e.config.MaxAttempts)
}

// sleepContext blocks for the delay, returning early with the context's error
// when it is canceled.
func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
