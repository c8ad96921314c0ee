package apperr

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff with jitter, narrowed to the
// TransientIO class: a failing phase is not auto-retried (the operator restarts
// the pipeline), so this Retryer is only ever used for idempotent reads
// within a phase (cursor opens), never for upserts with side effects.
type RetryConfig struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig is tuned for a dropped database connection: a handful
// of quick retries, not a long backoff campaign.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Operation is a retryable unit of work.
type Operation func() error

// Retryer executes an Operation, retrying only TransientIOError failures.
type Retryer struct {
	config *RetryConfig
}

func NewRetryer(config *RetryConfig) *Retryer {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retryer{config: config}
}

// Execute runs op, retrying on retryable errors up to MaxRetries times.
func (r *Retryer) Execute(ctx context.Context, op Operation) error {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.delay(attempt)):
			}
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if !IsRetryable(err) {
				break
			}
		}
	}
	return lastErr
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		d += d * 0.1 * (rand.Float64()*2 - 1)
	}
	return time.Duration(d)
}
