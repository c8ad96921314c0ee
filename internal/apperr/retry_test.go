package apperr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: 0, MaxDelay: 0, BackoffFactor: 1, Jitter: false})

	attempts := 0
	err := r.Execute(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return NewTransientIOError(CodeConnectionDropped, "dropped", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryer_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 3, BaseDelay: 0, MaxDelay: 0, BackoffFactor: 1, Jitter: false})

	attempts := 0
	err := r.Execute(context.Background(), func() error {
		attempts++
		return NewConfigError(CodeMissingDBParam, "missing", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryer_GivesUpAfterMaxRetries(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 2, BaseDelay: 0, MaxDelay: 0, BackoffFactor: 1, Jitter: false})

	attempts := 0
	err := r.Execute(context.Background(), func() error {
		attempts++
		return NewTransientIOError(CodeConnectionDropped, "dropped", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts, "initial attempt plus MaxRetries retries")
}

func TestRetryer_RespectsContextCancellation(t *testing.T) {
	r := NewRetryer(&RetryConfig{MaxRetries: 5, BaseDelay: 0, MaxDelay: 0, BackoffFactor: 1, Jitter: false})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := r.Execute(ctx, func() error {
		attempts++
		return NewTransientIOError(CodeConnectionDropped, "dropped", nil)
	})

	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}
