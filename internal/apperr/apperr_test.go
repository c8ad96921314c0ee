package apperr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorFormatting(t *testing.T) {
	withoutCause := NewConfigError(CodeMissingDBParam, "host is required", nil)
	assert.Equal(t, "MISSING_DB_PARAM: host is required", withoutCause.Error())

	cause := fmt.Errorf("dial tcp: connection refused")
	withCause := NewTransientIOError(CodeConnectionDropped, "staging query failed", cause)
	assert.Contains(t, withCause.Error(), "CONNECTION_DROPPED")
	assert.Contains(t, withCause.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	ae := NewIntegrityError(CodeUnlinkedEntries, "dangling object_xref rows", cause)
	assert.Equal(t, cause, ae.Unwrap())
}

func TestAsAppError_UnwrapsThroughFmtErrorf(t *testing.T) {
	ae := NewIntegrityError(CodeDuplicateTypeSource, "source bound to two object types", nil)
	wrapped := fmt.Errorf("phase quality failed: %w", ae)

	got, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ae, got)
}

func TestAsAppError_FalseForPlainError(t *testing.T) {
	_, ok := AsAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransientIOError(CodeConnectionDropped, "dropped", nil)))
	assert.False(t, IsRetryable(NewConfigError(CodeMissingDBParam, "missing", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}
