package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger_WritesOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf)

	logger.Info("phase complete", String("phase", "mapped_load"), Int("count", 42))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "phase complete", entry["message"])
	assert.Equal(t, "info", entry["level"])
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "mapped_load", fields["phase"])
}

func TestStructuredLogger_FiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelWarn, &buf)

	logger.Info("should be suppressed")
	logger.Debug("should be suppressed too")
	assert.Empty(t, buf.String())

	logger.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestStructuredLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf)

	logger.Error("phase failed", assertError("connection refused"))

	assert.Contains(t, buf.String(), "connection refused")
}

func TestStructuredLogger_With_MergesBaseFieldsIntoEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LogLevelInfo, &buf).With(String("run_id", "abc-123"))

	logger.Info("phase complete")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "abc-123", fields["run_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("nonsense"))
}

type assertError string

func (e assertError) Error() string { return strings.TrimSpace(string(e)) }
