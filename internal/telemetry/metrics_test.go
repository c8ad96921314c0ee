package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryMetrics_IncrementCounter_Accumulates(t *testing.T) {
	m := NewInMemoryMetrics()
	m.IncrementCounter(MetricXrefsLoaded, 5)
	m.IncrementCounter(MetricXrefsLoaded, 3)

	snap := m.Snapshot()
	assert.Equal(t, int64(8), snap.Counters[MetricXrefsLoaded])
}

func TestInMemoryMetrics_RecordDuration_TracksMinMaxAverage(t *testing.T) {
	m := NewInMemoryMetrics()
	m.RecordDuration(MetricPhaseDuration, 10*time.Millisecond)
	m.RecordDuration(MetricPhaseDuration, 30*time.Millisecond)

	snap := m.Snapshot()
	stats := snap.Durations[MetricPhaseDuration]
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
	assert.Equal(t, 20*time.Millisecond, stats.Average)
}

func TestInMemoryMetrics_Snapshot_IsACopy(t *testing.T) {
	m := NewInMemoryMetrics()
	m.IncrementCounter(MetricXrefsUnmapped, 1)

	snap := m.Snapshot()
	snap.Counters[MetricXrefsUnmapped] = 999

	again := m.Snapshot()
	assert.Equal(t, int64(1), again.Counters[MetricXrefsUnmapped])
}
