package telemetry

import (
	"sync"
	"time"
)

// MetricsService records the counters and durations a Loader run produces.
// Trimmed to counters and a duration histogram — no gauges/tags machinery
// the Loader has no use for.
type MetricsService interface {
	IncrementCounter(name string, delta int64)
	RecordDuration(name string, d time.Duration)
	Snapshot() MetricsSnapshot
}

// MetricsSnapshot is a point-in-time read of all recorded metrics.
type MetricsSnapshot struct {
	Counters  map[string]int64
	Durations map[string]DurationStats
}

// DurationStats summarizes a named histogram.
type DurationStats struct {
	Count   int64
	Sum     time.Duration
	Min     time.Duration
	Max     time.Duration
	Average time.Duration
}

// InMemoryMetrics is the only MetricsService implementation; a Loader run is
// a single process with no need for a remote metrics sink.
type InMemoryMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	durations  map[string]*DurationStats
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:  make(map[string]int64),
		durations: make(map[string]*DurationStats),
	}
}

func (m *InMemoryMetrics) IncrementCounter(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

func (m *InMemoryMetrics) RecordDuration(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.durations[name]
	if !ok {
		s = &DurationStats{Min: d, Max: d}
		m.durations[name] = s
	}
	s.Count++
	s.Sum += d
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Average = s.Sum / time.Duration(s.Count)
}

func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Counters:  make(map[string]int64, len(m.counters)),
		Durations: make(map[string]DurationStats, len(m.durations)),
	}
	for k, v := range m.counters {
		snap.Counters[k] = v
	}
	for k, v := range m.durations {
		snap.Durations[k] = *v
	}
	return snap
}

// Well-known metric names emitted by the Loader.
const (
	MetricXrefsLoaded       = "xrefs_loaded_total"
	MetricXrefsUnmapped     = "xrefs_unmapped_total"
	MetricAltAlleleMoved    = "altallele_moved_total"
	MetricAltAlleleCopied   = "altallele_copied_total"
	MetricBiomartCollisions = "biomart_collisions_total"
	MetricPhaseDuration     = "phase_duration"
)
