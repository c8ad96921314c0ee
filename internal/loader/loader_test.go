package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrefsync/config"
	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefmodel"
	"xrefsync/internal/xrefstore"
)

// fakeStagingStore embeds the interface so tests only implement the two
// process-status methods the status machine calls; resumePoint reads
// LatestProcessStatus through it.
type fakeStagingStore struct {
	xrefstore.StagingStore
	latest xrefmodel.ProcessStatus
	hasAny bool
}

func (f *fakeStagingStore) LatestProcessStatus(ctx context.Context) (xrefmodel.ProcessStatus, bool, error) {
	return f.latest, f.hasAny, nil
}

func (f *fakeStagingStore) InsertProcessStatus(ctx context.Context, status string) error {
	f.latest = xrefmodel.ProcessStatus{Status: status}
	f.hasAny = true
	return nil
}

func newTestLoader(staging xrefstore.StagingStore) *Loader {
	cfg := &config.LoaderConfig{SpeciesID: 1}
	return New(staging, nil, cfg, telemetry.NewDefaultLogger(), telemetry.NewInMemoryMetrics())
}

func TestPhaseIndex_OrderingIsStable(t *testing.T) {
	assert.Less(t, phaseIndex(PhaseReset), phaseIndex(PhasePurge))
	assert.Less(t, phaseIndex(PhasePurge), phaseIndex(PhaseOffsets))
	assert.Less(t, phaseIndex(PhaseMappedLoad), phaseIndex(PhaseUnmappedLoad))
	assert.Less(t, phaseIndex(PhaseAltAllele), phaseIndex(PhaseBiomart))
	assert.Less(t, phaseIndex(PhaseBiomart), phaseIndex(PhaseQuality))
	assert.Equal(t, -1, phaseIndex(Phase("not-a-real-phase")))
}

func TestNewRunState_AssignsUniqueRunID(t *testing.T) {
	a := newRunState()
	b := newRunState()
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunState_WarnCapsAtTen(t *testing.T) {
	run := newRunState()
	for i := 0; i < 15; i++ {
		run.warn("warning")
	}
	assert.Len(t, run.Warnings, 10)
}

func TestResumePoint_FreshRunStartsAtReset(t *testing.T) {
	l := newTestLoader(&fakeStagingStore{})
	phase, err := l.resumePoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseReset, phase)
}

func TestResumePoint_PriorCompletedRunStartsOverFromTop(t *testing.T) {
	fake := &fakeStagingStore{latest: xrefmodel.ProcessStatus{Status: xrefmodel.StatusCoreLoaded}, hasAny: true}
	l := newTestLoader(fake)

	phase, err := l.resumePoint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseReset, phase, "a new batch always starts at reset; dumped flags handle idempotency")
}
