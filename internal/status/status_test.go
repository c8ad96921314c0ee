package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrefsync/internal/xrefmodel"
)

type fakeWriter struct {
	appended []string
	latest   xrefmodel.ProcessStatus
	hasAny   bool
}

func (f *fakeWriter) InsertProcessStatus(ctx context.Context, status string) error {
	f.appended = append(f.appended, status)
	f.latest = xrefmodel.ProcessStatus{Status: status}
	f.hasAny = true
	return nil
}

func (f *fakeWriter) LatestProcessStatus(ctx context.Context) (xrefmodel.ProcessStatus, bool, error) {
	return f.latest, f.hasAny, nil
}

func TestMachine_AppendAndLatest(t *testing.T) {
	w := &fakeWriter{}
	m := NewMachine(w)
	ctx := context.Background()

	_, ok, err := m.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no entries yet")

	require.NoError(t, m.Append(ctx, ParsingFinished))
	require.NoError(t, m.Append(ctx, MappingFinished))

	latest, ok, err := m.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MappingFinished, latest)
}

func TestCompleted_EarlierPhaseImpliedByLaterOne(t *testing.T) {
	assert.True(t, Completed(MappingFinished, ParsingFinished))
	assert.True(t, Completed(MappingFinished, MappingFinished))
	assert.False(t, Completed(ParsingFinished, MappingFinished))
	assert.False(t, Completed("garbage", ParsingFinished))
}

func TestMachine_RevertToParsingFinished(t *testing.T) {
	w := &fakeWriter{}
	m := NewMachine(w)
	ctx := context.Background()

	var cleared bool
	err := m.RevertToParsingFinished(ctx, func(ctx context.Context) error {
		cleared = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Equal(t, []string{ParsingFinished}, w.appended)
}
