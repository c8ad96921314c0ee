package reason

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrefsync/internal/xrefstore"
)

func TestBuild_ReusesExistingReasonViaFind(t *testing.T) {
	var addCalls int
	find := func(ctx context.Context, tx pgx.Tx, likePattern string) (int, bool, error) {
		return 55, true, nil // every lookup "already exists"
	}
	add := func(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error) {
		addCalls++
		return 0, nil
	}

	reg, err := Build(context.Background(), nil, find, add, nil)
	require.NoError(t, err)
	assert.Zero(t, addCalls, "find hit should never call add")

	id, ok := reg.ID("NO_STABLE_ID")
	require.True(t, ok)
	assert.Equal(t, 55, id)
}

func TestBuild_InsertsWhenMissingAndBuildsThresholds(t *testing.T) {
	nextID := 1
	find := func(ctx context.Context, tx pgx.Tx, likePattern string) (int, bool, error) {
		return 0, false, nil
	}
	add := func(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error) {
		id := nextID
		nextID++
		return id, nil
	}

	thresholds := []xrefstore.ReasonThresholds{
		{SourceID: 7, Summary: "Failed to match at thresholds", Description: "Unable to match at the thresholds of 90% for the query or 90% for the target"},
	}

	reg, err := Build(context.Background(), nil, find, add, thresholds)
	require.NoError(t, err)

	_, ok := reg.ID("NO_STABLE_ID")
	assert.True(t, ok)

	id, ok := reg.ThresholdID(7)
	assert.True(t, ok)
	assert.Greater(t, id, 0)

	_, ok = reg.ThresholdID(999)
	assert.False(t, ok)
}
