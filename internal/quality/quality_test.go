package quality

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrefsync/internal/apperr"
	"xrefsync/internal/xrefstore"
)

// fakeCoreStore embeds the CoreStore interface so the test only needs to
// implement the two probe methods CheckUnlinkedEntries/CheckSourceTypes
// actually call.
type fakeCoreStore struct {
	xrefstore.CoreStore
	unlinked    int
	duplicated  []int
}

func (f *fakeCoreStore) UnlinkedEntries(ctx context.Context, tx pgx.Tx) (int, error) {
	return f.unlinked, nil
}

func (f *fakeCoreStore) SourcesWithMultipleTypes(ctx context.Context, tx pgx.Tx) ([]int, error) {
	return f.duplicated, nil
}

func TestChecker_CheckUnlinkedEntries_Passes(t *testing.T) {
	c := NewChecker(&fakeCoreStore{unlinked: 0})
	assert.NoError(t, c.CheckUnlinkedEntries(context.Background(), nil))
}

func TestChecker_CheckUnlinkedEntries_Fails(t *testing.T) {
	c := NewChecker(&fakeCoreStore{unlinked: 3})
	err := c.CheckUnlinkedEntries(context.Background(), nil)
	require.Error(t, err)

	ae, ok := apperr.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindIntegrity, ae.Kind)
	assert.Equal(t, apperr.CodeUnlinkedEntries, ae.Code)
}

func TestChecker_CheckSourceTypes_Fails(t *testing.T) {
	c := NewChecker(&fakeCoreStore{duplicated: []int{5, 9}})
	err := c.CheckSourceTypes(context.Background(), nil)
	require.Error(t, err)

	ae, ok := apperr.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeDuplicateTypeSource, ae.Code)
}

func TestChecker_RunAll_StopsAtFirstFailure(t *testing.T) {
	c := NewChecker(&fakeCoreStore{unlinked: 1, duplicated: []int{5}})
	err := c.RunAll(context.Background(), nil)
	require.Error(t, err)
	ae, _ := apperr.AsAppError(err)
	assert.Equal(t, apperr.CodeUnlinkedEntries, ae.Code, "unlinked check runs first")
}
