package xrefstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceIterator_YieldsInOrderThenExhausts(t *testing.T) {
	it := newSliceIterator([]int{1, 2, 3})
	ctx := context.Background()

	var got []int
	for {
		v, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)

	// exhausted iterator keeps returning false, not an error
	_, ok, err := it.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSliceIterator_Empty(t *testing.T) {
	it := newSliceIterator[string](nil)
	_, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, it.Close())
}

func TestSliceIterator_RespectsCancellation(t *testing.T) {
	it := newSliceIterator([]int{1, 2, 3})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := it.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}
