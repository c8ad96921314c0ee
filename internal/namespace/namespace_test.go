package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrefsync/internal/apperr"
)

func TestNewResolver_ClassifiesTransferableSuppressedRejected(t *testing.T) {
	staging := []string{"RefSeq_dna_predicted", "OldStuff_notransfer", "TotallyUnknownSource"}
	core := map[string]int{"RefSeq_dna_predicted": 7}

	_, err := NewResolver(staging, core, nil)
	require.Error(t, err)

	ae, ok := apperr.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConfig, ae.Kind)
	assert.Contains(t, ae.Message, "TotallyUnknownSource")
}

func TestNewResolver_AllResolved(t *testing.T) {
	staging := []string{"RefSeq_dna_predicted", "HGNC", "Legacy_notransfer"}
	core := map[string]int{"RefSeq_dna_predicted": 7, "HGNC": 12}
	sourcesInRun := map[string]bool{"HGNC": true}

	r, err := NewResolver(staging, core, sourcesInRun)
	require.NoError(t, err)

	id, ok := r.Transferable("RefSeq_dna_predicted")
	assert.True(t, ok)
	assert.Equal(t, 7, id)

	assert.True(t, r.Suppressed("Legacy_notransfer"))
	_, ok = r.Transferable("Legacy_notransfer")
	assert.False(t, ok)

	assert.True(t, r.GeneSpecific("HGNC"))
	assert.False(t, r.GeneSpecific("MGI"), "MGI is curated but absent from sourcesInRun")
}

func TestNewResolver_TransferableNames(t *testing.T) {
	staging := []string{"A", "B"}
	core := map[string]int{"A": 1, "B": 2}
	r, err := NewResolver(staging, core, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, r.TransferableNames())
}
