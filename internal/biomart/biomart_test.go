package biomart

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xrefsync/internal/xrefmodel"
)

func TestTargetType_GenePrecedence(t *testing.T) {
	got := TargetType("RefSeq_dna_predicted", xrefmodel.ObjectTypeGene, xrefmodel.ObjectTypeTranscript)
	assert.Equal(t, xrefmodel.ObjectTypeGene, got)
}

func TestTargetType_TranslationOverTranscript(t *testing.T) {
	got := TargetType("UniProt", xrefmodel.ObjectTypeTranslation, xrefmodel.ObjectTypeTranscript)
	assert.Equal(t, xrefmodel.ObjectTypeTranslation, got)
}

func TestTargetType_GOForcedToTranslation(t *testing.T) {
	got := TargetType("GO", xrefmodel.ObjectTypeGene, xrefmodel.ObjectTypeTranscript)
	assert.Equal(t, xrefmodel.ObjectTypeTranslation, got)

	got = TargetType("goslim_goa", xrefmodel.ObjectTypeTranscript, xrefmodel.ObjectTypeTranslation)
	assert.Equal(t, xrefmodel.ObjectTypeTranslation, got)
}

func TestTargetType_NeitherGeneNorTranslation(t *testing.T) {
	got := TargetType("SomeSource", xrefmodel.ObjectTypeTranscript, xrefmodel.ObjectTypeTranscript)
	assert.Equal(t, xrefmodel.ObjectTypeTranscript, got)
}
