package xrefmodel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateDescription(t *testing.T) {
	short := "a short description"
	assert.Equal(t, short, TruncateDescription(short))

	long := strings.Repeat("x", 300)
	truncated := TruncateDescription(long)
	assert.Len(t, truncated, descriptionMaxLen)
	assert.True(t, strings.HasSuffix(truncated, truncationSuffix))
}

func TestTruncateDescription_ExactBoundary(t *testing.T) {
	exact := strings.Repeat("y", descriptionMaxLen)
	assert.Equal(t, exact, TruncateDescription(exact))
}

func TestInfoType_Valid(t *testing.T) {
	cases := []struct {
		name string
		t    InfoType
		want bool
	}{
		{"direct", InfoTypeDirect, true},
		{"dependent", InfoTypeDependent, true},
		{"unknown is accepted", InfoTypeUnknown, true},
		{"garbage", InfoType("NOT_A_TYPE"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.t.Valid())
		})
	}
}

func TestObjectType_Valid(t *testing.T) {
	assert.True(t, ObjectTypeGene.Valid())
	assert.True(t, ObjectTypeTranscript.Valid())
	assert.True(t, ObjectTypeTranslation.Valid())
	assert.False(t, ObjectType("Exon").Valid())
}

func TestXref_Key(t *testing.T) {
	a := Xref{Accession: "NM04560", ExternalDBID: 7, InfoType: InfoTypeDirect, InfoText: "", Version: "1"}
	b := Xref{Accession: "NM04560", ExternalDBID: 7, InfoType: InfoTypeDirect, InfoText: "", Version: "1"}
	c := Xref{Accession: "NM04560", ExternalDBID: 7, InfoType: InfoTypeDirect, InfoText: "", Version: "2"}

	assert.Equal(t, a.Key(), b.Key(), "identical key fields must produce identical keys")
	assert.NotEqual(t, a.Key(), c.Key(), "version is part of the core uniqueness key")
}
