package altallele

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xrefsync/internal/xrefstore"
)

func TestBuildGroups_UsesRefToAltDirectly(t *testing.T) {
	hashes := xrefstore.AltAlleleHashes{
		AltToRef: map[int]int{42: 7, 43: 7},
		RefToAlt: map[int][]int{7: {42, 43}},
	}

	groups := BuildGroups(hashes, nil, func(geneID int) bool { return true })

	assert.Len(t, groups, 1)
	assert.Equal(t, 7, groups[0].ReferenceGeneID)
	assert.ElementsMatch(t, []int{42, 43}, groups[0].AltGeneIDs)
}

func TestBuildGroups_ExplicitReferenceOverride(t *testing.T) {
	hashes := xrefstore.AltAlleleHashes{RefToAlt: map[int][]int{7: {42}}}
	explicit := map[int]int{7: 99}

	groups := BuildGroups(hashes, explicit, func(geneID int) bool { return false })

	assert.Equal(t, 99, groups[0].ReferenceGeneID)
	assert.Contains(t, groups[0].AltGeneIDs, 7, "the original staging ref becomes a non-reference member")
}

func TestIncorporateLRG_AttachesToExistingGroup(t *testing.T) {
	groups := []Group{{ReferenceGeneID: 7, AltGeneIDs: []int{42}}}
	lrg := map[int]int{900: 7}

	out := IncorporateLRG(groups, lrg)

	assert.Len(t, out, 1)
	assert.Contains(t, out[0].AltGeneIDs, 900)
}

func TestIncorporateLRG_CreatesNewGroupWhenUnseen(t *testing.T) {
	groups := []Group{{ReferenceGeneID: 7, AltGeneIDs: []int{42}}}
	lrg := map[int]int{900: 123}

	out := IncorporateLRG(groups, lrg)

	assert.Len(t, out, 2)
	assert.Equal(t, 123, out[1].ReferenceGeneID)
	assert.Equal(t, []int{900}, out[1].AltGeneIDs)
}
