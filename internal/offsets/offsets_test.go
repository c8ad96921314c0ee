package offsets

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"xrefsync/internal/xrefstore"
)

func TestAllocator_PromoteIDs(t *testing.T) {
	a := NewAllocator(xrefstore.Offsets{XrefOffset: 1000, ObjectXrefOffset: 5000})

	assert.Equal(t, 1042, a.PromoteXrefID(42))
	assert.Equal(t, 5007, a.PromoteObjectXrefID(7))
}

func TestAllocator_IsBeyondOffset(t *testing.T) {
	a := NewAllocator(xrefstore.Offsets{XrefOffset: 1000})

	assert.False(t, a.IsBeyondOffset(1000), "exactly at the offset is a pre-existing row, not a fresh one")
	assert.True(t, a.IsBeyondOffset(1001))
}
