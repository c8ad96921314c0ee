// Package offsets implements OffsetAllocator (C4): post-parse maxima for
// xref_id/object_xref_id and the additive offset arithmetic that lets the
// Loader promote staging ids into the core without collision or
// renumbering.
package offsets

import "xrefsync/internal/xrefstore"

// Allocator computes and holds the pair of offsets for one Update run.
type Allocator struct {
	offsets xrefstore.Offsets
}

// NewAllocator freezes core maxima the caller has already read via the
// CoreStore's ReadOffsets for the duration of one run. Persisting them
// (PersistOffsets) is the caller's responsibility, since it must happen
// inside the same phase transaction as the read.
func NewAllocator(o xrefstore.Offsets) *Allocator {
	return &Allocator{offsets: o}
}

// Offsets returns the frozen (xref_offset, object_xref_offset) pair.
func (a *Allocator) Offsets() xrefstore.Offsets { return a.offsets }

// PromoteXrefID applies the xref offset to a staging id.
func (a *Allocator) PromoteXrefID(stagingID int) int {
	return stagingID + a.offsets.XrefOffset
}

// PromoteObjectXrefID applies the object_xref offset to a staging id.
func (a *Allocator) PromoteObjectXrefID(stagingID int) int {
	return stagingID + a.offsets.ObjectXrefOffset
}

// IsBeyondOffset reports whether a core id is a freshly promoted row from
// this run rather than a pre-existing core row.
func (a *Allocator) IsBeyondOffset(coreXrefID int) bool {
	return coreXrefID > a.offsets.XrefOffset
}
