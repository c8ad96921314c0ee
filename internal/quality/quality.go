// Package quality implements the post-condition audits run at the end of
// a Loader update.
package quality

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/apperr"
	"xrefsync/internal/xrefstore"
)

// Checker runs the two post-condition probes a clean core load must pass.
type Checker struct {
	core xrefstore.CoreStore
}

func NewChecker(core xrefstore.CoreStore) *Checker {
	return &Checker{core: core}
}

// CheckUnlinkedEntries is invariants 1-2: any object_xref without a
// matching xref, or any identity_xref without a matching object_xref.
// Non-empty is fatal.
func (c *Checker) CheckUnlinkedEntries(ctx context.Context, tx pgx.Tx) error {
	count, err := c.core.UnlinkedEntries(ctx, tx)
	if err != nil {
		return fmt.Errorf("unlinked entries check: %w", err)
	}
	if count > 0 {
		return apperr.NewIntegrityError(apperr.CodeUnlinkedEntries,
			fmt.Sprintf("%d unlinked object_xref/identity_xref rows found", count), nil)
	}
	return nil
}

// CheckSourceTypes is invariant 4: after BiomartNormaliser, every source
// must map to exactly one ensembl_object_type. Non-empty at commit time is
// fatal.
func (c *Checker) CheckSourceTypes(ctx context.Context, tx pgx.Tx) error {
	duplicated, err := c.core.SourcesWithMultipleTypes(ctx, tx)
	if err != nil {
		return fmt.Errorf("source type check: %w", err)
	}
	if len(duplicated) > 0 {
		return apperr.NewIntegrityError(apperr.CodeDuplicateTypeSource,
			fmt.Sprintf("%d sources still bound to more than one ensembl_object_type: %v", len(duplicated), duplicated), nil)
	}
	return nil
}

// RunAll runs both probes, returning the first failure.
func (c *Checker) RunAll(ctx context.Context, tx pgx.Tx) error {
	if err := c.CheckUnlinkedEntries(ctx, tx); err != nil {
		return err
	}
	return c.CheckSourceTypes(ctx, tx)
}
