package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/altallele"
	"xrefsync/internal/biomart"
	"xrefsync/internal/status"
)

// phaseAltAllele propagates gene-specific xrefs across alt-allele groups.
func (l *Loader) phaseAltAllele(ctx context.Context, run *RunState) error {
	hashes, err := l.staging.AltAlleleHashes(ctx)
	if err != nil {
		return fmt.Errorf("alt allele hashes: %w", err)
	}

	groups := altallele.BuildGroups(hashes, nil, func(geneID int) bool { return true })
	resolver := altallele.NewResolver(l.logger, l.metrics, l.geneSpecificNames())

	var result altallele.Result
	err = l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		var propErr error
		result, propErr = resolver.Propagate(ctx, tx, groups)
		return propErr
	})
	if err != nil {
		return err
	}

	for range result.Skipped {
		run.warn("alt-allele group has no determinable reference gene")
	}
	run.Counts["altallele_moved"] += int64(result.Moved)
	run.Counts["altallele_copied"] += int64(result.Copied)

	return l.statusMachine.Append(ctx, status.AltAllelesProcessed)
}

func (l *Loader) geneSpecificNames() []string {
	if l.namespaceResolver == nil {
		return nil
	}
	var names []string
	for _, name := range l.namespaceResolver.TransferableNames() {
		if l.namespaceResolver.GeneSpecific(name) {
			names = append(names, name)
		}
	}
	return names
}

// phaseBiomart collapses every multi-type source down to one
// ensembl_object_type.
func (l *Loader) phaseBiomart(ctx context.Context, run *RunState) error {
	var result biomart.Result
	err := l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		var convErr error
		result, convErr = l.biomartNorm.Converge(ctx, tx, l.core.SourcesWithMultipleTypes, 20)
		return convErr
	})
	if err != nil {
		return err
	}

	run.Counts["biomart_collisions"] += int64(result.Collisions)
	return l.statusMachine.Append(ctx, status.BiomartTestFinished)
}
