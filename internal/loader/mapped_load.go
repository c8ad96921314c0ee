package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefmodel"
	"xrefsync/internal/xrefstore"
)

// phaseMappedLoad is MapXrefsFromXrefDBToCoreDB: for each (source, info_type)
// group, route to the matching load path, then synonyms + MarkDumped.
func (l *Loader) phaseMappedLoad(ctx context.Context, run *RunState) error {
	groups, err := l.collectSourceGroups(ctx)
	if err != nil {
		return err
	}

	for _, g := range groups {
		externalDBID, ok := l.namespaceResolver.Transferable(g.Name)
		if !ok {
			if l.namespaceResolver.Suppressed(g.Name) {
				continue
			}
			return fmt.Errorf("source %s has no resolved external_db_id at mapped-load time", g.Name)
		}

		var xrefIDs []int
		err := l.withPhaseTx(ctx, func(tx pgx.Tx) error {
			var loadErr error
			xrefIDs, loadErr = l.loadGroup(ctx, tx, g, externalDBID, run)
			return loadErr
		})
		if err != nil {
			return fmt.Errorf("load group %s/%s: %w", g.Name, g.InfoType, err)
		}

		if err := l.staging.MarkDumped(ctx, xrefIDs, xrefmodel.DumpedMapped); err != nil {
			return fmt.Errorf("mark dumped for %s/%s: %w", g.Name, g.InfoType, err)
		}
		run.Counts["mapped_xrefs"] += int64(len(xrefIDs))
		l.metrics.IncrementCounter(telemetry.MetricXrefsLoaded, int64(len(xrefIDs)))

		if g.Release != "" {
			if err := l.withPhaseTx(ctx, func(tx pgx.Tx) error {
				return l.core.SetSourceRelease(ctx, tx, externalDBID, g.Release)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) loadGroup(ctx context.Context, tx pgx.Tx, g xrefstore.SourceGroup, externalDBID int, run *RunState) ([]int, error) {
	switch g.InfoType {
	case xrefmodel.InfoTypeDirect, xrefmodel.InfoTypeInferredPair, xrefmodel.InfoTypeMisc, xrefmodel.InfoTypeSequenceMatch:
		return l.loadIdentityXref(ctx, tx, g, externalDBID)
	case xrefmodel.InfoTypeChecksum:
		return l.loadChecksumXref(ctx, tx, g, externalDBID)
	case xrefmodel.InfoTypeDependent:
		return l.loadDependentXref(ctx, tx, g, externalDBID, run)
	default:
		run.warn(fmt.Sprintf("source %s has unhandled info_type %s at mapped-load time", g.Name, g.InfoType))
		return nil, nil
	}
}

// loadIdentityXref covers DIRECT | INFERRED_PAIR | MISC | SEQUENCE_MATCH.
// Rows arrive ordered by (xref_id, ensembl_id); the first row of a new
// xref triggers UpsertXref, any new (xref_id, ensembl_id) pair triggers
// UpsertObjectXref, and alignment coordinates (when present) attach an
// IdentityXref.
func (l *Loader) loadIdentityXref(ctx context.Context, tx pgx.Tx, g xrefstore.SourceGroup, externalDBID int) ([]int, error) {
	it, err := l.staging.IdentityXrefs(ctx, g.SourceID, g.InfoType)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var xrefIDs []int
	lastXrefID, lastEnsemblID := -1, -1
	var coreXrefID int

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return xrefIDs, err
		}
		if !ok {
			break
		}

		if row.Xref.XrefID != lastXrefID {
			row.Xref.ExternalDBID = externalDBID
			coreXrefID, err = l.core.UpsertXref(ctx, tx, row.Xref, l.allocator.Offsets().XrefOffset)
			if err != nil {
				return xrefIDs, fmt.Errorf("upsert xref %s: %w", row.Xref.Accession, err)
			}
			xrefIDs = append(xrefIDs, row.Xref.XrefID)
			lastXrefID = row.Xref.XrefID
			lastEnsemblID = -1
		}

		if row.ObjectXref.EnsemblID != lastEnsemblID {
			row.ObjectXref.XrefID = l.allocator.PromoteXrefID(coreXrefID)
			objectXrefID, err := l.core.UpsertObjectXref(ctx, tx, row.ObjectXref, l.allocator.Offsets().ObjectXrefOffset)
			if err != nil {
				return xrefIDs, fmt.Errorf("upsert object_xref for xref %s: %w", row.Xref.Accession, err)
			}
			if row.HasIdentity {
				row.Identity.ObjectXrefID = l.allocator.PromoteObjectXrefID(objectXrefID)
				if err := l.core.AddIdentityXref(ctx, tx, row.Identity); err != nil {
					return xrefIDs, fmt.Errorf("add identity_xref for xref %s: %w", row.Xref.Accession, err)
				}
			}
			lastEnsemblID = row.ObjectXref.EnsemblID
		}
	}

	if err := l.loadSynonyms(ctx, tx, xrefIDs); err != nil {
		return xrefIDs, err
	}
	return xrefIDs, nil
}

// loadChecksumXref is the CHECKSUM path, identical shape but always bound
// to the xrefchecksum analysis.
func (l *Loader) loadChecksumXref(ctx context.Context, tx pgx.Tx, g xrefstore.SourceGroup, externalDBID int) ([]int, error) {
	it, err := l.staging.ChecksumXrefs(ctx, g.SourceID)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	checksumAnalysisID := l.analysisIDs["xrefchecksum"]

	var xrefIDs []int
	lastXrefID, lastEnsemblID := -1, -1
	var coreXrefID int

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return xrefIDs, err
		}
		if !ok {
			break
		}
		row.ObjectXref.AnalysisID = checksumAnalysisID

		if row.Xref.XrefID != lastXrefID {
			row.Xref.ExternalDBID = externalDBID
			coreXrefID, err = l.core.UpsertXref(ctx, tx, row.Xref, l.allocator.Offsets().XrefOffset)
			if err != nil {
				return xrefIDs, fmt.Errorf("upsert checksum xref %s: %w", row.Xref.Accession, err)
			}
			xrefIDs = append(xrefIDs, row.Xref.XrefID)
			lastXrefID = row.Xref.XrefID
			lastEnsemblID = -1
		}

		if row.ObjectXref.EnsemblID != lastEnsemblID {
			row.ObjectXref.XrefID = l.allocator.PromoteXrefID(coreXrefID)
			if _, err := l.core.UpsertObjectXref(ctx, tx, row.ObjectXref, l.allocator.Offsets().ObjectXrefOffset); err != nil {
				return xrefIDs, fmt.Errorf("upsert checksum object_xref for xref %s: %w", row.Xref.Accession, err)
			}
			lastEnsemblID = row.ObjectXref.EnsemblID
		}
	}

	if err := l.loadSynonyms(ctx, tx, xrefIDs); err != nil {
		return xrefIDs, err
	}
	return xrefIDs, nil
}

// loadDependentXref additionally attaches a DependentXref edge when
// master_xref_id is present; rows without one count as a "master problem"
// and are skipped with a batched warning. The
// dependentSeen memo avoids redundant inserts within the run (invariant 7).
func (l *Loader) loadDependentXref(ctx context.Context, tx pgx.Tx, g xrefstore.SourceGroup, externalDBID int, run *RunState) ([]int, error) {
	it, err := l.staging.DependentXrefs(ctx, g.SourceID)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var xrefIDs []int
	lastXrefID, lastEnsemblID := -1, -1
	var coreXrefID int
	masterProblems := 0

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return xrefIDs, err
		}
		if !ok {
			break
		}

		if row.Xref.XrefID != lastXrefID {
			row.Xref.ExternalDBID = externalDBID
			coreXrefID, err = l.core.UpsertXref(ctx, tx, row.Xref, l.allocator.Offsets().XrefOffset)
			if err != nil {
				return xrefIDs, fmt.Errorf("upsert dependent xref %s: %w", row.Xref.Accession, err)
			}
			xrefIDs = append(xrefIDs, row.Xref.XrefID)
			lastXrefID = row.Xref.XrefID
			lastEnsemblID = -1
		}

		if row.ObjectXref.EnsemblID != lastEnsemblID {
			row.ObjectXref.XrefID = l.allocator.PromoteXrefID(coreXrefID)
			if _, err := l.core.UpsertObjectXref(ctx, tx, row.ObjectXref, l.allocator.Offsets().ObjectXrefOffset); err != nil {
				return xrefIDs, fmt.Errorf("upsert dependent object_xref for xref %s: %w", row.Xref.Accession, err)
			}
			lastEnsemblID = row.ObjectXref.EnsemblID
		}

		if row.MasterXrefID == nil {
			masterProblems++
			if masterProblems <= 10 {
				run.warn(fmt.Sprintf("dependent xref %s has no master_xref_id", row.Xref.Accession))
			}
			continue
		}

		masterID := l.allocator.PromoteXrefID(*row.MasterXrefID)
		dependentID := l.allocator.PromoteXrefID(coreXrefID)
		pairKey := [2]int{masterID, dependentID}
		if l.dependentSeen[pairKey] {
			continue
		}
		l.dependentSeen[pairKey] = true

		if err := l.core.AddDependentXref(ctx, tx, xrefmodel.DependentXref{
			MasterXrefID:    masterID,
			DependentXrefID: dependentID,
			LinkageSourceID: g.SourceID,
		}); err != nil {
			return xrefIDs, fmt.Errorf("add dependent_xref %d->%d: %w", masterID, dependentID, err)
		}
	}

	if err := l.loadSynonyms(ctx, tx, xrefIDs); err != nil {
		return xrefIDs, err
	}
	return xrefIDs, nil
}

// loadSynonyms attaches every staging synonym for the given xref ids.
func (l *Loader) loadSynonyms(ctx context.Context, tx pgx.Tx, xrefIDs []int) error {
	if len(xrefIDs) == 0 {
		return nil
	}
	it, err := l.staging.SynonymsForXrefs(ctx, xrefIDs)
	if err != nil {
		return fmt.Errorf("synonyms for xrefs: %w", err)
	}
	defer it.Close()

	for {
		syn, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		syn.XrefID = l.allocator.PromoteXrefID(syn.XrefID)
		if err := l.core.AddSynonym(ctx, tx, syn); err != nil {
			return fmt.Errorf("add synonym for xref %d: %w", syn.XrefID, err)
		}
	}
	return nil
}
