package loader

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/reason"
	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefmodel"
	"xrefsync/internal/xrefstore"
)

// unmappedSource is one of the five unmapped streams, paired with the
// reason kind and dumped tag it produces.
type unmappedSource struct {
	name        string
	stream      func(ctx context.Context) (xrefstore.Iterator[xrefstore.UnmappedCandidate], error)
	reasonKind  string
	dumpedState xrefmodel.DumpedState
}

// phaseUnmappedLoad streams every unresolved xref stream, writing a core
// xref with info_type=UNMAPPED plus an unmapped_object row carrying the
// matching reason, and marks the staging row dumped accordingly.
func (l *Loader) phaseUnmappedLoad(ctx context.Context, run *RunState) error {
	registry, err := l.buildReasonRegistry(ctx)
	if err != nil {
		return err
	}
	l.reasonRegistry = registry

	sources := []unmappedSource{
		{"direct", l.staging.DirectUnmappedLowPriority, xrefmodel.ReasonNoStableID, xrefmodel.DumpedUnmappedNoStableID},
		{"misc", l.staging.MiscUnmapped, xrefmodel.ReasonNoMapping, xrefmodel.DumpedUnmappedNoMapping},
		{"dependent", l.staging.DependentUnmappedLowPriority, xrefmodel.ReasonMasterFailed, xrefmodel.DumpedUnmappedMasterFailed},
		{"sequence", l.staging.SequenceUnmappedRemaining, xrefmodel.ReasonFailedMap, xrefmodel.DumpedUnmappedNoMapping},
		{"other", l.staging.OtherUnmapped, xrefmodel.ReasonNoMaster, xrefmodel.DumpedUnmappedNoMaster},
	}

	for _, src := range sources {
		if err := l.loadUnmappedSource(ctx, src, run); err != nil {
			return fmt.Errorf("unmapped source %s: %w", src.name, err)
		}
	}
	return nil
}

func (l *Loader) buildReasonRegistry(ctx context.Context) (*reason.Registry, error) {
	thresholds, err := l.staging.UnmappedReasons(ctx)
	if err != nil {
		return nil, fmt.Errorf("unmapped reason thresholds: %w", err)
	}

	var registry *reason.Registry
	err = l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		var buildErr error
		registry, buildErr = reason.Build(ctx, tx, l.core.FindUnmappedReason, l.core.AddUnmappedReason, thresholds)
		return buildErr
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func (l *Loader) loadUnmappedSource(ctx context.Context, src unmappedSource, run *RunState) error {
	it, err := src.stream(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	reasonID, ok := l.reasonRegistry.ID(src.reasonKind)
	if !ok {
		return fmt.Errorf("no registered unmapped reason for kind %s", src.reasonKind)
	}

	var xrefIDs []int
	err = l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		for {
			cand, ok, err := it.Next(ctx)
			if err != nil {
				return err
			}
			if !ok {
				break
			}

			thisReasonID := reasonID
			if src.name == "sequence" {
				if th, ok := l.reasonRegistry.ThresholdID(cand.Xref.SourceID); ok {
					thisReasonID = th
				}
			}

			cand.Xref.InfoType = xrefmodel.InfoTypeUnmapped
			coreXrefID, err := l.core.UpsertXref(ctx, tx, cand.Xref, l.allocator.Offsets().XrefOffset)
			if err != nil {
				return fmt.Errorf("upsert unmapped xref %s: %w", cand.Xref.Accession, err)
			}

			if err := l.core.AddUnmappedObject(ctx, tx, xrefmodel.UnmappedObject{
				Type:              "xref",
				AnalysisID:        cand.AnalysisID,
				ExternalDBID:      cand.Xref.ExternalDBID,
				Identifier:        cand.Xref.Accession,
				UnmappedReasonID:  thisReasonID,
				QueryScore:        cand.QueryScore,
				TargetScore:       cand.TargetScore,
				EnsemblID:         cand.EnsemblID,
				EnsemblObjectType: cand.ObjectType,
			}); err != nil {
				return fmt.Errorf("add unmapped object %s: %w", cand.Xref.Accession, err)
			}

			xrefIDs = append(xrefIDs, coreXrefID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := l.staging.MarkDumped(ctx, xrefIDs, src.dumpedState); err != nil {
		return fmt.Errorf("mark dumped for unmapped source %s: %w", src.name, err)
	}
	run.Counts["unmapped_"+src.name] += int64(len(xrefIDs))
	l.metrics.IncrementCounter(telemetry.MetricXrefsUnmapped, int64(len(xrefIDs)))
	return nil
}
