// Package loader implements the orchestrator: Update is the single public
// entry point, driving the end-to-end reset / purge / offset / map /
// unmapped-load / alt-allele / biomart / QC sequence. Adapted from a
// phase-table migration-orchestrator pattern, restructured so each phase
// owns its own transaction instead of one end-to-end transaction, so a
// failure partway through a run leaves earlier phases durably committed.
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"xrefsync/config"
	"xrefsync/internal/altallele"
	"xrefsync/internal/apperr"
	"xrefsync/internal/biomart"
	"xrefsync/internal/namespace"
	"xrefsync/internal/offsets"
	"xrefsync/internal/quality"
	"xrefsync/internal/reason"
	"xrefsync/internal/status"
	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefstore"
)

// Phase is one step of Update, in execution order.
type Phase string

const (
	PhaseReset           Phase = "reset"
	PhasePurge           Phase = "purge"
	PhaseOffsets         Phase = "offsets"
	PhaseAnalysisEnsure  Phase = "analysis_ensure"
	PhaseMappedLoad      Phase = "mapped_load"
	PhaseUnmappedLoad    Phase = "unmapped_load"
	PhaseAltAllele       Phase = "alt_allele"
	PhaseBiomart         Phase = "biomart"
	PhaseQuality         Phase = "quality"
	PhaseDone            Phase = "done"
)

// orderedPhases is the sequence Update executes; Update skips any phase
// ordered before the point resumePoint returns (currently always PhaseReset,
// so no phase is skipped).
var orderedPhases = []Phase{
	PhaseReset, PhasePurge, PhaseOffsets, PhaseAnalysisEnsure, PhaseMappedLoad,
	PhaseUnmappedLoad, PhaseAltAllele, PhaseBiomart, PhaseQuality, PhaseDone,
}

// RunState is the in-memory record of one Update invocation, surfaced to
// callers for logging/metrics; it is not itself persisted — ProcessStatus
// is the durable checkpoint. RunID tags every log line the run emits so
// phases of the same Update call can be correlated in aggregated logs.
type RunState struct {
	RunID     string
	StartTime time.Time
	Phase     Phase
	Warnings  []string
	Counts    map[string]int64
}

func newRunState() *RunState {
	return &RunState{RunID: uuid.NewString(), StartTime: time.Now(), Counts: make(map[string]int64)}
}

func (s *RunState) warn(msg string) {
	if len(s.Warnings) < 10 {
		s.Warnings = append(s.Warnings, msg)
	}
}

// Loader drives the end-to-end update. It holds both stores and every
// supporting component as explicit fields rather than inherited base-class
// state, so every dependency a phase needs is visible at construction time.
type Loader struct {
	staging xrefstore.StagingStore
	core    xrefstore.CoreStore

	cfg     *config.LoaderConfig
	logger  telemetry.Logger
	metrics telemetry.MetricsService
	retryer *apperr.Retryer

	statusMachine *status.Machine
	quality       *quality.Checker
	biomartNorm   *biomart.Normaliser

	// Populated progressively across phases within one Update call.
	namespaceResolver *namespace.Resolver
	allocator         *offsets.Allocator
	analysisIDs       map[string]int
	reasonRegistry    *reason.Registry

	// dependentSeen memoises (master_id, dependent_id) pairs within one
	// Update call so a dependent xref linked to the same master through
	// two source rows only inserts one dependent_xref edge.
	dependentSeen map[[2]int]bool
}

// New builds a Loader from its constituent stores and ambient services.
func New(staging xrefstore.StagingStore, core xrefstore.CoreStore, cfg *config.LoaderConfig, logger telemetry.Logger, metrics telemetry.MetricsService) *Loader {
	return &Loader{
		staging:       staging,
		core:          core,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		retryer:       apperr.NewRetryer(apperr.DefaultRetryConfig()),
		statusMachine: status.NewMachine(staging),
		quality:       quality.NewChecker(core),
		biomartNorm:   biomart.NewNormaliser(logger, metrics),
		dependentSeen: make(map[[2]int]bool),
	}
}

// Update is the single public entry point.
func (l *Loader) Update(ctx context.Context) error {
	run := newRunState()
	l.dependentSeen = make(map[[2]int]bool)
	logger := l.logger.With(telemetry.String("run_id", run.RunID))
	resumeFrom, err := l.resumePoint(ctx)
	if err != nil {
		return fmt.Errorf("determine resume point: %w", err)
	}

	for _, phase := range orderedPhases {
		if phaseIndex(phase) < phaseIndex(resumeFrom) {
			logger.Info("skipping already-completed phase", telemetry.String("phase", string(phase)))
			continue
		}
		run.Phase = phase
		start := time.Now()
		if err := l.runPhase(ctx, phase, run); err != nil {
			return fmt.Errorf("phase %s failed: %w", phase, err)
		}
		l.metrics.RecordDuration(telemetry.MetricPhaseDuration, time.Since(start))
		logger.Info("phase complete", telemetry.String("phase", string(phase)))
	}

	return nil
}

// Resume is an explicit alias for Update: every Update call is already
// resume-aware, so a caller that wants to continue a prior run simply calls
// Update again.
func (l *Loader) Resume(ctx context.Context) error {
	return l.Update(ctx)
}

// resumePoint decides where a call to Update should start. The staging
// status log records checkpoints written across the whole upstream
// pipeline (parsing, alt-allele fixup, mapping scripts), not just this
// stage, so its ordering can't be walked phase-by-phase against Update's
// own phase table. Instead resumePoint only distinguishes "a prior run of
// this stage already finished" (the newest entry is core_loaded, so start
// over from the top for a fresh batch) from "no completed run exists yet"
// (also start from the top). Within a run, idempotency comes from the
// dumped flags the reset phase clears and the load phases set — a phase
// that reruns simply finds nothing left to do for already-loaded rows.
func (l *Loader) resumePoint(ctx context.Context) (Phase, error) {
	_, _, err := l.statusMachine.Latest(ctx)
	if err != nil {
		return PhaseReset, err
	}
	return PhaseReset, nil
}

func phaseIndex(p Phase) int {
	for i, phase := range orderedPhases {
		if phase == p {
			return i
		}
	}
	return -1
}

func (l *Loader) runPhase(ctx context.Context, phase Phase, run *RunState) error {
	switch phase {
	case PhaseReset:
		return l.phaseReset(ctx)
	case PhasePurge:
		return l.phasePurge(ctx)
	case PhaseOffsets:
		return l.phaseOffsets(ctx, run)
	case PhaseAnalysisEnsure:
		return l.phaseAnalysisEnsure(ctx)
	case PhaseMappedLoad:
		return l.phaseMappedLoad(ctx, run)
	case PhaseUnmappedLoad:
		return l.phaseUnmappedLoad(ctx, run)
	case PhaseAltAllele:
		return l.phaseAltAllele(ctx, run)
	case PhaseBiomart:
		return l.phaseBiomart(ctx, run)
	case PhaseQuality:
		return l.phaseQuality(ctx)
	case PhaseDone:
		return l.phaseDone(ctx)
	default:
		return fmt.Errorf("unknown phase %q", phase)
	}
}

// withPhaseTx runs fn inside a fresh transaction, committing on success and
// rolling back on any error, so each phase commits independently rather
// than the whole run living in one long-lived transaction.
func (l *Loader) withPhaseTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.core.BeginPhase(ctx)
	if err != nil {
		return fmt.Errorf("begin phase transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			l.logger.Error("rollback failed", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit phase transaction: %w", err)
	}
	return nil
}

// phaseReset clears stale projections and re-entrant dumped flags.
func (l *Loader) phaseReset(ctx context.Context) error {
	if err := l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		return l.core.DeleteProjected(ctx, tx)
	}); err != nil {
		return err
	}
	return l.staging.ResetDumpedUnlessAnotherPriority(ctx)
}

// phasePurge deletes every transferable source's existing core rows ahead
// of the reload.
func (l *Loader) phasePurge(ctx context.Context) error {
	groups, err := l.collectSourceGroups(ctx)
	if err != nil {
		return err
	}

	resolver, err := l.buildNamespaceResolver(ctx, groups)
	if err != nil {
		return err
	}
	l.namespaceResolver = resolver

	return l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		for _, name := range resolver.TransferableNames() {
			externalDBID, _ := resolver.Transferable(name)
			if err := l.core.DeleteByExternalDB(ctx, tx, externalDBID); err != nil {
				return err
			}
		}
		return nil
	})
}

// collectSourceGroups opens the dump_out stream through the retryer, since
// a dropped connection on an idempotent read should be retried rather than
// failing the whole phase outright.
func (l *Loader) collectSourceGroups(ctx context.Context) ([]xrefstore.SourceGroup, error) {
	var it xrefstore.Iterator[xrefstore.SourceGroup]
	err := l.retryer.Execute(ctx, func() error {
		var openErr error
		it, openErr = l.staging.XrefsByDumpOut(ctx)
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("xrefs by dump_out: %w", err)
	}
	defer it.Close()

	var groups []xrefstore.SourceGroup
	for {
		g, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (l *Loader) buildNamespaceResolver(ctx context.Context, groups []xrefstore.SourceGroup) (*namespace.Resolver, error) {
	names := make([]string, 0, len(groups))
	sourcesInRun := make(map[string]bool, len(groups))
	seen := make(map[string]bool)
	for _, g := range groups {
		if !seen[g.Name] {
			names = append(names, g.Name)
			seen[g.Name] = true
		}
		sourcesInRun[g.Name] = true
	}

	var externalDBs map[string]int
	err := l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		var err error
		externalDBs, err = l.core.ExternalDBByName(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return namespace.NewResolver(names, externalDBs, sourcesInRun)
}

// phaseOffsets computes and persists the collision-free offset pair.
func (l *Loader) phaseOffsets(ctx context.Context, run *RunState) error {
	return l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		o, err := l.core.ReadOffsets(ctx, tx)
		if err != nil {
			return err
		}
		if err := l.core.PersistOffsets(ctx, tx, o); err != nil {
			return err
		}
		l.allocator = offsets.NewAllocator(o)
		return nil
	})
}

// phaseAnalysisEnsure materialises the analysis ids the mapped-load phase
// needs.
func (l *Loader) phaseAnalysisEnsure(ctx context.Context) error {
	l.analysisIDs = make(map[string]int, 4)
	return l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		for _, logicName := range []string{"xrefexoneratedna", "xrefexonerateprotein", "xrefchecksum"} {
			id, err := l.core.EnsureAnalysis(ctx, tx, logicName)
			if err != nil {
				return fmt.Errorf("ensure analysis %s: %w", logicName, err)
			}
			l.analysisIDs[logicName] = id
		}
		return nil
	})
}

// phaseQuality runs the post-condition probes; a failure
// here is fatal and aborts the run without recording core_loaded.
func (l *Loader) phaseQuality(ctx context.Context) error {
	return l.withPhaseTx(ctx, func(tx pgx.Tx) error {
		return l.quality.RunAll(ctx, tx)
	})
}

// phaseDone records the terminal checkpoint.
func (l *Loader) phaseDone(ctx context.Context) error {
	return l.statusMachine.Append(ctx, status.CoreLoaded)
}
