// Package status implements an append-only audit log of pipeline phases,
// backed by the staging database's process_status table.
package status

import (
	"context"
	"fmt"

	"xrefsync/internal/xrefmodel"
)

// Phases, in the order a healthy run appends them.
const (
	ParsingFinished         = xrefmodel.StatusParsingFinished
	AltAllelesAdded         = xrefmodel.StatusAltAllelesAdded
	AltAllelesProcessed     = xrefmodel.StatusAltAllelesProcessed
	BiomartTestFinished     = xrefmodel.StatusBiomartTestFinished
	SourceLevelMoveFinished = xrefmodel.StatusSourceLevelMoveFinished
	MappingFinished         = xrefmodel.StatusMappingFinished
	CoreLoaded              = xrefmodel.StatusCoreLoaded
)

// orderedPhases is the canonical phase sequence Completed uses to decide
// whether a phase has already completed.
var orderedPhases = []string{
	ParsingFinished, AltAllelesAdded, AltAllelesProcessed, BiomartTestFinished,
	SourceLevelMoveFinished, MappingFinished, CoreLoaded,
}

// writer is the subset of StagingStore the machine appends through.
type writer interface {
	InsertProcessStatus(ctx context.Context, status string) error
	LatestProcessStatus(ctx context.Context) (xrefmodel.ProcessStatus, bool, error)
}

// Machine wraps the staging process_status table.
type Machine struct {
	store writer
}

func NewMachine(store writer) *Machine {
	return &Machine{store: store}
}

// Append records a new phase completion. Readers only ever observe the
// latest entry.
func (m *Machine) Append(ctx context.Context, phase string) error {
	if err := m.store.InsertProcessStatus(ctx, phase); err != nil {
		return fmt.Errorf("append process status %q: %w", phase, err)
	}
	return nil
}

// Latest returns the most recently appended phase, if any.
func (m *Machine) Latest(ctx context.Context) (string, bool, error) {
	ps, ok, err := m.store.LatestProcessStatus(ctx)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return ps.Status, true, nil
}

// Completed reports whether phase has already been recorded as of the
// latest status entry, by position in the canonical sequence — a later
// phase in the sequence implies every earlier one also completed.
func Completed(latest string, phase string) bool {
	latestIdx := indexOf(latest)
	phaseIdx := indexOf(phase)
	if latestIdx < 0 || phaseIdx < 0 {
		return false
	}
	return phaseIdx <= latestIdx
}

func indexOf(phase string) int {
	for i, p := range orderedPhases {
		if p == phase {
			return i
		}
	}
	return -1
}

// RevertToParsingFinished clears loader-produced rows and re-writes status
// to ParsingFinished, discarding everything the mapping/alt-allele/biomart
// phases produced. clearLoaderRows is supplied by the caller since only it
// knows which core rows count as "loader-produced."
func (m *Machine) RevertToParsingFinished(ctx context.Context, clearLoaderRows func(ctx context.Context) error) error {
	if err := clearLoaderRows(ctx); err != nil {
		return fmt.Errorf("revert to parsing_finished: %w", err)
	}
	return m.Append(ctx, ParsingFinished)
}

// RevertToMappingFinished preserves core-facing rows but resets
// mapping-job markers, for a narrower restart than the full parsing revert.
func (m *Machine) RevertToMappingFinished(ctx context.Context, clearMappingJobMarkers func(ctx context.Context) error) error {
	if err := clearMappingJobMarkers(ctx); err != nil {
		return fmt.Errorf("revert to mapping_finished: %w", err)
	}
	return m.Append(ctx, MappingFinished)
}
