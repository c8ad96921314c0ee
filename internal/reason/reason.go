// Package reason implements UnmappedReasonRegistry (C8): the catalogue of
// (summary, description) reason rows and the stable ids the unmapped-load
// phase needs.
package reason

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/xrefmodel"
	"xrefsync/internal/xrefstore"
)

// enumeratedReasons is the five well-known kinds, beyond the per-source
// threshold descriptions.
var enumeratedReasons = []struct {
	Kind    string
	Summary string
	Desc    string
}{
	{xrefmodel.ReasonNoStableID, "No stable id", "The xref could not be attached to a surviving stable id"},
	{xrefmodel.ReasonFailedMap, "Failed to map", "The xref failed the sequence-alignment mapping step"},
	{xrefmodel.ReasonNoMapping, "No mapping", "No mapping was attempted or found for this xref"},
	{xrefmodel.ReasonMasterFailed, "Master xref failed", "The master xref this dependent relies on did not map"},
	{xrefmodel.ReasonNoMaster, "No master xref", "No master xref relationship could be established"},
}

// Registry maps a reason kind (one of the enumerated constants, or a
// per-source threshold key) to its core unmapped_reason_id.
type Registry struct {
	ids map[string]int
}

// Build materialises the full reason table at load start: one row per
// enumerated kind plus one per Source cutoff, reusing any row that already
// matches via a LIKE lookup (parsers may have stored shortened
// descriptions).
func Build(ctx context.Context, tx pgx.Tx, find func(ctx context.Context, tx pgx.Tx, likePattern string) (int, bool, error),
	add func(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error),
	thresholds []xrefstore.ReasonThresholds) (*Registry, error) {

	r := &Registry{ids: make(map[string]int, len(enumeratedReasons)+len(thresholds))}

	for _, er := range enumeratedReasons {
		id, err := resolveOne(ctx, tx, find, add, er.Summary, er.Desc)
		if err != nil {
			return nil, fmt.Errorf("resolve reason %s: %w", er.Kind, err)
		}
		r.ids[er.Kind] = id
	}

	for _, th := range thresholds {
		key := thresholdKey(th.SourceID)
		id, err := resolveOne(ctx, tx, find, add, th.Summary, th.Description)
		if err != nil {
			return nil, fmt.Errorf("resolve threshold reason for source %d: %w", th.SourceID, err)
		}
		r.ids[key] = id
	}

	return r, nil
}

func resolveOne(ctx context.Context, tx pgx.Tx,
	find func(ctx context.Context, tx pgx.Tx, likePattern string) (int, bool, error),
	add func(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error),
	summary, desc string) (int, error) {

	if id, ok, err := find(ctx, tx, "%"+desc+"%"); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}
	return add(ctx, tx, summary, desc)
}

// thresholdKey builds the lookup key for a per-source threshold reason.
func thresholdKey(sourceID int) string {
	return fmt.Sprintf("threshold:%d", sourceID)
}

// ID returns the unmapped_reason_id for a well-known kind constant.
func (r *Registry) ID(kind string) (int, bool) {
	id, ok := r.ids[kind]
	return id, ok
}

// ThresholdID returns the unmapped_reason_id for a source's threshold
// reason row.
func (r *Registry) ThresholdID(sourceID int) (int, bool) {
	id, ok := r.ids[thresholdKey(sourceID)]
	return id, ok
}
