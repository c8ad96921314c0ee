// Package altallele implements AltAlleleResolver (C5): picks a reference
// gene per alt-allele group and propagates gene-specific xrefs between a
// group's reference and its alternative loci.
package altallele

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/apperr"
	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefstore"
)

// Group is one alt-allele group: a reference gene and its alternates.
type Group struct {
	ReferenceGeneID int
	AltGeneIDs      []int
}

// Result tallies what Propagate actually did: counts of moved, deleted,
// copied, and ignored bindings.
type Result struct {
	Moved   int
	Deleted int
	Copied  int
	Ignored int
	Skipped []int // reference genes that could not be determined
}

// BuildGroups turns the staging alt↔ref maps into Group values, electing a
// reference per group. explicitRefs is the rep_Gene_id override from
// staging when present; referenceCandidate reports whether a gene_id is on
// a reference slice, used as fallback (b) when no explicit rep gene exists.
func BuildGroups(hashes xrefstore.AltAlleleHashes, explicitRefs map[int]int, referenceCandidate func(geneID int) bool) []Group {
	groups := make([]Group, 0, len(hashes.RefToAlt))
	for ref, alts := range hashes.RefToAlt {
		reference := ref
		if explicit, ok := explicitRefs[ref]; ok {
			reference = explicit
		} else if !referenceCandidate(ref) {
			// fallback (b): first gene whose slice is reference among the
			// group's members (ref treated as just another member here)
			members := append([]int{ref}, alts...)
			reference = firstReferenceCandidate(members, referenceCandidate)
		}
		groups = append(groups, Group{ReferenceGeneID: reference, AltGeneIDs: otherMembers(reference, ref, alts)})
	}
	return groups
}

func firstReferenceCandidate(members []int, isReference func(int) bool) int {
	for _, m := range members {
		if isReference(m) {
			return m
		}
	}
	return members[0]
}

func otherMembers(reference, originalRef int, alts []int) []int {
	out := make([]int, 0, len(alts)+1)
	if reference != originalRef {
		out = append(out, originalRef)
	}
	for _, a := range alts {
		if a != reference {
			out = append(out, a)
		}
	}
	return out
}

// IncorporateLRG folds LRG pseudo-groups (genes whose source is
// Ens_Hs_gene) into groups: if the referenced core gene already belongs to
// a group, the LRG gene is attached as non-reference; otherwise a new
// single-alt group is created.
func IncorporateLRG(groups []Group, lrgGeneToCoreGene map[int]int) []Group {
	byRef := make(map[int]int, len(groups))
	for i, g := range groups {
		byRef[g.ReferenceGeneID] = i
	}
	byAlt := make(map[int]int, len(groups))
	for i, g := range groups {
		for _, a := range g.AltGeneIDs {
			byAlt[a] = i
		}
	}

	for lrgGene, coreGene := range lrgGeneToCoreGene {
		if idx, ok := byRef[coreGene]; ok {
			groups[idx].AltGeneIDs = append(groups[idx].AltGeneIDs, lrgGene)
			continue
		}
		if idx, ok := byAlt[coreGene]; ok {
			groups[idx].AltGeneIDs = append(groups[idx].AltGeneIDs, lrgGene)
			continue
		}
		groups = append(groups, Group{ReferenceGeneID: coreGene, AltGeneIDs: []int{lrgGene}})
	}
	return groups
}

// Resolver executes Group propagation against the core database.
type Resolver struct {
	logger              telemetry.Logger
	metrics             telemetry.MetricsService
	geneSpecificSources []string
}

func NewResolver(logger telemetry.Logger, metrics telemetry.MetricsService, geneSpecificSources []string) *Resolver {
	return &Resolver{logger: logger, metrics: metrics, geneSpecificSources: geneSpecificSources}
}

// Propagate runs the move-then-copy propagation for every group, inside the
// caller's transaction: move gene-specific bindings from each alt to the
// reference, then copy the reference's gene-specific bindings back out to
// every alt.
func (r *Resolver) Propagate(ctx context.Context, tx pgx.Tx, groups []Group) (Result, error) {
	var res Result

	for _, g := range groups {
		if g.ReferenceGeneID == 0 {
			res.Skipped = append(res.Skipped, g.ReferenceGeneID)
			r.logger.Warn("alt-allele group has no determinable reference gene")
			continue
		}
		for _, alt := range g.AltGeneIDs {
			moved, deleted, err := r.moveGeneSpecific(ctx, tx, alt, g.ReferenceGeneID)
			if err != nil {
				return res, fmt.Errorf("move alt %d -> ref %d: %w", alt, g.ReferenceGeneID, err)
			}
			res.Moved += moved
			res.Deleted += deleted
			res.Ignored += deleted - moved
		}
		for _, alt := range g.AltGeneIDs {
			copied, err := r.copyGeneSpecific(ctx, tx, g.ReferenceGeneID, alt)
			if err != nil {
				return res, fmt.Errorf("copy ref %d -> alt %d: %w", g.ReferenceGeneID, alt, err)
			}
			res.Copied += copied
		}
	}

	if len(res.Skipped) > 0 {
		r.metrics.IncrementCounter("altallele_groups_skipped_total", int64(len(res.Skipped)))
	}
	r.metrics.IncrementCounter(telemetry.MetricAltAlleleMoved, int64(res.Moved))
	r.metrics.IncrementCounter(telemetry.MetricAltAlleleCopied, int64(res.Copied))

	return res, nil
}

// moveGeneSpecific moves gene-specific Gene-level object_xref rows from
// altGene to refGene using INSERT-then-delete (Postgres's ON CONFLICT DO
// NOTHING standing in for MySQL's INSERT IGNORE); rows whose move would
// collide with an existing ref-side binding are simply deleted instead of
// merged. The identity_xref rows of the moved bindings are deleted from the
// alt side and are not recreated on the ref gene.
func (r *Resolver) moveGeneSpecific(ctx context.Context, tx pgx.Tx, altGene, refGene int) (moved, deleted int, err error) {
	if len(r.geneSpecificSources) == 0 {
		return 0, 0, nil
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO object_xref (xref_id, ensembl_id, ensembl_object_type, analysis_id, ox_status, master_xref_id, linkage_annotation)
		SELECT ox.xref_id, $2, 'Gene', ox.analysis_id, ox.ox_status, ox.master_xref_id, ox.linkage_annotation
		FROM object_xref ox
		JOIN xref x ON x.xref_id = ox.xref_id
		JOIN external_db ed ON ed.external_db_id = x.external_db_id
		WHERE ox.ensembl_id = $1 AND ox.ensembl_object_type = 'Gene' AND ed.db_name = ANY($3)
		ON CONFLICT (xref_id, ensembl_object_type, ensembl_id, analysis_id) DO NOTHING
	`, altGene, refGene, r.geneSpecificSources)
	if err != nil {
		return 0, 0, fmt.Errorf("move insert: %w", err)
	}
	moved = int(tag.RowsAffected())

	delTag, err := tx.Exec(ctx, `
		DELETE FROM identity_xref ix
		USING object_xref ox, xref x, external_db ed
		WHERE ix.object_xref_id = ox.object_xref_id AND ox.xref_id = x.xref_id AND ed.external_db_id = x.external_db_id
		  AND ox.ensembl_id = $1 AND ox.ensembl_object_type = 'Gene' AND ed.db_name = ANY($2)
	`, altGene, r.geneSpecificSources)
	if err != nil {
		return moved, 0, fmt.Errorf("move delete identity: %w", err)
	}
	_ = delTag

	delTag, err = tx.Exec(ctx, `
		DELETE FROM object_xref ox
		USING xref x, external_db ed
		WHERE ox.xref_id = x.xref_id AND ed.external_db_id = x.external_db_id
		  AND ox.ensembl_id = $1 AND ox.ensembl_object_type = 'Gene' AND ed.db_name = ANY($2)
	`, altGene, r.geneSpecificSources)
	if err != nil {
		return moved, 0, fmt.Errorf("move delete object_xref: %w", err)
	}
	deleted = int(delTag.RowsAffected())

	return moved, deleted, nil
}

// copyGeneSpecific copies the reference gene's gene-specific bindings onto
// altGene, allocating fresh object_xref_ids from the core sequence (a
// monotonically increasing counter seeded at MAX(object_xref_id)+1" — here
// delegated to the core's identity/sequence column rather than a
// hand-rolled counter, since Postgres owns that arithmetic natively).
func (r *Resolver) copyGeneSpecific(ctx context.Context, tx pgx.Tx, refGene, altGene int) (int, error) {
	if len(r.geneSpecificSources) == 0 {
		return 0, nil
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO object_xref (xref_id, ensembl_id, ensembl_object_type, analysis_id, ox_status, master_xref_id, linkage_annotation)
		SELECT ox.xref_id, $2, 'Gene', ox.analysis_id, ox.ox_status, ox.master_xref_id, ox.linkage_annotation
		FROM object_xref ox
		JOIN xref x ON x.xref_id = ox.xref_id
		JOIN external_db ed ON ed.external_db_id = x.external_db_id
		WHERE ox.ensembl_id = $1 AND ox.ensembl_object_type = 'Gene' AND ed.db_name = ANY($3)
		ON CONFLICT (xref_id, ensembl_object_type, ensembl_id, analysis_id) DO NOTHING
	`, refGene, altGene, r.geneSpecificSources)
	if err != nil {
		return 0, fmt.Errorf("copy insert: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// NoReferenceError is the DataWarning raised for a group that could not
// determine a reference gene.
func NoReferenceError(groupRef int) error {
	return apperr.NewDataWarning(apperr.CodeAltAlleleNoReference,
		fmt.Sprintf("alt-allele group around gene %d has no determinable reference", groupRef), nil)
}
