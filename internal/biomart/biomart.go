// Package biomart implements BiomartNormaliser (C6): collapses every
// source that labels xrefs against more than one ensembl_object_type down
// to a single type, following a fixed precedence rule.
package biomart

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrefsync/internal/telemetry"
	"xrefsync/internal/xrefmodel"
)

// goSources always collapse to Translation regardless of the general
// precedence rule.
var goSources = map[string]bool{"GO": true, "goslim_goa": true}

// TargetType decides the single ensembl_object_type a source with xrefs on
// both a and b should collapse to.
func TargetType(sourceName string, a, b xrefmodel.ObjectType) xrefmodel.ObjectType {
	if goSources[sourceName] {
		return xrefmodel.ObjectTypeTranslation
	}
	if a == xrefmodel.ObjectTypeGene || b == xrefmodel.ObjectTypeGene {
		return xrefmodel.ObjectTypeGene
	}
	if a == xrefmodel.ObjectTypeTranslation || b == xrefmodel.ObjectTypeTranslation {
		return xrefmodel.ObjectTypeTranslation
	}
	return xrefmodel.ObjectTypeTranscript
}

// Normaliser runs the collapse against the core database.
type Normaliser struct {
	logger  telemetry.Logger
	metrics telemetry.MetricsService
}

func NewNormaliser(logger telemetry.Logger, metrics telemetry.MetricsService) *Normaliser {
	return &Normaliser{logger: logger, metrics: metrics}
}

// Result reports the outcome of one convergence pass.
type Result struct {
	Iterations int
	Collisions int
}

// Converge runs the migrate-then-probe loop until SourcesWithMultipleTypes
// (the probe callback) returns no duplicates, iterating until the probe
// query comes back clean.
func (n *Normaliser) Converge(ctx context.Context, tx pgx.Tx, probe func(ctx context.Context, tx pgx.Tx) ([]int, error), maxIterations int) (Result, error) {
	var res Result
	for i := 0; i < maxIterations; i++ {
		duplicated, err := probe(ctx, tx)
		if err != nil {
			return res, fmt.Errorf("biomart probe: %w", err)
		}
		if len(duplicated) == 0 {
			res.Iterations = i
			return res, nil
		}
		res.Collisions += len(duplicated)
		for _, externalDBID := range duplicated {
			if err := n.migrateSource(ctx, tx, externalDBID); err != nil {
				return res, fmt.Errorf("migrate external_db %d: %w", externalDBID, err)
			}
		}
	}
	return res, fmt.Errorf("biomart normalisation did not converge after %d iterations", maxIterations)
}

// migrateSource rewrites ensembl_object_type/ensembl_id for one
// external_db's xrefs, collapsing to the precedence target, then deletes
// any row left colliding with a pre-existing mapping — together with its
// identity_xref and, for GO sources, its go_xref companion.
func (n *Normaliser) migrateSource(ctx context.Context, tx pgx.Tx, externalDBID int) error {
	var dbName string
	if err := tx.QueryRow(ctx, `SELECT db_name FROM external_db WHERE external_db_id = $1`, externalDBID).Scan(&dbName); err != nil {
		return fmt.Errorf("resolve external_db name: %w", err)
	}

	target := xrefmodel.ObjectTypeGene
	if goSources[dbName] {
		target = xrefmodel.ObjectTypeTranslation
	} else {
		var hasGene, hasTranslation bool
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT ox.ensembl_object_type FROM object_xref ox
			JOIN xref x ON x.xref_id = ox.xref_id
			WHERE x.external_db_id = $1 AND ox.ox_status = 'DUMP_OUT'
		`, externalDBID)
		if err != nil {
			return fmt.Errorf("probe types for %s: %w", dbName, err)
		}
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				rows.Close()
				return err
			}
			if xrefmodel.ObjectType(t) == xrefmodel.ObjectTypeGene {
				hasGene = true
			}
			if xrefmodel.ObjectType(t) == xrefmodel.ObjectTypeTranslation {
				hasTranslation = true
			}
		}
		rows.Close()
		if !hasGene && hasTranslation {
			target = xrefmodel.ObjectTypeTranslation
		} else if !hasGene && !hasTranslation {
			target = xrefmodel.ObjectTypeTranscript
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE object_xref ox SET ensembl_object_type = $2,
			ensembl_id = CASE WHEN $2 = 'Translation' THEN gtt.translation_id ELSE gtt.gene_id END
		FROM gene_transcript_translation gtt, xref x
		WHERE ox.xref_id = x.xref_id AND x.external_db_id = $1
		  AND ox.ensembl_object_type != $2
		  AND ($2 != 'Translation' OR gtt.translation_id IS NOT NULL)
		  AND (
		      (ox.ensembl_object_type = 'Transcript' AND gtt.transcript_id = ox.ensembl_id) OR
		      (ox.ensembl_object_type = 'Translation' AND gtt.translation_id = ox.ensembl_id)
		  )
	`, externalDBID, string(target)); err != nil {
		return fmt.Errorf("migrate object_xref rows: %w", err)
	}

	if goSources[dbName] {
		if _, err := tx.Exec(ctx, `
			DELETE FROM go_xref gx
			USING object_xref ox, xref x
			WHERE gx.object_xref_id = ox.object_xref_id AND ox.xref_id = x.xref_id AND x.external_db_id = $1
			  AND ox.object_xref_id IN (
			      SELECT ox2.object_xref_id
			      FROM object_xref ox2
			      JOIN (
			          SELECT xref_id, ensembl_object_type, ensembl_id, analysis_id
			          FROM object_xref
			          GROUP BY xref_id, ensembl_object_type, ensembl_id, analysis_id
			          HAVING COUNT(*) > 1
			      ) dup ON dup.xref_id = ox2.xref_id
			           AND dup.ensembl_object_type = ox2.ensembl_object_type
			           AND dup.ensembl_id = ox2.ensembl_id
			           AND dup.analysis_id = ox2.analysis_id
			  )
		`, externalDBID); err != nil {
			return fmt.Errorf("delete colliding go_xref: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM identity_xref ix
		USING object_xref ox
		WHERE ix.object_xref_id = ox.object_xref_id
		  AND ox.object_xref_id IN (
		      SELECT ox2.object_xref_id FROM object_xref ox2
		      JOIN xref x2 ON x2.xref_id = ox2.xref_id
		      WHERE x2.external_db_id = $1
		      GROUP BY ox2.xref_id, ox2.ensembl_object_type, ox2.ensembl_id, ox2.analysis_id
		      HAVING COUNT(*) > 1
		  )
	`, externalDBID); err != nil {
		return fmt.Errorf("delete colliding identity_xref: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM object_xref ox USING (
			SELECT MIN(ox2.ctid) AS keep_ctid, ox2.xref_id, ox2.ensembl_object_type,
			       ox2.ensembl_id, ox2.analysis_id
			FROM object_xref ox2
			JOIN xref x2 ON x2.xref_id = ox2.xref_id
			WHERE x2.external_db_id = $1
			GROUP BY ox2.xref_id, ox2.ensembl_object_type, ox2.ensembl_id, ox2.analysis_id
			HAVING COUNT(*) > 1
		) dup
		WHERE ox.xref_id = dup.xref_id AND ox.ensembl_object_type = dup.ensembl_object_type
		  AND ox.ensembl_id = dup.ensembl_id AND ox.analysis_id = dup.analysis_id AND ox.ctid != dup.keep_ctid
	`, externalDBID); err != nil {
		return fmt.Errorf("delete colliding object_xref: %w", err)
	}

	n.metrics.IncrementCounter(telemetry.MetricBiomartCollisions, 1)
	return nil
}
