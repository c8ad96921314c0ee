package xrefstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"xrefsync/internal/xrefmodel"
)

// Offsets is the pair of additive offsets OffsetAllocator computes: every
// staging id the Loader writes is promoted as staging_id +
// offset, guaranteeing collision-free promotion without renumbering.
type Offsets struct {
	XrefOffset       int
	ObjectXrefOffset int
}

// CoreStore is typed access to the production core schema. Every method
// that mutates state takes the caller's pgx.Tx explicitly — the Loader
// opens exactly one transaction per phase and every CoreStore call within
// that phase shares it.
type CoreStore interface {
	BeginPhase(ctx context.Context) (pgx.Tx, error)

	ExternalDBByName(ctx context.Context, tx pgx.Tx) (map[string]int, error)
	DeleteProjected(ctx context.Context, tx pgx.Tx) error
	DeleteByExternalDB(ctx context.Context, tx pgx.Tx, externalDBID int) error
	ReadOffsets(ctx context.Context, tx pgx.Tx) (Offsets, error)
	PersistOffsets(ctx context.Context, tx pgx.Tx, o Offsets) error

	UpsertXref(ctx context.Context, tx pgx.Tx, x xrefmodel.Xref, offset int) (int, error)
	UpsertObjectXref(ctx context.Context, tx pgx.Tx, ox xrefmodel.ObjectXref, offset int) (int, error)
	AddIdentityXref(ctx context.Context, tx pgx.Tx, ix xrefmodel.IdentityXref) error
	AddDependentXref(ctx context.Context, tx pgx.Tx, dx xrefmodel.DependentXref) error
	AddSynonym(ctx context.Context, tx pgx.Tx, syn xrefmodel.Synonym) error

	EnsureAnalysis(ctx context.Context, tx pgx.Tx, logicName string) (int, error)

	AddUnmappedReason(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error)
	FindUnmappedReason(ctx context.Context, tx pgx.Tx, descLikePattern string) (int, bool, error)
	AddUnmappedObject(ctx context.Context, tx pgx.Tx, row xrefmodel.UnmappedObject) error

	SetSourceRelease(ctx context.Context, tx pgx.Tx, externalDBID int, release string) error

	UnlinkedEntries(ctx context.Context, tx pgx.Tx) (int, error)
	SourcesWithMultipleTypes(ctx context.Context, tx pgx.Tx) ([]int, error)
}

type postgresCoreStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCoreStore builds a CoreStore backed by the core Postgres pool.
func NewPostgresCoreStore(pool *pgxpool.Pool) CoreStore {
	return &postgresCoreStore{pool: pool}
}

func (c *postgresCoreStore) BeginPhase(ctx context.Context) (pgx.Tx, error) {
	return c.pool.Begin(ctx)
}

func (c *postgresCoreStore) ExternalDBByName(ctx context.Context, tx pgx.Tx) (map[string]int, error) {
	rows, err := tx.Query(ctx, `SELECT external_db_id, db_name FROM external_db`)
	if err != nil {
		return nil, fmt.Errorf("external_db by name: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// DeleteProjected removes every info_type='PROJECTION' xref and its
// dependents, ahead of every load.
func (c *postgresCoreStore) DeleteProjected(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM identity_xref ix
		USING object_xref ox, xref x
		WHERE ix.object_xref_id = ox.object_xref_id AND ox.xref_id = x.xref_id AND x.info_type = 'PROJECTION'
	`)
	if err != nil {
		return fmt.Errorf("delete projected identity_xref: %w", err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM object_xref ox
		USING xref x
		WHERE ox.xref_id = x.xref_id AND x.info_type = 'PROJECTION'
	`)
	if err != nil {
		return fmt.Errorf("delete projected object_xref: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM xref WHERE info_type = 'PROJECTION'`); err != nil {
		return fmt.Errorf("delete projected xref: %w", err)
	}
	return nil
}

// DeleteByExternalDB cascades over the eight tables the xref graph touches,
// in a fixed order, inside the caller's tx.
func (c *postgresCoreStore) DeleteByExternalDB(ctx context.Context, tx pgx.Tx, externalDBID int) error {
	stmts := []string{
		`DELETE FROM external_synonym WHERE xref_id IN (SELECT xref_id FROM xref WHERE external_db_id = $1)`,
		`DELETE FROM ontology_xref WHERE object_xref_id IN (
			SELECT object_xref_id FROM object_xref ox JOIN xref x ON x.xref_id = ox.xref_id WHERE x.external_db_id = $1)`,
		`DELETE FROM identity_xref WHERE object_xref_id IN (
			SELECT object_xref_id FROM object_xref ox JOIN xref x ON x.xref_id = ox.xref_id WHERE x.external_db_id = $1)`,
		`DELETE FROM object_xref WHERE xref_id IN (SELECT xref_id FROM xref WHERE external_db_id = $1)`,
		`DELETE FROM dependent_xref WHERE master_xref_id IN (SELECT xref_id FROM xref WHERE external_db_id = $1)`,
		`DELETE FROM dependent_xref WHERE dependent_xref_id IN (SELECT xref_id FROM xref WHERE external_db_id = $1)`,
		`DELETE FROM xref WHERE external_db_id = $1`,
		`DELETE FROM unmapped_object WHERE external_db_id = $1`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt, externalDBID); err != nil {
			return fmt.Errorf("delete by external_db %d: %w", externalDBID, err)
		}
	}
	return nil
}

func (c *postgresCoreStore) ReadOffsets(ctx context.Context, tx pgx.Tx) (Offsets, error) {
	var o Offsets
	err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(xref_id), 0) FROM xref`).Scan(&o.XrefOffset)
	if err != nil {
		return o, fmt.Errorf("read xref offset: %w", err)
	}
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(object_xref_id), 0) FROM object_xref`).Scan(&o.ObjectXrefOffset)
	if err != nil {
		return o, fmt.Errorf("read object_xref offset: %w", err)
	}
	return o, nil
}

// PersistOffsets writes the offsets into the core meta table, overwriting
// any earlier values. Nothing reads them back: every run recomputes its
// offsets from the current maxima via ReadOffsets.
func (c *postgresCoreStore) PersistOffsets(ctx context.Context, tx pgx.Tx, o Offsets) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO meta (meta_key, meta_value) VALUES ('xref_offset', $1), ('object_xref_offset', $2)
		ON CONFLICT (meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value
	`, o.XrefOffset, o.ObjectXrefOffset)
	if err != nil {
		return fmt.Errorf("persist offsets: %w", err)
	}
	return nil
}

// UpsertXref selects on the full uniqueness key first (invariant 2); if
// found, returns the existing id minus the caller's offset so downstream
// code can keep applying the same offset arithmetic uniformly. Otherwise
// it inserts with the caller-supplied id plus offset.
func (c *postgresCoreStore) UpsertXref(ctx context.Context, tx pgx.Tx, x xrefmodel.Xref, offset int) (int, error) {
	var existingID int
	err := tx.QueryRow(ctx, `
		SELECT xref_id FROM xref
		WHERE accession = $1 AND external_db_id = $2 AND info_type = $3 AND info_text = $4 AND version = $5
	`, x.Accession, x.ExternalDBID, string(x.InfoType), x.InfoText, x.Version).Scan(&existingID)
	if err == nil {
		return existingID - offset, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("upsert xref lookup %s: %w", x.Accession, err)
	}

	coreID := x.XrefID + offset
	_, err = tx.Exec(ctx, `
		INSERT INTO xref (xref_id, accession, label, version, description, info_type, info_text, external_db_id, species_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, coreID, x.Accession, x.Label, x.Version, xrefmodel.TruncateDescription(x.Description), string(x.InfoType), x.InfoText, x.ExternalDBID, x.SpeciesID)
	if err != nil {
		return 0, fmt.Errorf("upsert xref insert %s: %w", x.Accession, err)
	}
	return x.XrefID, nil
}

// UpsertObjectXref is UpsertXref's analogue keyed on
// (xref_id, ensembl_object_type, ensembl_id, analysis_id).
func (c *postgresCoreStore) UpsertObjectXref(ctx context.Context, tx pgx.Tx, ox xrefmodel.ObjectXref, offset int) (int, error) {
	var existingID int
	err := tx.QueryRow(ctx, `
		SELECT object_xref_id FROM object_xref
		WHERE xref_id = $1 AND ensembl_object_type = $2 AND ensembl_id = $3 AND analysis_id = $4
	`, ox.XrefID, string(ox.EnsemblObjectType), ox.EnsemblID, ox.AnalysisID).Scan(&existingID)
	if err == nil {
		return existingID - offset, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("upsert object_xref lookup: %w", err)
	}

	coreID := ox.ObjectXrefID + offset
	_, err = tx.Exec(ctx, `
		INSERT INTO object_xref (object_xref_id, xref_id, ensembl_id, ensembl_object_type, analysis_id, ox_status, master_xref_id, linkage_annotation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, coreID, ox.XrefID, ox.EnsemblID, string(ox.EnsemblObjectType), ox.AnalysisID, string(ox.Status), ox.MasterXrefID, nullableString(ox.LinkageAnnotation))
	if err != nil {
		return 0, fmt.Errorf("upsert object_xref insert: %w", err)
	}
	return ox.ObjectXrefID, nil
}

func (c *postgresCoreStore) AddIdentityXref(ctx context.Context, tx pgx.Tx, ix xrefmodel.IdentityXref) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO identity_xref (object_xref_id, query_identity, target_identity, hit_start, hit_end,
			translation_start, translation_end, cigar_line, score, evalue)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (object_xref_id) DO NOTHING
	`, ix.ObjectXrefID, ix.QueryIdentity, ix.TargetIdentity, ix.HitStart, ix.HitEnd,
		ix.TranslationStart, ix.TranslationEnd, ix.CigarLine, ix.Score, ix.Evalue)
	if err != nil {
		return fmt.Errorf("add identity_xref for object_xref %d: %w", ix.ObjectXrefID, err)
	}
	return nil
}

func (c *postgresCoreStore) AddDependentXref(ctx context.Context, tx pgx.Tx, dx xrefmodel.DependentXref) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO dependent_xref (master_xref_id, dependent_xref_id, linkage_annotation, linkage_source_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (master_xref_id, dependent_xref_id) DO NOTHING
	`, dx.MasterXrefID, dx.DependentXrefID, dx.LinkageAnnotation, dx.LinkageSourceID)
	if err != nil {
		return fmt.Errorf("add dependent_xref %d->%d: %w", dx.MasterXrefID, dx.DependentXrefID, err)
	}
	return nil
}

func (c *postgresCoreStore) AddSynonym(ctx context.Context, tx pgx.Tx, syn xrefmodel.Synonym) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO external_synonym (xref_id, synonym) VALUES ($1, $2)
		ON CONFLICT (xref_id, synonym) DO NOTHING
	`, syn.XrefID, syn.Synonym)
	if err != nil {
		return fmt.Errorf("add synonym for xref %d: %w", syn.XrefID, err)
	}
	return nil
}

// EnsureAnalysis selects or creates an analysis row. The Loader only ever
// needs xrefexoneratedna, xrefexonerateprotein, and xrefchecksum.
func (c *postgresCoreStore) EnsureAnalysis(ctx context.Context, tx pgx.Tx, logicName string) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `SELECT analysis_id FROM analysis WHERE logic_name = $1`, logicName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("ensure analysis lookup %s: %w", logicName, err)
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO analysis (logic_name, created) VALUES ($1, now()) RETURNING analysis_id
	`, logicName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure analysis insert %s: %w", logicName, err)
	}
	return id, nil
}

func (c *postgresCoreStore) AddUnmappedReason(ctx context.Context, tx pgx.Tx, summary, desc string) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO unmapped_reason (summary, full_description) VALUES ($1, $2) RETURNING unmapped_reason_id
	`, summary, desc).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("add unmapped reason %q: %w", summary, err)
	}
	return id, nil
}

func (c *postgresCoreStore) FindUnmappedReason(ctx context.Context, tx pgx.Tx, descLikePattern string) (int, bool, error) {
	var id int
	err := tx.QueryRow(ctx, `
		SELECT unmapped_reason_id FROM unmapped_reason WHERE full_description LIKE $1 LIMIT 1
	`, descLikePattern).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find unmapped reason %q: %w", descLikePattern, err)
	}
	return id, true, nil
}

func (c *postgresCoreStore) AddUnmappedObject(ctx context.Context, tx pgx.Tx, row xrefmodel.UnmappedObject) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO unmapped_object (type, analysis_id, external_db_id, identifier, unmapped_reason_id,
			query_score, target_score, ensembl_id, ensembl_object_type, parent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, row.Type, row.AnalysisID, row.ExternalDBID, row.Identifier, row.UnmappedReasonID,
		row.QueryScore, row.TargetScore, row.EnsemblID, objectTypePtrString(row.EnsemblObjectType), row.Parent)
	if err != nil {
		return fmt.Errorf("add unmapped object %s: %w", row.Identifier, err)
	}
	return nil
}

func (c *postgresCoreStore) SetSourceRelease(ctx context.Context, tx pgx.Tx, externalDBID int, release string) error {
	if release == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE external_db SET release = $1 WHERE external_db_id = $2`, release, externalDBID)
	if err != nil {
		return fmt.Errorf("set source release for external_db %d: %w", externalDBID, err)
	}
	return nil
}

// UnlinkedEntries implements QualityChecker's first probe: any object_xref
// without a matching xref, or any identity_xref without a matching
// object_xref (invariants 1-2).
func (c *postgresCoreStore) UnlinkedEntries(ctx context.Context, tx pgx.Tx) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM object_xref ox WHERE NOT EXISTS (SELECT 1 FROM xref x WHERE x.xref_id = ox.xref_id)) +
			(SELECT COUNT(*) FROM identity_xref ix WHERE NOT EXISTS (SELECT 1 FROM object_xref ox WHERE ox.object_xref_id = ix.object_xref_id))
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unlinked entries probe: %w", err)
	}
	return count, nil
}

// SourcesWithMultipleTypes implements the biomart probe: external_db_ids
// still bound to more than one ensembl_object_type after BiomartNormaliser
// should have converged to zero rows.
func (c *postgresCoreStore) SourcesWithMultipleTypes(ctx context.Context, tx pgx.Tx) ([]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT x.external_db_id
		FROM xref x
		JOIN object_xref ox ON ox.xref_id = x.xref_id
		WHERE ox.ox_status = 'DUMP_OUT'
		GROUP BY x.external_db_id
		HAVING COUNT(DISTINCT ox.ensembl_object_type) > 1
	`)
	if err != nil {
		return nil, fmt.Errorf("sources with multiple types probe: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func objectTypePtrString(t *xrefmodel.ObjectType) interface{} {
	if t == nil {
		return nil
	}
	return string(*t)
}
