package xrefstore

import (
	"context"
	"database/sql"
	"fmt"

	"xrefsync/internal/xrefmodel"
)

// SourceGroup is one (source_id, info_type) bucket of DUMP_OUT xrefs, as
// returned by XrefsByDumpOut.
type SourceGroup struct {
	SourceID            int
	Name                string
	InfoType            xrefmodel.InfoType
	Count                int
	PriorityDescription string
	Release              string
}

// IdentityRow is one joined (xref, object_xref, identity) row from the
// mapped-load streams, ordered by xref_id so the Loader can detect the
// first row of a new xref by watching for a value change.
type IdentityRow struct {
	Xref         xrefmodel.Xref
	ObjectXref   xrefmodel.ObjectXref
	HasIdentity  bool
	Identity     xrefmodel.IdentityXref
}

// DependentRow is one joined (xref, object_xref, dependent) row, ordered by
// (xref_id, ensembl_id).
type DependentRow struct {
	Xref         xrefmodel.Xref
	ObjectXref   xrefmodel.ObjectXref
	MasterXrefID *int
}

// UnmappedCandidate is a row whose dumped column is still NULL and whose
// ox_status is not FAILED_PRIORITY — a candidate for one of the unmapped
// load phases.
type UnmappedCandidate struct {
	Xref        xrefmodel.Xref
	EnsemblID   *int
	ObjectType  *xrefmodel.ObjectType
	QueryScore  *float64
	TargetScore *float64
	AnalysisID  int
}

// ReasonThresholds is the per-source description pair UnmappedReasonRegistry
// builds from source_mapping_method ⋈ mapping.
type ReasonThresholds struct {
	SourceID    int
	Summary     string
	Description string
}

// AltAlleleHashes is the pair of maps AltAlleleResolver needs: which gene
// each alt belongs to, and which alts belong to each reference.
type AltAlleleHashes struct {
	AltToRef map[int]int
	RefToAlt map[int][]int
}

// StagingStore is typed, streaming access to the staging schema. Every
// stream method returns an Iterator wrapping a server-side
// cursor; callers must Close it even on early abandonment.
type StagingStore interface {
	XrefsByDumpOut(ctx context.Context) (Iterator[SourceGroup], error)
	IdentityXrefs(ctx context.Context, sourceID int, infoType xrefmodel.InfoType) (Iterator[IdentityRow], error)
	ChecksumXrefs(ctx context.Context, sourceID int) (Iterator[IdentityRow], error)
	DependentXrefs(ctx context.Context, sourceID int) (Iterator[DependentRow], error)

	DirectUnmappedLowPriority(ctx context.Context) (Iterator[UnmappedCandidate], error)
	DependentUnmappedLowPriority(ctx context.Context) (Iterator[UnmappedCandidate], error)
	SequenceUnmappedRemaining(ctx context.Context) (Iterator[UnmappedCandidate], error)
	MiscUnmapped(ctx context.Context) (Iterator[UnmappedCandidate], error)
	OtherUnmapped(ctx context.Context) (Iterator[UnmappedCandidate], error)

	SynonymsForXrefs(ctx context.Context, xrefIDs []int) (Iterator[xrefmodel.Synonym], error)
	UnmappedReasons(ctx context.Context) ([]ReasonThresholds, error)
	AltAlleleHashes(ctx context.Context) (AltAlleleHashes, error)

	Species(ctx context.Context) (Iterator[xrefmodel.Species], error)
	Pairs(ctx context.Context) (Iterator[xrefmodel.Pair], error)

	MarkDumped(ctx context.Context, xrefIDs []int, status xrefmodel.DumpedState) error
	ResetDumpedUnlessAnotherPriority(ctx context.Context) error
	InsertProcessStatus(ctx context.Context, status string) error
	LatestProcessStatus(ctx context.Context) (xrefmodel.ProcessStatus, bool, error)
}

// mysqlStagingStore is the only StagingStore implementation; the staging
// schema is historically MySQL (Ensembl's xref-pipeline database).
type mysqlStagingStore struct {
	db        *sql.DB
	speciesID int
}

// NewMySQLStagingStore builds a StagingStore scoped to one species_id, the
// Loader's unit of work.
func NewMySQLStagingStore(db *sql.DB, speciesID int) StagingStore {
	return &mysqlStagingStore{db: db, speciesID: speciesID}
}

func (s *mysqlStagingStore) XrefsByDumpOut(ctx context.Context) (Iterator[SourceGroup], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.source_id, s.name, x.info_type, COUNT(*), s.priority_description, s.release
		FROM xref x
		JOIN source s ON s.source_id = x.source_id
		JOIN object_xref ox ON ox.xref_id = x.xref_id
		WHERE x.species_id = ? AND ox.ox_status = 'DUMP_OUT'
		GROUP BY s.source_id, x.info_type
		ORDER BY s.source_id, x.info_type
	`, s.speciesID)
	if err != nil {
		return nil, fmt.Errorf("xrefs by dump_out: %w", err)
	}
	return newRowIterator(rows, scanSourceGroup), nil
}

func scanSourceGroup(rows *sql.Rows) (SourceGroup, error) {
	var g SourceGroup
	var infoType string
	if err := rows.Scan(&g.SourceID, &g.Name, &infoType, &g.Count, &g.PriorityDescription, &g.Release); err != nil {
		return g, err
	}
	g.InfoType = xrefmodel.InfoType(infoType)
	return g, nil
}

const identityRowQuery = `
	SELECT x.xref_id, x.accession, x.label, x.version, x.description, x.info_type, x.info_text, x.source_id,
	       ox.object_xref_id, ox.ensembl_id, ox.ensembl_object_type, ox.ox_status, ox.master_xref_id, ox.linkage_annotation,
	       ix.query_identity, ix.target_identity, ix.hit_start, ix.hit_end, ix.translation_start, ix.translation_end,
	       ix.cigar_line, ix.score, ix.evalue
	FROM xref x
	JOIN object_xref ox ON ox.xref_id = x.xref_id
	LEFT JOIN identity_xref ix ON ix.object_xref_id = ox.object_xref_id
	WHERE x.species_id = ? AND x.source_id = ? AND x.info_type = ? AND ox.ox_status = 'DUMP_OUT'
	ORDER BY x.xref_id, ox.ensembl_id
`

func (s *mysqlStagingStore) IdentityXrefs(ctx context.Context, sourceID int, infoType xrefmodel.InfoType) (Iterator[IdentityRow], error) {
	rows, err := s.db.QueryContext(ctx, identityRowQuery, s.speciesID, sourceID, string(infoType))
	if err != nil {
		return nil, fmt.Errorf("identity xrefs for source %d/%s: %w", sourceID, infoType, err)
	}
	return newRowIterator(rows, scanIdentityRow), nil
}

func (s *mysqlStagingStore) ChecksumXrefs(ctx context.Context, sourceID int) (Iterator[IdentityRow], error) {
	rows, err := s.db.QueryContext(ctx, identityRowQuery, s.speciesID, sourceID, string(xrefmodel.InfoTypeChecksum))
	if err != nil {
		return nil, fmt.Errorf("checksum xrefs for source %d: %w", sourceID, err)
	}
	return newRowIterator(rows, scanIdentityRow), nil
}

func scanIdentityRow(rows *sql.Rows) (IdentityRow, error) {
	var r IdentityRow
	var infoType, objType, status string
	var linkageAnnotation sql.NullString
	var masterXrefID sql.NullInt64
	var qID, tID, hitStart, hitEnd, tStart, tEnd sql.NullInt64
	var cigar sql.NullString
	var score, evalue sql.NullFloat64

	err := rows.Scan(
		&r.Xref.XrefID, &r.Xref.Accession, &r.Xref.Label, &r.Xref.Version, &r.Xref.Description, &infoType, &r.Xref.InfoText, &r.Xref.SourceID,
		&r.ObjectXref.ObjectXrefID, &r.ObjectXref.EnsemblID, &objType, &status, &masterXrefID, &linkageAnnotation,
		&qID, &tID, &hitStart, &hitEnd, &tStart, &tEnd, &cigar, &score, &evalue,
	)
	if err != nil {
		return r, err
	}
	r.Xref.InfoType = xrefmodel.InfoType(infoType)
	r.ObjectXref.XrefID = r.Xref.XrefID
	r.ObjectXref.EnsemblObjectType = xrefmodel.ObjectType(objType)
	r.ObjectXref.Status = xrefmodel.ObjectXrefStatus(status)
	if linkageAnnotation.Valid {
		r.ObjectXref.LinkageAnnotation = linkageAnnotation.String
	}
	if masterXrefID.Valid {
		v := int(masterXrefID.Int64)
		r.ObjectXref.MasterXrefID = &v
	}
	if score.Valid {
		r.HasIdentity = true
		r.Identity = xrefmodel.IdentityXref{
			ObjectXrefID:     r.ObjectXref.ObjectXrefID,
			QueryIdentity:    int(qID.Int64),
			TargetIdentity:   int(tID.Int64),
			HitStart:         int(hitStart.Int64),
			HitEnd:           int(hitEnd.Int64),
			TranslationStart: int(tStart.Int64),
			TranslationEnd:   int(tEnd.Int64),
			CigarLine:        cigar.String,
			Score:            score.Float64,
			Evalue:           evalue.Float64,
		}
	}
	return r, nil
}

func (s *mysqlStagingStore) DependentXrefs(ctx context.Context, sourceID int) (Iterator[DependentRow], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x.xref_id, x.accession, x.label, x.version, x.description, x.info_type, x.info_text, x.source_id,
		       ox.object_xref_id, ox.ensembl_id, ox.ensembl_object_type, ox.ox_status, ox.master_xref_id
		FROM xref x
		JOIN object_xref ox ON ox.xref_id = x.xref_id
		WHERE x.species_id = ? AND x.source_id = ? AND x.info_type = 'DEPENDENT' AND ox.ox_status = 'DUMP_OUT'
		ORDER BY x.xref_id, ox.ensembl_id
	`, s.speciesID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("dependent xrefs for source %d: %w", sourceID, err)
	}
	return newRowIterator(rows, scanDependentRow), nil
}

func scanDependentRow(rows *sql.Rows) (DependentRow, error) {
	var r DependentRow
	var infoType, objType, status string
	var masterXrefID sql.NullInt64
	if err := rows.Scan(
		&r.Xref.XrefID, &r.Xref.Accession, &r.Xref.Label, &r.Xref.Version, &r.Xref.Description, &infoType, &r.Xref.InfoText, &r.Xref.SourceID,
		&r.ObjectXref.ObjectXrefID, &r.ObjectXref.EnsemblID, &objType, &status, &masterXrefID,
	); err != nil {
		return r, err
	}
	r.Xref.InfoType = xrefmodel.InfoType(infoType)
	r.ObjectXref.XrefID = r.Xref.XrefID
	r.ObjectXref.EnsemblObjectType = xrefmodel.ObjectType(objType)
	r.ObjectXref.Status = xrefmodel.ObjectXrefStatus(status)
	if masterXrefID.Valid {
		v := int(masterXrefID.Int64)
		r.MasterXrefID = &v
		r.ObjectXref.MasterXrefID = &v
	}
	return r, nil
}

const unmappedCandidateQuery = `
	SELECT x.xref_id, x.accession, x.label, x.version, x.description, x.info_type, x.info_text, x.source_id,
	       ox.ensembl_id, ox.ensembl_object_type, ox.analysis_id, ix.query_identity, ix.target_identity
	FROM xref x
	LEFT JOIN object_xref ox ON ox.xref_id = x.xref_id AND ox.ox_status != 'FAILED_PRIORITY'
	LEFT JOIN identity_xref ix ON ix.object_xref_id = ox.object_xref_id
	WHERE x.species_id = ? AND x.dumped IS NULL AND x.info_type = ?
`

func (s *mysqlStagingStore) queryUnmapped(ctx context.Context, infoType xrefmodel.InfoType) (Iterator[UnmappedCandidate], error) {
	rows, err := s.db.QueryContext(ctx, unmappedCandidateQuery, s.speciesID, string(infoType))
	if err != nil {
		return nil, fmt.Errorf("unmapped candidates for %s: %w", infoType, err)
	}
	return newRowIterator(rows, scanUnmappedCandidate), nil
}

func scanUnmappedCandidate(rows *sql.Rows) (UnmappedCandidate, error) {
	var c UnmappedCandidate
	var infoType string
	var ensemblID sql.NullInt64
	var objType sql.NullString
	var analysisID sql.NullInt64
	var qScore, tScore sql.NullFloat64

	if err := rows.Scan(
		&c.Xref.XrefID, &c.Xref.Accession, &c.Xref.Label, &c.Xref.Version, &c.Xref.Description, &infoType, &c.Xref.InfoText, &c.Xref.SourceID,
		&ensemblID, &objType, &analysisID, &qScore, &tScore,
	); err != nil {
		return c, err
	}
	c.Xref.InfoType = xrefmodel.InfoType(infoType)
	if ensemblID.Valid {
		v := int(ensemblID.Int64)
		c.EnsemblID = &v
	}
	if objType.Valid {
		t := xrefmodel.ObjectType(objType.String)
		c.ObjectType = &t
	}
	if analysisID.Valid {
		c.AnalysisID = int(analysisID.Int64)
	}
	if qScore.Valid {
		c.QueryScore = &qScore.Float64
	}
	if tScore.Valid {
		c.TargetScore = &tScore.Float64
	}
	return c, nil
}

// DirectUnmappedLowPriority streams DIRECT xrefs with no surviving stable id
// with reason NO_STABLE_ID.
func (s *mysqlStagingStore) DirectUnmappedLowPriority(ctx context.Context) (Iterator[UnmappedCandidate], error) {
	return s.queryUnmapped(ctx, xrefmodel.InfoTypeDirect)
}

// MiscUnmapped streams MISC xrefs that never resolved (reason NO_MAPPING).
func (s *mysqlStagingStore) MiscUnmapped(ctx context.Context) (Iterator[UnmappedCandidate], error) {
	return s.queryUnmapped(ctx, xrefmodel.InfoTypeMisc)
}

// DependentUnmappedLowPriority streams DEPENDENT xrefs whose master never
// mapped (reason MASTER_FAILED).
func (s *mysqlStagingStore) DependentUnmappedLowPriority(ctx context.Context) (Iterator[UnmappedCandidate], error) {
	return s.queryUnmapped(ctx, xrefmodel.InfoTypeDependent)
}

// SequenceUnmappedRemaining streams SEQUENCE_MATCH xrefs below the
// per-source identity thresholds (reason FAILED_MAP or a threshold reason).
func (s *mysqlStagingStore) SequenceUnmappedRemaining(ctx context.Context) (Iterator[UnmappedCandidate], error) {
	return s.queryUnmapped(ctx, xrefmodel.InfoTypeSequenceMatch)
}

// OtherUnmapped streams every remaining info_type not covered by the four
// preceding phases (reason NO_MASTER).
func (s *mysqlStagingStore) OtherUnmapped(ctx context.Context) (Iterator[UnmappedCandidate], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x.xref_id, x.accession, x.label, x.version, x.description, x.info_type, x.info_text, x.source_id,
		       ox.ensembl_id, ox.ensembl_object_type, ox.analysis_id, ix.query_identity, ix.target_identity
		FROM xref x
		LEFT JOIN object_xref ox ON ox.xref_id = x.xref_id AND ox.ox_status != 'FAILED_PRIORITY'
		LEFT JOIN identity_xref ix ON ix.object_xref_id = ox.object_xref_id
		WHERE x.species_id = ? AND x.dumped IS NULL
		  AND x.info_type NOT IN ('DIRECT', 'MISC', 'DEPENDENT', 'SEQUENCE_MATCH')
	`, s.speciesID)
	if err != nil {
		return nil, fmt.Errorf("other unmapped: %w", err)
	}
	return newRowIterator(rows, scanUnmappedCandidate), nil
}

func (s *mysqlStagingStore) SynonymsForXrefs(ctx context.Context, xrefIDs []int) (Iterator[xrefmodel.Synonym], error) {
	if len(xrefIDs) == 0 {
		return newSliceIterator[xrefmodel.Synonym](nil), nil
	}
	query, args := inClauseQuery(`SELECT xref_id, synonym FROM synonym WHERE xref_id IN (%s)`, xrefIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("synonyms for xrefs: %w", err)
	}
	return newRowIterator(rows, func(rows *sql.Rows) (xrefmodel.Synonym, error) {
		var syn xrefmodel.Synonym
		err := rows.Scan(&syn.XrefID, &syn.Synonym)
		return syn, err
	}), nil
}

// UnmappedReasons builds the per-source threshold descriptions from
// source_mapping_method ⋈ mapping.
func (s *mysqlStagingStore) UnmappedReasons(ctx context.Context) ([]ReasonThresholds, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sm.source_id, m.percent_query_cutoff, m.percent_target_cutoff
		FROM source_mapping_method sm
		JOIN mapping m ON m.method = sm.method
	`)
	if err != nil {
		return nil, fmt.Errorf("unmapped reason thresholds: %w", err)
	}
	defer rows.Close()

	var out []ReasonThresholds
	for rows.Next() {
		var sourceID int
		var qCutoff, tCutoff float64
		if err := rows.Scan(&sourceID, &qCutoff, &tCutoff); err != nil {
			return nil, err
		}
		out = append(out, ReasonThresholds{
			SourceID:    sourceID,
			Summary:     "Failed to match at thresholds",
			Description: fmt.Sprintf("Unable to match at the thresholds of %.0f%% for the query or %.0f%% for the target", qCutoff, tCutoff),
		})
	}
	return out, rows.Err()
}

// AltAlleleHashes builds the alt→ref and ref→alts maps AltAlleleResolver
// consumes, from the staging alt_allele table.
func (s *mysqlStagingStore) AltAlleleHashes(ctx context.Context) (AltAlleleHashes, error) {
	h := AltAlleleHashes{AltToRef: map[int]int{}, RefToAlt: map[int][]int{}}
	rows, err := s.db.QueryContext(ctx, `SELECT alt_gene_id, ref_gene_id FROM alt_allele`)
	if err != nil {
		return h, fmt.Errorf("alt allele hashes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var alt, ref int
		if err := rows.Scan(&alt, &ref); err != nil {
			return h, err
		}
		h.AltToRef[alt] = ref
		h.RefToAlt[ref] = append(h.RefToAlt[ref], alt)
	}
	return h, rows.Err()
}

func (s *mysqlStagingStore) Species(ctx context.Context) (Iterator[xrefmodel.Species], error) {
	rows, err := s.db.QueryContext(ctx, `SELECT species_id, production_name FROM species`)
	if err != nil {
		return nil, fmt.Errorf("species: %w", err)
	}
	return newRowIterator(rows, func(rows *sql.Rows) (xrefmodel.Species, error) {
		var sp xrefmodel.Species
		err := rows.Scan(&sp.SpeciesID, &sp.ProductionName)
		return sp, err
	}), nil
}

func (s *mysqlStagingStore) Pairs(ctx context.Context) (Iterator[xrefmodel.Pair], error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source1, source2 FROM pairs`)
	if err != nil {
		return nil, fmt.Errorf("pairs: %w", err)
	}
	return newRowIterator(rows, func(rows *sql.Rows) (xrefmodel.Pair, error) {
		var p xrefmodel.Pair
		err := rows.Scan(&p.Source1, &p.Source2)
		return p, err
	}), nil
}

func (s *mysqlStagingStore) MarkDumped(ctx context.Context, xrefIDs []int, status xrefmodel.DumpedState) error {
	if len(xrefIDs) == 0 {
		return nil
	}
	query, args := inClauseQuery(`UPDATE xref SET dumped = ? WHERE xref_id IN (%s)`, xrefIDs)
	args = append([]interface{}{string(status)}, args...)
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark dumped: %w", err)
	}
	return nil
}

// ResetDumpedUnlessAnotherPriority clears every dumped flag except
// NO_DUMP_ANOTHER_PRIORITY (invariant 5), making a re-entrant Update safe.
func (s *mysqlStagingStore) ResetDumpedUnlessAnotherPriority(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE xref SET dumped = NULL
		WHERE species_id = ? AND (dumped IS NULL OR dumped != ?)
	`, s.speciesID, string(xrefmodel.DumpedNoDumpAnotherPriority))
	if err != nil {
		return fmt.Errorf("reset dumped flags: %w", err)
	}
	return nil
}

func (s *mysqlStagingStore) InsertProcessStatus(ctx context.Context, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_status (status, species_id, status_time) VALUES (?, ?, UNIX_TIMESTAMP())
	`, status, s.speciesID)
	if err != nil {
		return fmt.Errorf("insert process status %q: %w", status, err)
	}
	return nil
}

func (s *mysqlStagingStore) LatestProcessStatus(ctx context.Context) (xrefmodel.ProcessStatus, bool, error) {
	var ps xrefmodel.ProcessStatus
	row := s.db.QueryRowContext(ctx, `
		SELECT status, status_time FROM process_status WHERE species_id = ? ORDER BY status_time DESC LIMIT 1
	`, s.speciesID)
	if err := row.Scan(&ps.Status, &ps.Timestamp); err != nil {
		if err == sql.ErrNoRows {
			return ps, false, nil
		}
		return ps, false, fmt.Errorf("latest process status: %w", err)
	}
	return ps, true, nil
}

// inClauseQuery expands a `%s` placeholder into `?, ?, ...` for len(ids)
// arguments, returning the finished query and the matching arg slice.
func inClauseQuery(template string, ids []int) (string, []interface{}) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',', ' ')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return fmt.Sprintf(template, string(placeholders)), args
}
