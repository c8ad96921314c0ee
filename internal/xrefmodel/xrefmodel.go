// Package xrefmodel holds the named record types shared by the staging and
// core stores. They replace the hash-of-arrays records of the originating
// Perl system with typed structs so load-path code never looks a column up
// by string key.
package xrefmodel

import "fmt"

// InfoType classifies how an Xref was linked to a feature.
type InfoType string

const (
	InfoTypeDirect        InfoType = "DIRECT"
	InfoTypeDependent     InfoType = "DEPENDENT"
	InfoTypeSequenceMatch InfoType = "SEQUENCE_MATCH"
	InfoTypeChecksum      InfoType = "CHECKSUM"
	InfoTypeInferredPair  InfoType = "INFERRED_PAIR"
	InfoTypeMisc          InfoType = "MISC"
	InfoTypeProjection    InfoType = "PROJECTION"
	InfoTypeUnmapped      InfoType = "UNMAPPED"
	// InfoTypeUnknown is observed in upstream parser comments but left
	// undefined by the column-level contract; the Loader surfaces it as a
	// DataWarning rather than guessing a classification for it.
	InfoTypeUnknown InfoType = "UNKNOWN"
)

// Valid reports whether t is one of the info_type values the column-level
// contract permits, including the deliberately-undefined InfoTypeUnknown
// which is accepted but always routed to a warning.
func (t InfoType) Valid() bool {
	switch t {
	case InfoTypeDirect, InfoTypeDependent, InfoTypeSequenceMatch, InfoTypeChecksum,
		InfoTypeInferredPair, InfoTypeMisc, InfoTypeProjection, InfoTypeUnmapped, InfoTypeUnknown:
		return true
	}
	return false
}

// ObjectType is the kind of Ensembl feature an ObjectXref binds to.
type ObjectType string

const (
	ObjectTypeGene        ObjectType = "Gene"
	ObjectTypeTranscript  ObjectType = "Transcript"
	ObjectTypeTranslation ObjectType = "Translation"
)

func (t ObjectType) Valid() bool {
	switch t {
	case ObjectTypeGene, ObjectTypeTranscript, ObjectTypeTranslation:
		return true
	}
	return false
}

// ObjectXrefStatus mirrors object_xref.ox_status.
type ObjectXrefStatus string

const (
	StatusDumpOut        ObjectXrefStatus = "DUMP_OUT"
	StatusFailedPriority ObjectXrefStatus = "FAILED_PRIORITY"
	StatusMultiDelete    ObjectXrefStatus = "MULTI_DELETE"
)

// DumpedState mirrors xref.dumped.
type DumpedState string

const (
	DumpedNone                  DumpedState = ""
	DumpedMapped                DumpedState = "MAPPED"
	DumpedUnmappedNoStableID    DumpedState = "UNMAPPED_NO_STABLE_ID"
	DumpedUnmappedNoMapping     DumpedState = "UNMAPPED_NO_MAPPING"
	DumpedUnmappedMasterFailed  DumpedState = "UNMAPPED_MASTER_FAILED"
	DumpedUnmappedNoMaster      DumpedState = "UNMAPPED_NO_MASTER"
	DumpedNoDumpAnotherPriority DumpedState = "NO_DUMP_ANOTHER_PRIORITY"
)

// descriptionMaxLen is the core xref.description truncation boundary;
// truncated strings take the "/.../" tail.
const descriptionMaxLen = 255

const truncationSuffix = " /.../"

// TruncateDescription applies the core's 255-char truncation rule.
func TruncateDescription(s string) string {
	if len(s) <= descriptionMaxLen {
		return s
	}
	cut := descriptionMaxLen - len(truncationSuffix)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + truncationSuffix
}

// Source is a staging-side provider+flavour, e.g. "RefSeq_dna_predicted".
type Source struct {
	SourceID             int
	Name                 string
	Priority              int
	PriorityDescription  string
	Release              string
}

// ExternalDB is the core-side namespace catalogue entry.
type ExternalDB struct {
	ExternalDBID int
	DBName       string
	Release      string
}

// Xref is a single external identifier and its metadata.
type Xref struct {
	XrefID       int
	Accession    string
	Label        string
	Version      string
	Description  string
	InfoType     InfoType
	InfoText     string
	SourceID     int // staging-side
	ExternalDBID int // core-side
	SpeciesID    int
	Dumped       DumpedState
}

// Key returns the core uniqueness key (accession, external_db_id, info_type,
// info_text, version) a duplicate-free load must preserve.
func (x Xref) Key() string {
	return fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%s", x.Accession, x.ExternalDBID, x.InfoType, x.InfoText, x.Version)
}

// ObjectXref binds an Xref to one feature instance.
type ObjectXref struct {
	ObjectXrefID      int
	XrefID            int
	EnsemblID         int
	EnsemblObjectType ObjectType
	AnalysisID        int
	Status            ObjectXrefStatus
	MasterXrefID      *int
	LinkageAnnotation string
}

// IdentityXref is the 1:1 alignment-quality extension of an ObjectXref.
type IdentityXref struct {
	ObjectXrefID      int
	QueryIdentity     int
	TargetIdentity    int
	HitStart          int
	HitEnd            int
	TranslationStart  int
	TranslationEnd    int
	CigarLine         string
	Score             float64
	Evalue            float64
}

// DependentXref is a DAG edge: dependent_xref_id exists because master_xref_id
// mapped to a feature.
type DependentXref struct {
	MasterXrefID     int
	DependentXrefID  int
	LinkageAnnotation string
	LinkageSourceID  int
}

// Synonym is a multi-valued alternate accession for an Xref.
type Synonym struct {
	XrefID  int
	Synonym string
}

// DirectXref is staging-only: a type-homed direct link (gene/transcript/
// translation variants collapse onto this one shape).
type DirectXref struct {
	GeneralXrefID    int
	EnsemblStableID  string
	EnsemblType      ObjectType
	LinkageXref      string
}

// AltAlleleGroup is a set of genes representing alternative loci.
type AltAlleleGroup struct {
	GroupID     int
	ReferenceGeneID int
	AltGeneIDs  []int
}

// UnmappedReason is a catalogued (summary, description) pair plus its id.
type UnmappedReason struct {
	UnmappedReasonID int
	Summary          string
	FullDescription  string
}

// Well-known unmapped reason kinds.
const (
	ReasonNoStableID  = "NO_STABLE_ID"
	ReasonFailedMap   = "FAILED_MAP"
	ReasonNoMapping   = "NO_MAPPING"
	ReasonMasterFailed = "MASTER_FAILED"
	ReasonNoMaster    = "NO_MASTER"
)

// UnmappedObject records an xref that could not be promoted, together with
// why.
type UnmappedObject struct {
	Type              string // always "xref"
	AnalysisID        int
	ExternalDBID      int
	Identifier        string
	UnmappedReasonID  int
	QueryScore        *float64
	TargetScore       *float64
	EnsemblID         *int
	EnsemblObjectType *ObjectType
	Parent            *int
}

// ProcessStatus is one append-only audit row.
type ProcessStatus struct {
	Status    string
	Timestamp int64 // unix seconds; staging stores its own clock
}

// Known ProcessStatus phases.
const (
	StatusParsingFinished          = "parsing_finished"
	StatusAltAllelesAdded          = "alt_alleles_added"
	StatusAltAllelesProcessed      = "alt_alleles_processed"
	StatusBiomartTestFinished      = "biomart_test_finished"
	StatusSourceLevelMoveFinished  = "source_level_move_finished"
	StatusMappingFinished          = "mapping_finished"
	StatusCoreLoaded               = "core_loaded"
)

// SourceMappingMethod joins source_mapping_method ⋈ mapping to provide the
// per-source threshold descriptions UnmappedReasonRegistry needs.
type SourceMappingMethod struct {
	SourceID              int
	PercentQueryCutoff    float64
	PercentTargetCutoff   float64
}

// Species is the staging species table row, consumed only as a SpeciesID
// filter on StagingStore streams.
type Species struct {
	SpeciesID      int
	ProductionName string
}

// Pair is the staging pairs table row. Nothing in the Loader consumes it
// directly; StagingStore exposes it as an inert passthrough stream for
// completeness of the persisted schema.
type Pair struct {
	Source1 string
	Source2 string
}
