// Package namespace resolves staging source names against the core
// external_db catalogue, in the same map-building and explicit
// field validation.
package namespace

import (
	"fmt"
	"strings"

	"xrefsync/internal/apperr"
)

// suppressedSuffix marks a source that is intentionally never promoted.
const suppressedSuffix = "notransfer"

// geneSpecificSources is the curated list of gene-scoped sources whose
// Gene-level bindings AltAlleleResolver moves and copies across alt-allele
// groups. Bindings of these sources on a Transcript or Translation are not
// migrated to the Gene.
var geneSpecificSources = []string{
	"HGNC", "MGI", "ZFIN_ID", "EntrezGene", "WikiGene", "MIM_GENE", "MIM_MORBID",
	"RGD", "SGD_GENE", "FlyBaseName_gene", "VGNC", "RFAM", "TRNASCAN_SE", "RNAMMER",
	"UniGene", "miRBase", "Uniprot_gn", "DBASS3", "DBASS5", "wormbase_gseqname",
	"wormbase_locus", "Xenbase",
}

// Resolver classifies staging source names into three disjoint sets:
// transferable, suppressed, rejected.
type Resolver struct {
	transferable map[string]int
	suppressed   map[string]bool

	// geneSpecific holds the subset of geneSpecificSources that actually
	// have xrefs in this run, filtered at construction time.
	geneSpecific map[string]bool
}

// NewResolver builds the three sets from the intersection of staging source
// names and the core external_db catalogue. sourcesInRun is the set of
// staging source names observed to have DUMP_OUT xrefs this run, used to
// filter the curated gene-specific list down to what is actually present.
func NewResolver(stagingNames []string, coreExternalDBs map[string]int, sourcesInRun map[string]bool) (*Resolver, error) {
	r := &Resolver{
		transferable: make(map[string]int),
		suppressed:   make(map[string]bool),
		geneSpecific: make(map[string]bool),
	}

	var rejected []string
	for _, name := range stagingNames {
		if strings.HasSuffix(name, suppressedSuffix) {
			r.suppressed[name] = true
			continue
		}
		if id, ok := coreExternalDBs[name]; ok {
			r.transferable[name] = id
			continue
		}
		rejected = append(rejected, name)
	}
	if len(rejected) > 0 {
		return nil, apperr.NewConfigError(apperr.CodeMissingExternalDB,
			fmt.Sprintf("could not find %s in external_db", strings.Join(rejected, ", ")), nil)
	}

	for _, name := range geneSpecificSources {
		if sourcesInRun[name] {
			r.geneSpecific[name] = true
		}
	}

	return r, nil
}

// Transferable returns the core external_db_id for a transferable source
// name, or false if name is suppressed or was never in the staging set.
func (r *Resolver) Transferable(name string) (int, bool) {
	id, ok := r.transferable[name]
	return id, ok
}

// Suppressed reports whether name ends in "notransfer" and was silently
// skipped rather than promoted or rejected.
func (r *Resolver) Suppressed(name string) bool {
	return r.suppressed[name]
}

// TransferableNames returns every transferable source name, for callers
// that need to iterate the whole set (the Loader's per-source purge phase).
func (r *Resolver) TransferableNames() []string {
	names := make([]string, 0, len(r.transferable))
	for name := range r.transferable {
		names = append(names, name)
	}
	return names
}

// GeneSpecific reports whether name is in the curated gene-specific list and
// has xrefs present in this run.
func (r *Resolver) GeneSpecific(name string) bool {
	return r.geneSpecific[name]
}
