package match

import (
	"sort"
	"strings"

	"github.com/oncomatch/matchengine/internal/normalize"
)

// CoordinatingCenterDFCI sorts ahead of all other coordinating centers.
const CoordinatingCenterDFCI = "Dana-Farber Cancer Institute"

// Cancer type match labels. A trial that names the patient's diagnosis is a
// specific match; one reached through the all-solid or all-liquid groups is
// not.
const (
	CancerTypeSpecific  = "specific"
	CancerTypeAllSolid  = "all_solid"
	CancerTypeAllLiquid = "all_liquid"
	CancerTypeUnknown   = "unknown"
)

// Match type labels. A variant match pins the exact protein change, a gene
// match only the gene.
const (
	MatchTypeVariant = "variant"
	MatchTypeGene    = "gene"
)

const sortSlots = 5

// sortKey ranks one (sample, protocol) pair. Slots are compared left to
// right: tier bucket, match type, cancer type, coordinating center, reverse
// protocol rank. Lower sorts first.
type sortKey [sortSlots]int

func (k sortKey) less(o sortKey) bool {
	for i := range k {
		if k[i] != o[i] {
			return k[i] < o[i]
		}
	}
	return false
}

// merge keeps the slot-wise minimum, so a protocol ranks by its strongest
// match record.
func (k *sortKey) merge(v sortKey) {
	for i := range k {
		if v[i] < k[i] {
			k[i] = v[i]
		}
	}
}

// tierBucket collapses a record's genomic evidence into one rank. Structural
// variants matched without a resolved gene outrank everything, then MMR
// deficiency, then tiers interleaved with copy number calls, with wildtype
// and clinical-only matches last.
func tierBucket(r *Record) int {
	switch {
	case r.TrueHugoSymbol == "" && strings.Contains(r.GenomicAlteration, "Structural Variation"):
		return -1
	case r.MMRStatus == normalize.MMRDeficient:
		return 0
	case r.Tier == 1:
		return 1
	case r.Tier == 2:
		return 2
	case r.VariantCategory == normalize.CategoryCNV:
		return 3
	case r.Tier == 3:
		return 4
	case r.Tier == 4:
		return 5
	case r.Wildtype != nil && *r.Wildtype:
		return 6
	default:
		return 7
	}
}

func matchTypeRank(r *Record) int {
	switch r.MatchType {
	case MatchTypeVariant:
		return 0
	case MatchTypeGene:
		return 1
	default:
		return 2
	}
}

func cancerTypeRank(r *Record) int {
	if r.CancerTypeMatch == CancerTypeSpecific {
		return 0
	}
	return 1
}

func centerRank(r *Record) int {
	if r.CoordinatingCenter == CoordinatingCenterDFCI {
		return 0
	}
	return 1
}

func vector(r *Record, protocolRank int) sortKey {
	return sortKey{tierBucket(r), matchTypeRank(r), cancerTypeRank(r), centerRank(r), protocolRank}
}

// Sort assigns SortOrder to every record and orders the slice by sample id
// and sort order. Within a sample, every record of the same protocol gets
// the same sort order; protocols rank by the slot-wise minimum vector over
// their records, with ties broken by reverse protocol number.
func Sort(records []*Record) {
	bySample := make(map[string][]*Record)
	for _, r := range records {
		bySample[r.SampleID] = append(bySample[r.SampleID], r)
	}

	for _, recs := range bySample {
		seen := make(map[string]bool)
		protocols := make([]string, 0, len(recs))
		for _, r := range recs {
			if !seen[r.ProtocolNo] {
				seen[r.ProtocolNo] = true
				protocols = append(protocols, r.ProtocolNo)
			}
		}
		sort.Sort(sort.Reverse(sort.StringSlice(protocols)))
		rank := make(map[string]int, len(protocols))
		for i, p := range protocols {
			rank[p] = i
		}

		keys := make(map[string]sortKey, len(protocols))
		for _, r := range recs {
			v := vector(r, rank[r.ProtocolNo])
			if k, ok := keys[r.ProtocolNo]; ok {
				k.merge(v)
				keys[r.ProtocolNo] = k
			} else {
				keys[r.ProtocolNo] = v
			}
		}

		order := make([]string, 0, len(keys))
		for p := range keys {
			order = append(order, p)
		}
		sort.Slice(order, func(i, j int) bool {
			ki, kj := keys[order[i]], keys[order[j]]
			if ki != kj {
				return ki.less(kj)
			}
			return order[i] < order[j]
		})
		orderOf := make(map[string]int, len(order))
		for i, p := range order {
			orderOf[p] = i
		}
		for _, r := range recs {
			r.SortOrder = orderOf[r.ProtocolNo]
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].SampleID != records[j].SampleID {
			return records[i].SampleID < records[j].SampleID
		}
		return records[i].SortOrder < records[j].SortOrder
	})
}
