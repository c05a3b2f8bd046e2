package engine

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/oncomatch/matchengine/internal/annotation"
	"github.com/oncomatch/matchengine/internal/criteria"
	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/store"
)

// Evidence is one genomic alteration that satisfied a genomic leaf for a
// sample. Genomic is nil for complement matches, which carry a synthetic
// alteration instead of a stored row.
type Evidence struct {
	SampleID   string
	Leaf       int
	Alteration string
	MatchType  string
	Genomic    *store.Genomic
}

// evaluator runs leaf criteria against the store. Invalid or empty criteria
// degrade to an empty result with a warning; store failures propagate.
type evaluator struct {
	store    store.Store
	compiler *criteria.Compiler
	catalog  annotation.Catalog
	method   string
	logger   *zap.Logger

	// sample universe for complement queries, sorted for determinism
	allIDs []string
	allSet map[string]bool
}

func newEvaluator(st store.Store, compiler *criteria.Compiler, method string, catalog annotation.Catalog, sampleIDs []string, logger *zap.Logger) *evaluator {
	ids := append([]string(nil), sampleIDs...)
	sort.Strings(ids)
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return &evaluator{
		store:    st,
		compiler: compiler,
		catalog:  catalog,
		method:   method,
		logger:   logger,
		allIDs:   ids,
		allSet:   set,
	}
}

// clinicalSamples evaluates a clinical leaf into the set of matching sample
// ids.
func (ev *evaluator) clinicalSamples(ctx context.Context, leaf int, crit *criteria.Clinical) (map[string]bool, error) {
	if crit.Empty() {
		ev.logger.Warn("clinical criteria empty, matching nothing", zap.Int("node", leaf))
		return map[string]bool{}, nil
	}
	f, err := ev.compiler.CompileClinical(crit)
	if err != nil {
		ev.logger.Warn("clinical criteria invalid, matching nothing",
			zap.Int("node", leaf), zap.Error(err))
		return map[string]bool{}, nil
	}
	ids, err := ev.store.ClinicalSampleIDs(ctx, f)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// genomicMatches evaluates a genomic leaf into the matching sample set and
// the evidence behind it. Under the annotated method a leaf declaring an
// annotated variant resolves through the catalog, intersected with the
// general result when the leaf also constrains general criteria.
func (ev *evaluator) genomicMatches(ctx context.Context, leaf int, crit *criteria.Genomic) (map[string]bool, []Evidence, error) {
	if crit.Empty() {
		ev.logger.Warn("genomic criteria empty, matching nothing", zap.Int("node", leaf))
		return map[string]bool{}, nil, nil
	}

	if ev.method != MethodAnnotated || crit.AnnotatedVariant == "" {
		return ev.generalMatch(ctx, leaf, crit)
	}

	annSet, annEvs, err := ev.annotatedMatch(ctx, leaf, crit)
	if err != nil {
		return nil, nil, err
	}
	if !wantsGeneral(crit) {
		return annSet, annEvs, nil
	}

	genSet, _, err := ev.generalMatch(ctx, leaf, crit)
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	for id := range annSet {
		if genSet[id] {
			set[id] = true
		}
	}
	evs := annEvs[:0:0]
	for _, e := range annEvs {
		if set[e.SampleID] {
			evs = append(evs, e)
		}
	}
	return set, evs, nil
}

// wantsGeneral reports whether an annotated leaf also constrains general
// criteria. The gene symbol alone does not: it is part of the annotated
// lookup itself.
func wantsGeneral(crit *criteria.Genomic) bool {
	if len(crit.HugoSymbol) == 0 {
		return false
	}
	return len(crit.VariantCategory) > 0 || len(crit.ProteinChange) > 0 ||
		len(crit.WildcardProteinChange) > 0 || len(crit.VariantClassification) > 0 ||
		crit.Exon != "" || len(crit.CNVCall) > 0 || crit.Wildtype != "" ||
		len(crit.MMRStatus) > 0
}

func (ev *evaluator) generalMatch(ctx context.Context, leaf int, crit *criteria.Genomic) (map[string]bool, []Evidence, error) {
	q, err := ev.compiler.CompileGenomic(crit)
	if err != nil {
		ev.logger.Warn("genomic criteria invalid, matching nothing",
			zap.Int("node", leaf), zap.Error(err))
		return map[string]bool{}, nil, nil
	}
	rows, err := ev.store.FindGenomic(ctx, q.Filter)
	if err != nil {
		return nil, nil, err
	}

	if q.Negative {
		matched := make(map[string]bool, len(rows))
		for _, row := range rows {
			matched[row.SampleID] = true
		}
		return ev.complement(leaf, matched, q.MatchType, q.NegAlteration)
	}

	set := make(map[string]bool, len(rows))
	evs := make([]Evidence, 0, len(rows))
	for _, row := range rows {
		set[row.SampleID] = true
		evs = append(evs, Evidence{
			SampleID:   row.SampleID,
			Leaf:       leaf,
			Alteration: formatAlteration(row),
			MatchType:  q.MatchType,
			Genomic:    row,
		})
	}
	return set, evs, nil
}

// annotatedMatch resolves a declared variant class through the annotation
// catalog. Amplification, Deletion and MSI-H map onto copy number and
// mismatch repair rows; Wildtype negates the gene; anything else matches
// the protein changes the catalog resolved for the class.
func (ev *evaluator) annotatedMatch(ctx context.Context, leaf int, crit *criteria.Genomic) (map[string]bool, []Evidence, error) {
	var rawGene string
	if len(crit.HugoSymbol) > 0 {
		rawGene = strings.TrimSpace(crit.HugoSymbol[0])
	}
	rawVariant := strings.TrimSpace(crit.AnnotatedVariant)
	gene, geneNeg := normalize.Negated(rawGene)
	declared, varNeg := normalize.Negated(rawVariant)
	negative := geneNeg || varNeg
	if gene == "" {
		ev.logger.Warn("annotated variant without a gene, matching nothing", zap.Int("node", leaf))
		return map[string]bool{}, nil, nil
	}

	alteration := strings.TrimSpace(rawGene + " " + rawVariant)
	matchType := match.MatchTypeGene
	var f store.Filter
	switch strings.ToLower(declared) {
	case "amplification":
		f.Conds = append(f.Conds,
			store.Eq(normalize.FieldHugoSymbol, gene),
			store.Eq(normalize.FieldCNVCall, "High level amplification"))
	case "deletion":
		f.Conds = append(f.Conds,
			store.Eq(normalize.FieldHugoSymbol, gene),
			store.In(normalize.FieldCNVCall, []string{"Homozygous deletion", "Heterozygous deletion"}))
	case "msi-h":
		// signature rows carry no gene symbol
		f.Conds = append(f.Conds, store.Eq(normalize.FieldMMRStatus, normalize.MMRDeficient))
	case "wildtype":
		negative = true
		f.Conds = append(f.Conds, store.Eq(normalize.FieldHugoSymbol, gene))
	default:
		proteins := append([]string(nil), ev.catalog[gene][declared]...)
		if !ev.catalog.Contains(gene, declared, declared) {
			proteins = append(proteins, declared)
		}
		f.Conds = append(f.Conds,
			store.Eq(normalize.FieldHugoSymbol, gene),
			store.In(normalize.FieldProteinChange, proteins))
		matchType = match.MatchTypeVariant
	}
	f.WildtypeDefault = true

	rows, err := ev.store.FindGenomic(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	if negative {
		matched := make(map[string]bool, len(rows))
		for _, row := range rows {
			matched[row.SampleID] = true
		}
		return ev.complement(leaf, matched, matchType, alteration)
	}

	set := make(map[string]bool, len(rows))
	evs := make([]Evidence, 0, len(rows))
	for _, row := range rows {
		set[row.SampleID] = true
		evs = append(evs, Evidence{
			SampleID:   row.SampleID,
			Leaf:       leaf,
			Alteration: alteration,
			MatchType:  matchType,
			Genomic:    row,
		})
	}
	return set, evs, nil
}

// complement inverts a matched sample set over the sample universe, with
// one synthetic evidence entry per surviving sample.
func (ev *evaluator) complement(leaf int, matched map[string]bool, matchType, alteration string) (map[string]bool, []Evidence, error) {
	set := make(map[string]bool, len(ev.allIDs))
	var evs []Evidence
	for _, id := range ev.allIDs {
		if matched[id] {
			continue
		}
		set[id] = true
		evs = append(evs, Evidence{
			SampleID:   id,
			Leaf:       leaf,
			Alteration: alteration,
			MatchType:  matchType,
		})
	}
	return set, evs, nil
}

// formatAlteration renders the alteration string for a matched genomic row:
// an optional wildtype prefix, the gene, then the most specific detail the
// row carries.
func formatAlteration(g *store.Genomic) string {
	var b strings.Builder
	if g.Wildtype != nil && *g.Wildtype {
		b.WriteString("wt ")
	}
	b.WriteString(g.HugoSymbol)
	switch {
	case g.ProteinChange != "":
		b.WriteString(" " + g.ProteinChange)
	case g.CNVCall != "":
		b.WriteString(" " + g.CNVCall)
	case g.VariantClassification != "":
		b.WriteString(" " + g.VariantClassification)
	case g.VariantCategory == normalize.CategorySV:
		b.WriteString(" Structural Variation")
	default:
		if label, ok := normalize.MMRLabel(g.MMRStatus); ok {
			b.WriteString(label)
		}
	}
	return b.String()
}
