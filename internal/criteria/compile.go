package criteria

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/oncotree"
	"github.com/oncomatch/matchengine/internal/store"
)

// Query is a compiled genomic leaf ready for evaluation. A negative query
// runs its positive filter and the evaluator takes the complement over all
// samples, tagging each with NegAlteration.
type Query struct {
	Filter        store.Filter
	Negative      bool
	IsSV          bool
	NegAlteration string
	MatchType     string
}

// Compiler translates parsed criteria into store filters. Tumors expands
// diagnoses; a nil tree leaves them unexpanded. Now supplies the clock for
// age translation and defaults to time.Now.
type Compiler struct {
	Tumors *oncotree.Tree
	Now    func() time.Time
}

func (c *Compiler) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Compiler) expand(diagnosis string) ([]string, bool) {
	if c.Tumors == nil {
		return []string{diagnosis}, true
	}
	return c.Tumors.Expand(diagnosis)
}

// CompileClinical translates a clinical leaf into a filter over the
// clinical collection. Negated values compile to not-in conditions rather
// than complement evaluation.
func (c *Compiler) CompileClinical(crit *Clinical) (store.Filter, error) {
	var f store.Filter
	if len(crit.Diagnosis) > 0 {
		f.Conds = append(f.Conds, c.diagnosisConds(crit.Diagnosis)...)
	}
	if crit.Age != "" {
		cond, err := birthDateCond(crit.Age, c.now())
		if err != nil {
			return store.Filter{}, err
		}
		f.Conds = append(f.Conds, cond)
	}
	if len(crit.Gender) > 0 {
		include, exclude := splitNegated(normalize.FieldGender, crit.Gender)
		if len(include) > 0 {
			f.Conds = append(f.Conds, store.In(normalize.FieldGender, include))
		}
		if len(exclude) > 0 {
			f.Conds = append(f.Conds, store.Nin(normalize.FieldGender, exclude))
		}
	}
	return f, nil
}

// diagnosisConds expands every declared diagnosis through the tumor tree.
// An unconstrained expansion (All Tumors) drops its side of the condition
// entirely.
func (c *Compiler) diagnosisConds(values []string) []store.Cond {
	var include, exclude []string
	includeAll := false
	for _, v := range values {
		name, negated := normalize.Negated(v)
		names, constrained := c.expand(name)
		switch {
		case !constrained && negated:
			// excluding all tumors excludes nothing
		case !constrained:
			includeAll = true
		case negated:
			exclude = append(exclude, names...)
		default:
			include = append(include, names...)
		}
	}
	var conds []store.Cond
	if len(include) > 0 && !includeAll {
		conds = append(conds, store.In(normalize.FieldDiagnosis, dedupeStrings(include)))
	}
	if len(exclude) > 0 {
		conds = append(conds, store.Nin(normalize.FieldDiagnosis, dedupeStrings(exclude)))
	}
	return conds
}

// CompileGenomic translates a genomic leaf into a filter over the genomic
// collection plus the flags the evaluator needs. Any negated value switches
// the whole leaf to complement semantics.
func (c *Compiler) CompileGenomic(crit *Genomic) (*Query, error) {
	q := &Query{MatchType: match.MatchTypeGene}
	var f store.Filter

	genes, neg := normValues(normalize.FieldHugoSymbol, crit.HugoSymbol)
	q.Negative = q.Negative || neg

	var categories []string
	for _, v := range crit.VariantCategory {
		if strings.EqualFold(v, "any variation") {
			categories = append(categories, normalize.CategoryMutation, normalize.CategoryCNV)
			continue
		}
		val, negated := normalize.Negated(normalize.Value(normalize.FieldVariantCategory, v))
		q.Negative = q.Negative || negated
		if val == normalize.CategorySV {
			q.IsSV = true
		}
		categories = append(categories, val)
	}

	proteins, neg := normValues(normalize.FieldProteinChange, crit.ProteinChange)
	q.Negative = q.Negative || neg

	var wildcardRes []*regexp.Regexp
	var wildcardDetails []string
	for _, v := range crit.WildcardProteinChange {
		val, negated := normalize.Negated(v)
		q.Negative = q.Negative || negated
		if !strings.HasPrefix(val, "p.") {
			val = "p." + val
		}
		re, err := regexp.Compile("^" + val + "[A-Z]")
		if err != nil {
			return nil, fmt.Errorf("wildcard protein change %q: %w", v, err)
		}
		wildcardRes = append(wildcardRes, re)
		wildcardDetails = append(wildcardDetails, val)
	}

	classes, neg := normValues(normalize.FieldVariantClassification, crit.VariantClassification)
	q.Negative = q.Negative || neg

	var exon int64
	exonSet := false
	if crit.Exon != "" {
		val, negated := normalize.Negated(crit.Exon)
		q.Negative = q.Negative || negated
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("exon %q: not an integer", crit.Exon)
		}
		exon, exonSet = n, true
	}

	cnvs, neg := normValues(normalize.FieldCNVCall, crit.CNVCall)
	q.Negative = q.Negative || neg

	var wildtype *bool
	if crit.Wildtype != "" {
		val, negated := normalize.Negated(crit.Wildtype)
		q.Negative = q.Negative || negated
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err != nil {
			return nil, fmt.Errorf("wildtype %q: not a boolean", crit.Wildtype)
		}
		wildtype = &b
	}

	mmrs, neg := normValues(normalize.FieldMMRStatus, crit.MMRStatus)
	q.Negative = q.Negative || neg

	// The gene constraint moves to a comment text search for structural
	// variants, and drops for MMR signature queries since signature rows
	// carry no gene.
	switch {
	case q.IsSV && len(genes) > 0:
		res := make([]*regexp.Regexp, 0, len(genes))
		for _, g := range genes {
			res = append(res, svCommentRegexp(g))
		}
		f.Conds = append(f.Conds, store.Match(normalize.FieldSVComment, res...))
	case len(mmrs) > 0 && !crit.WildtypeSpecified():
	case len(genes) > 0:
		f.Conds = append(f.Conds, store.In(normalize.FieldHugoSymbol, genes))
	}

	if len(categories) > 0 {
		f.Conds = append(f.Conds, store.In(normalize.FieldVariantCategory, dedupeStrings(categories)))
	}
	if len(proteins) > 0 {
		f.Conds = append(f.Conds, store.In(normalize.FieldProteinChange, proteins))
	}
	if len(wildcardRes) > 0 {
		f.Conds = append(f.Conds, store.Match(normalize.FieldProteinChange, wildcardRes...))
	}
	if len(classes) > 0 {
		f.Conds = append(f.Conds, store.In(normalize.FieldVariantClassification, classes))
	}
	if exonSet {
		f.Conds = append(f.Conds, store.EqInt(normalize.FieldTranscriptExon, exon))
	}
	if len(cnvs) > 0 {
		f.Conds = append(f.Conds, store.In(normalize.FieldCNVCall, cnvs))
	}
	if wildtype != nil {
		f.Conds = append(f.Conds, store.EqBool(normalize.FieldWildtype, *wildtype))
	}
	if len(mmrs) > 0 {
		f.Conds = append(f.Conds, store.In(normalize.FieldMMRStatus, mmrs))
	}
	f.WildtypeDefault = !crit.WildtypeSpecified()

	if len(proteins) > 0 || len(wildcardRes) > 0 {
		q.MatchType = match.MatchTypeVariant
	}
	if q.Negative {
		q.NegAlteration = negAlteration(genes, q.IsSV, proteins, wildcardDetails, cnvs, classes)
	}
	q.Filter = f
	return q, nil
}

// normValues normalizes each value for field, strips negation markers and
// reports whether any value was negated.
func normValues(field string, values []string) ([]string, bool) {
	if len(values) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(values))
	neg := false
	for _, v := range values {
		val, negated := normalize.Negated(normalize.Value(field, v))
		neg = neg || negated
		out = append(out, val)
	}
	return out, neg
}

// splitNegated normalizes values and separates them into included and
// excluded sets.
func splitNegated(field string, values []string) (include, exclude []string) {
	for _, v := range values {
		val, negated := normalize.Negated(normalize.Value(field, v))
		if negated {
			exclude = append(exclude, val)
		} else {
			include = append(include, val)
		}
	}
	return include, exclude
}

// svCommentRegexp matches gene as a whole word anywhere in the structural
// variant comment, case insensitively.
func svCommentRegexp(gene string) *regexp.Regexp {
	g := regexp.QuoteMeta(gene)
	return regexp.MustCompile(fmt.Sprintf(`(?i)(.*\W%s\W.*)|(^%s\W.*)|(.*\W%s$)`, g, g, g))
}

// negAlteration renders the synthetic alteration string attached to samples
// matched by complement, such as "!BRAF p.V600" or "!Structural Variation".
func negAlteration(genes []string, isSV bool, proteins, wildcards, cnvs, classes []string) string {
	var b strings.Builder
	if !isSV {
		for i, g := range genes {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("!")
			b.WriteString(g)
		}
	}
	switch {
	case len(proteins) > 0:
		b.WriteString(" " + strings.Join(proteins, ", "))
	case len(wildcards) > 0:
		b.WriteString(" " + strings.Join(wildcards, ", "))
	case len(cnvs) > 0:
		b.WriteString(" " + strings.Join(cnvs, ", "))
	case len(classes) > 0:
		b.WriteString(" " + strings.Join(classes, ", "))
	case isSV:
		b.WriteString(" Structural Variation")
	}
	s := b.String()
	if isSV || len(genes) == 0 {
		// No gene to carry the negation marker; move it to the front.
		if s == "" {
			return "!"
		}
		return "!" + s[1:]
	}
	return s
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
