// Package criteria parses match tree leaf criteria and compiles them into
// store filters.
package criteria

import (
	"fmt"
	"strconv"
	"strings"
)

// Clinical holds the recognized criteria of a clinical leaf. Values are kept
// as declared by the trial; normalization happens at compile time.
type Clinical struct {
	Diagnosis []string
	Age       string
	Gender    []string
}

// Genomic holds the recognized criteria of a genomic leaf.
type Genomic struct {
	HugoSymbol            []string
	VariantCategory       []string
	ProteinChange         []string
	WildcardProteinChange []string
	VariantClassification []string
	Exon                  string
	CNVCall               []string
	Wildtype              string
	MMRStatus             []string
	AnnotatedVariant      string
}

// ParseClinical reads the recognized clinical keys out of a raw criteria
// map. Unknown keys are dropped.
func ParseClinical(raw map[string]any) *Clinical {
	c := &Clinical{}
	for key, val := range raw {
		switch strings.ToLower(key) {
		case "oncotree_primary_diagnosis":
			c.Diagnosis = stringValues(val)
		case "age_numerical":
			c.Age = scalarValue(val)
		case "gender":
			c.Gender = stringValues(val)
		}
	}
	return c
}

// Empty reports whether no recognized criteria were declared. An empty leaf
// matches no samples.
func (c *Clinical) Empty() bool {
	return c == nil || (len(c.Diagnosis) == 0 && c.Age == "" && len(c.Gender) == 0)
}

// TrialDiagnosis returns the declared diagnosis exactly as authored, for
// copying onto emitted matches.
func (c *Clinical) TrialDiagnosis() string {
	return strings.Join(c.Diagnosis, ", ")
}

// TrialAge returns the declared age restriction, or "" when none was given.
func (c *Clinical) TrialAge() string { return c.Age }

// ParseGenomic reads the recognized genomic keys out of a raw criteria map.
// Unknown keys are dropped.
func ParseGenomic(raw map[string]any) *Genomic {
	g := &Genomic{}
	for key, val := range raw {
		switch strings.ToLower(key) {
		case "hugo_symbol":
			g.HugoSymbol = stringValues(val)
		case "variant_category":
			g.VariantCategory = stringValues(val)
		case "protein_change":
			g.ProteinChange = stringValues(val)
		case "wildcard_protein_change":
			g.WildcardProteinChange = stringValues(val)
		case "variant_classification":
			g.VariantClassification = stringValues(val)
		case "exon":
			g.Exon = scalarValue(val)
		case "cnv_call":
			g.CNVCall = stringValues(val)
		case "wildtype":
			g.Wildtype = scalarValue(val)
		case "mmr_status", "ms_status":
			g.MMRStatus = stringValues(val)
		case "annotated_variant":
			g.AnnotatedVariant = scalarValue(val)
		}
	}
	return g
}

// Empty reports whether no recognized criteria were declared.
func (g *Genomic) Empty() bool {
	return g == nil || (len(g.HugoSymbol) == 0 && len(g.VariantCategory) == 0 &&
		len(g.ProteinChange) == 0 && len(g.WildcardProteinChange) == 0 &&
		len(g.VariantClassification) == 0 && g.Exon == "" && len(g.CNVCall) == 0 &&
		g.Wildtype == "" && len(g.MMRStatus) == 0 && g.AnnotatedVariant == "")
}

// WildtypeSpecified reports whether the trial declared the wildtype key
// itself. When it did not, compiled queries default to non-wildtype rows.
func (g *Genomic) WildtypeSpecified() bool { return g.Wildtype != "" }

// stringValues coerces a YAML or JSON scalar or list into strings.
func stringValues(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s := scalarValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := scalarValue(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

func scalarValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
