package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClinical(t *testing.T) {
	c := ParseClinical(map[string]any{
		"oncotree_primary_diagnosis": "Non-Small Cell Lung Cancer",
		"age_numerical":              ">=18",
		"gender":                     "Female",
		"display_order":              1,
	})

	assert.Equal(t, []string{"Non-Small Cell Lung Cancer"}, c.Diagnosis)
	assert.Equal(t, ">=18", c.Age)
	assert.Equal(t, []string{"Female"}, c.Gender)
	assert.False(t, c.Empty())
}

func TestParseClinical_ListValues(t *testing.T) {
	c := ParseClinical(map[string]any{
		"oncotree_primary_diagnosis": []any{"Melanoma", "Colorectal Cancer"},
	})
	assert.Equal(t, []string{"Melanoma", "Colorectal Cancer"}, c.Diagnosis)
}

func TestParseClinical_Empty(t *testing.T) {
	assert.True(t, ParseClinical(map[string]any{}).Empty())
	assert.True(t, ParseClinical(map[string]any{"unknown": "x"}).Empty())

	var nilCrit *Clinical
	assert.True(t, nilCrit.Empty())
}

func TestClinical_TrialDiagnosisJoinsDeclaredValues(t *testing.T) {
	c := &Clinical{Diagnosis: []string{"Melanoma", "_SOLID_"}}
	assert.Equal(t, "Melanoma, _SOLID_", c.TrialDiagnosis())

	c = &Clinical{Age: ">=18"}
	assert.Equal(t, "", c.TrialDiagnosis())
	assert.Equal(t, ">=18", c.TrialAge())
}

func TestParseGenomic(t *testing.T) {
	g := ParseGenomic(map[string]any{
		"hugo_symbol":             "EGFR",
		"variant_category":        "Mutation",
		"protein_change":          "p.L858R",
		"wildcard_protein_change": "p.F346",
		"variant_classification":  []any{"Missense_Mutation", "Nonsense_Mutation"},
		"exon":                    19,
		"cnv_call":                "High Amplification",
		"wildtype":                "true",
		"mmr_status":              "MMR-Deficient",
		"annotated_variant":       "Oncogenic Mutations",
	})

	assert.Equal(t, []string{"EGFR"}, g.HugoSymbol)
	assert.Equal(t, []string{"Mutation"}, g.VariantCategory)
	assert.Equal(t, []string{"p.L858R"}, g.ProteinChange)
	assert.Equal(t, []string{"p.F346"}, g.WildcardProteinChange)
	assert.Equal(t, []string{"Missense_Mutation", "Nonsense_Mutation"}, g.VariantClassification)
	assert.Equal(t, "19", g.Exon)
	assert.Equal(t, []string{"High Amplification"}, g.CNVCall)
	assert.Equal(t, "true", g.Wildtype)
	assert.Equal(t, []string{"MMR-Deficient"}, g.MMRStatus)
	assert.Equal(t, "Oncogenic Mutations", g.AnnotatedVariant)
	assert.True(t, g.WildtypeSpecified())
	assert.False(t, g.Empty())
}

func TestParseGenomic_MSStatusAlias(t *testing.T) {
	g := ParseGenomic(map[string]any{"ms_status": "MSI-H"})
	assert.Equal(t, []string{"MSI-H"}, g.MMRStatus)
}

func TestParseGenomic_Empty(t *testing.T) {
	assert.True(t, ParseGenomic(map[string]any{}).Empty())

	var nilCrit *Genomic
	assert.True(t, nilCrit.Empty())

	g := ParseGenomic(map[string]any{"hugo_symbol": nil})
	assert.True(t, g.Empty())
}

func TestScalarValue_Coercions(t *testing.T) {
	assert.Equal(t, "13", scalarValue(13))
	assert.Equal(t, "13", scalarValue(float64(13)))
	assert.Equal(t, "0.5", scalarValue(0.5))
	assert.Equal(t, "true", scalarValue(true))
	assert.Equal(t, "", scalarValue(nil))
}
