// Package normalize maps the external trial-curation vocabulary onto the
// internal clinical and genomic field names and values. Criterion keys are
// case-insensitive; values map exactly or pass through unchanged. A leading
// "!" negation marker survives every mapping.
package normalize

import "strings"

// Internal field names shared by the predicate layer, the store adapters and
// the match emitter.
const (
	FieldSampleID              = "sample_id"
	FieldMRN                   = "mrn"
	FieldDiagnosis             = "oncotree_primary_diagnosis_name"
	FieldBirthDate             = "birth_date"
	FieldGender                = "gender"
	FieldVitalStatus           = "vital_status"
	FieldHugoSymbol            = "true_hugo_symbol"
	FieldProteinChange         = "true_protein_change"
	FieldVariantClassification = "true_variant_classification"
	FieldVariantCategory       = "variant_category"
	FieldCNVCall               = "cnv_call"
	FieldWildtype              = "wildtype"
	FieldTranscriptExon        = "true_transcript_exon"
	FieldMMRStatus             = "mmr_status"
	FieldSVComment             = "structural_variant_comment"
)

// Canonical variant_category values.
const (
	CategoryMutation  = "MUTATION"
	CategoryCNV       = "CNV"
	CategorySV        = "SV"
	CategorySignature = "SIGNATURE"
)

// Canonical mmr_status values.
const (
	MMRProficient = "Proficient (MMR-P / MSS)"
	MMRDeficient  = "Deficient (MMR-D / MSI-H)"
)

// keyMap maps lowercased external criterion keys to internal field names.
var keyMap = map[string]string{
	"age_numerical":              FieldBirthDate,
	"oncotree_primary_diagnosis": FieldDiagnosis,
	"gender":                     FieldGender,
	"hugo_symbol":                FieldHugoSymbol,
	"protein_change":             FieldProteinChange,
	"wildcard_protein_change":    FieldProteinChange,
	"variant_classification":     FieldVariantClassification,
	"variant_category":           FieldVariantCategory,
	"exon":                       FieldTranscriptExon,
	"cnv_call":                   FieldCNVCall,
	"wildtype":                   FieldWildtype,
	"mmr_status":                 FieldMMRStatus,
	"ms_status":                  FieldMMRStatus,
}

var categoryMap = map[string]string{
	"Mutation":              CategoryMutation,
	"Copy Number Variation": CategoryCNV,
	"Structural Variation":  CategorySV,
}

var cnvMap = map[string]string{
	"High Amplification":    "High level amplification",
	"Low Amplification":     "Gain",
	"Homozygous Deletion":   "Homozygous deletion",
	"Heterozygous Deletion": "Heterozygous deletion",
}

var mmrMap = map[string]string{
	"MMR-Proficient": MMRProficient,
	"MMR-Deficient":  MMRDeficient,
	"MSI-H":          MMRDeficient,
	"MSI-L":          MMRProficient,
	"MSS":            MMRProficient,
}

// mmrLabelMap is the reverse of mmrMap restricted to the MMR-prefixed labels;
// it renders internal mmr_status values back into alteration strings.
var mmrLabelMap = map[string]string{
	MMRProficient: "MMR-Proficient",
	MMRDeficient:  "MMR-Deficient",
}

// Key returns the internal field name for an external criterion key.
func Key(external string) (string, bool) {
	f, ok := keyMap[strings.ToLower(external)]
	return f, ok
}

// Value maps an external criterion value into the internal vocabulary for the
// given internal field. Unmapped values pass through unchanged. A leading "!"
// is stripped before lookup and restored afterwards.
func Value(field, external string) string {
	v, neg := Negated(external)
	var m map[string]string
	switch field {
	case FieldVariantCategory:
		m = categoryMap
	case FieldCNVCall:
		m = cnvMap
	case FieldMMRStatus:
		m = mmrMap
	default:
		return external
	}
	mapped, ok := m[v]
	if !ok {
		return external
	}
	if neg {
		return "!" + mapped
	}
	return mapped
}

// Negated splits a leading "!" off a criterion value.
func Negated(v string) (string, bool) {
	if strings.HasPrefix(v, "!") {
		return v[1:], true
	}
	return v, false
}

// MMRLabel returns the external label for an internal mmr_status value,
// for use in alteration strings.
func MMRLabel(internal string) (string, bool) {
	l, ok := mmrLabelMap[internal]
	return l, ok
}
