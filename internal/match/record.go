// Package match defines the trial match record and its deterministic sort
// order.
package match

import (
	"fmt"
	"strings"
	"time"
)

// Record is one patient-trial match at a specific treatment level.
type Record struct {
	MRN                string `json:"mrn"`
	SampleID           string `json:"sample_id"`
	FirstLast          string `json:"first_last,omitempty"`
	ProtocolNo         string `json:"protocol_no"`
	NCTID              string `json:"nct_id"`
	GenomicAlteration  string `json:"genomic_alteration"`
	Tier               int64  `json:"tier,omitempty"`
	MatchType          string `json:"match_type,omitempty"`
	TrialAccrualStatus string `json:"trial_accrual_status"`
	MatchLevel         string `json:"match_level"`
	Code               string `json:"code,omitempty"`
	InternalID         string `json:"internal_id,omitempty"`

	OrdPhysicianName  string `json:"ord_physician_name,omitempty"`
	OrdPhysicianEmail string `json:"ord_physician_email,omitempty"`
	VitalStatus       string `json:"vital_status,omitempty"`
	Gender            string `json:"gender,omitempty"`

	OncotreePrimaryDiagnosisName string    `json:"oncotree_primary_diagnosis_name,omitempty"`
	ReportDate                   time.Time `json:"report_date,omitzero"`

	TrueHugoSymbol            string  `json:"true_hugo_symbol,omitempty"`
	TrueProteinChange         string  `json:"true_protein_change,omitempty"`
	TrueVariantClassification string  `json:"true_variant_classification,omitempty"`
	VariantCategory           string  `json:"variant_category,omitempty"`
	Chromosome                string  `json:"chromosome,omitempty"`
	Position                  int64   `json:"position,omitempty"`
	TrueCDNAChange            string  `json:"true_cdna_change,omitempty"`
	ReferenceAllele           string  `json:"reference_allele,omitempty"`
	TrueTranscriptExon        int64   `json:"true_transcript_exon,omitempty"`
	CanonicalStrand           string  `json:"canonical_strand,omitempty"`
	AlleleFraction            float64 `json:"allele_fraction,omitempty"`
	CNVCall                   string  `json:"cnv_call,omitempty"`
	Wildtype                  *bool   `json:"wildtype,omitempty"`
	MMRStatus                 string  `json:"mmr_status,omitempty"`
	Actionability             string  `json:"actionability,omitempty"`
	GenomicID                 string  `json:"genomic_id,omitempty"`
	ClinicalID                string  `json:"clinical_id,omitempty"`

	CancerTypeMatch    string `json:"cancer_type_match"`
	CoordinatingCenter string `json:"coordinating_center"`
	ClinicalOnly       bool   `json:"clinical_only"`

	TrialOncotreePrimaryDiagnosis string `json:"trial_oncotree_primary_diagnosis,omitempty"`
	TrialAgeNumerical             string `json:"trial_age_numerical,omitempty"`
	ArmDescription                string `json:"arm_description,omitempty"`
	ArmType                       string `json:"arm_type,omitempty"`

	RunID     string `json:"run_id,omitempty"`
	SortOrder int    `json:"sort_order"`
}

// Key identifies the record payload for deduplication: two records with the
// same key describe the same match.
func (r *Record) Key() string {
	wt := ""
	if r.Wildtype != nil {
		wt = fmt.Sprintf("%t", *r.Wildtype)
	}
	return strings.Join([]string{
		r.SampleID, r.ProtocolNo, r.MatchLevel, r.InternalID,
		r.GenomicAlteration, r.MatchType, r.GenomicID, wt,
		r.TrialOncotreePrimaryDiagnosis, r.TrialAgeNumerical,
		fmt.Sprintf("%t", r.ClinicalOnly),
	}, "|")
}
