package store

import "time"

// Clinical is one patient sample's clinical document. Zero times mean the
// date was absent or unparseable at load.
type Clinical struct {
	ID                string
	SampleID          string
	MRN               string
	OncotreeDiagnosis string
	BirthDate         time.Time
	Gender            string
	VitalStatus       string
	FirstLast         string
	OrdPhysicianName  string
	OrdPhysicianEmail string
	ReportDate        time.Time
}

// Genomic is one variant call. Wildtype is tri-state: true, false or absent.
// TranscriptExon, Position and Tier use zero for absent.
type Genomic struct {
	ID                    string
	SampleID              string
	ClinicalID            string
	HugoSymbol            string
	ProteinChange         string
	VariantClassification string
	VariantCategory       string
	CNVCall               string
	Wildtype              *bool
	TranscriptExon        int64
	MMRStatus             string
	SVComment             string
	Chromosome            string
	Position              int64
	CDNAChange            string
	ReferenceAllele       string
	CanonicalStrand       string
	AlleleFraction        float64
	Tier                  int64
	Actionability         string
}

// TrialDoc is a stored trial document: extracted identifiers plus the
// canonical JSON body, decoded by the trial package at match time.
type TrialDoc struct {
	ProtocolNo string
	NCTID      string
	Doc        []byte
}

// GeneVariant is a distinct (gene, protein change) pair observed in the
// genomic collection, fed to the annotation service.
type GeneVariant struct {
	HugoSymbol    string
	ProteinChange string
}
