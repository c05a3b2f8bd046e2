package engine

import (
	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/store"
	"github.com/oncomatch/matchengine/internal/trial"
)

// emitter renders facts into match records with trial and treatment level
// context attached.
type emitter struct {
	trial    *trial.Trial
	clinical map[string]*store.Clinical
	runID    string
	accrual  string
	cancer   string
	center   string
}

func newEmitter(t *trial.Trial, clinical map[string]*store.Clinical, runID string) *emitter {
	return &emitter{
		trial:    t,
		clinical: clinical,
		runID:    runID,
		accrual:  t.AccrualStatus(),
		cancer:   t.CancerTypeMatch(),
		center:   t.CoordinatingCenter(),
	}
}

// record builds the match record for one fact at one treatment level. A
// suspended level closes its matches regardless of the trial status.
func (em *emitter) record(f *fact, lv *trial.Level) *match.Record {
	r := &match.Record{
		SampleID:                      f.sampleID,
		ProtocolNo:                    em.trial.ProtocolNo,
		NCTID:                         em.trial.NCTID,
		GenomicAlteration:             f.alteration,
		MatchType:                     f.matchType,
		TrialAccrualStatus:            em.accrual,
		MatchLevel:                    lv.Kind,
		Code:                          lv.Code,
		InternalID:                    lv.InternalID,
		CancerTypeMatch:               em.cancer,
		CoordinatingCenter:            em.center,
		ClinicalOnly:                  f.clinicalOnly,
		TrialOncotreePrimaryDiagnosis: f.trialDiagnosis,
		TrialAgeNumerical:             f.trialAge,
		RunID:                         em.runID,
	}
	if lv.Suspended {
		r.TrialAccrualStatus = trial.StatusClosed
	}
	if lv.Kind == trial.LevelArm {
		r.ArmDescription = lv.ArmDescription
		r.ArmType = lv.ArmType
	}
	if c, ok := em.clinical[f.sampleID]; ok {
		r.MRN = c.MRN
		r.Gender = c.Gender
		r.VitalStatus = c.VitalStatus
		r.FirstLast = c.FirstLast
		r.OrdPhysicianName = c.OrdPhysicianName
		r.OrdPhysicianEmail = c.OrdPhysicianEmail
		r.OncotreePrimaryDiagnosisName = c.OncotreeDiagnosis
		r.ReportDate = c.ReportDate
		r.ClinicalID = c.ID
	}
	if f.genomic != nil && f.genomic.Genomic != nil {
		g := f.genomic.Genomic
		r.TrueHugoSymbol = g.HugoSymbol
		r.TrueProteinChange = g.ProteinChange
		r.TrueVariantClassification = g.VariantClassification
		r.VariantCategory = g.VariantCategory
		r.CNVCall = g.CNVCall
		r.Wildtype = g.Wildtype
		r.Chromosome = g.Chromosome
		r.Position = g.Position
		r.TrueCDNAChange = g.CDNAChange
		r.ReferenceAllele = g.ReferenceAllele
		r.TrueTranscriptExon = g.TranscriptExon
		r.CanonicalStrand = g.CanonicalStrand
		r.AlleleFraction = g.AlleleFraction
		r.Tier = g.Tier
		r.MMRStatus = g.MMRStatus
		r.Actionability = g.Actionability
		r.GenomicID = g.ID
		if g.ClinicalID != "" {
			r.ClinicalID = g.ClinicalID
		}
	}
	return r
}
