package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oncomatch/matchengine/internal/match"
)

// matchFlushEvery bounds appender memory on large match runs.
const matchFlushEvery = 1000

const matchCols = `mrn, sample_id, first_last, protocol_no, nct_id,
	genomic_alteration, tier, match_type, trial_accrual_status, match_level,
	code, internal_id, ord_physician_name, ord_physician_email, vital_status,
	gender, oncotree_primary_diagnosis_name, report_date, true_hugo_symbol,
	true_protein_change, true_variant_classification, variant_category,
	chromosome, position, true_cdna_change, reference_allele,
	true_transcript_exon, canonical_strand, allele_fraction, cnv_call,
	wildtype, mmr_status, actionability, genomic_id, clinical_id,
	cancer_type_match, coordinating_center, clinical_only,
	trial_oncotree_primary_diagnosis, trial_age_numerical, arm_description,
	arm_type, run_id, sort_order`

// ReplaceMatches replaces the match collection with recs, preserving their
// order.
func (s *Store) ReplaceMatches(ctx context.Context, recs []*match.Record) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM trial_match"); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	app, conn, err := s.appender(ctx, "trial_match")
	if err != nil {
		return err
	}
	defer conn.Close()
	defer app.Close()

	for i, r := range recs {
		if err := app.AppendRow(
			int64(i), nullStr(r.MRN), nullStr(r.SampleID), nullStr(r.FirstLast),
			nullStr(r.ProtocolNo), nullStr(r.NCTID), nullStr(r.GenomicAlteration),
			nullInt(r.Tier), nullStr(r.MatchType), nullStr(r.TrialAccrualStatus),
			nullStr(r.MatchLevel), nullStr(r.Code), nullStr(r.InternalID),
			nullStr(r.OrdPhysicianName), nullStr(r.OrdPhysicianEmail),
			nullStr(r.VitalStatus), nullStr(r.Gender),
			nullStr(r.OncotreePrimaryDiagnosisName), nullTime(r.ReportDate),
			nullStr(r.TrueHugoSymbol), nullStr(r.TrueProteinChange),
			nullStr(r.TrueVariantClassification), nullStr(r.VariantCategory),
			nullStr(r.Chromosome), nullInt(r.Position), nullStr(r.TrueCDNAChange),
			nullStr(r.ReferenceAllele), nullInt(r.TrueTranscriptExon),
			nullStr(r.CanonicalStrand), nullFloat(r.AlleleFraction),
			nullStr(r.CNVCall), nullBool(r.Wildtype), nullStr(r.MMRStatus),
			nullStr(r.Actionability), nullStr(r.GenomicID), nullStr(r.ClinicalID),
			nullStr(r.CancerTypeMatch), nullStr(r.CoordinatingCenter),
			r.ClinicalOnly, nullStr(r.TrialOncotreePrimaryDiagnosis),
			nullStr(r.TrialAgeNumerical), nullStr(r.ArmDescription),
			nullStr(r.ArmType), nullStr(r.RunID), int64(r.SortOrder),
		); err != nil {
			return fmt.Errorf("append match record: %w", err)
		}
		if (i+1)%matchFlushEvery == 0 {
			if err := app.Flush(); err != nil {
				return fmt.Errorf("flush match records: %w", err)
			}
		}
	}
	if err := app.Flush(); err != nil {
		return fmt.Errorf("flush match records: %w", err)
	}
	return nil
}

// Matches returns the stored match records in insertion order.
func (s *Store) Matches(ctx context.Context) ([]*match.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+matchCols+" FROM trial_match ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []*match.Record
	for rows.Next() {
		r, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return out, nil
}

func scanMatch(rows *sql.Rows) (*match.Record, error) {
	var (
		mrn, sampleID, firstLast, protocolNo, nctID sql.NullString
		alteration, matchType, accrual, level       sql.NullString
		code, internalID, physName, physEmail       sql.NullString
		vital, gender, diagnosis, gene, protein     sql.NullString
		classification, category, chrom, cdna       sql.NullString
		refAllele, strand, cnv, mmr, actionability  sql.NullString
		genomicID, clinicalID, cancerType, center   sql.NullString
		trialDiagnosis, trialAge, armDesc, armType  sql.NullString
		runID                                       sql.NullString
		tier, position, exon, sortOrder             sql.NullInt64
		alleleFraction                              sql.NullFloat64
		wildtype, clinicalOnly                      sql.NullBool
		reportDate                                  sql.NullTime
	)
	if err := rows.Scan(&mrn, &sampleID, &firstLast, &protocolNo, &nctID,
		&alteration, &tier, &matchType, &accrual, &level, &code, &internalID,
		&physName, &physEmail, &vital, &gender, &diagnosis, &reportDate,
		&gene, &protein, &classification, &category, &chrom, &position,
		&cdna, &refAllele, &exon, &strand, &alleleFraction, &cnv, &wildtype,
		&mmr, &actionability, &genomicID, &clinicalID, &cancerType, &center,
		&clinicalOnly, &trialDiagnosis, &trialAge, &armDesc, &armType,
		&runID, &sortOrder); err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}
	return &match.Record{
		MRN:                           mrn.String,
		SampleID:                      sampleID.String,
		FirstLast:                     firstLast.String,
		ProtocolNo:                    protocolNo.String,
		NCTID:                         nctID.String,
		GenomicAlteration:             alteration.String,
		Tier:                          tier.Int64,
		MatchType:                     matchType.String,
		TrialAccrualStatus:            accrual.String,
		MatchLevel:                    level.String,
		Code:                          code.String,
		InternalID:                    internalID.String,
		OrdPhysicianName:              physName.String,
		OrdPhysicianEmail:             physEmail.String,
		VitalStatus:                   vital.String,
		Gender:                        gender.String,
		OncotreePrimaryDiagnosisName:  diagnosis.String,
		ReportDate:                    reportDate.Time,
		TrueHugoSymbol:                gene.String,
		TrueProteinChange:             protein.String,
		TrueVariantClassification:     classification.String,
		VariantCategory:               category.String,
		Chromosome:                    chrom.String,
		Position:                      position.Int64,
		TrueCDNAChange:                cdna.String,
		ReferenceAllele:               refAllele.String,
		TrueTranscriptExon:            exon.Int64,
		CanonicalStrand:               strand.String,
		AlleleFraction:                alleleFraction.Float64,
		CNVCall:                       cnv.String,
		Wildtype:                      boolPtr(wildtype),
		MMRStatus:                     mmr.String,
		Actionability:                 actionability.String,
		GenomicID:                     genomicID.String,
		ClinicalID:                    clinicalID.String,
		CancerTypeMatch:               cancerType.String,
		CoordinatingCenter:            center.String,
		ClinicalOnly:                  clinicalOnly.Bool,
		TrialOncotreePrimaryDiagnosis: trialDiagnosis.String,
		TrialAgeNumerical:             trialAge.String,
		ArmDescription:                armDesc.String,
		ArmType:                       armType.String,
		RunID:                         runID.String,
		SortOrder:                     int(sortOrder.Int64),
	}, nil
}
