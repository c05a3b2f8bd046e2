package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oncomatch/matchengine/internal/store"
)

// dateFormat is the accepted date layout for birth and report dates.
const dateFormat = "2006-01-02"

// ReadClinical parses a clinical file. Every record gets a fresh clinical
// id; records without a sample id are skipped. Unparseable dates warn and
// stay zero.
func (l *Loader) ReadClinical(path string) ([]*store.Clinical, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("read clinical file %s: %w", path, err)
	}
	out := make([]*store.Clinical, 0, len(rows))
	for i, rw := range rows {
		if rw["sample_id"] == "" {
			l.logger.Warn("clinical record without sample_id skipped", zap.Int("row", i+1))
			continue
		}
		c := &store.Clinical{
			ID:                newID(),
			SampleID:          rw["sample_id"],
			MRN:               rw["mrn"],
			OncotreeDiagnosis: rw["oncotree_primary_diagnosis_name"],
			Gender:            rw["gender"],
			VitalStatus:       rw["vital_status"],
			FirstLast:         rw["first_last"],
			OrdPhysicianName:  rw["ord_physician_name"],
			OrdPhysicianEmail: rw["ord_physician_email"],
		}
		c.BirthDate = l.parseDate(rw["birth_date"], "birth_date", i)
		c.ReportDate = l.parseDate(rw["report_date"], "report_date", i)
		out = append(out, c)
	}
	return out, nil
}

// ReadGenomic parses a genomic file. Records without a sample id are
// skipped; numeric fields parse leniently, warning and staying zero on bad
// input, and wildtype is tri-state: true, false or absent.
func (l *Loader) ReadGenomic(path string) ([]*store.Genomic, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("read genomic file %s: %w", path, err)
	}
	out := make([]*store.Genomic, 0, len(rows))
	for i, rw := range rows {
		if rw["sample_id"] == "" {
			l.logger.Warn("genomic record without sample_id skipped", zap.Int("row", i+1))
			continue
		}
		g := &store.Genomic{
			ID:                    newID(),
			SampleID:              rw["sample_id"],
			HugoSymbol:            rw["true_hugo_symbol"],
			ProteinChange:         rw["true_protein_change"],
			VariantClassification: rw["true_variant_classification"],
			VariantCategory:       rw["variant_category"],
			CNVCall:               rw["cnv_call"],
			MMRStatus:             rw["mmr_status"],
			SVComment:             rw["structural_variant_comment"],
			Chromosome:            rw["chromosome"],
			CDNAChange:            rw["true_cdna_change"],
			ReferenceAllele:       rw["reference_allele"],
			CanonicalStrand:       rw["canonical_strand"],
			Actionability:         rw["actionability"],
		}
		g.Wildtype = l.parseTriBool(rw["wildtype"], i)
		g.TranscriptExon = l.parseInt(rw["true_transcript_exon"], "true_transcript_exon", i)
		g.Position = l.parseInt(rw["position"], "position", i)
		g.Tier = l.parseInt(rw["tier"], "tier", i)
		g.AlleleFraction = l.parseFloat(rw["allele_fraction"], "allele_fraction", i)
		out = append(out, g)
	}
	return out, nil
}

func (l *Loader) parseDate(v, field string, row int) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateFormat, v)
	if err != nil {
		l.logger.Warn("unparseable date",
			zap.String("field", field), zap.String("value", v), zap.Int("row", row+1))
		return time.Time{}
	}
	return t
}

func (l *Loader) parseInt(v, field string, row int) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// tolerate float-formatted integers such as "4.0"
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil && f == float64(int64(f)) {
			return int64(f)
		}
		l.logger.Warn("unparseable integer",
			zap.String("field", field), zap.String("value", v), zap.Int("row", row+1))
		return 0
	}
	return n
}

func (l *Loader) parseFloat(v, field string, row int) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.logger.Warn("unparseable number",
			zap.String("field", field), zap.String("value", v), zap.Int("row", row+1))
		return 0
	}
	return f
}

func (l *Loader) parseTriBool(v string, row int) *bool {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		l.logger.Warn("unparseable wildtype flag",
			zap.String("value", v), zap.Int("row", row+1))
		return nil
	}
	return &b
}
