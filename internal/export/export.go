// Package export writes match records as CSV or JSON reports.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/oncomatch/matchengine/internal/match"
)

// Columns is the canonical report column order.
var Columns = []string{
	"mrn",
	"sample_id",
	"first_last",
	"protocol_no",
	"nct_id",
	"genomic_alteration",
	"tier",
	"match_type",
	"trial_accrual_status",
	"match_level",
	"code",
	"internal_id",
	"ord_physician_name",
	"ord_physician_email",
	"vital_status",
	"oncotree_primary_diagnosis_name",
	"true_hugo_symbol",
	"true_protein_change",
	"true_variant_classification",
	"variant_category",
	"report_date",
	"chromosome",
	"position",
	"true_cdna_change",
	"reference_allele",
	"true_transcript_exon",
	"canonical_strand",
	"allele_fraction",
	"cnv_call",
	"wildtype",
	"sort_order",
}

// CSVWriter writes match records in CSV format.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSV report writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the column header line.
func (cw *CSVWriter) WriteHeader() error {
	return cw.w.Write(Columns)
}

// Write writes a single match record.
func (cw *CSVWriter) Write(r *match.Record) error {
	return cw.w.Write(fields(r))
}

// Flush writes buffered rows and reports any write error.
func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}

// WriteCSV writes the full report: header then one row per record.
func WriteCSV(w io.Writer, records []*match.Record) error {
	cw := NewCSVWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// WriteJSON writes the records as a JSON array.
func WriteJSON(w io.Writer, records []*match.Record) error {
	if records == nil {
		records = []*match.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// fields renders a record in canonical column order. Absent numbers and
// dates render as empty cells, and wildtype keeps its three states.
func fields(r *match.Record) []string {
	return []string{
		r.MRN,
		r.SampleID,
		r.FirstLast,
		r.ProtocolNo,
		r.NCTID,
		r.GenomicAlteration,
		intField(r.Tier),
		r.MatchType,
		r.TrialAccrualStatus,
		r.MatchLevel,
		r.Code,
		r.InternalID,
		r.OrdPhysicianName,
		r.OrdPhysicianEmail,
		r.VitalStatus,
		r.OncotreePrimaryDiagnosisName,
		r.TrueHugoSymbol,
		r.TrueProteinChange,
		r.TrueVariantClassification,
		r.VariantCategory,
		dateField(r.ReportDate),
		r.Chromosome,
		intField(r.Position),
		r.TrueCDNAChange,
		r.ReferenceAllele,
		intField(r.TrueTranscriptExon),
		r.CanonicalStrand,
		floatField(r.AlleleFraction),
		r.CNVCall,
		boolField(r.Wildtype),
		strconv.Itoa(r.SortOrder),
	}
}

func intField(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func floatField(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func dateField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func boolField(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
