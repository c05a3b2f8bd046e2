package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/oncomatch/matchengine/internal/store"
)

const clinicalCols = `id, sample_id, mrn, oncotree_primary_diagnosis_name,
	birth_date, gender, vital_status, first_last, ord_physician_name,
	ord_physician_email, report_date`

const genomicCols = `id, sample_id, clinical_id, true_hugo_symbol,
	true_protein_change, true_variant_classification, variant_category,
	cnv_call, wildtype, true_transcript_exon, mmr_status,
	structural_variant_comment, chromosome, position, true_cdna_change,
	reference_allele, canonical_strand, allele_fraction, tier, actionability`

// FindClinical returns the clinical records matching f in insertion order.
func (s *Store) FindClinical(ctx context.Context, f store.Filter) ([]*store.Clinical, error) {
	where, args := whereClause(f, clinicalColumns)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+clinicalCols+" FROM clinical"+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, fmt.Errorf("query clinical: %w", err)
	}
	defer rows.Close()

	var out []*store.Clinical
	for rows.Next() {
		var (
			id, sampleID, mrn, diagnosis                  sql.NullString
			gender, vital, firstLast, physName, physEmail sql.NullString
			birthDate, reportDate                         sql.NullTime
		)
		if err := rows.Scan(&id, &sampleID, &mrn, &diagnosis, &birthDate,
			&gender, &vital, &firstLast, &physName, &physEmail,
			&reportDate); err != nil {
			return nil, fmt.Errorf("scan clinical: %w", err)
		}
		out = append(out, &store.Clinical{
			ID:                id.String,
			SampleID:          sampleID.String,
			MRN:               mrn.String,
			OncotreeDiagnosis: diagnosis.String,
			BirthDate:         birthDate.Time,
			Gender:            gender.String,
			VitalStatus:       vital.String,
			FirstLast:         firstLast.String,
			OrdPhysicianName:  physName.String,
			OrdPhysicianEmail: physEmail.String,
			ReportDate:        reportDate.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clinical: %w", err)
	}
	return out, nil
}

// ClinicalSampleIDs returns the distinct sample ids of the clinical records
// matching f, in first-seen order.
func (s *Store) ClinicalSampleIDs(ctx context.Context, f store.Filter) ([]string, error) {
	where, args := whereClause(f, clinicalColumns)
	rows, err := s.db.QueryContext(ctx,
		"SELECT sample_id FROM clinical"+where+
			" GROUP BY sample_id ORDER BY min(seq)", args...)
	if err != nil {
		return nil, fmt.Errorf("query sample ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id sql.NullString
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sample id: %w", err)
		}
		if id.String == "" {
			continue
		}
		ids = append(ids, id.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample ids: %w", err)
	}
	return ids, nil
}

// FindGenomic returns the genomic records matching f in insertion order.
func (s *Store) FindGenomic(ctx context.Context, f store.Filter) ([]*store.Genomic, error) {
	where, args := whereClause(f, genomicColumns)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+genomicCols+" FROM genomic"+where+" ORDER BY seq", args...)
	if err != nil {
		return nil, fmt.Errorf("query genomic: %w", err)
	}
	defer rows.Close()

	var out []*store.Genomic
	for rows.Next() {
		g, err := scanGenomic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate genomic: %w", err)
	}
	return out, nil
}

func scanGenomic(rows *sql.Rows) (*store.Genomic, error) {
	var (
		id, sampleID, clinicalID, gene, protein sql.NullString
		classification, category, cnv           sql.NullString
		mmr, svComment, chrom, cdna             sql.NullString
		refAllele, strand, actionability        sql.NullString
		wildtype                                sql.NullBool
		exon, position, tier                    sql.NullInt64
		alleleFraction                          sql.NullFloat64
	)
	if err := rows.Scan(&id, &sampleID, &clinicalID, &gene, &protein,
		&classification, &category, &cnv, &wildtype, &exon, &mmr,
		&svComment, &chrom, &position, &cdna, &refAllele, &strand,
		&alleleFraction, &tier, &actionability); err != nil {
		return nil, fmt.Errorf("scan genomic: %w", err)
	}
	return &store.Genomic{
		ID:                    id.String,
		SampleID:              sampleID.String,
		ClinicalID:            clinicalID.String,
		HugoSymbol:            gene.String,
		ProteinChange:         protein.String,
		VariantClassification: classification.String,
		VariantCategory:       category.String,
		CNVCall:               cnv.String,
		Wildtype:              boolPtr(wildtype),
		TranscriptExon:        exon.Int64,
		MMRStatus:             mmr.String,
		SVComment:             svComment.String,
		Chromosome:            chrom.String,
		Position:              position.Int64,
		CDNAChange:            cdna.String,
		ReferenceAllele:       refAllele.String,
		CanonicalStrand:       strand.String,
		AlleleFraction:        alleleFraction.Float64,
		Tier:                  tier.Int64,
		Actionability:         actionability.String,
	}, nil
}

// DistinctGeneVariants returns every distinct gene and protein change pair
// in the genomic collection, skipping records without a gene symbol.
func (s *Store) DistinctGeneVariants(ctx context.Context) ([]store.GeneVariant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT true_hugo_symbol, true_protein_change FROM genomic
		WHERE true_hugo_symbol IS NOT NULL
		GROUP BY true_hugo_symbol, true_protein_change
		ORDER BY min(seq)`)
	if err != nil {
		return nil, fmt.Errorf("query gene variants: %w", err)
	}
	defer rows.Close()

	var out []store.GeneVariant
	for rows.Next() {
		var gene, protein sql.NullString
		if err := rows.Scan(&gene, &protein); err != nil {
			return nil, fmt.Errorf("scan gene variant: %w", err)
		}
		out = append(out, store.GeneVariant{
			HugoSymbol:    gene.String,
			ProteinChange: protein.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gene variants: %w", err)
	}
	return out, nil
}

// TrialDocs returns every stored trial document in insertion order.
func (s *Store) TrialDocs(ctx context.Context) ([]*store.TrialDoc, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT protocol_no, nct_id, doc FROM trials ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query trials: %w", err)
	}
	defer rows.Close()

	var out []*store.TrialDoc
	for rows.Next() {
		var protocolNo, nctID, doc sql.NullString
		if err := rows.Scan(&protocolNo, &nctID, &doc); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		out = append(out, &store.TrialDoc{
			ProtocolNo: protocolNo.String,
			NCTID:      nctID.String,
			Doc:        []byte(doc.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return out, nil
}

// ReplaceClinical replaces the clinical collection with recs.
func (s *Store) ReplaceClinical(ctx context.Context, recs []*store.Clinical) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM clinical"); err != nil {
		return fmt.Errorf("clear clinical: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	app, conn, err := s.appender(ctx, "clinical")
	if err != nil {
		return err
	}
	defer conn.Close()
	defer app.Close()

	for i, c := range recs {
		if err := app.AppendRow(
			int64(i), nullStr(c.ID), nullStr(c.SampleID), nullStr(c.MRN),
			nullStr(c.OncotreeDiagnosis), nullTime(c.BirthDate),
			nullStr(c.Gender), nullStr(c.VitalStatus), nullStr(c.FirstLast),
			nullStr(c.OrdPhysicianName), nullStr(c.OrdPhysicianEmail),
			nullTime(c.ReportDate),
		); err != nil {
			return fmt.Errorf("append clinical record: %w", err)
		}
	}
	if err := app.Flush(); err != nil {
		return fmt.Errorf("flush clinical records: %w", err)
	}
	return nil
}

// ReplaceGenomic replaces the genomic collection with recs.
func (s *Store) ReplaceGenomic(ctx context.Context, recs []*store.Genomic) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM genomic"); err != nil {
		return fmt.Errorf("clear genomic: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	app, conn, err := s.appender(ctx, "genomic")
	if err != nil {
		return err
	}
	defer conn.Close()
	defer app.Close()

	for i, g := range recs {
		if err := app.AppendRow(
			int64(i), nullStr(g.ID), nullStr(g.SampleID), nullStr(g.ClinicalID),
			nullStr(g.HugoSymbol), nullStr(g.ProteinChange),
			nullStr(g.VariantClassification), nullStr(g.VariantCategory),
			nullStr(g.CNVCall), nullBool(g.Wildtype), nullInt(g.TranscriptExon),
			nullStr(g.MMRStatus), nullStr(g.SVComment), nullStr(g.Chromosome),
			nullInt(g.Position), nullStr(g.CDNAChange), nullStr(g.ReferenceAllele),
			nullStr(g.CanonicalStrand), nullFloat(g.AlleleFraction),
			nullInt(g.Tier), nullStr(g.Actionability),
		); err != nil {
			return fmt.Errorf("append genomic record: %w", err)
		}
	}
	if err := app.Flush(); err != nil {
		return fmt.Errorf("flush genomic records: %w", err)
	}
	return nil
}

// ReplaceTrials replaces the trial collection with docs.
func (s *Store) ReplaceTrials(ctx context.Context, docs []*store.TrialDoc) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM trials"); err != nil {
		return fmt.Errorf("clear trials: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	app, conn, err := s.appender(ctx, "trials")
	if err != nil {
		return err
	}
	defer conn.Close()
	defer app.Close()

	for i, d := range docs {
		if err := app.AppendRow(
			int64(i), nullStr(d.ProtocolNo), nullStr(d.NCTID),
			nullStr(string(d.Doc)),
		); err != nil {
			return fmt.Errorf("append trial: %w", err)
		}
	}
	if err := app.Flush(); err != nil {
		return fmt.Errorf("flush trials: %w", err)
	}
	return nil
}

// appender opens a DuckDB appender on the named table. The caller closes
// both returned handles.
func (s *Store) appender(ctx context.Context, table string) (*goduckdb.Appender, *sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("get connection: %w", err)
	}

	var app *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		app, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", table)
		return err
	}); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("create appender: %w", err)
	}
	return app, conn, nil
}

// Absent values are stored as NULL so the filter semantics match the
// in-memory adapter.

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
