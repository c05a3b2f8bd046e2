// Package duckdb implements the record store on an embedded DuckDB
// database. Each collection lives in its own table; filters render to SQL
// WHERE clauses with document-style absence semantics: a condition on a
// NULL field fails, except Ne and Nin which match. Empty strings and zero
// numerics are stored as NULL so both adapters agree on what "absent"
// means.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/oncomatch/matchengine/internal/store"
)

// Store manages a DuckDB connection holding the match engine collections.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables and indexes if they don't exist.
func (s *Store) ensureSchema() error {
	for _, stmt := range schemaDDL {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS clinical (
		seq BIGINT,
		id VARCHAR,
		sample_id VARCHAR,
		mrn VARCHAR,
		oncotree_primary_diagnosis_name VARCHAR,
		birth_date TIMESTAMP,
		gender VARCHAR,
		vital_status VARCHAR,
		first_last VARCHAR,
		ord_physician_name VARCHAR,
		ord_physician_email VARCHAR,
		report_date TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS genomic (
		seq BIGINT,
		id VARCHAR,
		sample_id VARCHAR,
		clinical_id VARCHAR,
		true_hugo_symbol VARCHAR,
		true_protein_change VARCHAR,
		true_variant_classification VARCHAR,
		variant_category VARCHAR,
		cnv_call VARCHAR,
		wildtype BOOLEAN,
		true_transcript_exon BIGINT,
		mmr_status VARCHAR,
		structural_variant_comment VARCHAR,
		chromosome VARCHAR,
		position BIGINT,
		true_cdna_change VARCHAR,
		reference_allele VARCHAR,
		canonical_strand VARCHAR,
		allele_fraction DOUBLE,
		tier BIGINT,
		actionability VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS trials (
		seq BIGINT,
		protocol_no VARCHAR,
		nct_id VARCHAR,
		doc VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS trial_match (
		seq BIGINT,
		mrn VARCHAR,
		sample_id VARCHAR,
		first_last VARCHAR,
		protocol_no VARCHAR,
		nct_id VARCHAR,
		genomic_alteration VARCHAR,
		tier BIGINT,
		match_type VARCHAR,
		trial_accrual_status VARCHAR,
		match_level VARCHAR,
		code VARCHAR,
		internal_id VARCHAR,
		ord_physician_name VARCHAR,
		ord_physician_email VARCHAR,
		vital_status VARCHAR,
		gender VARCHAR,
		oncotree_primary_diagnosis_name VARCHAR,
		report_date TIMESTAMP,
		true_hugo_symbol VARCHAR,
		true_protein_change VARCHAR,
		true_variant_classification VARCHAR,
		variant_category VARCHAR,
		chromosome VARCHAR,
		position BIGINT,
		true_cdna_change VARCHAR,
		reference_allele VARCHAR,
		true_transcript_exon BIGINT,
		canonical_strand VARCHAR,
		allele_fraction DOUBLE,
		cnv_call VARCHAR,
		wildtype BOOLEAN,
		mmr_status VARCHAR,
		actionability VARCHAR,
		genomic_id VARCHAR,
		clinical_id VARCHAR,
		cancer_type_match VARCHAR,
		coordinating_center VARCHAR,
		clinical_only BOOLEAN,
		trial_oncotree_primary_diagnosis VARCHAR,
		trial_age_numerical VARCHAR,
		arm_description VARCHAR,
		arm_type VARCHAR,
		run_id VARCHAR,
		sort_order BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clinical_sample ON clinical (sample_id)`,
	`CREATE INDEX IF NOT EXISTS idx_genomic_sample ON genomic (sample_id)`,
	`CREATE INDEX IF NOT EXISTS idx_genomic_gene ON genomic (true_hugo_symbol, wildtype)`,
}
