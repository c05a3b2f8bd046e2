// Package store defines the persistence boundary of the match engine: typed
// clinical, genomic and trial records, a small filter language the query
// evaluator compiles criteria into, and the Store interface its adapters
// implement.
package store

import (
	"context"

	"github.com/oncomatch/matchengine/internal/match"
)

// Store is the record backend. Implementations must be safe for concurrent
// readers; the Replace methods swap a collection wholesale and are called
// from a single goroutine.
type Store interface {
	// FindClinical returns the clinical records matching f.
	FindClinical(ctx context.Context, f Filter) ([]*Clinical, error)
	// ClinicalSampleIDs returns the distinct sample ids of the clinical
	// records matching f, in first-seen order.
	ClinicalSampleIDs(ctx context.Context, f Filter) ([]string, error)
	// FindGenomic returns the genomic records matching f.
	FindGenomic(ctx context.Context, f Filter) ([]*Genomic, error)
	// DistinctGeneVariants returns every distinct gene and protein change
	// pair present in the genomic collection, skipping records without a
	// gene symbol.
	DistinctGeneVariants(ctx context.Context) ([]GeneVariant, error)
	// TrialDocs returns every stored trial document.
	TrialDocs(ctx context.Context) ([]*TrialDoc, error)

	// ReplaceClinical replaces the clinical collection with recs.
	ReplaceClinical(ctx context.Context, recs []*Clinical) error
	// ReplaceGenomic replaces the genomic collection with recs.
	ReplaceGenomic(ctx context.Context, recs []*Genomic) error
	// ReplaceTrials replaces the trial collection with docs.
	ReplaceTrials(ctx context.Context, docs []*TrialDoc) error
	// ReplaceMatches replaces the match collection with recs, preserving
	// their order.
	ReplaceMatches(ctx context.Context, recs []*match.Record) error
	// Matches returns the stored match records in insertion order.
	Matches(ctx context.Context) ([]*match.Record, error)

	Close() error
}
