package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oncomatch/matchengine/internal/match"
)

// WithRetry wraps s so every operation retries with exponential backoff, up
// to attempts tries in total. Context cancellation stops the retries.
func WithRetry(s Store, attempts uint) Store {
	if attempts < 1 {
		attempts = 1
	}
	return &retryStore{next: s, attempts: attempts}
}

type retryStore struct {
	next     Store
	attempts uint
}

func (r *retryStore) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.attempts-1)), ctx)
}

func retryValue[T any](ctx context.Context, r *retryStore, fn func() (T, error)) (T, error) {
	return backoff.RetryWithData(fn, r.policy(ctx))
}

func (r *retryStore) FindClinical(ctx context.Context, f Filter) ([]*Clinical, error) {
	return retryValue(ctx, r, func() ([]*Clinical, error) { return r.next.FindClinical(ctx, f) })
}

func (r *retryStore) ClinicalSampleIDs(ctx context.Context, f Filter) ([]string, error) {
	return retryValue(ctx, r, func() ([]string, error) { return r.next.ClinicalSampleIDs(ctx, f) })
}

func (r *retryStore) FindGenomic(ctx context.Context, f Filter) ([]*Genomic, error) {
	return retryValue(ctx, r, func() ([]*Genomic, error) { return r.next.FindGenomic(ctx, f) })
}

func (r *retryStore) DistinctGeneVariants(ctx context.Context) ([]GeneVariant, error) {
	return retryValue(ctx, r, func() ([]GeneVariant, error) { return r.next.DistinctGeneVariants(ctx) })
}

func (r *retryStore) TrialDocs(ctx context.Context) ([]*TrialDoc, error) {
	return retryValue(ctx, r, func() ([]*TrialDoc, error) { return r.next.TrialDocs(ctx) })
}

func (r *retryStore) ReplaceClinical(ctx context.Context, recs []*Clinical) error {
	return backoff.Retry(func() error { return r.next.ReplaceClinical(ctx, recs) }, r.policy(ctx))
}

func (r *retryStore) ReplaceGenomic(ctx context.Context, recs []*Genomic) error {
	return backoff.Retry(func() error { return r.next.ReplaceGenomic(ctx, recs) }, r.policy(ctx))
}

func (r *retryStore) ReplaceTrials(ctx context.Context, docs []*TrialDoc) error {
	return backoff.Retry(func() error { return r.next.ReplaceTrials(ctx, docs) }, r.policy(ctx))
}

func (r *retryStore) ReplaceMatches(ctx context.Context, recs []*match.Record) error {
	return backoff.Retry(func() error { return r.next.ReplaceMatches(ctx, recs) }, r.policy(ctx))
}

func (r *retryStore) Matches(ctx context.Context) ([]*match.Record, error) {
	return retryValue(ctx, r, func() ([]*match.Record, error) { return r.next.Matches(ctx) })
}

func (r *retryStore) Close() error { return r.next.Close() }
