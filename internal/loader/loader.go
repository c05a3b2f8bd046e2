// Package loader reads clinical and genomic patient files and trial
// curation documents into the store. Tabular inputs may be CSV or a JSON
// array of objects; trials may be YAML curation files or JSON documents.
// Column and key names follow the external vocabulary (SAMPLE_ID,
// TRUE_HUGO_SYMBOL, ...) and are matched case-insensitively.
package loader

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oncomatch/matchengine/internal/store"
)

// Loader parses input files and replaces store collections.
type Loader struct {
	store  store.Store
	logger *zap.Logger
}

// New creates a loader writing to st.
func New(st store.Store) *Loader {
	return &Loader{store: st, logger: zap.NewNop()}
}

// SetLogger sets the logger used for parse warnings.
func (l *Loader) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// Load reads the given inputs and replaces the corresponding collections.
// An empty path leaves that collection untouched. The clinical and genomic
// files parse concurrently; genomic records are then linked to their
// sample's clinical id before anything is written.
func (l *Loader) Load(ctx context.Context, clinicalPath, genomicPath, trialsPath string) error {
	var (
		clinical []*store.Clinical
		genomic  []*store.Genomic
		docs     []*store.TrialDoc
	)
	eg, _ := errgroup.WithContext(ctx)
	if clinicalPath != "" {
		eg.Go(func() error {
			var err error
			clinical, err = l.ReadClinical(clinicalPath)
			return err
		})
	}
	if genomicPath != "" {
		eg.Go(func() error {
			var err error
			genomic, err = l.ReadGenomic(genomicPath)
			return err
		})
	}
	if trialsPath != "" {
		eg.Go(func() error {
			var err error
			docs, err = l.ReadTrials(trialsPath)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if genomicPath != "" {
		linkAgainst := clinical
		if clinicalPath == "" {
			existing, err := l.store.FindClinical(ctx, store.Filter{})
			if err != nil {
				return fmt.Errorf("load clinical collection: %w", err)
			}
			linkAgainst = existing
		}
		link(linkAgainst, genomic, l.logger)
	}

	if clinicalPath != "" {
		if err := l.store.ReplaceClinical(ctx, clinical); err != nil {
			return fmt.Errorf("write clinical collection: %w", err)
		}
	}
	if genomicPath != "" {
		if err := l.store.ReplaceGenomic(ctx, genomic); err != nil {
			return fmt.Errorf("write genomic collection: %w", err)
		}
	}
	if trialsPath != "" {
		if err := l.store.ReplaceTrials(ctx, docs); err != nil {
			return fmt.Errorf("write trial collection: %w", err)
		}
	}
	l.logger.Info("load complete",
		zap.Int("clinical", len(clinical)),
		zap.Int("genomic", len(genomic)),
		zap.Int("trials", len(docs)))
	return nil
}

// link points every genomic record at the clinical id of its sample.
// Samples without a clinical record keep an empty clinical id.
func link(clinical []*store.Clinical, genomic []*store.Genomic, logger *zap.Logger) {
	bySample := make(map[string]string, len(clinical))
	for _, c := range clinical {
		if c.SampleID != "" {
			bySample[c.SampleID] = c.ID
		}
	}
	unlinked := 0
	for _, g := range genomic {
		id, ok := bySample[g.SampleID]
		if !ok {
			unlinked++
			continue
		}
		g.ClinicalID = id
	}
	if unlinked > 0 {
		logger.Warn("genomic records without a clinical sample", zap.Int("count", unlinked))
	}
}

func newID() string { return uuid.NewString() }
