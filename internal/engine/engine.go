// Package engine evaluates every trial's match trees against the clinical
// and genomic collections and replaces the stored match records with the
// sorted results of the run.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oncomatch/matchengine/internal/annotation"
	"github.com/oncomatch/matchengine/internal/criteria"
	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/normalize"
	"github.com/oncomatch/matchengine/internal/oncotree"
	"github.com/oncomatch/matchengine/internal/store"
	"github.com/oncomatch/matchengine/internal/trial"
)

// Match methods. The general method evaluates declared criteria directly;
// the annotated method additionally resolves annotated variant classes
// through the annotation service.
const (
	MethodGeneral   = "general"
	MethodAnnotated = "annotated"
)

// DefaultWorkers is the pool size used when none is configured.
func DefaultWorkers() int {
	if n := runtime.NumCPU(); n < 8 {
		return n
	}
	return 8
}

// Config adjusts a match run.
type Config struct {
	// Workers sets the worker pool size; 0 means DefaultWorkers.
	Workers int
	// MatchMethod is MethodGeneral or MethodAnnotated; empty means general.
	MatchMethod string
	// Protocols restricts the run to the named protocol numbers.
	Protocols []string
	// RunID tags every emitted record; a fresh one is generated when empty.
	RunID string
}

// Engine matches patient samples against trials.
type Engine struct {
	store  store.Store
	tumors *oncotree.Tree
	client *annotation.Client
	logger *zap.Logger
	cfg    Config
}

// New creates an engine over the store. tumors may be nil, in which case
// trial diagnoses match literally instead of expanding to descendants.
func New(st store.Store, tumors *oncotree.Tree, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers()
	}
	if cfg.MatchMethod == "" {
		cfg.MatchMethod = MethodGeneral
	}
	return &Engine{
		store:  st,
		tumors: tumors,
		logger: zap.NewNop(),
		cfg:    cfg,
	}
}

// SetLogger sets the logger. The default discards all output.
func (e *Engine) SetLogger(logger *zap.Logger) {
	e.logger = logger
}

// SetAnnotationClient provides the annotation service client required by
// the annotated match method.
func (e *Engine) SetAnnotationClient(c *annotation.Client) {
	e.client = c
}

// run carries the per-run state shared by the pool workers.
type run struct {
	ev       *evaluator
	bySample map[string]*store.Clinical
	runID    string
}

// parsedTrial is a decoded, validated trial with its match trees built.
type parsedTrial struct {
	trial  *trial.Trial
	levels []matchLevel
}

// Run evaluates every stored trial against the clinical and genomic
// collections, replaces the stored match records with the sorted results
// and returns them. Trials that fail validation are skipped with a
// warning; a store failure aborts the run.
func (e *Engine) Run(ctx context.Context) ([]*match.Record, error) {
	start := time.Now()
	runID := e.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	clinical, err := e.store.FindClinical(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load clinical collection: %w", err)
	}
	bySample := make(map[string]*store.Clinical, len(clinical))
	sampleIDs := make([]string, 0, len(clinical))
	for _, c := range clinical {
		if c.SampleID == "" {
			continue
		}
		if _, ok := bySample[c.SampleID]; !ok {
			sampleIDs = append(sampleIDs, c.SampleID)
		}
		bySample[c.SampleID] = c
	}

	docs, err := e.store.TrialDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load trial collection: %w", err)
	}
	trials := e.parseTrials(docs)
	e.logger.Info("match run starting",
		zap.String("run_id", runID),
		zap.Int("samples", len(sampleIDs)),
		zap.Int("trials", len(trials)),
		zap.Int("workers", e.cfg.Workers),
		zap.String("method", e.cfg.MatchMethod))

	method := e.cfg.MatchMethod
	var catalog annotation.Catalog
	if method == MethodAnnotated {
		catalog = e.fetchCatalog(ctx, trials)
		if catalog == nil {
			method = MethodGeneral
		}
	}

	compiler := &criteria.Compiler{Tumors: e.tumors}
	r := &run{
		ev:       newEvaluator(e.store, compiler, method, catalog, sampleIDs, e.logger),
		bySample: bySample,
		runID:    runID,
	}

	items := make(chan workItem)
	go func() {
		defer close(items)
		for i := range trials {
			item := workItem{seq: i, trial: trials[i].trial, levels: trials[i].levels}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := r.parallelMatch(ctx, items, e.cfg.Workers)
	var records []*match.Record
	err = orderedCollect(results, func(wr workResult) error {
		if wr.err != nil {
			return fmt.Errorf("match trial %s: %w", wr.trial.ProtocolNo, wr.err)
		}
		e.logger.Debug("trial matched",
			zap.String("protocol_no", wr.trial.ProtocolNo),
			zap.Int("matches", len(wr.records)))
		records = append(records, wr.records...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match.Sort(records)
	if err := e.store.ReplaceMatches(ctx, records); err != nil {
		return nil, fmt.Errorf("write matches: %w", err)
	}
	e.logger.Info("match run complete",
		zap.String("run_id", runID),
		zap.Int("matches", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

// matchTrial evaluates every match level of one trial.
func (r *run) matchTrial(ctx context.Context, item workItem) ([]*match.Record, error) {
	em := newEmitter(item.trial, r.bySample, r.runID)
	var records []*match.Record
	for i := range item.levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ml := &item.levels[i]
		facts, err := r.ev.traverse(ctx, ml.tree)
		if err != nil {
			return nil, err
		}
		for fi := range facts {
			records = append(records, em.record(&facts[fi], &ml.level))
		}
	}
	return records, nil
}

// parseTrials decodes, filters and validates the stored trial documents,
// building the match tree for every treatment level. Invalid trials are
// skipped with a warning.
func (e *Engine) parseTrials(docs []*store.TrialDoc) []parsedTrial {
	only := make(map[string]bool, len(e.cfg.Protocols))
	for _, p := range e.cfg.Protocols {
		only[p] = true
	}
	var out []parsedTrial
	for _, doc := range docs {
		if len(only) > 0 && !only[doc.ProtocolNo] {
			continue
		}
		t, err := trial.Parse(doc.Doc)
		if err != nil {
			e.logger.Warn("skipping unreadable trial",
				zap.String("protocol_no", doc.ProtocolNo), zap.Error(err))
			continue
		}
		if err := t.Validate(); err != nil {
			e.logger.Warn("skipping invalid trial", zap.Error(err))
			continue
		}
		levels := make([]matchLevel, 0, 4)
		ok := true
		for _, lv := range t.MatchLevels() {
			tree, err := trial.BuildTree(lv.Clause)
			if err != nil {
				e.logger.Warn("skipping invalid trial",
					zap.String("protocol_no", t.ProtocolNo), zap.Error(err))
				ok = false
				break
			}
			levels = append(levels, matchLevel{level: lv, tree: tree})
		}
		if !ok {
			continue
		}
		out = append(out, parsedTrial{trial: t, levels: levels})
	}
	return out
}

// fetchCatalog resolves the variant classes declared across all trials
// against the annotation service. Any failure degrades the run to general
// matching with a warning rather than aborting it.
func (e *Engine) fetchCatalog(ctx context.Context, trials []parsedTrial) annotation.Catalog {
	if e.client == nil {
		e.logger.Warn("annotated matching requested without an annotation client, falling back to general matching")
		return nil
	}
	var declared []annotation.GeneVariant
	for _, pt := range trials {
		for _, ml := range pt.levels {
			for i := range ml.tree.Nodes {
				n := &ml.tree.Nodes[i]
				if n.Type != trial.NodeGenomic || n.Genomic.AnnotatedVariant == "" || len(n.Genomic.HugoSymbol) == 0 {
					continue
				}
				gene, _ := normalize.Negated(strings.TrimSpace(n.Genomic.HugoSymbol[0]))
				variant, _ := normalize.Negated(strings.TrimSpace(n.Genomic.AnnotatedVariant))
				declared = append(declared, annotation.GeneVariant{HugoSymbol: gene, Alteration: variant})
			}
		}
	}
	if len(declared) == 0 {
		return annotation.Catalog{}
	}
	observed, err := e.store.DistinctGeneVariants(ctx)
	if err != nil {
		e.logger.Warn("annotation degraded to general matching", zap.Error(err))
		return nil
	}
	queries := make([]annotation.GeneVariant, 0, len(observed))
	for _, gv := range observed {
		queries = append(queries, annotation.GeneVariant{HugoSymbol: gv.HugoSymbol, Alteration: gv.ProteinChange})
	}
	catalog, err := e.client.FetchCatalog(ctx, declared, queries)
	if err != nil {
		e.logger.Warn("annotation degraded to general matching", zap.Error(err))
		return nil
	}
	e.logger.Info("annotation catalog resolved",
		zap.Int("declared", len(declared)),
		zap.Int("observed", len(queries)),
		zap.Int("genes", len(catalog)))
	return catalog
}
