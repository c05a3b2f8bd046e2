package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oncomatch/matchengine/internal/store"
	"github.com/oncomatch/matchengine/internal/trial"
)

func testRun(t *testing.T, st store.Store) *run {
	t.Helper()
	clinical, err := st.FindClinical(context.Background(), store.Filter{})
	require.NoError(t, err)
	bySample := make(map[string]*store.Clinical, len(clinical))
	for _, c := range clinical {
		bySample[c.SampleID] = c
	}
	return &run{ev: testEvaluator(t, st, MethodGeneral, nil), bySample: bySample, runID: "run-test"}
}

func poolItem(t *testing.T, seq int, protocolNo string) workItem {
	t.Helper()
	tr, err := trial.Parse(trialDoc(t, protocolNo, stepMatch(`{"genomic": {"hugo_symbol": "EGFR"}}`)).Doc)
	require.NoError(t, err)
	var levels []matchLevel
	for _, lv := range tr.MatchLevels() {
		tree, err := trial.BuildTree(lv.Clause)
		require.NoError(t, err)
		levels = append(levels, matchLevel{level: lv, tree: tree})
	}
	return workItem{seq: seq, trial: tr, levels: levels}
}

func TestParallelMatch_EvaluatesAllTrials(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.NewMemory()
	seedPatients(t, st)
	r := testRun(t, st)

	const trials = 9
	items := make(chan workItem, trials)
	for i := range trials {
		items <- poolItem(t, i, fmt.Sprintf("17-%03d", i))
	}
	close(items)

	results := r.parallelMatch(context.Background(), items, 3)
	var seqs []int
	err := orderedCollect(results, func(wr workResult) error {
		require.NoError(t, wr.err)
		require.Len(t, wr.records, 1)
		assert.Equal(t, "S1", wr.records[0].SampleID)
		seqs = append(seqs, wr.seq)
		return nil
	})
	require.NoError(t, err)

	// Results surface in sequence order regardless of which worker
	// finished first.
	require.Len(t, seqs, trials)
	for i, seq := range seqs {
		assert.Equal(t, i, seq)
	}
}

func TestParallelMatch_CanceledContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	st := store.NewMemory()
	seedPatients(t, st)
	r := testRun(t, st)

	items := make(chan workItem, 2)
	items <- poolItem(t, 0, "17-000")
	items <- poolItem(t, 1, "17-001")
	close(items)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := r.parallelMatch(ctx, items, 2)
	err := orderedCollect(results, func(wr workResult) error {
		if wr.err != nil {
			return wr.err
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrderedCollect_ReordersResults(t *testing.T) {
	results := make(chan workResult, 3)
	results <- workResult{seq: 2}
	results <- workResult{seq: 0}
	results <- workResult{seq: 1}
	close(results)

	var seqs []int
	err := orderedCollect(results, func(wr workResult) error {
		seqs = append(seqs, wr.seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seqs)
}

func TestOrderedCollect_ErrorDrainsRemaining(t *testing.T) {
	results := make(chan workResult, 3)
	results <- workResult{seq: 0}
	results <- workResult{seq: 1}
	results <- workResult{seq: 2}
	close(results)

	wantErr := errors.New("boom")
	err := orderedCollect(results, func(wr workResult) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// The channel is fully drained so senders never block.
	_, open := <-results
	assert.False(t, open)
}
