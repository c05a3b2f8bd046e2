package engine

import (
	"context"
	"sync"

	"github.com/oncomatch/matchengine/internal/match"
	"github.com/oncomatch/matchengine/internal/trial"
)

// workItem is one trial ready for matching, with its match trees built.
type workItem struct {
	seq    int
	trial  *trial.Trial
	levels []matchLevel
}

// matchLevel pairs a treatment level with its built match tree.
type matchLevel struct {
	level trial.Level
	tree  *trial.MatchTree
}

// workResult holds the match records evaluated for a single trial.
type workResult struct {
	seq     int
	trial   *trial.Trial
	records []*match.Record
	err     error
}

// parallelMatch evaluates work items using a pool of workers. Results are
// sent to the returned channel in completion order (not sequence order).
// Use orderedCollect to consume results in sequence-number order.
func (r *run) parallelMatch(ctx context.Context, items <-chan workItem, workers int) <-chan workResult {
	results := make(chan workResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				records, err := r.matchTrial(ctx, item)
				results <- workResult{
					seq:     item.seq,
					trial:   item.trial,
					records: records,
					err:     err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// orderedCollect calls fn for each result in sequence-number order. It
// buffers out-of-order results in a pending map and emits them as soon as
// the next expected sequence number is available. Blocks until the results
// channel is closed.
func orderedCollect(results <-chan workResult, fn func(workResult) error) error {
	pending := make(map[int]workResult)
	nextSeq := 0

	for r := range results {
		pending[r.seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
