package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/pgdta/dta/internal/model"
)

// BenchmarkEngine_Run exercises the greedy loop over a wide candidate set
// with an estimator that is cheap to call, isolating the search's own
// bookkeeping cost from real plan estimation.
func BenchmarkEngine_Run(b *testing.B) {
	const numCandidates = 30

	candidates := make([]model.Index, numCandidates)
	costs := map[string]float64{}
	for i := range candidates {
		candidates[i] = model.Index{
			Table:              "orders",
			Columns:            []string{fmt.Sprintf("col_%d", i)},
			EstimatedSizeBytes: 8192,
		}
	}
	costs[model.IndexSet{}.Key()] = 1_000_000
	running := 1_000_000.0
	set := model.IndexSet{}
	for i := range candidates {
		running *= 0.8
		set = set.With(candidates[i].Config())
		costs[set.Key()] = running
	}

	est := &fakeEstimator{costs: costs}
	workload := []model.WorkloadEntry{{QueryText: "select 1"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := NewEngine(est, &fakeResetter{}, &fakeSizer{sizes: map[string]int64{"orders": 50_000}}, model.DefaultConfig())
		if _, err := e.Run(context.Background(), workload, candidates); err != nil {
			b.Fatal(err)
		}
	}
}
