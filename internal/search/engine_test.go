package search

import (
	"context"
	"math"
	"testing"

	"github.com/pgdta/dta/internal/model"
)

// fakeResetter counts Reset calls so tests can assert the mandatory
// reset-on-exit discipline without a database.
type fakeResetter struct {
	resets int
}

func (f *fakeResetter) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

// fakeSizer returns a fixed size per table.
type fakeSizer struct {
	sizes map[string]int64
}

func (f *fakeSizer) Size(ctx context.Context, table string) int64 {
	return f.sizes[table]
}

// fakeEstimator assigns a cost per frozen index set via a lookup table
// keyed by Key(), so tests can script a search trajectory deterministically.
type fakeEstimator struct {
	costs map[string]float64
	evals int
}

func (f *fakeEstimator) Plan(ctx context.Context, query string, indexes model.IndexSet) ([]byte, error) {
	return nil, nil
}

func (f *fakeEstimator) Evaluate(ctx context.Context, workload []model.WorkloadEntry, indexes model.IndexSet) (float64, error) {
	f.evals++
	if c, ok := f.costs[indexes.Key()]; ok {
		return c, nil
	}
	return math.Inf(1), nil
}

func TestObjective_InfiniteWhenCostOrSpaceNonPositive(t *testing.T) {
	if !math.IsInf(objective(0, 100, 2.0), 1) {
		t.Errorf("objective with zero cost should be +Inf")
	}
	if !math.IsInf(objective(100, 0, 2.0), 1) {
		t.Errorf("objective with zero space should be +Inf")
	}
	if !math.IsInf(objective(math.Inf(1), 100, 2.0), 1) {
		t.Errorf("objective with infinite cost should be +Inf")
	}
}

func TestObjective_LowerCostAndSpaceBothLowerTheScore(t *testing.T) {
	base := objective(1000, 1_000_000, 2.0)
	cheaper := objective(500, 1_000_000, 2.0)
	smaller := objective(1000, 500_000, 2.0)
	if cheaper >= base {
		t.Errorf("a cheaper plan should score lower: cheaper=%v base=%v", cheaper, base)
	}
	if smaller >= base {
		t.Errorf("less space should score lower: smaller=%v base=%v", smaller, base)
	}
}

func TestEngine_Run_NoCandidatesReturnsNilWithoutEvaluating(t *testing.T) {
	reset := &fakeResetter{}
	est := &fakeEstimator{costs: map[string]float64{}}
	e := NewEngine(est, reset, &fakeSizer{}, model.DefaultConfig())

	recs, err := e.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if recs != nil {
		t.Errorf("Run() = %+v, want nil", recs)
	}
	if est.evals != 0 {
		t.Errorf("expected no evaluations with zero candidates")
	}
}

func TestEngine_Run_PicksImprovingCandidateAboveThreshold(t *testing.T) {
	reset := &fakeResetter{}
	cand := model.Index{Table: "orders", Columns: []string{"customer_id"}, EstimatedSizeBytes: 1000}

	baseSet := model.IndexSet{}
	withCand := model.IndexSet{cand.Config()}

	est := &fakeEstimator{costs: map[string]float64{
		baseSet.Key():  1000,
		withCand.Key(): 100, // 90% improvement, clears MinTimeImprovement default of 0.10
	}}

	cfg := model.DefaultConfig()
	e := NewEngine(est, reset, &fakeSizer{sizes: map[string]int64{"orders": 50_000}}, cfg)

	recs, err := e.Run(context.Background(), []model.WorkloadEntry{{QueryText: "select 1"}}, []model.Index{cand})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1", len(recs))
	}
	if recs[0].Definition != cand.Definition() {
		t.Errorf("Definition = %q, want %q", recs[0].Definition, cand.Definition())
	}
	if recs[0].ProgressiveImprovementMultiple() != 10 {
		t.Errorf("ProgressiveImprovementMultiple() = %v, want 10", recs[0].ProgressiveImprovementMultiple())
	}
	if reset.resets == 0 {
		t.Errorf("expected Reset to run on exit")
	}
}

func TestEngine_Run_RejectsCandidateBelowMinTimeImprovement(t *testing.T) {
	reset := &fakeResetter{}
	cand := model.Index{Table: "orders", Columns: []string{"customer_id"}, EstimatedSizeBytes: 1000}

	baseSet := model.IndexSet{}
	withCand := model.IndexSet{cand.Config()}

	est := &fakeEstimator{costs: map[string]float64{
		baseSet.Key():  1000,
		withCand.Key(): 950, // only 5% improvement, below the 10% default floor
	}}

	cfg := model.DefaultConfig()
	e := NewEngine(est, reset, &fakeSizer{sizes: map[string]int64{"orders": 50_000}}, cfg)

	recs, err := e.Run(context.Background(), []model.WorkloadEntry{{QueryText: "select 1"}}, []model.Index{cand})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("Run() = %+v, want no recommendations", recs)
	}
}

func TestEngine_Run_RespectsStorageBudget(t *testing.T) {
	reset := &fakeResetter{}
	big := model.Index{Table: "orders", Columns: []string{"notes"}, EstimatedSizeBytes: 10 * 1024 * 1024}

	baseSet := model.IndexSet{}
	withBig := model.IndexSet{big.Config()}

	est := &fakeEstimator{costs: map[string]float64{
		baseSet.Key(): 1000,
		withBig.Key(): 10,
	}}

	cfg := model.DefaultConfig()
	cfg.MaxIndexSizeMB = 1 // 1 MiB budget, far below the 10 MiB candidate
	e := NewEngine(est, reset, &fakeSizer{sizes: map[string]int64{"orders": 50_000}}, cfg)

	recs, err := e.Run(context.Background(), []model.WorkloadEntry{{QueryText: "select 1"}}, []model.Index{big})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("Run() = %+v, want no recommendations once the storage budget rejects the only candidate", recs)
	}
}

func TestEngine_Run_PropagatesEstimatorError(t *testing.T) {
	reset := &fakeResetter{}
	e := NewEngine(&erroringEstimator{}, reset, &fakeSizer{}, model.DefaultConfig())

	cand := model.Index{Table: "orders", Columns: []string{"customer_id"}}
	_, err := e.Run(context.Background(), []model.WorkloadEntry{{QueryText: "select 1"}}, []model.Index{cand})
	if err == nil {
		t.Fatal("expected an error")
	}
	if reset.resets == 0 {
		t.Errorf("expected Reset to still run on the error exit path")
	}
}

type erroringEstimator struct{}

func (erroringEstimator) Plan(ctx context.Context, query string, indexes model.IndexSet) ([]byte, error) {
	return nil, nil
}

func (erroringEstimator) Evaluate(ctx context.Context, workload []model.WorkloadEntry, indexes model.IndexSet) (float64, error) {
	return 0, context.DeadlineExceeded
}
