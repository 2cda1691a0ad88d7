// Package cost is the advisor's Cost Estimator (§4.4): for a query and a
// set of hypothetical indexes it obtains a JSON execution plan via
// EXPLAIN, extracts the root total cost, and caches the result.
package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/parser"
	"github.com/pgdta/dta/internal/pgdriver"
)

// Estimator is the capability set the Search Engine depends on. The
// default ExplainEstimator and an experimental alternative (out of
// scope for this module) share this one interface — the search never
// depends on which is in use (§9 design note: dynamic dispatch on
// estimator strategies).
type Estimator interface {
	Plan(ctx context.Context, query string, indexes model.IndexSet) ([]byte, error)
	Evaluate(ctx context.Context, workload []model.WorkloadEntry, indexes model.IndexSet) (float64, error)
}

// ExplainEstimator is the default Estimator.
type ExplainEstimator struct {
	Driver  *pgdriver.SqlDriver
	Hypo    *hypo.Manager
	Version pgdriver.ServerVersion

	PlanCache *model.PlanCache
	CostCache *model.CostCache
}

// NewExplainEstimator builds an estimator with fresh, session-owned
// caches (§3: PlanCache/CostCache are created at session start, dropped
// on return).
func NewExplainEstimator(driver *pgdriver.SqlDriver, mgr *hypo.Manager, version pgdriver.ServerVersion) *ExplainEstimator {
	return &ExplainEstimator{
		Driver:    driver,
		Hypo:      mgr,
		Version:   version,
		PlanCache: model.NewPlanCache(),
		CostCache: model.NewCostCache(),
	}
}

// Plan returns a JSON execution plan for query under indexes, cached by
// (query, frozen index set). Reset-on-entry and reset-on-exit bracket
// every evaluation that creates hypothetical indexes (§3, §4.3).
func (e *ExplainEstimator) Plan(ctx context.Context, query string, indexes model.IndexSet) ([]byte, error) {
	key := model.PlanCacheKey(query, indexes)
	if cached, ok := e.PlanCache.Get(key); ok {
		return cached, nil
	}

	if err := e.Hypo.Reset(ctx); err != nil {
		return nil, err
	}
	defer e.Hypo.Reset(ctx)

	defs := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		defs = append(defs, idx.Definition())
	}
	if len(defs) > 0 {
		if err := e.Hypo.CreateIndexes(ctx, defs); err != nil {
			return nil, err
		}
	}

	plan, err := e.explain(ctx, query)
	if err != nil {
		return nil, err
	}

	e.PlanCache.Put(key, plan)
	return plan, nil
}

// explain runs EXPLAIN (FORMAT JSON) on query, choosing the bind-variable
// strategy per §4.4: generic-plan mode when the server supports it and
// the query has no LIKE predicate; otherwise dummy-literal substitution.
func (e *ExplainEstimator) explain(ctx context.Context, query string) ([]byte, error) {
	sql := query
	opts := "FORMAT JSON"

	if parser.HasBindParams(query) {
		if e.Version.SupportsGenericPlan() && !parser.HasLike(query) {
			opts = "FORMAT JSON, GENERIC_PLAN"
		} else {
			sql = parser.SubstituteDummyLiterals(query)
		}
	}

	rows, err := e.Driver.Execute(ctx, fmt.Sprintf("EXPLAIN (%s) %s", opts, sql), nil, true)
	if err != nil {
		return nil, fmt.Errorf("EXPLAIN failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("EXPLAIN returned no rows")
	}

	raw := rows[0].Cells["QUERY PLAN"]
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// PlanCost reads the root node's Total Cost from a JSON plan. A missing
// plan or missing cost is positive infinity (§4.4).
func PlanCost(plan []byte) float64 {
	var parsed []map[string]any
	if err := json.Unmarshal(plan, &parsed); err != nil || len(parsed) == 0 {
		return math.Inf(1)
	}
	node, ok := parsed[0]["Plan"].(map[string]any)
	if !ok {
		return math.Inf(1)
	}
	cost, ok := node["Total Cost"].(float64)
	if !ok {
		return math.Inf(1)
	}
	return cost
}

// Evaluate is the weighted average of per-query costs across workload
// under indexes: weight = calls*avg_exec_time when both are known, else
// 1. Cached on indexes alone after a full workload pass; positive
// infinity if no query produced a plan (§4.4).
func (e *ExplainEstimator) Evaluate(ctx context.Context, workload []model.WorkloadEntry, indexes model.IndexSet) (float64, error) {
	if cached, ok := e.CostCache.Get(indexes); ok {
		return cached, nil
	}

	var totalWeight, weightedCost float64
	produced := false

	for _, entry := range workload {
		plan, err := e.Plan(ctx, entry.QueryText, indexes)
		if err != nil {
			return 0, &model.EstimationError{Query: entry.QueryText, Err: err}
		}
		c := PlanCost(plan)
		if math.IsInf(c, 1) {
			continue
		}
		produced = true
		w := entry.Weight()
		totalWeight += w
		weightedCost += w * c
	}

	result := math.Inf(1)
	if produced && totalWeight > 0 {
		result = weightedCost / totalWeight
	}

	e.CostCache.Put(indexes, result)
	return result, nil
}
