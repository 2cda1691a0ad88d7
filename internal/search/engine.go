// Package search is the advisor's Search Engine (§4.6): a seeded greedy,
// anytime algorithm over Candidate Generator output, picking the subset
// that minimizes a Pareto-style cost/space objective under a storage and
// time budget.
package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pgdta/dta/internal/cost"
	"github.com/pgdta/dta/internal/model"
)

// resetter is the slice of hypo.Manager the Search Engine depends on: a
// mandatory reset on exit (§3, §8 invariant #1). Declared as an interface
// rather than *hypo.Manager so the engine's budget/time/objective contract
// can be unit tested against a fake that never touches a database.
type resetter interface {
	Reset(ctx context.Context) error
}

// tableSizer is the slice of TableSizer the Search Engine depends on, for
// the same reason.
type tableSizer interface {
	Size(ctx context.Context, table string) int64
}

// Engine runs the greedy search described in §4.6.
type Engine struct {
	Estimator cost.Estimator
	Hypo      resetter
	Sizer     tableSizer
	Config    model.Config
}

func NewEngine(estimator cost.Estimator, mgr resetter, sizer tableSizer, cfg model.Config) *Engine {
	return &Engine{Estimator: estimator, Hypo: mgr, Sizer: sizer, Config: cfg}
}

type selection struct {
	index           model.Index
	progressiveBase float64
	progressiveRec  float64
}

// Run executes the search over candidates and returns the accepted
// recommendations in selection order. Reset runs once more on return,
// even on error — the Cost Estimator already brackets each individual
// evaluation, but the search's own exit is a second mandatory reset
// point (§3, §8 invariant #1).
func (e *Engine) Run(ctx context.Context, workload []model.WorkloadEntry, candidates []model.Index) ([]model.IndexRecommendation, error) {
	defer e.Hypo.Reset(ctx)

	if len(candidates) == 0 {
		return nil, nil
	}

	tableSet := map[string]bool{}
	for _, c := range candidates {
		tableSet[c.Table] = true
	}
	var baseRelationBytes int64
	for table := range tableSet {
		baseRelationBytes += e.Sizer.Size(ctx, table)
	}

	baseCost, err := e.Estimator.Evaluate(ctx, workload, nil)
	if err != nil {
		return nil, fmt.Errorf("evaluating empty configuration: %w", err)
	}

	current := model.IndexSet{}
	currentCost := baseCost
	currentSpace := float64(baseRelationBytes)
	currentObjective := objective(currentCost, currentSpace, e.Config.Alpha)

	remaining := make([]model.Index, len(candidates))
	copy(remaining, candidates)

	var selections []selection
	start := time.Now()
	budgetBytes := int64(-1)
	if e.Config.MaxIndexSizeMB >= 0 {
		budgetBytes = e.Config.MaxIndexSizeMB * 1024 * 1024
	}

	for {
		if e.Config.MaxRuntimeSeconds > 0 && time.Since(start).Seconds() > e.Config.MaxRuntimeSeconds {
			break
		}

		bestIdx := -1
		bestCost := currentCost
		bestSpace := currentSpace
		bestObjective := currentObjective
		bestTimeImprovement := 0.0

		for i, cand := range remaining {
			trialSpace := currentSpace + float64(cand.EstimatedSizeBytes)

			if budgetBytes >= 0 && (trialSpace-float64(baseRelationBytes)) > float64(budgetBytes) {
				continue
			}

			trialSet := current.With(cand.Config())
			trialCost, err := e.Estimator.Evaluate(ctx, workload, trialSet)
			if err != nil {
				return nil, fmt.Errorf("evaluating candidate %s: %w", cand.Definition(), err)
			}

			var timeImprovement float64
			if currentCost > 0 && !math.IsInf(currentCost, 1) {
				timeImprovement = (currentCost - trialCost) / currentCost
			}
			if timeImprovement < e.Config.MinTimeImprovement {
				continue
			}

			trialObjective := objective(trialCost, trialSpace, e.Config.Alpha)
			if trialObjective < bestObjective && timeImprovement > bestTimeImprovement {
				bestIdx = i
				bestCost = trialCost
				bestSpace = trialSpace
				bestObjective = trialObjective
				bestTimeImprovement = timeImprovement
			}
		}

		if bestIdx < 0 {
			break
		}

		chosen := remaining[bestIdx]
		selections = append(selections, selection{
			index:           chosen,
			progressiveBase: currentCost,
			progressiveRec:  bestCost,
		})

		current = current.With(chosen.Config())
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		currentCost = bestCost
		currentSpace = bestSpace
		currentObjective = bestObjective

		if e.Config.MaxRuntimeSeconds > 0 && time.Since(start).Seconds() > e.Config.MaxRuntimeSeconds {
			break
		}
	}

	return e.buildRecommendations(ctx, workload, baseCost, selections, budgetBytes, baseRelationBytes)
}

// buildRecommendations computes individual (isolated) costs per §4.6's
// output-construction step and applies the output-time defensive budget
// check.
func (e *Engine) buildRecommendations(ctx context.Context, workload []model.WorkloadEntry, baseCost float64, selections []selection, budgetBytes int64, baseRelationBytes int64) ([]model.IndexRecommendation, error) {
	var out []model.IndexRecommendation
	var cumulativeSize int64

	for _, sel := range selections {
		individualSet := model.IndexSet{sel.index.Config()}
		individualCost, err := e.Estimator.Evaluate(ctx, workload, individualSet)
		if err != nil {
			return nil, fmt.Errorf("evaluating individual cost for %s: %w", sel.index.Definition(), err)
		}

		if budgetBytes >= 0 && cumulativeSize+sel.index.EstimatedSizeBytes > budgetBytes {
			continue
		}
		cumulativeSize += sel.index.EstimatedSizeBytes

		out = append(out, model.IndexRecommendation{
			Index:                      sel.index,
			EstimatedSizeBytes:         sel.index.EstimatedSizeBytes,
			IndividualBaseCost:         baseCost,
			IndividualRecommendedCost:  individualCost,
			ProgressiveBaseCost:        sel.progressiveBase,
			ProgressiveRecommendedCost: sel.progressiveRec,
			Definition:                 sel.index.Definition(),
		})
	}
	return out, nil
}

// objective is score(C) = ln(exec_cost(C)) + alpha*ln(space) (§4.6);
// undefined (infinite) when either term is non-positive.
func objective(execCost, space, alpha float64) float64 {
	if execCost <= 0 || space <= 0 || math.IsInf(execCost, 1) {
		return math.Inf(1)
	}
	return math.Log(execCost) + alpha*math.Log(space)
}
