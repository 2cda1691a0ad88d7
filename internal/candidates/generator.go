// Package candidates is the advisor's Candidate Generator (§4.5): turns a
// weighted workload plus the database's existing indexes into a list of
// Index candidates, each with an estimated size.
package candidates

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// Generator produces candidates from a workload and the set of indexes
// the database already has.
type Generator struct {
	Driver *pgdriver.SqlDriver
	Hypo   *hypo.Manager
	Config model.Config
}

func NewGenerator(driver *pgdriver.SqlDriver, mgr *hypo.Manager, cfg model.Config) *Generator {
	return &Generator{Driver: driver, Hypo: mgr, Config: cfg}
}

type columnUsage struct {
	table  string
	column string
	count  int
}

// Generate runs the full six-step pipeline of §4.5 and returns the
// surviving candidates, each with EstimatedSizeBytes populated.
func (g *Generator) Generate(ctx context.Context, workload []model.WorkloadEntry, existing model.IndexSet) ([]model.Index, error) {
	kept := g.columnFrequency(workload)
	enumerated := g.enumerate(kept)
	afterExisting := filterExisting(enumerated, existing)
	afterPredicate := g.filterByPredicateRelevance(afterExisting, workload)

	afterLongText, err := g.filterLongTextColumns(ctx, afterPredicate)
	if err != nil {
		return nil, err
	}

	return g.estimateSizes(ctx, afterLongText)
}

// columnFrequency implements §4.5 step 1: count, per (table, column), how
// many distinct workload queries reference it in an indexable position,
// and keep only those meeting MinColumnUsage.
func (g *Generator) columnFrequency(workload []model.WorkloadEntry) map[string][]string {
	counts := map[string]*columnUsage{}
	for _, entry := range workload {
		if entry.Parsed == nil {
			continue
		}
		for table, cols := range entry.Parsed.IndexableColumns {
			for col := range cols {
				key := table + "\x00" + col
				u, ok := counts[key]
				if !ok {
					u = &columnUsage{table: table, column: col}
					counts[key] = u
				}
				u.count++
			}
		}
	}

	kept := map[string][]string{}
	for _, u := range counts {
		if u.count < g.Config.MinColumnUsage {
			continue
		}
		kept[u.table] = append(kept[u.table], u.column)
	}
	for table := range kept {
		sort.Strings(kept[table])
	}
	return kept
}

// enumerate implements §4.5 step 2: every ordered w-combination of kept
// columns per table, for w in [1, min(MaxIndexWidth, n_kept_cols)].
func (g *Generator) enumerate(kept map[string][]string) []model.Index {
	var out []model.Index
	for table, cols := range kept {
		maxWidth := g.Config.MaxIndexWidth
		if maxWidth > len(cols) {
			maxWidth = len(cols)
		}
		for w := 1; w <= maxWidth; w++ {
			for _, combo := range orderedCombinations(cols, w) {
				out = append(out, model.Index{
					Table:   table,
					Columns: combo,
					Method:  model.BTree,
				})
			}
		}
	}
	return out
}

// orderedCombinations returns every ordered (permutation-like, but without
// repeats) w-length selection from items — "ordered combinations" in the
// spec's sense: composite index column order is significant, so {a,b} and
// {b,a} are distinct candidates, but no column repeats within one tuple.
func orderedCombinations(items []string, w int) [][]string {
	if w <= 0 {
		return nil
	}
	var out [][]string
	used := make([]bool, len(items))
	var build func(prefix []string)
	build = func(prefix []string) {
		if len(prefix) == w {
			out = append(out, append([]string(nil), prefix...))
			return
		}
		for i, item := range items {
			if used[i] {
				continue
			}
			used[i] = true
			build(append(prefix, item))
			used[i] = false
		}
	}
	build(nil)
	return out
}

// filterExisting implements §4.5 step 3: drop candidates structurally
// equivalent to an already-existing index (table, ordered columns, method;
// hash ignores order).
func filterExisting(candidates []model.Index, existing model.IndexSet) []model.Index {
	var out []model.Index
	for _, c := range candidates {
		if existing.Contains(c.Config()) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// filterByPredicateRelevance implements §4.5 step 4: keep only candidates
// whose every column appears in the per-query indexable-column sets
// already aggregated across the workload.
func (g *Generator) filterByPredicateRelevance(candidates []model.Index, workload []model.WorkloadEntry) []model.Index {
	relevant := map[string]map[string]bool{}
	for _, entry := range workload {
		if entry.Parsed == nil {
			continue
		}
		for table, cols := range entry.Parsed.IndexableColumns {
			if relevant[table] == nil {
				relevant[table] = map[string]bool{}
			}
			for col := range cols {
				relevant[table][col] = true
			}
		}
	}

	var out []model.Index
	for _, c := range candidates {
		cols, ok := relevant[c.Table]
		if !ok {
			continue
		}
		allUsed := true
		for _, col := range c.Columns {
			if !cols[col] {
				allUsed = false
				break
			}
		}
		if allUsed {
			out = append(out, c)
		}
	}
	return out
}

// filterLongTextColumns implements §4.5 step 5, grounded directly on
// dta_calc.py's _filter_long_text_columns: a single catalog query joins
// information_schema.columns against pg_stats to classify every
// candidate column, then drops or tags candidates accordingly.
func (g *Generator) filterLongTextColumns(ctx context.Context, candidates []model.Index) ([]model.Index, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	type tableCol struct{ table, column string }
	seen := map[tableCol]bool{}
	var tables, columns []string
	for _, c := range candidates {
		for _, col := range c.Columns {
			key := tableCol{c.Table, col}
			if seen[key] {
				continue
			}
			seen[key] = true
			tables = append(tables, c.Table)
			columns = append(columns, col)
		}
	}

	maxLen := g.Config.MaxTextLength
	query := fmt.Sprintf(`
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.character_maximum_length,
			pg_stats.avg_width,
			CASE
				WHEN c.data_type = 'text' THEN true
				WHEN (c.data_type IN ('character varying', 'varchar', 'character', 'char')) AND
				     (c.character_maximum_length IS NULL OR c.character_maximum_length > %d)
				THEN true
				ELSE false
			END AS potential_long_text
		FROM information_schema.columns c
		LEFT JOIN pg_stats ON
			pg_stats.tablename = c.table_name AND
			pg_stats.attname = c.column_name
		WHERE c.table_name = ANY($1) AND c.column_name = ANY($2)
	`, maxLen)

	rows, err := g.Driver.Execute(ctx, query, []any{tables, columns}, true)
	if err != nil {
		return nil, fmt.Errorf("filtering long text columns: %w", err)
	}

	problematic := map[tableCol]bool{}
	potentialProblematic := map[tableCol]bool{}
	threshold := float64(maxLen) * 0.4

	for _, r := range rows {
		table, _ := r.Cells["table_name"].(string)
		column, _ := r.Cells["column_name"].(string)
		isLong, _ := r.Cells["potential_long_text"].(bool)
		avgWidth, hasWidth := toFloat64(r.Cells["avg_width"])
		key := tableCol{table, column}

		if !isLong {
			continue
		}
		if !hasWidth || avgWidth > threshold {
			problematic[key] = true
		} else {
			potentialProblematic[key] = true
		}
	}

	var out []model.Index
	for _, c := range candidates {
		drop := false
		reason := ""
		for _, col := range c.Columns {
			key := tableCol{c.Table, col}
			if problematic[key] {
				drop = true
				break
			}
			if potentialProblematic[key] {
				reason = "long_text_column"
			}
		}
		if drop {
			continue
		}
		c.ProblematicReason = reason
		out = append(out, c)
	}
	return out, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// estimateSizes implements §4.5 step 6: create every surviving candidate
// as a hypothetical index in one batch, read back its size, then reset.
// Reset runs even on error (defer), matching the Cost Estimator's
// reset-on-exit discipline (§3, §4.3).
func (g *Generator) estimateSizes(ctx context.Context, candidates []model.Index) ([]model.Index, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	if err := g.Hypo.Reset(ctx); err != nil {
		return nil, err
	}
	defer g.Hypo.Reset(ctx)

	defs := make([]string, len(candidates))
	for i, c := range candidates {
		defs[i] = c.Definition()
	}
	if err := g.Hypo.CreateIndexes(ctx, defs); err != nil {
		return nil, err
	}

	sizes, err := g.Hypo.ListSizes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Index, len(candidates))
	copy(out, candidates)
	for i := range out {
		if i < len(sizes) {
			out[i].EstimatedSizeBytes = sizes[i]
		}
	}
	return out, nil
}
