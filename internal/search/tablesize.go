package search

import (
	"context"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// TableSizer estimates a table's total on-disk size (heap, toast,
// indexes), falling back to conservative defaults when the catalog can't
// answer directly — grounded directly on dta_calc.py's _get_table_size
// (§7's "missing statistics rows" fallback policy).
type TableSizer struct {
	Driver *pgdriver.SqlDriver
	cache  *model.TableSizeCache
}

func NewTableSizer(driver *pgdriver.SqlDriver) *TableSizer {
	return &TableSizer{Driver: driver, cache: model.NewTableSizeCache()}
}

// Size returns table's estimated size in bytes, memoized per session.
func (s *TableSizer) Size(ctx context.Context, table string) int64 {
	if cached, ok := s.cache.Get(table); ok {
		return cached
	}

	size := s.queryRelationSize(ctx, table)
	if size < 0 {
		size = s.estimateFromRowCount(ctx, table)
	}
	s.cache.Put(table, size)
	return size
}

func (s *TableSizer) queryRelationSize(ctx context.Context, table string) int64 {
	rows, err := s.Driver.Execute(ctx, "SELECT pg_total_relation_size(quote_ident($1)) AS rel_size", []any{table}, true)
	if err != nil || len(rows) == 0 {
		return -1
	}
	n, ok := toInt64(rows[0].Cells["rel_size"])
	if !ok {
		return -1
	}
	return n
}

// estimateFromRowCount falls back to row_count * 1KiB, or 10MiB if even
// the row count is unavailable (§7).
func (s *TableSizer) estimateFromRowCount(ctx context.Context, table string) int64 {
	const defaultSize = 10 * 1024 * 1024

	rows, err := s.Driver.Execute(ctx, "SELECT count(*) AS row_count FROM "+pgdriver.QuoteIdent(table), nil, true)
	if err != nil || len(rows) == 0 {
		return defaultSize
	}
	n, ok := toInt64(rows[0].Cells["row_count"])
	if !ok {
		return defaultSize
	}
	return n * 1024
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
