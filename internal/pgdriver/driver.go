package pgdriver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/pgdta/dta/internal/model"
)

// RowResult is one row, returned as an ordered field map: Columns
// preserves select-list order, Cells gives name-keyed lookup. Mirrors
// sql_driver.py's RowResult dataclass (§2, §4.1).
type RowResult struct {
	Columns []string
	Cells   map[string]any
}

func (r RowResult) Get(name string) any { return r.Cells[name] }

// SqlDriver executes parameterized SQL against a single pooled Postgres
// session. It tracks pool validity per §4.1/§9: on any connection-layer
// failure the pool marks itself invalid and records a last-error string;
// the advisor never retries within a session.
type SqlDriver struct {
	db *sql.DB

	mu      sync.Mutex
	valid   bool
	lastErr string
}

func NewSqlDriver(db *sql.DB) *SqlDriver {
	return &SqlDriver{db: db, valid: true}
}

func (d *SqlDriver) IsValid() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.valid
}

func (d *SqlDriver) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *SqlDriver) invalidate(err error) {
	d.mu.Lock()
	d.valid = false
	d.lastErr = err.Error()
	d.mu.Unlock()
}

func (d *SqlDriver) Close() {
	d.db.Close()
}

// Execute runs query against the pool. When readOnly is true the query
// runs inside a READ ONLY transaction that is always rolled back on
// completion, success or not; when false, the transaction commits on
// success. This is sql_driver.py's _execute_with_connection transaction
// wrapping, ported directly (§4.1).
//
// A connection-layer failure marks the pool invalid and returns a
// *model.ConnectionError; an execution error (bad SQL, constraint
// violation) leaves the pool valid and returns a plain wrapped error.
func (d *SqlDriver) Execute(ctx context.Context, query string, params []any, readOnly bool) ([]RowResult, error) {
	txOpts := &sql.TxOptions{ReadOnly: readOnly}

	tx, err := d.db.BeginTx(ctx, txOpts)
	if err != nil {
		d.invalidate(err)
		return nil, &model.ConnectionError{Err: err}
	}
	if readOnly {
		defer tx.Rollback()
	}

	rows, err := tx.QueryContext(ctx, query, params...)
	if err != nil {
		if !readOnly {
			tx.Rollback()
		}
		return nil, fmt.Errorf("executing query: %w", err)
	}

	colNames, err := rows.Columns()
	if err != nil {
		rows.Close()
		if !readOnly {
			tx.Rollback()
		}
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var results []RowResult
	for rows.Next() {
		values := make([]any, len(colNames))
		scanTargets := make([]any, len(colNames))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			rows.Close()
			if !readOnly {
				tx.Rollback()
			}
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		cells := make(map[string]any, len(colNames))
		for i, name := range colNames {
			cells[name] = values[i]
		}
		results = append(results, RowResult{Columns: colNames, Cells: cells})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if !readOnly {
			tx.Rollback()
		}
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	if !readOnly {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("committing: %w", err)
		}
	}

	return results, nil
}

// QuoteIdent double-quotes a Postgres identifier, escaping embedded
// double quotes. Callers must use this for any identifier parameter
// substituted into a query (§4.1's parameter-substitution policy).
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
