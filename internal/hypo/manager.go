// Package hypo wraps hypopg, the Postgres extension that registers
// indexes for planner cost estimation without ever materializing their
// storage. Every effect here is session-local (§4.3): nothing survives
// past a reset or the end of the database session.
package hypo

import (
	"context"
	"fmt"

	"github.com/pgdta/dta/internal/pgdriver"
)

// Manager is the advisor's only caller of hypopg.
type Manager struct {
	driver *pgdriver.SqlDriver
}

func NewManager(driver *pgdriver.SqlDriver) *Manager {
	return &Manager{driver: driver}
}

// Installed reports whether the hypopg extension is available in the
// connected database — the Session Orchestrator's first precondition
// (§4.7). If it returns false, the Manager is unusable and the precheck
// fails.
func (m *Manager) Installed(ctx context.Context) (bool, error) {
	rows, err := m.driver.Execute(ctx, "SELECT 1 FROM pg_extension WHERE extname = 'hypopg'", nil, true)
	if err != nil {
		return false, fmt.Errorf("checking hypopg installation: %w", err)
	}
	return len(rows) > 0, nil
}

// CreateIndexes registers one hypothetical index per definition. Callers
// are responsible for calling Reset first if isolation from a prior
// evaluation is required (§4.3's reset-on-entry discipline).
func (m *Manager) CreateIndexes(ctx context.Context, definitions []string) error {
	for _, def := range definitions {
		if _, err := m.driver.Execute(ctx, "SELECT * FROM hypopg_create_index($1)", []any{def}, false); err != nil {
			return fmt.Errorf("creating hypothetical index %q: %w", def, err)
		}
	}
	return nil
}

// ListSizes returns the estimated size in bytes of every currently
// registered hypothetical index, in creation order (indexrelid is
// assigned monotonically by hypopg, so ordering by it recovers the
// order CreateIndexes submitted definitions in). Used by the Candidate
// Generator's batch size-estimation step (§4.5 step 6), which matches
// sizes back to candidates positionally.
func (m *Manager) ListSizes(ctx context.Context) ([]int64, error) {
	rows, err := m.driver.Execute(ctx, `
		SELECT hypopg_relation_size(indexrelid) AS size_bytes
		FROM hypopg_list_indexes()
		ORDER BY indexrelid
	`, nil, true)
	if err != nil {
		return nil, fmt.Errorf("listing hypothetical indexes: %w", err)
	}
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = toInt64(r.Cells["size_bytes"])
	}
	return out, nil
}

// Reset clears every session-local hypothetical index. Must run on every
// exit path: at the start and end of each evaluation that creates
// indexes, and unconditionally at session teardown, even on error
// (§3, §9, and testable invariant #1).
func (m *Manager) Reset(ctx context.Context) error {
	if _, err := m.driver.Execute(ctx, "SELECT hypopg_reset()", nil, false); err != nil {
		return fmt.Errorf("resetting hypothetical indexes: %w", err)
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
