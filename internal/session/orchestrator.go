// Package session is the advisor's Session Orchestrator (§4.7): the
// single entry point that turns a workload source into a model.Session,
// driving preconditions, parsing, candidate generation, and search.
package session

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pgdta/dta/internal/candidates"
	"github.com/pgdta/dta/internal/cost"
	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/parser"
	"github.com/pgdta/dta/internal/pgdriver"
	"github.com/pgdta/dta/internal/search"
)

// Request is analyze_workload's input (§6). Exactly one of Workload,
// QueryList, SQLFile is expected to be set; if none are, the stats-view
// fallback is used. Priority: Workload > QueryList > SQLFile > stats.
type Request struct {
	Workload []model.WorkloadEntry
	QueryList []string
	SQLFile   string

	MinCalls      int64
	MinAvgTimeMs  float64
	Limit         int

	Config model.Config
}

// Orchestrator wires together the pipeline's stages against one
// database connection.
type Orchestrator struct {
	Driver  *pgdriver.SqlDriver
	Hypo    *hypo.Manager
	Version pgdriver.ServerVersion
}

func NewOrchestrator(driver *pgdriver.SqlDriver, mgr *hypo.Manager, version pgdriver.ServerVersion) *Orchestrator {
	return &Orchestrator{Driver: driver, Hypo: mgr, Version: version}
}

// AnalyzeWorkload is the advisor's single structured entry point (§6).
// Hypothetical-index reset runs unconditionally before return, even on
// error (§3, §8 invariant #1).
func (o *Orchestrator) AnalyzeWorkload(ctx context.Context, req Request) *model.Session {
	sess := &model.Session{
		ID:       strconv.FormatInt(time.Now().UnixNano(), 10),
		BudgetMB: int(req.Config.MaxIndexSizeMB),
	}
	defer o.Hypo.Reset(ctx)

	if err := o.runPrechecks(ctx); err != nil {
		sess.Err = err
		return sess
	}

	if err := o.loadWorkload(ctx, req, sess); err != nil {
		sess.Err = err
		return sess
	}

	if len(sess.Workload) == 0 {
		sess.Tracef("no workload to analyze")
		return sess
	}

	o.parseAndFilter(sess)

	if len(sess.Workload) == 0 {
		sess.Tracef("no analyzable statements remained after parsing")
		return sess
	}

	existing, err := o.existingIndexes(ctx)
	if err != nil {
		sess.Err = err
		return sess
	}

	gen := candidates.NewGenerator(o.Driver, o.Hypo, req.Config)
	cands, err := gen.Generate(ctx, sess.Workload, existing)
	if err != nil {
		sess.Err = err
		return sess
	}
	sess.Tracef("generated %d candidates", len(cands))

	estimator := cost.NewExplainEstimator(o.Driver, o.Hypo, o.Version)
	sizer := search.NewTableSizer(o.Driver)
	engine := search.NewEngine(estimator, o.Hypo, sizer, req.Config)

	recs, err := engine.Run(ctx, sess.Workload, cands)
	if err != nil {
		sess.Err = err
		return sess
	}

	sess.Recommendations = recs
	sess.Tracef("search produced %d recommendations", len(recs))
	return sess
}

// runPrechecks implements §4.7's two preconditions: hypopg installed,
// at least one relation analyzed at least once.
func (o *Orchestrator) runPrechecks(ctx context.Context) error {
	installed, err := o.Hypo.Installed(ctx)
	if err != nil {
		return err
	}
	if !installed {
		return &model.PrecondError{Reason: "the hypopg extension is not installed; run CREATE EXTENSION hypopg"}
	}

	rows, err := o.Driver.Execute(ctx, "SELECT s.last_analyze, s.last_autoanalyze FROM pg_stat_user_tables s WHERE s.last_analyze IS NOT NULL OR s.last_autoanalyze IS NOT NULL LIMIT 1", nil, true)
	if err != nil {
		return fmt.Errorf("checking analyze freshness: %w", err)
	}
	analyzed := false
	for _, r := range rows {
		if r.Cells["last_analyze"] != nil || r.Cells["last_autoanalyze"] != nil {
			analyzed = true
			break
		}
	}
	if !analyzed {
		return &model.PrecondError{Reason: "statistics are not up to date; run ANALYZE before using the tuning advisor"}
	}
	return nil
}

// loadWorkload resolves the workload-source priority chain (§4.7,
// §6): explicit workload, then query list, then SQL file, then the
// pg_stat_statements fallback.
func (o *Orchestrator) loadWorkload(ctx context.Context, req Request, sess *model.Session) error {
	switch {
	case len(req.Workload) > 0:
		sess.WorkloadSource = "args"
		sess.Workload = req.Workload
	case len(req.QueryList) > 0:
		sess.WorkloadSource = "query_list"
		sess.Workload = make([]model.WorkloadEntry, len(req.QueryList))
		for i, q := range req.QueryList {
			sess.Workload[i] = model.WorkloadEntry{QueryText: q}
		}
	case req.SQLFile != "":
		sess.WorkloadSource = "sql_file"
		entries, err := loadWorkloadFromFile(req.SQLFile)
		if err != nil {
			return err
		}
		sess.Workload = entries
	default:
		sess.WorkloadSource = "query_store"
		entries, err := o.queryStatsWorkload(ctx, req.MinCalls, req.MinAvgTimeMs, req.Limit)
		if err != nil {
			return err
		}
		sess.Workload = entries
	}
	return nil
}

func loadWorkloadFromFile(path string) ([]model.WorkloadEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sql file %s: %w", path, err)
	}
	var out []model.WorkloadEntry
	for _, stmt := range strings.Split(string(content), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		out = append(out, model.WorkloadEntry{QueryText: stmt})
	}
	return out, nil
}

// queryStatsWorkload implements the §6 statistics-view contract,
// selecting version-appropriate pg_stat_statements column names (§9
// invariant #9).
func (o *Orchestrator) queryStatsWorkload(ctx context.Context, minCalls int64, minAvgTimeMs float64, limit int) ([]model.WorkloadEntry, error) {
	total, mean := o.Version.StatStatementsColumns()
	query := fmt.Sprintf(`
		SELECT queryid, query, calls, %s AS avg_exec_time
		FROM pg_stat_statements
		WHERE calls >= $1 AND %s >= $2
		ORDER BY %s DESC
		LIMIT $3
	`, mean, mean, total)

	rows, err := o.Driver.Execute(ctx, query, []any{minCalls, minAvgTimeMs, limit}, true)
	if err != nil {
		return nil, fmt.Errorf("querying pg_stat_statements: %w", err)
	}

	out := make([]model.WorkloadEntry, 0, len(rows))
	for _, r := range rows {
		text, _ := r.Cells["query"].(string)
		calls, hasCalls := toInt64(r.Cells["calls"])
		avg, hasAvg := toFloat64(r.Cells["avg_exec_time"])
		entry := model.WorkloadEntry{QueryText: text}
		if hasCalls {
			entry.Calls = &calls
		}
		if hasAvg {
			entry.AvgExecTimeMs = &avg
		}
		out = append(out, entry)
	}
	return out, nil
}

// parseAndFilter parses every workload entry, drops non-analyzable
// statements (parse failure, non-SELECT, system-catalog-only), and
// records a trace line per drop (§4.7, §8 invariant #8).
func (o *Orchestrator) parseAndFilter(sess *model.Session) {
	var kept []model.WorkloadEntry
	for _, entry := range sess.Workload {
		stmt, err := parser.Parse(entry.QueryText)
		if err != nil {
			sess.Tracef("skipping unparseable query: %v", &model.ParseSkipError{Query: entry.QueryText, Reason: err.Error()})
			continue
		}
		if !stmt.IsSelectLike {
			sess.Tracef("skipping non-SELECT statement: %s", entry.QueryText)
			continue
		}
		if stmt.OnlySystemCatalogs() {
			sess.Tracef("skipping system-catalog-only query: %s", entry.QueryText)
			continue
		}
		entry.Parsed = stmt
		kept = append(kept, entry)
	}
	sess.Workload = kept
}

// existingIndexes introspects the database's current indexes (outside
// system schemas) and parses each definition into a structural
// IndexConfig for the Candidate Generator's existing-index filter
// (§4.5 step 3).
func (o *Orchestrator) existingIndexes(ctx context.Context) (model.IndexSet, error) {
	rows, err := o.Driver.Execute(ctx, `
		SELECT indexdef AS definition
		FROM pg_indexes
		WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
	`, nil, true)
	if err != nil {
		return nil, fmt.Errorf("listing existing indexes: %w", err)
	}

	var out model.IndexSet
	for _, r := range rows {
		def, _ := r.Cells["definition"].(string)
		if def == "" {
			continue
		}
		cfg, err := parser.ParseIndexDefinition(def)
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
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

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
