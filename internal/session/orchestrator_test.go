package session

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

func newOrchestrator(t *testing.T) (*Orchestrator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	driver := pgdriver.NewSqlDriver(db)
	mgr := hypo.NewManager(driver)
	v, _ := pgdriver.ParseVersion("PostgreSQL 16.2")
	return NewOrchestrator(driver, mgr, v), mock
}

func expectHypopgInstalled(mock sqlmock.Sqlmock, installed bool) {
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"?column?"})
	if installed {
		rows.AddRow(1)
	}
	mock.ExpectQuery(regexp.QuoteMeta("pg_extension")).WillReturnRows(rows)
	mock.ExpectRollback()
}

func expectAnalyzeFresh(mock sqlmock.Sqlmock, fresh bool) {
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"last_analyze"})
	if fresh {
		rows.AddRow("2024-01-01")
	} else {
		rows.AddRow(nil)
	}
	mock.ExpectQuery(regexp.QuoteMeta("pg_stat_user_tables")).WillReturnRows(rows)
	mock.ExpectRollback()
}

func expectFinalReset(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT hypopg_reset()")).WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectCommit()
}

func TestAnalyzeWorkload_PrecheckFailsWhenHypopgMissing(t *testing.T) {
	orch, mock := newOrchestrator(t)
	expectHypopgInstalled(mock, false)
	expectFinalReset(mock)

	sess := orch.AnalyzeWorkload(context.Background(), Request{Config: model.DefaultConfig()})
	if sess.Err == nil {
		t.Fatal("expected a precondition error")
	}
	var precondErr *model.PrecondError
	if !asPrecond(sess.Err, &precondErr) {
		t.Errorf("expected a *model.PrecondError, got %T: %v", sess.Err, sess.Err)
	}
}

func asPrecond(err error, target **model.PrecondError) bool {
	if pe, ok := err.(*model.PrecondError); ok {
		*target = pe
		return true
	}
	return false
}

func TestAnalyzeWorkload_PrecheckFailsWhenNeverAnalyzed(t *testing.T) {
	orch, mock := newOrchestrator(t)
	expectHypopgInstalled(mock, true)
	expectAnalyzeFresh(mock, false)
	expectFinalReset(mock)

	sess := orch.AnalyzeWorkload(context.Background(), Request{Config: model.DefaultConfig()})
	if sess.Err == nil {
		t.Fatal("expected a precondition error")
	}
}

func TestAnalyzeWorkload_EmptySQLFileShortCircuits(t *testing.T) {
	orch, mock := newOrchestrator(t)
	expectHypopgInstalled(mock, true)
	expectAnalyzeFresh(mock, true)
	expectFinalReset(mock)

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.sql")
	if err := os.WriteFile(path, []byte("   \n  "), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	req := Request{Config: model.DefaultConfig(), SQLFile: path}
	sess := orch.AnalyzeWorkload(context.Background(), req)
	if sess.Err != nil {
		t.Fatalf("unexpected error: %v", sess.Err)
	}
	if len(sess.Recommendations) != 0 {
		t.Errorf("expected no recommendations for an empty workload")
	}
	if sess.WorkloadSource != "sql_file" {
		t.Errorf("WorkloadSource = %q, want sql_file", sess.WorkloadSource)
	}
}

func TestLoadWorkload_PriorityExplicitWorkloadWinsOverQueryList(t *testing.T) {
	orch := &Orchestrator{}
	sess := &model.Session{}
	req := Request{
		Workload:  []model.WorkloadEntry{{QueryText: "select 1"}},
		QueryList: []string{"select 2"},
	}
	if err := orch.loadWorkload(context.Background(), req, sess); err != nil {
		t.Fatalf("loadWorkload() error = %v", err)
	}
	if sess.WorkloadSource != "args" {
		t.Errorf("WorkloadSource = %q, want args", sess.WorkloadSource)
	}
	if len(sess.Workload) != 1 || sess.Workload[0].QueryText != "select 1" {
		t.Errorf("Workload = %+v, want [select 1]", sess.Workload)
	}
}

func TestLoadWorkload_QueryListWinsOverSQLFile(t *testing.T) {
	orch := &Orchestrator{}
	sess := &model.Session{}
	req := Request{
		QueryList: []string{"select 2"},
		SQLFile:   "/nonexistent/should/not/be/read.sql",
	}
	if err := orch.loadWorkload(context.Background(), req, sess); err != nil {
		t.Fatalf("loadWorkload() error = %v", err)
	}
	if sess.WorkloadSource != "query_list" {
		t.Errorf("WorkloadSource = %q, want query_list", sess.WorkloadSource)
	}
}

func TestLoadWorkload_SQLFileSplitsOnSemicolons(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.sql")
	if err := os.WriteFile(path, []byte("select 1; select 2; "), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	orch := &Orchestrator{}
	sess := &model.Session{}
	req := Request{SQLFile: path}
	if err := orch.loadWorkload(context.Background(), req, sess); err != nil {
		t.Fatalf("loadWorkload() error = %v", err)
	}
	if len(sess.Workload) != 2 {
		t.Fatalf("len(Workload) = %d, want 2", len(sess.Workload))
	}
	if sess.Workload[0].QueryText != "select 1" || sess.Workload[1].QueryText != "select 2" {
		t.Errorf("Workload = %+v", sess.Workload)
	}
}

func TestParseAndFilter_DropsNonSelectAndSystemCatalogOnly(t *testing.T) {
	orch := &Orchestrator{}
	sess := &model.Session{
		Workload: []model.WorkloadEntry{
			{QueryText: "SELECT id FROM orders WHERE customer_id = $1"},
			{QueryText: "UPDATE orders SET status = $1"},
			{QueryText: "SELECT * FROM pg_class"},
			{QueryText: "not valid sql &^%"},
		},
	}
	orch.parseAndFilter(sess)

	if len(sess.Workload) != 1 {
		t.Fatalf("len(Workload) = %d, want 1, got %+v", len(sess.Workload), sess.Workload)
	}
	if sess.Workload[0].Parsed == nil {
		t.Errorf("expected the surviving entry to carry its parsed statement")
	}
	if len(sess.Trace) != 3 {
		t.Errorf("len(Trace) = %d, want 3 trace lines for the three dropped entries, got %v", len(sess.Trace), sess.Trace)
	}
}

func TestExistingIndexes_SkipsUnparseableDefinitions(t *testing.T) {
	orch, mock := newOrchestrator(t)
	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"definition"}).
		AddRow("CREATE INDEX ON orders USING btree (customer_id)").
		AddRow("not a valid index definition")
	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_indexes")).WillReturnRows(rows)
	mock.ExpectRollback()

	set, err := orch.existingIndexes(context.Background())
	if err != nil {
		t.Fatalf("existingIndexes() error = %v", err)
	}
	if len(set) != 1 || set[0].Table != "orders" {
		t.Errorf("existingIndexes() = %+v, want one orders index", set)
	}
}
