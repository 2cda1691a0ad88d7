package hypo

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/pgdta/dta/internal/pgdriver"
)

func newManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(pgdriver.NewSqlDriver(db)), mock
}

func TestManager_Installed_True(t *testing.T) {
	mgr, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM pg_extension WHERE extname = 'hypopg'")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	ok, err := mgr.Installed(context.Background())
	if err != nil {
		t.Fatalf("Installed() error = %v", err)
	}
	if !ok {
		t.Errorf("Installed() = false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestManager_Installed_False(t *testing.T) {
	mgr, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM pg_extension WHERE extname = 'hypopg'")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	ok, err := mgr.Installed(context.Background())
	if err != nil {
		t.Fatalf("Installed() error = %v", err)
	}
	if ok {
		t.Errorf("Installed() = true, want false")
	}
}

func TestManager_CreateIndexes_OnePerDefinition(t *testing.T) {
	mgr, mock := newManager(t)
	defs := []string{
		"CREATE INDEX ON orders USING btree (customer_id)",
		"CREATE INDEX ON orders USING btree (status)",
	}

	for _, def := range defs {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM hypopg_create_index($1)")).
			WithArgs(def).
			WillReturnRows(sqlmock.NewRows([]string{"indexrelid", "indexname"}).AddRow(1, "idx"))
		mock.ExpectCommit()
	}

	if err := mgr.CreateIndexes(context.Background(), defs); err != nil {
		t.Fatalf("CreateIndexes() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestManager_CreateIndexes_PropagatesError(t *testing.T) {
	mgr, mock := newManager(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM hypopg_create_index($1)")).
		WillReturnError(context.DeadlineExceeded)

	if err := mgr.CreateIndexes(context.Background(), []string{"bad"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestManager_ListSizes_OrderedByIndexrelid(t *testing.T) {
	mgr, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("hypopg_list_indexes")).
		WillReturnRows(sqlmock.NewRows([]string{"size_bytes"}).AddRow(int64(8192)).AddRow(int64(16384)))
	mock.ExpectRollback()

	sizes, err := mgr.ListSizes(context.Background())
	if err != nil {
		t.Fatalf("ListSizes() error = %v", err)
	}
	if len(sizes) != 2 || sizes[0] != 8192 || sizes[1] != 16384 {
		t.Errorf("ListSizes() = %v, want [8192 16384]", sizes)
	}
}

func TestManager_Reset(t *testing.T) {
	mgr, mock := newManager(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT hypopg_reset()")).WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectCommit()

	if err := mgr.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
