package parser

import (
	"testing"

	"github.com/pgdta/dta/internal/model"
)

func TestParseIndexDefinition_SimpleBtree(t *testing.T) {
	cfg, err := ParseIndexDefinition(`CREATE INDEX ON orders USING btree (customer_id)`)
	if err != nil {
		t.Fatalf("ParseIndexDefinition() error = %v", err)
	}
	want := model.IndexConfig{Table: "orders", Columns: []string{"customer_id"}, Method: model.BTree}
	if !cfg.Equal(want) {
		t.Errorf("ParseIndexDefinition() = %+v, want %+v", cfg, want)
	}
}

func TestParseIndexDefinition_Composite(t *testing.T) {
	cfg, err := ParseIndexDefinition(`CREATE INDEX idx_orders ON orders USING btree (customer_id, status)`)
	if err != nil {
		t.Fatalf("ParseIndexDefinition() error = %v", err)
	}
	if len(cfg.Columns) != 2 || cfg.Columns[0] != "customer_id" || cfg.Columns[1] != "status" {
		t.Fatalf("Columns = %v, want [customer_id status]", cfg.Columns)
	}
}

func TestParseIndexDefinition_Unique(t *testing.T) {
	cfg, err := ParseIndexDefinition(`CREATE UNIQUE INDEX ON orders USING btree (id)`)
	if err != nil {
		t.Fatalf("ParseIndexDefinition() error = %v", err)
	}
	if !cfg.Unique {
		t.Errorf("expected Unique = true")
	}
}

func TestParseIndexDefinition_HashMethod(t *testing.T) {
	cfg, err := ParseIndexDefinition(`CREATE INDEX ON orders USING hash (customer_id)`)
	if err != nil {
		t.Fatalf("ParseIndexDefinition() error = %v", err)
	}
	if cfg.Method != model.Hash {
		t.Errorf("Method = %v, want hash", cfg.Method)
	}
}

func TestParseIndexDefinition_NotAnIndexStatement(t *testing.T) {
	if _, err := ParseIndexDefinition(`SELECT 1`); err == nil {
		t.Fatal("expected an error when the statement is not a CREATE INDEX")
	}
}

func TestParseIndexDefinition_Malformed(t *testing.T) {
	if _, err := ParseIndexDefinition(`CREATE INDEX ON (((`); err == nil {
		t.Fatal("expected a parse error for malformed index DDL")
	}
}
