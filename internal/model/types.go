// Package model holds the data types shared across the advisor's pipeline:
// parsed statements, index candidates, recommendations, and the session
// that ties a single analyze-workload invocation together.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// AccessMethod is the index structure kind. The candidate generator produces
// only btree; hash/gist/gin/brin are recognized so an existing-index filter
// can compare against indexes the database already has, regardless of
// method.
type AccessMethod string

const (
	BTree AccessMethod = "btree"
	Hash  AccessMethod = "hash"
	GiST  AccessMethod = "gist"
	GIN   AccessMethod = "gin"
	BRIN  AccessMethod = "brin"
)

// Index is a proposed or existing index: a table, an ordered column tuple,
// an access method, and (once estimated) a size in bytes.
type Index struct {
	Table              string
	Columns            []string
	Method             AccessMethod
	EstimatedSizeBytes int64

	// ProblematicReason tags a candidate whose width statistics are
	// borderline for the long-text filter (§4.5 step 5) but not
	// confirmed over threshold — kept, not dropped.
	ProblematicReason string

	// Unique is true only for indexes introspected from the database's
	// existing catalog (§4.5 step 3's equivalence key includes
	// uniqueness); candidates the advisor generates are never unique.
	Unique bool
}

// Definition is the canonical textual form used both for existence checks
// and as the argument to the hypothetical-index extension.
func (i Index) Definition() string {
	method := i.Method
	if method == "" {
		method = BTree
	}
	return "CREATE INDEX ON " + i.Table + " USING " + string(method) + " (" + strings.Join(i.Columns, ", ") + ")"
}

func (i Index) Config() IndexConfig {
	return IndexConfig{Table: i.Table, Columns: append([]string(nil), i.Columns...), Method: i.Method, Unique: i.Unique}
}

// IndexConfig is the immutable, hashable identity of an Index: table,
// columns, and method, without size or provenance. Unique is carried as
// metadata (set only on indexes introspected from the catalog) but is
// deliberately excluded from Key/Equal: equivalence for the existing-index
// filter (§4.5 step 3) is asymmetric on uniqueness — a unique existing
// index still satisfies a non-unique candidate of the same shape, which
// is the only direction the advisor ever compares in, since generated
// candidates are never themselves unique.
type IndexConfig struct {
	Table   string
	Columns []string
	Method  AccessMethod
	Unique  bool
}

// Key returns a string uniquely identifying this config for map/set use.
// Column order is significant in the key except when the access method is
// hash, where composite order has no semantic meaning.
func (c IndexConfig) Key() string {
	cols := c.Columns
	if c.Method == Hash {
		cols = append([]string(nil), c.Columns...)
		sort.Strings(cols)
	}
	method := c.Method
	if method == "" {
		method = BTree
	}
	return c.Table + "\x00" + string(method) + "\x00" + strings.Join(cols, "\x00")
}

func (c IndexConfig) Equal(other IndexConfig) bool {
	return c.Key() == other.Key()
}

// Definition is the canonical textual form of this config, identical in
// shape to Index.Definition — used as the hypopg_create_index argument.
func (c IndexConfig) Definition() string {
	method := c.Method
	if method == "" {
		method = BTree
	}
	return "CREATE INDEX ON " + c.Table + " USING " + string(method) + " (" + strings.Join(c.Columns, ", ") + ")"
}

// IndexSet is a frozen, order-independent collection of IndexConfig used as
// a cache key component: the set {a, b} and {b, a} must hash identically.
type IndexSet []IndexConfig

// Key returns a canonical string for the set, independent of insertion order.
func (s IndexSet) Key() string {
	keys := make([]string, len(s))
	for i, c := range s {
		keys[i] = c.Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

func (s IndexSet) Contains(c IndexConfig) bool {
	for _, existing := range s {
		if existing.Equal(c) {
			return true
		}
	}
	return false
}

func (s IndexSet) With(c IndexConfig) IndexSet {
	out := make(IndexSet, len(s), len(s)+1)
	copy(out, s)
	return append(out, c)
}

// TableRef is a single FROM-list entry: a table, optionally schema
// qualified and aliased.
type TableRef struct {
	Schema string
	Name   string
	Alias  string
}

// QualifiedName returns "schema.name", or just "name" when no schema was
// given in the query text.
func (t TableRef) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Statement is the parser's normalized view of one SQL statement: which
// tables it touches and which columns, per table, appear in an indexable
// position (WHERE/JOIN/HAVING/ORDER BY).
type Statement struct {
	RawSQL string

	// IsSelectLike is true for statements the advisor can analyze
	// (plain SELECTs, including those that only read). Non-SELECT
	// statements are never indexable-column sources.
	IsSelectLike bool

	Tables []TableRef

	// IndexableColumns maps a real table name (alias-resolved) to the set
	// of columns referenced against it in an indexable position.
	IndexableColumns map[string]map[string]bool

	HasBindParams  bool
	BindParamCount int
	HasLike        bool
}

// OnlySystemCatalogs reports whether every referenced table name begins
// with a recognized system prefix (pg_catalog, information_schema, or the
// pg_ prefix convention) — such a statement is never analyzable.
func (s *Statement) OnlySystemCatalogs() bool {
	if len(s.Tables) == 0 {
		return false
	}
	for _, t := range s.Tables {
		if !isSystemCatalog(t) {
			return false
		}
	}
	return true
}

func isSystemCatalog(t TableRef) bool {
	if t.Schema == "pg_catalog" || t.Schema == "information_schema" {
		return true
	}
	return strings.HasPrefix(t.Name, "pg_")
}

// IndexableColumnsFor returns the sorted column list recorded for table.
func (s *Statement) IndexableColumnsFor(table string) []string {
	cols := s.IndexableColumns[table]
	out := make([]string, 0, len(cols))
	for c := range cols {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// WorkloadEntry is one query in the workload under analysis, with its
// parsed form and an optional weight (call count / average execution
// time) used by the Cost Estimator's weighted evaluation.
type WorkloadEntry struct {
	QueryText     string
	Parsed        *Statement
	Calls         *int64
	AvgExecTimeMs *float64
}

// Weight returns calls*avg_exec_time when both are known, 1 otherwise —
// the Cost Estimator's weighting rule (§4.4).
func (w WorkloadEntry) Weight() float64 {
	if w.Calls != nil && w.AvgExecTimeMs != nil {
		return float64(*w.Calls) * *w.AvgExecTimeMs
	}
	return 1
}

// IndexRecommendation is one accepted index from the Search Engine, with
// both its individual (isolated) and progressive (cumulative) cost impact.
type IndexRecommendation struct {
	Index Index

	EstimatedSizeBytes int64

	IndividualBaseCost        float64
	IndividualRecommendedCost float64

	ProgressiveBaseCost        float64
	ProgressiveRecommendedCost float64

	Definition string
	Queries    []string
}

// ProgressiveImprovementMultiple is base/recommended at the point this
// index was added, guarding against a zero or negative recommended cost.
func (r IndexRecommendation) ProgressiveImprovementMultiple() float64 {
	if r.ProgressiveRecommendedCost <= 0 {
		return 0
	}
	return r.ProgressiveBaseCost / r.ProgressiveRecommendedCost
}

// IndividualImprovementMultiple mirrors ProgressiveImprovementMultiple but
// against the isolated (non-cumulative) cost pair.
func (r IndexRecommendation) IndividualImprovementMultiple() float64 {
	if r.IndividualRecommendedCost <= 0 {
		return 0
	}
	return r.IndividualBaseCost / r.IndividualRecommendedCost
}

// Session is the result of one analyze_workload invocation: its budget,
// its workload, and either recommendations or an error — never both
// authoritatively, though the trace accumulates regardless.
type Session struct {
	ID             string
	BudgetMB       int
	WorkloadSource string
	Workload       []WorkloadEntry

	Recommendations []IndexRecommendation
	Err             error

	Trace []string
}

func (s *Session) Tracef(format string, args ...any) {
	s.Trace = append(s.Trace, fmt.Sprintf(format, args...))
}
