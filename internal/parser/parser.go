// Package parser turns raw SQL text into the normalized form the rest of
// the advisor works with: which tables a statement touches and which
// columns, per table, sit in an indexable position (WHERE, JOIN ON,
// HAVING, ORDER BY).
//
// It is built on github.com/pganalyze/pg_query_go, the Go binding of the
// real Postgres parser, the same way internal/parser/sql.go in the
// teacher repo was built on vitess's sqlparser: a thin normalization
// layer in front of a real grammar, followed by a typed-node walk.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgdta/dta/internal/model"
)

// parseMu serializes calls into pg_query's underlying C parser, the same
// defensive instinct behind the teacher's sync.Once-guarded getParser():
// a single shared parsing resource, used from one cooperative session at
// a time (see SPEC_FULL.md's concurrency model).
var parseMu sync.Mutex

// aliasFrame maps a FROM-list alias (or bare table name, which aliases to
// itself) to its real, possibly schema-qualified table name. Scoped to
// one SELECT's nesting level and pushed/popped on a stack keyed by
// position, never by node pointer identity — different nesting levels
// can reuse alias names (SPEC_FULL.md, ConditionColumnCollector note).
type aliasFrame map[string]string

type walkCtx struct {
	stmt    *model.Statement
	aliases []aliasFrame
}

func (c *walkCtx) push(f aliasFrame) { c.aliases = append(c.aliases, f) }
func (c *walkCtx) pop()              { c.aliases = c.aliases[:len(c.aliases)-1] }

// resolve looks up a qualifier (alias or bare table name) against scopes
// innermost-first, so a correlated subquery can still see an outer alias.
func (c *walkCtx) resolve(qualifier string) (string, bool) {
	for i := len(c.aliases) - 1; i >= 0; i-- {
		if real, ok := c.aliases[i][qualifier]; ok {
			return real, true
		}
	}
	return "", false
}

// currentTables returns every real table name in the innermost scope —
// used to attribute an unqualified column reference to every table
// currently in scope (§4.2).
func (c *walkCtx) currentTables() []string {
	if len(c.aliases) == 0 {
		return nil
	}
	frame := c.aliases[len(c.aliases)-1]
	seen := make(map[string]bool, len(frame))
	var out []string
	for _, real := range frame {
		if !seen[real] {
			seen[real] = true
			out = append(out, real)
		}
	}
	return out
}

func (c *walkCtx) addIndexable(table, col string) {
	if c.stmt.IndexableColumns[table] == nil {
		c.stmt.IndexableColumns[table] = make(map[string]bool)
	}
	c.stmt.IndexableColumns[table][col] = true
}

// Parse parses SQL text into a Statement. Lowercasing is the only
// normalization applied before the real parse; numbered bind markers
// ($N) are left untouched here — they are valid standalone Postgres
// syntax and need no rewriting to produce an AST. The Cost Estimator
// calls SubstituteDummyLiterals separately, only when it needs a
// substituted query string for EXPLAIN (§4.4).
func Parse(text string) (*model.Statement, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))

	parseMu.Lock()
	result, err := pgquery.Parse(normalized)
	parseMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	stmt := &model.Statement{
		RawSQL:           text,
		IndexableColumns: make(map[string]map[string]bool),
	}

	if matches := bindRe.FindAllStringSubmatch(normalized, -1); len(matches) > 0 {
		stmt.HasBindParams = true
		stmt.BindParamCount = highestBindParam(matches)
	}
	stmt.HasLike = likeRe.MatchString(normalized)

	ctx := &walkCtx{stmt: stmt}
	for _, raw := range result.GetStmts() {
		if raw == nil || raw.GetStmt() == nil {
			continue
		}
		if sel := raw.GetStmt().GetSelectStmt(); sel != nil {
			stmt.IsSelectLike = true
			walkSelect(sel, ctx)
		}
	}

	return stmt, nil
}

func highestBindParam(matches [][]string) int {
	max := 0
	for _, m := range matches {
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return max
}

// walkSelect processes one SelectStmt: registers its FROM-list aliases,
// descends into CTEs and set-operation branches (each an independent
// scope), then collects indexable columns from WHERE, JOIN ON, HAVING,
// and ORDER BY.
func walkSelect(sel *pgquery.SelectStmt, ctx *walkCtx) {
	if sel == nil {
		return
	}

	frame := aliasFrame{}
	for _, n := range sel.GetFromClause() {
		collectFromItem(n, frame, ctx)
	}
	ctx.push(frame)
	defer ctx.pop()

	if wc := sel.GetWithClause(); wc != nil {
		for _, cteNode := range wc.GetCtes() {
			cte := cteNode.GetCommonTableExpr()
			if cte == nil || cte.GetCtequery() == nil {
				continue
			}
			if cteSel := cte.GetCtequery().GetSelectStmt(); cteSel != nil {
				walkSelect(cteSel, ctx)
			}
		}
	}

	if larg := sel.GetLarg(); larg != nil {
		walkSelect(larg, ctx)
	}
	if rarg := sel.GetRarg(); rarg != nil {
		walkSelect(rarg, ctx)
	}

	// Projection aliases: resolved before attributing a bare ORDER BY
	// reference to a table, per §9's design note.
	projAliases := make(map[string]*pgquery.Node)
	for _, t := range sel.GetTargetList() {
		rt := t.GetResTarget()
		if rt == nil || rt.GetName() == "" {
			continue
		}
		projAliases[rt.GetName()] = rt.GetVal()
	}

	if w := sel.GetWhereClause(); w != nil {
		collectColumnRefs(w, ctx, projAliases)
	}
	if h := sel.GetHavingClause(); h != nil {
		collectColumnRefs(h, ctx, projAliases)
	}
	for _, sortNode := range sel.GetSortClause() {
		if sb := sortNode.GetSortBy(); sb != nil && sb.GetNode() != nil {
			collectColumnRefs(sb.GetNode(), ctx, projAliases)
		}
	}
	for _, fromNode := range sel.GetFromClause() {
		collectJoinQuals(fromNode, ctx, projAliases)
	}
}

func collectFromItem(n *pgquery.Node, frame aliasFrame, ctx *walkCtx) {
	if n == nil {
		return
	}
	if rv := n.GetRangeVar(); rv != nil {
		name := rv.GetRelname()
		qualified := name
		if rv.GetSchemaname() != "" {
			qualified = rv.GetSchemaname() + "." + name
		}
		alias := ""
		if a := rv.GetAlias(); a != nil {
			alias = a.GetAliasname()
		}
		ctx.stmt.Tables = append(ctx.stmt.Tables, model.TableRef{
			Schema: rv.GetSchemaname(),
			Name:   name,
			Alias:  alias,
		})
		frame[name] = qualified
		if alias != "" {
			frame[alias] = qualified
		}
		return
	}
	if je := n.GetJoinExpr(); je != nil {
		collectFromItem(je.GetLarg(), frame, ctx)
		collectFromItem(je.GetRarg(), frame, ctx)
		return
	}
	if rs := n.GetRangeSubselect(); rs != nil {
		if sub := rs.GetSubquery().GetSelectStmt(); sub != nil {
			// A derived table's own FROM list is its own scope; its
			// alias names the *result*, not a real table, so it never
			// becomes an indexable-column target.
			walkSelect(sub, ctx)
		}
		return
	}
}

// collectJoinQuals finds ON-clause predicates nested in a FROM-list join
// tree and walks them the same way a WHERE clause is walked.
func collectJoinQuals(n *pgquery.Node, ctx *walkCtx, projAliases map[string]*pgquery.Node) {
	je := n.GetJoinExpr()
	if je == nil {
		return
	}
	collectJoinQuals(je.GetLarg(), ctx, projAliases)
	collectJoinQuals(je.GetRarg(), ctx, projAliases)
	if q := je.GetQuals(); q != nil {
		collectColumnRefs(q, ctx, projAliases)
	}
}

// collectColumnRefs recursively descends an expression tree, collecting
// every ColumnRef leaf it finds in an indexable position.
func collectColumnRefs(n *pgquery.Node, ctx *walkCtx, projAliases map[string]*pgquery.Node) {
	if n == nil {
		return
	}
	switch {
	case n.GetColumnRef() != nil:
		handleColumnRef(n.GetColumnRef(), ctx, projAliases)
	case n.GetAExpr() != nil:
		ae := n.GetAExpr()
		collectColumnRefs(ae.GetLexpr(), ctx, projAliases)
		collectColumnRefs(ae.GetRexpr(), ctx, projAliases)
	case n.GetBoolExpr() != nil:
		for _, a := range n.GetBoolExpr().GetArgs() {
			collectColumnRefs(a, ctx, projAliases)
		}
	case n.GetFuncCall() != nil:
		for _, a := range n.GetFuncCall().GetArgs() {
			collectColumnRefs(a, ctx, projAliases)
		}
	case n.GetNullTest() != nil:
		collectColumnRefs(n.GetNullTest().GetArg(), ctx, projAliases)
	case n.GetBooleanTest() != nil:
		collectColumnRefs(n.GetBooleanTest().GetArg(), ctx, projAliases)
	case n.GetTypeCast() != nil:
		collectColumnRefs(n.GetTypeCast().GetArg(), ctx, projAliases)
	case n.GetSubLink() != nil:
		sl := n.GetSubLink()
		collectColumnRefs(sl.GetTestexpr(), ctx, projAliases)
		if sub := sl.GetSubselect().GetSelectStmt(); sub != nil {
			walkSelect(sub, ctx)
		}
	case n.GetCaseExpr() != nil:
		ce := n.GetCaseExpr()
		for _, w := range ce.GetArgs() {
			if cw := w.GetCaseWhen(); cw != nil {
				collectColumnRefs(cw.GetExpr(), ctx, projAliases)
				collectColumnRefs(cw.GetResult(), ctx, projAliases)
			}
		}
		collectColumnRefs(ce.GetDefresult(), ctx, projAliases)
	}
}

func handleColumnRef(cr *pgquery.ColumnRef, ctx *walkCtx, projAliases map[string]*pgquery.Node) {
	fields := stringFields(cr.GetFields())
	if len(fields) == 0 {
		return
	}

	if len(fields) >= 2 {
		qualifier := strings.Join(fields[:len(fields)-1], ".")
		col := fields[len(fields)-1]
		if real, ok := ctx.resolve(qualifier); ok {
			ctx.addIndexable(real, col)
			return
		}
		// Unresolvable qualifier — e.g. a correlated outer alias this
		// frame never saw. Attribute verbatim rather than drop it.
		ctx.addIndexable(qualifier, col)
		return
	}

	name := fields[0]
	if val, ok := projAliases[name]; ok {
		collectColumnRefs(val, ctx, projAliases)
		return
	}
	for _, table := range ctx.currentTables() {
		ctx.addIndexable(table, name)
	}
}

func stringFields(fields []*pgquery.Node) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := f.GetString_(); s != nil {
			out = append(out, s.GetSval())
		}
	}
	return out
}
