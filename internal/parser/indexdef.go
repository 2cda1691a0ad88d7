package parser

import (
	"fmt"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/pgdta/dta/internal/model"
)

// ParseIndexDefinition parses a CREATE [UNIQUE] INDEX statement — as
// returned verbatim by pg_indexes.indexdef — into the structural
// IndexConfig the existing-index filter compares against (§4.5 step 3),
// grounded on dta_calc.py's _extract_index_info: AST structure, not
// textual formatting, decides equivalence.
func ParseIndexDefinition(definition string) (model.IndexConfig, error) {
	parseMu.Lock()
	result, err := pgquery.Parse(definition)
	parseMu.Unlock()
	if err != nil {
		return model.IndexConfig{}, fmt.Errorf("parsing index definition %q: %w", definition, err)
	}

	for _, raw := range result.GetStmts() {
		idx := raw.GetStmt().GetIndexStmt()
		if idx == nil {
			continue
		}

		method := model.AccessMethod(idx.GetAccessMethod())
		if method == "" {
			method = model.BTree
		}

		var columns []string
		for _, param := range idx.GetIndexParams() {
			elem := param.GetIndexElem()
			if elem == nil {
				continue
			}
			if elem.GetName() != "" {
				columns = append(columns, elem.GetName())
				continue
			}
			if expr := elem.GetExpr(); expr != nil {
				if cr := expr.GetColumnRef(); cr != nil {
					fields := stringFields(cr.GetFields())
					if len(fields) > 0 {
						columns = append(columns, fields[len(fields)-1])
					}
				}
			}
		}

		return model.IndexConfig{
			Table:   idx.GetRelation().GetRelname(),
			Columns: columns,
			Method:  method,
			Unique:  idx.GetUnique(),
		}, nil
	}

	return model.IndexConfig{}, fmt.Errorf("no IndexStmt found in definition %q", definition)
}
