// Package complexity computes static complexity metrics of model SQL.
package complexity

import (
	"strings"

	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
)

// conditionalFuncs are function calls counted as conditionals.
var conditionalFuncs = map[string]bool{
	"IF":  true,
	"IFF": true,
	"IIF": true,
}

// Analyze parses sql and counts its joins, CTEs, conditionals and WHERE
// clauses, including those of subqueries. The parsed statement is returned
// for reuse. SQL that does not parse yields all zero metrics together with
// the parse error.
func Analyze(sql string, d *sqllineage.Dialect) (*core.SQLComplexity, *sqllineage.SelectStmt, error) {
	if d == nil {
		d = sqllineage.BigQuery
	}
	stmt, err := sqllineage.Parse(sql, d)
	if err != nil {
		return &core.SQLComplexity{}, nil, err
	}
	c := Measure(stmt)
	c.SQLCharCount = CharCount(sql)
	return c, stmt, nil
}

// Measure counts the structural metrics of a parsed statement. SQLCharCount
// is left at zero.
func Measure(stmt *sqllineage.SelectStmt) *core.SQLComplexity {
	c := &core.SQLComplexity{}
	sqllineage.Inspect(stmt, func(n any) bool {
		switch x := n.(type) {
		case *sqllineage.Join:
			c.JoinCount++
		case *sqllineage.CTE:
			c.CTECount++
		case *sqllineage.SelectCore:
			if x.Where != nil {
				c.WhereCount++
			}
		case *sqllineage.CaseExpr:
			c.ConditionalCount += 1 + len(x.Whens)
		case *sqllineage.FuncCall:
			if conditionalFuncs[strings.ToUpper(x.Name)] {
				c.ConditionalCount++
			}
		}
		return true
	})
	return c
}

// CharCount is the length of sql without spaces and surrounding whitespace.
func CharCount(sql string) int {
	return len(strings.TrimSpace(strings.ReplaceAll(sql, " ", "")))
}
