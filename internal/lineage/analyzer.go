package lineage

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
)

// Options configures an Analyzer.
type Options struct {
	// Dialect used to parse model SQL. Defaults to BigQuery.
	Dialect *sqllineage.Dialect
	Logger  *slog.Logger
}

// Summary counts what one Analyze run did.
type Summary struct {
	ModelsAnalyzed  int
	ModelsSkipped   int
	ColumnsResolved int
	EdgesAdded      int
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("models_analyzed", s.ModelsAnalyzed),
		slog.Int("models_skipped", s.ModelsSkipped),
		slog.Int("columns_resolved", s.ColumnsResolved),
		slog.Int("edges_added", s.EdgesAdded),
	)
}

// Analyzer resolves column lineage for a project.
type Analyzer struct {
	dialect *sqllineage.Dialect
	logger  *slog.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	d := opts.Dialect
	if d == nil {
		d = sqllineage.BigQuery
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{dialect: d, logger: logger}
}

// Dialect returns the dialect the analyzer parses with.
func (a *Analyzer) Dialect() *sqllineage.Dialect {
	return a.dialect
}

// run holds the per-call lookup tables.
type run struct {
	project *core.Project
	catalog sqllineage.Schema
	models  map[string]string
	summary Summary
}

// Analyze appends the resolved upstream and downstream references to the
// columns of p. It never fails: models whose SQL cannot be parsed and columns
// that cannot be resolved are left without edges. Running it again on the
// same project adds no edges.
func (a *Analyzer) Analyze(p *core.Project) Summary {
	r := &run{
		project: p,
		catalog: BuildCatalog(p),
		models:  modelIndex(p),
	}

	for _, id := range p.ModelIDs() {
		m := p.Models[id]
		if strings.TrimSpace(m.RawSQL) == "" {
			continue
		}
		stmt, err := sqllineage.Parse(m.RawSQL, a.dialect)
		if err != nil {
			r.summary.ModelsSkipped++
			a.logger.Debug("skipping model with unparseable SQL", "model", id, "error", err)
			continue
		}
		r.summary.ModelsAnalyzed++

		for _, name := range m.ColumnNames() {
			resolved, err := a.resolveColumn(r, m, name, stmt)
			if err != nil {
				a.logger.Debug("column lineage failed", "model", id, "column", name, "error", err)
				continue
			}
			if resolved {
				r.summary.ColumnsResolved++
			}
		}
	}

	a.logger.Debug("column lineage resolved", "summary", r.summary)
	return r.summary
}

// variants lists the spellings tried for a column, in order.
func variants(column string) []string {
	return []string{
		column,
		strings.ToUpper(column),
		`"` + column + `"`,
		"`" + column + "`",
	}
}

// lookup returns the lineage of the first variant that resolves, or nil.
func (a *Analyzer) lookup(r *run, column string, stmt *sqllineage.SelectStmt) *sqllineage.Node {
	for _, v := range variants(column) {
		node, err := sqllineage.LineageOf(v, stmt, r.catalog, a.dialect)
		if err == nil && node != nil {
			return node
		}
	}
	return nil
}

// resolveColumn traces one column and records its edges. It reports whether
// at least one source column was found.
func (a *Analyzer) resolveColumn(r *run, m *core.Model, column string, stmt *sqllineage.SelectStmt) (resolved bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	root := a.lookup(r, column, stmt)
	if root == nil {
		return false, nil
	}

	root.Walk(func(n *sqllineage.Node) bool {
		table, col, ok := leafOf(n)
		if !ok {
			return true
		}
		sourceID, ok := r.models[table]
		if !ok {
			return true
		}
		sourceColumn, ok := columnFold(r.project.Models[sourceID], col)
		if !ok {
			return true
		}
		resolved = true
		if AddColumnEdge(r.project, m.UniqueID, column, sourceID, sourceColumn) {
			r.summary.EdgesAdded++
		}
		return true
	})
	return resolved, nil
}

// leafOf extracts the normalized table and column a node reads from. Table
// leaves carry the table reference itself; column references that bound to
// no relation fall back to their qualified name. Outputs of CTEs and derived
// tables are never leaves.
func leafOf(n *sqllineage.Node) (table, column string, ok bool) {
	parts := strings.Split(n.Name, ".")
	if t, isTable := n.Expression.(*sqllineage.TableName); isTable {
		return normalizeName(t.Name), normalizeName(parts[len(parts)-1]), true
	}
	if _, isRef := n.Expression.(*sqllineage.ColumnRef); !isRef || n.Derived || len(parts) < 2 {
		return "", "", false
	}
	return normalizeName(parts[len(parts)-2]), normalizeName(parts[len(parts)-1]), true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Trim(name, "\"`"))
}

// columnFold returns the declared name of the column of m whose lower-cased
// name is column. Clashing spellings resolve to the smallest name.
func columnFold(m *core.Model, column string) (string, bool) {
	names := make([]string, 0, len(m.Columns))
	for name := range m.Columns {
		if strings.ToLower(name) == column {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}
