package lineage

import (
	"testing"

	"github.com/leapstack-labs/modaryn/internal/testutil"
	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(model, column string) core.ColumnReference {
	return core.ColumnReference{ModelUniqueID: testutil.ModelID(model), ColumnName: column}
}

func analyze(t *testing.T, d *sqllineage.Dialect, models ...*core.Model) (*core.Project, Summary) {
	t.Helper()
	p := testutil.NewProject(models...)
	summary := New(Options{Dialect: d, Logger: testutil.NewTestLogger(t)}).Analyze(p)
	assertSymmetric(t, p)
	return p, summary
}

func column(t *testing.T, p *core.Project, model, name string) *core.Column {
	t.Helper()
	m, ok := p.GetModel(testutil.ModelID(model))
	require.True(t, ok, model)
	c, ok := m.Columns[name]
	require.True(t, ok, name)
	return c
}

// assertSymmetric checks every upstream edge has its downstream reciprocal
// and the reverse.
func assertSymmetric(t *testing.T, p *core.Project) {
	t.Helper()
	for _, id := range p.ModelIDs() {
		m := p.Models[id]
		for _, name := range m.ColumnNames() {
			self := core.ColumnReference{ModelUniqueID: id, ColumnName: name}
			for _, up := range m.Columns[name].Upstream {
				src := lookupColumn(p, up)
				require.NotNil(t, src, "upstream %s of %s", up, self)
				assert.True(t, src.HasDownstream(self), "missing downstream %s on %s", self, up)
			}
			for _, down := range m.Columns[name].Downstream {
				dst := lookupColumn(p, down)
				require.NotNil(t, dst, "downstream %s of %s", down, self)
				assert.True(t, dst.HasUpstream(self), "missing upstream %s on %s", self, down)
			}
		}
	}
}

func edgeSet(p *core.Project) map[string][]core.ColumnReference {
	edges := make(map[string][]core.ColumnReference)
	for _, id := range p.ModelIDs() {
		for _, name := range p.Models[id].ColumnNames() {
			c := p.Models[id].Columns[name]
			edges[id+"."+name] = append(append([]core.ColumnReference{}, c.Upstream...), c.Downstream...)
		}
	}
	return edges
}

func TestAnalyzeScenario(t *testing.T) {
	p, summary := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("table_a", "SELECT 1 as id, 'Alice' as name", "id", "name"),
		testutil.DependsOn(testutil.NewModel("table_b", "SELECT id, name FROM table_a", "id", "name"), "table_a"),
	)

	assert.Equal(t, []core.ColumnReference{ref("table_a", "id")}, column(t, p, "table_b", "id").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("table_a", "name")}, column(t, p, "table_b", "name").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("table_b", "id")}, column(t, p, "table_a", "id").Downstream)
	assert.Empty(t, column(t, p, "table_a", "id").Upstream)
	assert.Equal(t, 2, p.Models[testutil.ModelID("table_a")].DownstreamColumnCount())

	assert.Equal(t, Summary{ModelsAnalyzed: 2, ColumnsResolved: 2, EdgesAdded: 2}, summary)
}

func TestAnalyzeIdempotent(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("table_a", "SELECT 1 as id", "id"),
		testutil.NewModel("table_b", "SELECT id FROM table_a", "id"),
		testutil.NewModel("table_c", "SELECT b.id FROM table_b b JOIN table_a a ON a.id = b.id", "id"),
	)
	before := edgeSet(p)

	summary := New(Options{}).Analyze(p)
	assert.Zero(t, summary.EdgesAdded)
	assert.Equal(t, 2, summary.ColumnsResolved)
	assert.Equal(t, before, edgeSet(p))
	assertSymmetric(t, p)
}

func TestAnalyzeNoSelfLoops(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("table_a", "SELECT id FROM raw.source_a", "id"),
		testutil.NewModel("table_b", "SELECT id, id AS id2 FROM table_a", "id", "id2"),
	)
	for _, id := range p.ModelIDs() {
		for name, c := range p.Models[id].Columns {
			for _, up := range c.Upstream {
				assert.NotEqual(t, core.ColumnReference{ModelUniqueID: id, ColumnName: name}, up)
			}
		}
	}
}

func TestAnalyzeSelfReferenceIsRecorded(t *testing.T) {
	// A model reading from a table with its own name is a real self reference.
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("events", "SELECT id FROM events", "id"),
	)
	assert.Equal(t, []core.ColumnReference{ref("events", "id")}, column(t, p, "events", "id").Upstream)
}

func TestAnalyzeDialectInvariance(t *testing.T) {
	for _, d := range []*sqllineage.Dialect{sqllineage.BigQuery, sqllineage.Snowflake, sqllineage.Postgres} {
		t.Run(d.Name, func(t *testing.T) {
			p, _ := analyze(t, d,
				testutil.NewModel("table_a", "", "id"),
				testutil.NewModel("b", "SELECT id FROM table_a", "id"),
			)
			assert.Equal(t, []core.ColumnReference{ref("table_a", "id")}, column(t, p, "b", "id").Upstream)
		})
	}
}

func TestAnalyzeJoinAttribution(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("a", "", "user_id", "user_name"),
		testutil.NewModel("b", "", "order_id", "user_id", "amount"),
		testutil.NewModel("c", `
			SELECT b.order_id, a.user_name, b.amount
			FROM a
			JOIN b ON a.user_id = b.user_id`, "order_id", "user_name", "amount"),
	)

	assert.Equal(t, []core.ColumnReference{ref("b", "order_id")}, column(t, p, "c", "order_id").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("b", "amount")}, column(t, p, "c", "amount").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("a", "user_name")}, column(t, p, "c", "user_name").Upstream)
	assert.Equal(t, 1, p.Models[testutil.ModelID("a")].DownstreamColumnCount())
	assert.Equal(t, 2, p.Models[testutil.ModelID("b")].DownstreamColumnCount())
}

func TestAnalyzeCTETransparency(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("orders", "", "id", "amount"),
		testutil.NewModel("summary", `
			WITH src AS (SELECT id, amount FROM orders),
			     big AS (SELECT * FROM src WHERE amount > 100)
			SELECT id, amount * 2 AS doubled FROM big`, "id", "doubled"),
	)

	assert.Equal(t, []core.ColumnReference{ref("orders", "id")}, column(t, p, "summary", "id").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("orders", "amount")}, column(t, p, "summary", "doubled").Upstream)
}

func TestAnalyzeUnknownSource(t *testing.T) {
	p, summary := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("orders", "", "id"),
		testutil.NewModel("report", "SELECT e.id, o.id AS order_id FROM raw.events e JOIN orders o USING (id)", "id", "order_id", "missing"),
	)

	assert.Empty(t, column(t, p, "report", "id").Upstream)
	assert.Empty(t, column(t, p, "report", "missing").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("orders", "id")}, column(t, p, "report", "order_id").Upstream)
	assert.Equal(t, 1, summary.EdgesAdded)
}

func TestAnalyzeUnknownSourceColumn(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("orders", "", "id"),
		testutil.NewModel("report", "SELECT o.status FROM orders o", "status"),
	)
	assert.Empty(t, column(t, p, "report", "status").Upstream)
}

func TestAnalyzeUnparseableSQL(t *testing.T) {
	p, summary := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("orders", "", "id"),
		testutil.NewModel("broken", "SELEC id FRM orders {{ ref('x') }}", "id"),
		testutil.NewModel("ok", "SELECT id FROM orders", "id"),
	)

	assert.Empty(t, column(t, p, "broken", "id").Upstream)
	assert.Len(t, column(t, p, "ok", "id").Upstream, 1)
	assert.Equal(t, 1, summary.ModelsSkipped)
	assert.Equal(t, 1, summary.ModelsAnalyzed)
}

func TestAnalyzePreservesSourceCasing(t *testing.T) {
	p, _ := analyze(t, sqllineage.Snowflake,
		testutil.NewModel("CUSTOMERS", "", "CUSTOMER_ID"),
		testutil.NewModel("dim", "SELECT customer_id FROM customers", "Customer_Id"),
	)
	assert.Equal(t, []core.ColumnReference{ref("CUSTOMERS", "CUSTOMER_ID")}, column(t, p, "dim", "Customer_Id").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("dim", "Customer_Id")}, column(t, p, "CUSTOMERS", "CUSTOMER_ID").Downstream)
}

func TestAnalyzeBacktickVariant(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("src", "", "order total"),
		testutil.NewModel("dst", "SELECT s.`order total` FROM src s", "order total"),
	)
	assert.Equal(t, []core.ColumnReference{ref("src", "order total")}, column(t, p, "dst", "order total").Upstream)
}

func TestAnalyzeQualifiedNameFallback(t *testing.T) {
	// x is not in FROM; the unresolved reference still names a model.
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("x", "", "id"),
		testutil.NewModel("y", "SELECT x.id AS id FROM raw_y", "id"),
	)
	assert.Equal(t, []core.ColumnReference{ref("x", "id")}, column(t, p, "y", "id").Upstream)
}

func TestAnalyzeCTENamedLikeOwnModel(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("stg_customers", "", "customer_id"),
		testutil.DependsOn(testutil.NewModel("customers",
			"with customers as (select * from stg_customers) select customers.customer_id from customers",
			"customer_id"), "stg_customers"),
	)

	assert.Equal(t, []core.ColumnReference{ref("stg_customers", "customer_id")}, column(t, p, "customers", "customer_id").Upstream)
	assert.Empty(t, column(t, p, "customers", "customer_id").Downstream)
}

func TestAnalyzeCTENamedLikeOtherModel(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("orders", "", "id"),
		testutil.NewModel("raw_orders", "", "id"),
		testutil.NewModel("report", "with orders as (select id from raw_orders) select id from orders", "id"),
	)

	assert.Equal(t, []core.ColumnReference{ref("raw_orders", "id")}, column(t, p, "report", "id").Upstream)
	assert.Empty(t, column(t, p, "orders", "id").Downstream)
}

func TestAnalyzeDoesNotAddColumns(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("a", "", "id"),
		testutil.NewModel("b", "SELECT id, id AS other FROM a", "id"),
	)
	assert.Equal(t, []string{"id"}, p.Models[testutil.ModelID("b")].ColumnNames())
	assert.Equal(t, []string{"id"}, p.Models[testutil.ModelID("a")].ColumnNames())
}

func TestVariants(t *testing.T) {
	assert.Equal(t, []string{"id", "ID", `"id"`, "`id`"}, variants("id"))
}

func TestLeafOf(t *testing.T) {
	tests := []struct {
		name   string
		node   *sqllineage.Node
		table  string
		column string
		ok     bool
	}{
		{
			name:   "table leaf uses table name not alias",
			node:   &sqllineage.Node{Name: "o.ID", Expression: &sqllineage.TableName{Name: "Orders", Alias: "o"}},
			table:  "orders",
			column: "id",
			ok:     true,
		},
		{
			name:   "quoted qualified name",
			node:   &sqllineage.Node{Name: "db.`Orders`.\"Id\"", Expression: &sqllineage.ColumnRef{Column: "Id"}},
			table:  "orders",
			column: "id",
			ok:     true,
		},
		{
			name: "cte output is not a leaf",
			node: &sqllineage.Node{Name: "customers.customer_id", Expression: &sqllineage.ColumnRef{Column: "customer_id"}, Derived: true},
		},
		{
			name: "function call is not a leaf",
			node: &sqllineage.Node{Name: "f.id", Expression: &sqllineage.FuncCall{Name: "unnest"}},
		},
		{
			name: "bare name",
			node: &sqllineage.Node{Name: "id", Expression: &sqllineage.ColumnRef{Column: "id"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, col, ok := leafOf(tt.node)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.table, table)
			assert.Equal(t, tt.column, col)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	a := New(Options{})
	assert.Same(t, sqllineage.BigQuery, a.Dialect())
	assert.NotNil(t, a.logger)
}
