package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = lineage.Schema{
	"table_a": {"id": "UNKNOWN", "name": "UNKNOWN", "user_id": "UNKNOWN", "user_name": "UNKNOWN"},
	"table_b": {"order_id": "UNKNOWN", "user_id": "UNKNOWN", "amount": "UNKNOWN", "id": "UNKNOWN"},
	"table_c": {"items": "UNKNOWN"},
}

// leafTable returns the table name of a leaf node, or "".
func leafTable(n *lineage.Node) string {
	if t, ok := n.Expression.(*lineage.TableName); ok {
		return t.Name
	}
	return ""
}

func TestLineageDirectColumn(t *testing.T) {
	node, err := lineage.Lineage("id", "SELECT id, name FROM table_a", testSchema, lineage.BigQuery)
	require.NoError(t, err)

	assert.Equal(t, "id", node.Name)
	assert.IsType(t, &lineage.ColumnRef{}, node.Expression)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "table_a.id", node.Downstream[0].Name)
	assert.Equal(t, "table_a", leafTable(node.Downstream[0]))
	assert.Empty(t, node.Downstream[0].Downstream)
}

func TestLineageJoinAliases(t *testing.T) {
	sql := `SELECT b.order_id, a.user_name, b.amount
		FROM table_a AS a
		JOIN table_b AS b ON a.user_id = b.user_id`

	node, err := lineage.Lineage("user_name", sql, testSchema, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "a.user_name", node.Downstream[0].Name)
	assert.Equal(t, "table_a", leafTable(node.Downstream[0]))

	node, err = lineage.Lineage("amount", sql, testSchema, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "table_b", leafTable(node.Downstream[0]))
}

func TestLineageUnqualifiedColumnUsesSchema(t *testing.T) {
	sql := "SELECT order_id, user_name FROM table_a a JOIN table_b b ON a.user_id = b.user_id"

	node, err := lineage.Lineage("order_id", sql, testSchema, lineage.DuckDB)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "b.order_id", node.Downstream[0].Name)
	assert.Equal(t, "table_b", leafTable(node.Downstream[0]))
}

func TestLineageThroughCTE(t *testing.T) {
	node, err := lineage.Lineage("id", "WITH src AS (SELECT id FROM table_a) SELECT id FROM src", testSchema, lineage.BigQuery)
	require.NoError(t, err)

	require.Len(t, node.Downstream, 1)
	cte := node.Downstream[0]
	assert.Equal(t, "src.id", cte.Name)
	assert.Empty(t, leafTable(cte))
	assert.True(t, node.Derived)
	assert.True(t, cte.Derived)
	require.Len(t, cte.Downstream, 1)
	assert.Equal(t, "table_a.id", cte.Downstream[0].Name)
	assert.Equal(t, "table_a", leafTable(cte.Downstream[0]))
	assert.False(t, cte.Downstream[0].Derived)
}

func TestLineageUnboundReferenceIsNotDerived(t *testing.T) {
	node, err := lineage.Lineage("id", "SELECT x.id AS id FROM table_a", testSchema, lineage.BigQuery)
	require.NoError(t, err)

	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "x.id", node.Downstream[0].Name)
	assert.IsType(t, &lineage.ColumnRef{}, node.Downstream[0].Expression)
	assert.False(t, node.Downstream[0].Derived)
}

func TestLineageSharesCTENodes(t *testing.T) {
	sql := `WITH src AS (SELECT id FROM table_a)
		SELECT s1.id + s2.id AS total
		FROM src s1 JOIN src s2 ON s1.id = s2.id`

	node, err := lineage.Lineage("total", sql, testSchema, lineage.BigQuery)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1, "both references resolve to one shared node")

	var names []string
	node.Walk(func(n *lineage.Node) bool {
		names = append(names, n.Name)
		return true
	})
	assert.Equal(t, []string{"total", "s1.id", "table_a.id"}, names)
}

func TestLineageStar(t *testing.T) {
	node, err := lineage.Lineage("name", "SELECT * FROM table_a", testSchema, lineage.BigQuery)
	require.NoError(t, err)
	assert.IsType(t, &lineage.StarExpr{}, node.Expression)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "table_a.name", node.Downstream[0].Name)
}

func TestLineageStarThroughCTEWithoutSchema(t *testing.T) {
	sql := "WITH s AS (SELECT * FROM raw_events) SELECT * FROM s"

	node, err := lineage.Lineage("event_id", sql, lineage.Schema{}, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "s.event_id", node.Downstream[0].Name)
	require.Len(t, node.Downstream[0].Downstream, 1)
	assert.Equal(t, "raw_events.event_id", node.Downstream[0].Downstream[0].Name)
	assert.Equal(t, "raw_events", leafTable(node.Downstream[0].Downstream[0]))
}

func TestLineageSetOperation(t *testing.T) {
	node, err := lineage.Lineage("id", "SELECT id FROM table_a UNION ALL SELECT id FROM table_b", testSchema, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 2)
	assert.Equal(t, "table_a", leafTable(node.Downstream[0]))
	assert.Equal(t, "table_b", leafTable(node.Downstream[1]))
}

func TestLineageRecursiveCTE(t *testing.T) {
	sql := "WITH RECURSIVE r AS (SELECT 1 AS n UNION ALL SELECT n + 1 FROM r WHERE n < 10) SELECT n FROM r"

	node, err := lineage.Lineage("n", sql, testSchema, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)

	r := node.Downstream[0]
	require.Len(t, r.Downstream, 1)
	assert.Same(t, r, r.Downstream[0], "recursive reference yields a cycle")

	visits := 0
	node.Walk(func(*lineage.Node) bool {
		visits++
		return true
	})
	assert.Equal(t, 2, visits)
}

func TestLineageDerivedTable(t *testing.T) {
	sql := "SELECT x.total FROM (SELECT SUM(amount) AS total FROM table_b) x"

	node, err := lineage.Lineage("total", sql, testSchema, lineage.Snowflake)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "x.total", node.Downstream[0].Name)
	require.Len(t, node.Downstream[0].Downstream, 1)
	assert.Equal(t, "table_b", leafTable(node.Downstream[0].Downstream[0]))
}

func TestLineageScalarSubquery(t *testing.T) {
	node, err := lineage.Lineage("max_amount", "SELECT (SELECT MAX(amount) FROM table_b) AS max_amount", testSchema, lineage.Postgres)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	require.Len(t, node.Downstream[0].Downstream, 1)
	assert.Equal(t, "table_b.amount", node.Downstream[0].Downstream[0].Name)
}

func TestLineageLiteralHasNoSources(t *testing.T) {
	node, err := lineage.Lineage("name", "SELECT 1 AS id, 'Alice' AS name", testSchema, lineage.BigQuery)
	require.NoError(t, err)
	assert.IsType(t, &lineage.Literal{}, node.Expression)
	assert.Empty(t, node.Downstream)
}

func TestLineageUnnest(t *testing.T) {
	node, err := lineage.Lineage("item", "SELECT item FROM table_c c, UNNEST(c.items) AS item", testSchema, lineage.BigQuery)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	unnest := node.Downstream[0]
	assert.Equal(t, "item.item", unnest.Name)
	require.Len(t, unnest.Downstream, 1)
	assert.Equal(t, "table_c", leafTable(unnest.Downstream[0]))
	assert.Equal(t, "c.items", unnest.Downstream[0].Name)
}

func TestLineageStructFieldAccess(t *testing.T) {
	node, err := lineage.Lineage("cid", "SELECT o.customer.id AS cid FROM orders o", lineage.Schema{}, lineage.BigQuery)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
	assert.Equal(t, "o.customer", node.Downstream[0].Name)
	assert.Equal(t, "orders", leafTable(node.Downstream[0]))
}

func TestLineageIdentifierQuoting(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		sql      string
		dialect  *lineage.Dialect
		wantLeaf string
		wantErr  error
		parseErr bool
	}{
		{name: "snowflake unquoted folds to upper", column: "id", sql: "SELECT ID FROM TABLE_A", dialect: lineage.Snowflake, wantLeaf: "TABLE_A.ID"},
		{name: "snowflake upper variant", column: "ID", sql: "SELECT id FROM table_a", dialect: lineage.Snowflake, wantLeaf: "table_a.id"},
		{name: "snowflake quoted lower misses", column: `"id"`, sql: "SELECT id FROM table_a", dialect: lineage.Snowflake, wantErr: lineage.ErrColumnNotFound},
		{name: "postgres quoted upper misses", column: `"ID"`, sql: "SELECT id FROM table_a", dialect: lineage.Postgres, wantErr: lineage.ErrColumnNotFound},
		{name: "postgres quoted exact", column: `"id"`, sql: "SELECT id FROM table_a", dialect: lineage.Postgres, wantLeaf: "table_a.id"},
		{name: "bigquery backticks", column: "`id`", sql: "SELECT id FROM table_a", dialect: lineage.BigQuery, wantLeaf: "table_a.id"},
		{name: "bigquery double quotes are strings", column: `"id"`, sql: "SELECT id FROM table_a", dialect: lineage.BigQuery, parseErr: true},
		{name: "postgres backticks are illegal", column: "`id`", sql: "SELECT id FROM table_a", dialect: lineage.Postgres, parseErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := lineage.Lineage(tt.column, tt.sql, testSchema, tt.dialect)
			switch {
			case tt.parseErr:
				var perr *lineage.ParseError
				require.ErrorAs(t, err, &perr)
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
				require.Len(t, node.Downstream, 1)
				assert.Equal(t, tt.wantLeaf, node.Downstream[0].Name)
			}
		})
	}
}

func TestLineageErrors(t *testing.T) {
	_, err := lineage.Lineage("missing", "SELECT id FROM table_a", testSchema, lineage.BigQuery)
	require.ErrorIs(t, err, lineage.ErrColumnNotFound)

	_, err = lineage.Lineage("id", "SELEC id FRM table_a", testSchema, lineage.BigQuery)
	var perr *lineage.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Pos.Line)
}

func TestLineageNilDialectIsANSI(t *testing.T) {
	node, err := lineage.Lineage(`"id"`, "SELECT id FROM table_a", testSchema, nil)
	require.NoError(t, err)
	require.Len(t, node.Downstream, 1)
}

func TestSchemaLookups(t *testing.T) {
	s := lineage.Schema{"orders": {"id": "UNKNOWN", "amount": "UNKNOWN"}, "empty": {}}

	assert.True(t, s.HasColumn("ORDERS", "ID"))
	assert.False(t, s.HasColumn("orders", "missing"))
	assert.False(t, s.HasColumn("empty", "id"))
	assert.False(t, s.HasColumn("unknown", "id"))
	assert.Equal(t, []string{"amount", "id"}, s.Columns("orders"))

	_, ok := s.Table("empty")
	assert.True(t, ok)
}

func TestLineageOfSharedStatement(t *testing.T) {
	stmt, err := lineage.Parse("SELECT a.id, b.amount FROM table_a a JOIN table_b b ON a.id = b.id", lineage.BigQuery)
	require.NoError(t, err)

	for _, tt := range []struct{ column, table string }{{"id", "table_a"}, {"amount", "table_b"}, {"ID", "table_a"}} {
		node, err := lineage.LineageOf(tt.column, stmt, testSchema, lineage.BigQuery)
		require.NoError(t, err, tt.column)
		require.Len(t, node.Downstream, 1)
		assert.Equal(t, tt.table, leafTable(node.Downstream[0]))
	}

	_, err = lineage.LineageOf("missing", stmt, testSchema, lineage.BigQuery)
	assert.ErrorIs(t, err, lineage.ErrColumnNotFound)
}
