package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDialect(t *testing.T) {
	for _, name := range []string{"bigquery", "BigQuery", " snowflake ", "postgres", "postgresql", "redshift", "duckdb", "databricks", "spark", "mysql", "ansi"} {
		d, err := lineage.LookupDialect(name)
		require.NoError(t, err, name)
		assert.NotNil(t, d)
	}

	_, err := lineage.LookupDialect("oracle")
	require.ErrorIs(t, err, lineage.ErrUnknownDialect)
}

func TestDialectNames(t *testing.T) {
	assert.Equal(t, []string{"ansi", "bigquery", "databricks", "duckdb", "mysql", "postgres", "redshift", "snowflake"}, lineage.DialectNames())
}

func TestDialectNormalize(t *testing.T) {
	tests := []struct {
		dialect *lineage.Dialect
		name    string
		quoted  bool
		want    string
	}{
		{lineage.Snowflake, "order_id", false, "ORDER_ID"},
		{lineage.Snowflake, "order_id", true, "order_id"},
		{lineage.Postgres, "Order_Id", false, "order_id"},
		{lineage.Postgres, "Order_Id", true, "Order_Id"},
		{lineage.BigQuery, "Order_Id", true, "order_id"},
		{lineage.DuckDB, "ID", true, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.Normalize(tt.name, tt.quoted))
		})
	}
}
