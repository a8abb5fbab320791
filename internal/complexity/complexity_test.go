package complexity

import (
	"testing"

	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want core.SQLComplexity
	}{
		{
			name: "simple select",
			sql:  "SELECT id FROM orders",
			want: core.SQLComplexity{SQLCharCount: 18},
		},
		{
			name: "joins including comma joins",
			sql:  "SELECT a.id FROM a JOIN b ON a.id = b.id LEFT JOIN c USING (id), d",
			want: core.SQLComplexity{JoinCount: 3},
		},
		{
			name: "ctes and nested where",
			sql: `WITH x AS (SELECT id FROM a WHERE id > 0),
			      y AS (SELECT id FROM x)
			      SELECT id FROM y WHERE id IN (SELECT id FROM a WHERE id < 5)`,
			want: core.SQLComplexity{CTECount: 2, WhereCount: 3},
		},
		{
			name: "case branches and if",
			sql: `SELECT
			        CASE WHEN a > 1 THEN 'x' WHEN a > 2 THEN 'y' ELSE 'z' END AS c,
			        IF(b, 1, 0) AS d
			      FROM t`,
			want: core.SQLComplexity{ConditionalCount: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stmt, err := Analyze(tt.sql, sqllineage.BigQuery)
			require.NoError(t, err)
			require.NotNil(t, stmt)
			if tt.want.SQLCharCount == 0 {
				tt.want.SQLCharCount = CharCount(tt.sql)
			}
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestAnalyzeUnparseable(t *testing.T) {
	got, stmt, err := Analyze("SELEC oops", nil)
	assert.Error(t, err)
	assert.Nil(t, stmt)
	assert.Equal(t, core.SQLComplexity{}, *got)
}

func TestCharCount(t *testing.T) {
	assert.Equal(t, 18, CharCount("  SELECT id FROM orders\n"))
	assert.Equal(t, 0, CharCount("   "))
}
