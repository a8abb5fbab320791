package lineage

import (
	"testing"

	"github.com/leapstack-labs/modaryn/internal/testutil"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	p, _ := analyze(t, sqllineage.BigQuery,
		testutil.NewModel("raw", "", "id"),
		testutil.NewModel("stg", "SELECT id FROM raw", "id"),
		testutil.NewModel("mart", "SELECT s.id, r.id AS raw_id FROM stg s JOIN raw r USING (id)", "id", "raw_id"),
	)

	up := TraceUpstream(p, testutil.ModelID("mart"), "id", 0)
	require.Len(t, up, 2)
	assert.Equal(t, TraceStep{Depth: 1, Ref: ref("stg", "id"), From: ref("mart", "id")}, up[0])
	assert.Equal(t, TraceStep{Depth: 2, Ref: ref("raw", "id"), From: ref("stg", "id")}, up[1])

	assert.Len(t, TraceUpstream(p, testutil.ModelID("mart"), "id", 1), 1)

	down := TraceDownstream(p, testutil.ModelID("raw"), "id", 0)
	var refs []string
	for _, s := range down {
		refs = append(refs, s.Ref.String())
	}
	// mart.id is reached through stg at depth 2 and raw_id directly at depth 1
	assert.Equal(t, []string{"model.test.mart.raw_id", "model.test.stg.id", "model.test.mart.id"}, refs)

	assert.Nil(t, TraceUpstream(p, "model.test.nope", "id", 0))
	assert.Nil(t, TraceDownstream(p, testutil.ModelID("raw"), "nope", 0))
}
