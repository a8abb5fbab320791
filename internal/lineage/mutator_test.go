package lineage

import (
	"testing"

	"github.com/leapstack-labs/modaryn/internal/testutil"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestAddColumnEdge(t *testing.T) {
	p := testutil.NewProject(
		testutil.NewModel("src", "", "id"),
		testutil.NewModel("dst", "", "id", "key"),
	)
	src, dst := testutil.ModelID("src"), testutil.ModelID("dst")

	assert.True(t, AddColumnEdge(p, dst, "id", src, "id"))
	assert.False(t, AddColumnEdge(p, dst, "id", src, "id"), "duplicate edge")
	assert.True(t, AddColumnEdge(p, dst, "key", src, "id"))

	assert.Equal(t, []core.ColumnReference{ref("src", "id")}, column(t, p, "dst", "id").Upstream)
	assert.Equal(t, []core.ColumnReference{ref("dst", "id"), ref("dst", "key")}, column(t, p, "src", "id").Downstream)
	assertSymmetric(t, p)
}

func TestAddColumnEdgeMissing(t *testing.T) {
	p := testutil.NewProject(
		testutil.NewModel("src", "", "id"),
		testutil.NewModel("dst", "", "id"),
	)
	src, dst := testutil.ModelID("src"), testutil.ModelID("dst")

	assert.False(t, AddColumnEdge(p, "model.test.nope", "id", src, "id"))
	assert.False(t, AddColumnEdge(p, dst, "id", "model.test.nope", "id"))
	assert.False(t, AddColumnEdge(p, dst, "nope", src, "id"))
	assert.False(t, AddColumnEdge(p, dst, "id", src, "nope"))
	assert.Empty(t, column(t, p, "dst", "id").Upstream)
	assert.Empty(t, column(t, p, "src", "id").Downstream)
}
