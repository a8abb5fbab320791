package dag

import (
	"testing"

	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds a -> b, a -> c, b -> d, c -> d.
func diamond(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, nil)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	require.NoError(t, g.AddEdge("b", "d"))
	require.NoError(t, g.AddEdge("c", "d"))
	return g
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	assert.Error(t, g.AddEdge("a", "missing"))
	assert.Error(t, g.AddEdge("missing", "a"))
	assert.Error(t, g.AddEdge("a", "a"))

	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "b"))
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"b"}, g.Children("a"))
	assert.Equal(t, []string{"a"}, g.Parents("b"))
}

func TestGraph_AddNodeReplacesModel(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	m := core.NewModel("a", "a")
	g.AddNode("a", m)

	n, ok := g.Node("a")
	require.True(t, ok)
	assert.Same(t, m, n.Model)
	assert.Equal(t, 1, g.NodeCount())
}

func TestGraph_TopologicalSort(t *testing.T) {
	order, err := diamond(t).TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestGraph_Levels(t *testing.T) {
	g := diamond(t)
	g.AddNode("e", nil)
	require.NoError(t, g.AddEdge("a", "e"))
	require.NoError(t, g.AddEdge("d", "e"))

	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}, {"e"}}, levels)
}

func TestGraph_FindCycle(t *testing.T) {
	g := diamond(t)
	assert.Nil(t, g.FindCycle())

	require.NoError(t, g.AddEdge("d", "a"))
	cycle := g.FindCycle()
	require.NotEmpty(t, cycle)
	assert.Equal(t, cycle[0], cycle[len(cycle)-1])

	_, err := g.TopologicalSort()
	assert.ErrorContains(t, err, "cycle detected")
}

func TestGraph_Reachability(t *testing.T) {
	g := diamond(t)
	assert.Equal(t, []string{"b", "c", "d"}, g.Descendants("a"))
	assert.Empty(t, g.Descendants("d"))
	assert.Equal(t, []string{"a", "b", "c"}, g.Ancestors("d"))
	assert.Equal(t, []string{"a"}, g.Ancestors("b"))
	assert.Equal(t, []string{"a"}, g.Roots())
	assert.Equal(t, []string{"d"}, g.Leaves())
}

func TestGraph_Subgraph(t *testing.T) {
	g := diamond(t)
	g.AddNode("x", nil)

	sub := g.Subgraph([]string{"a", "b", "missing"})
	assert.Equal(t, []string{"a", "b"}, sub.IDs())
	assert.Equal(t, 1, sub.EdgeCount())

	hood := g.Neighborhood("b")
	assert.Equal(t, []string{"a", "b", "d"}, hood.IDs())
	assert.Equal(t, 2, hood.EdgeCount())
}

func TestFromProject(t *testing.T) {
	a := core.NewModel("model.p.a", "a")
	b := core.NewModel("model.p.b", "b")
	b.Dependencies = []string{"model.p.a", "model.p.unknown"}
	c := core.NewModel("model.p.c", "c")
	c.Dependencies = []string{"model.p.b"}
	p := core.NewProject("p", map[string]*core.Model{a.UniqueID: a, b.UniqueID: b, c.UniqueID: c})

	g := FromProject(p)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []string{"model.p.b", "model.p.c"}, g.Descendants("model.p.a"))

	n, ok := g.Node("model.p.b")
	require.True(t, ok)
	assert.Same(t, b, n.Model)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"model.p.a", "model.p.b", "model.p.c"}, order)
}
