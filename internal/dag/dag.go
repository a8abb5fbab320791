// Package dag provides directed graph operations over model dependencies.
// It supports cycle detection, topological ordering, execution levels and
// transitive reachability.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/modaryn/pkg/core"
)

// Node is a vertex of the graph.
type Node struct {
	// ID is the model unique id.
	ID string
	// Model is nil for nodes added without a backing model.
	Model *core.Model
}

// Graph is a directed graph where an edge points from a dependency (parent)
// to its dependent (child).
type Graph struct {
	nodes    map[string]*Node
	children map[string][]string
	parents  map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// FromProject projects the parent/child links of a project into a graph.
// The links must already be built (see core.Project.BuildDAG).
func FromProject(p *core.Project) *Graph {
	g := NewGraph()
	ids := p.ModelIDs()
	for _, id := range ids {
		g.AddNode(id, p.Models[id])
	}
	for _, id := range ids {
		for _, parentID := range p.Models[id].ParentIDs() {
			// both ends are known models and self links never come from BuildDAG
			_ = g.AddEdge(parentID, id)
		}
	}
	return g
}

// AddNode adds a node, replacing the model of an existing one.
func (g *Graph) AddNode(id string, m *core.Model) {
	if n, ok := g.nodes[id]; ok {
		n.Model = m
		return
	}
	g.nodes[id] = &Node{ID: id, Model: m}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, ok := g.nodes[parentID]; !ok {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, ok := g.nodes[childID]; !ok {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}
	g.children[parentID] = appendUnique(g.children[parentID], childID)
	g.parents[childID] = appendUnique(g.parents[childID], parentID)
	return nil
}

// Node returns a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Parents returns the direct dependencies of a node.
func (g *Graph) Parents(id string) []string {
	return g.parents[id]
}

// Children returns the direct dependents of a node.
func (g *Graph) Children(id string) []string {
	return g.children[id]
}

// IDs returns every node id in sorted order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, children := range g.children {
		n += len(children)
	}
	return n
}

// FindCycle returns a cycle as a closed path (first id repeated at the end),
// or nil when the graph is acyclic.
func (g *Graph) FindCycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = active
		stack = append(stack, id)
		for _, child := range g.children[id] {
			switch state[child] {
			case active:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == child {
						cycle = append(append([]string{}, stack[i:]...), child)
						break
					}
				}
				return true
			case unvisited:
				if visit(child) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.IDs() {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns node ids with every dependency before its
// dependents. Ties are broken by id.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var order []string
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// Levels groups node ids by depth. Level 0 holds nodes without dependencies;
// a node sits one level below its deepest parent.
func (g *Graph) Levels() ([][]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	depth := make(map[string]int, len(g.nodes))
	var levelOf func(id string) int
	levelOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, parent := range g.parents[id] {
			if pd := levelOf(parent) + 1; pd > d {
				d = pd
			}
		}
		depth[id] = d
		return d
	}

	var levels [][]string
	for _, id := range g.IDs() {
		d := levelOf(id)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	return levels, nil
}

// Descendants returns every node reachable from id through child edges,
// excluding id itself.
func (g *Graph) Descendants(id string) []string {
	return g.reach(id, g.children)
}

// Ancestors returns every node reachable from id through parent edges,
// excluding id itself.
func (g *Graph) Ancestors(id string) []string {
	return g.reach(id, g.parents)
}

func (g *Graph) reach(id string, next map[string][]string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range next[cur] {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
			queue = append(queue, n)
		}
	}
	sort.Strings(out)
	return out
}

// Roots returns nodes without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.IDs() {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Leaves returns nodes without dependents.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, id := range g.IDs() {
		if len(g.children[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Subgraph returns a graph restricted to the given ids and the edges among
// them. Unknown ids are ignored.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			sub.AddNode(id, n.Model)
		}
	}
	for _, id := range sub.IDs() {
		for _, child := range g.children[id] {
			if _, ok := sub.nodes[child]; ok {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

// Neighborhood returns the subgraph of id together with all its ancestors
// and descendants.
func (g *Graph) Neighborhood(id string) *Graph {
	ids := append([]string{id}, g.Ancestors(id)...)
	return g.Subgraph(append(ids, g.Descendants(id)...))
}

func appendUnique(list []string, id string) []string {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}
