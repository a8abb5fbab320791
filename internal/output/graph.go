package output

import (
	"fmt"
	"io"

	"github.com/leapstack-labs/modaryn/pkg/core"
)

// noScoreColor colors nodes when no model has a positive score.
const noScoreColor = "#ADD8E6"

// GraphNode is a vis.js node.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// GraphEdge is a vis.js edge from a parent model to a child.
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Arrows string `json:"arrows"`
}

// Graph is the vis.js data of a project.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// ScoreColor maps a score to an HSL color from green (low) to red (at
// maxScore).
func ScoreColor(score, maxScore float64) string {
	if maxScore <= 0 {
		return noScoreColor
	}
	n := score / maxScore
	n = min(max(n, 0), 1)
	return fmt.Sprintf("hsl(%.0f, 70%%, 50%%)", (1-n)*120)
}

// BuildGraph returns the vis.js nodes and edges of p. Edges follow declared
// dependencies between models of the project.
func BuildGraph(p *core.Project) *Graph {
	ids := p.ModelIDs()
	maxScore := 0.0
	for i, id := range ids {
		s := p.DisplayScore(p.Models[id])
		if i == 0 || s > maxScore {
			maxScore = s
		}
	}

	g := &Graph{Nodes: make([]GraphNode, 0, len(ids)), Edges: []GraphEdge{}}
	for _, id := range ids {
		m := p.Models[id]
		score := p.DisplayScore(m)
		title := fmt.Sprintf("Model: %s\nScore: %.2f\n", m.Name, score)
		if c := m.Complexity; c != nil {
			title += fmt.Sprintf("Complexity (JOINs: %d, CTEs: %d, Conditionals: %d, WHEREs: %d, SQL Chars: %d)\n",
				c.JoinCount, c.CTECount, c.ConditionalCount, c.WhereCount, c.SQLCharCount)
			title += fmt.Sprintf("Importance (Downstream: %d)\n", m.DownstreamModelCount())
		}
		title += fmt.Sprintf("Quality: %.2f", m.QualityScore)

		g.Nodes = append(g.Nodes, GraphNode{ID: id, Label: m.Name, Title: title, Color: ScoreColor(score, maxScore)})
		for _, parent := range m.Dependencies {
			if _, ok := p.Models[parent]; ok {
				g.Edges = append(g.Edges, GraphEdge{From: parent, To: id, Arrows: "to"})
			}
		}
	}
	return g
}

// WriteGraphHTML writes a vis.js page drawing the model graph of p.
func WriteGraphHTML(w io.Writer, p *core.Project) error {
	g := BuildGraph(p)
	return templates.ExecuteTemplate(w, "graph.html.tmpl", struct {
		Project string
		Nodes   []GraphNode
		Edges   []GraphEdge
	}{p.Name, g.Nodes, g.Edges})
}
