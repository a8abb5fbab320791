package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/modaryn/internal/dag"
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/spf13/cobra"
)

// DAGNode is one model in the dag JSON output.
type DAGNode struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on"`
	UsedBy    []string `json:"used_by"`
}

// DAGLevel groups models whose parents are all in earlier levels.
type DAGLevel struct {
	Level  int       `json:"level"`
	Models []DAGNode `json:"models"`
}

// DAGOutput is the dag JSON output.
type DAGOutput struct {
	Levels      []DAGLevel `json:"levels"`
	Order       []string   `json:"order"` // dependencies first
	TotalModels int        `json:"total_models"`
	TotalEdges  int        `json:"total_edges"`
}

// NewDAGCommand creates the dag command.
func NewDAGCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "dag [model]",
		Short: "Show the model dependency graph",
		Long: `Display the dependency graph (DAG) of all models.

Models are grouped by level: level 0 holds models without parents in the
project, every other model sits one level below its deepest parent.
With a model name or unique id, only that model with its ancestors and
descendants is shown.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)
  - --format html: interactive graph colored by score`,
		Example: `  # Show the DAG
  modaryn dag

  # Output as JSON
  modaryn dag --format json

  # Everything upstream and downstream of one model
  modaryn dag fct_orders

  # Interactive graph
  modaryn dag --format html -o graph.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDAG(cmd, args, outFile)
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the output to a file")
	return cmd
}

func runDAG(cmd *cobra.Command, args []string, outFile string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	p, err := cc.ScoreProject(cmd.Context())
	if err != nil {
		return err
	}

	g := dag.FromProject(p)
	if len(args) == 1 {
		m, ok := p.FindModel(args[0])
		if !ok {
			return fmt.Errorf("model not found: %s", args[0])
		}
		g = g.Neighborhood(m.UniqueID)
		p = focusProject(p, g)
	}
	levels, err := g.Levels()
	if err != nil {
		return fmt.Errorf("failed to order models: %w", err)
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return fmt.Errorf("failed to order models: %w", err)
	}

	done, err := cc.redirect(cmd, outFile, "modaryn_graph.html")
	if err != nil {
		return err
	}
	r := cc.Renderer
	switch r.Mode() {
	case output.ModeHTML:
		err = output.WriteGraphHTML(r.Writer(), p)
	case output.ModeJSON:
		err = r.JSON(dagOutput(g, levels, order))
	case output.ModeMarkdown:
		dagMarkdown(r, g, levels)
	default:
		dagText(r, g, levels)
	}
	if err != nil {
		_ = done()
		return err
	}
	return done()
}

// focusProject returns a view of p holding only the models of g. Model
// links are shared with p and left untouched.
func focusProject(p *core.Project, g *dag.Graph) *core.Project {
	models := make(map[string]*core.Model, g.NodeCount())
	for _, id := range g.IDs() {
		models[id] = p.Models[id]
	}
	return &core.Project{Name: p.Name, Models: models, Statistics: p.Statistics}
}

func modelName(g *dag.Graph, id string) string {
	if n, ok := g.Node(id); ok && n.Model != nil {
		return n.Model.Name
	}
	return id
}

// dagText outputs DAG in styled text format.
func dagText(r *output.Renderer, g *dag.Graph, levels [][]string) {
	styles := r.Styles()
	r.Header("dependency graph")

	for i, level := range levels {
		r.Println(styles.Title.Render(fmt.Sprintf("Level %d:", i)))
		for _, id := range level {
			r.Printf("  %s\n", styles.Model.Render(modelName(g, id)))
			if deps := g.Parents(id); len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if children := g.Children(id); len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println()
	}

	r.Muted(fmt.Sprintf("Total: %d models, %d dependencies", g.NodeCount(), g.EdgeCount()))
}

// dagMarkdown outputs DAG in markdown format.
func dagMarkdown(r *output.Renderer, g *dag.Graph, levels [][]string) {
	r.Println("# Dependency Graph")
	r.Println()

	for i, level := range levels {
		name := fmt.Sprintf("Level %d", i)
		if i == 0 {
			name = "Level 0 (Roots)"
		}
		r.Printf("## %s\n\n", name)
		for _, id := range level {
			r.Printf("- %s\n", modelName(g, id))
			if deps := g.Parents(id); len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if children := g.Children(id); len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println()
	}

	r.Println("## Summary")
	r.Println()
	r.Printf("- **Total Models**: %d\n", g.NodeCount())
	r.Printf("- **Total Dependencies**: %d\n", g.EdgeCount())
}

func dagOutput(g *dag.Graph, levels [][]string, order []string) DAGOutput {
	out := DAGOutput{
		Levels:      make([]DAGLevel, 0, len(levels)),
		Order:       nonNil(order),
		TotalModels: g.NodeCount(),
		TotalEdges:  g.EdgeCount(),
	}
	for i, level := range levels {
		l := DAGLevel{Level: i, Models: make([]DAGNode, 0, len(level))}
		for _, id := range level {
			l.Models = append(l.Models, DAGNode{
				ID:        id,
				Name:      modelName(g, id),
				DependsOn: nonNil(g.Parents(id)),
				UsedBy:    nonNil(g.Children(id)),
			})
		}
		out.Levels = append(out.Levels, l)
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
