package commands

import (
	"fmt"

	"github.com/leapstack-labs/modaryn/internal/dag"
	"github.com/leapstack-labs/modaryn/internal/lineage"
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Upstream   bool
	Downstream bool
	Depth      int
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <model> [column]",
		Short: "Show model or column lineage",
		Long: `Display the upstream sources and downstream dependents of a model, or
of one of its columns.

Models are matched by unique id or, case-insensitively, by name. Column
lineage follows the edges resolved from the compiled SQL of each model.`,
		Example: `  # Models upstream and downstream of a model
  modaryn lineage fct_orders

  # Where does a column come from?
  modaryn lineage fct_orders amount --downstream=false

  # Limit traversal depth
  modaryn lineage stg_orders id --depth 2

  # Output as JSON
  modaryn lineage fct_orders amount --format json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream lineage")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream lineage")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")
	return cmd
}

func runLineage(cmd *cobra.Command, args []string, opts *LineageOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	p, err := cc.LoadProject(cmd.Context())
	if err != nil {
		return err
	}

	m, ok := p.FindModel(args[0])
	if !ok {
		return fmt.Errorf("model not found: %s", args[0])
	}

	if len(args) == 1 {
		return cc.Renderer.ModelLineage(modelLineage(p, m, opts))
	}

	column := args[1]
	if _, ok := m.Columns[column]; !ok {
		return fmt.Errorf("column not found: %s.%s", m.Name, column)
	}
	l := &output.ColumnLineage{Model: m.UniqueID, Column: column}
	if opts.Upstream {
		l.Upstream = lineage.TraceUpstream(p, m.UniqueID, column, opts.Depth)
	}
	if opts.Downstream {
		l.Downstream = lineage.TraceDownstream(p, m.UniqueID, column, opts.Depth)
	}
	return cc.Renderer.ColumnLineage(l)
}

func modelLineage(p *core.Project, m *core.Model, opts *LineageOptions) *output.ModelLineage {
	g := dag.FromProject(p)
	l := &output.ModelLineage{
		Model:   m.UniqueID,
		Columns: make(map[string][]core.ColumnReference, len(m.Columns)),
	}
	if opts.Upstream {
		l.Upstream = limitDepth(g, m.UniqueID, opts.Depth, g.Parents)
	}
	if opts.Downstream {
		l.Downstream = limitDepth(g, m.UniqueID, opts.Depth, g.Children)
	}
	for name, c := range m.Columns {
		l.Columns[name] = c.Upstream
	}
	return l
}

// limitDepth walks next from id breadth first up to depth levels (0 means
// unlimited) and returns the reached ids in visit order.
func limitDepth(g *dag.Graph, id string, depth int, next func(string) []string) []string {
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []string
	for level := 1; len(frontier) > 0 && (depth <= 0 || level <= depth); level++ {
		var nextFrontier []string
		for _, cur := range frontier {
			for _, n := range next(cur) {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				nextFrontier = append(nextFrontier, n)
			}
		}
		frontier = nextFrontier
	}
	return out
}
