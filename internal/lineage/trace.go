package lineage

import "github.com/leapstack-labs/modaryn/pkg/core"

// TraceStep is one column reached by a trace.
type TraceStep struct {
	Depth int                  `json:"depth"`
	Ref   core.ColumnReference `json:"ref"`
	// From is the column one step closer to the traced column.
	From core.ColumnReference `json:"from"`
}

// TraceUpstream walks upstream edges from a column breadth first and returns
// every column it derives from, each once, nearest first. maxDepth <= 0 means
// no limit. An unknown model or column yields no steps.
func TraceUpstream(p *core.Project, modelID, column string, maxDepth int) []TraceStep {
	return trace(p, modelID, column, maxDepth, func(c *core.Column) []core.ColumnReference {
		return c.Upstream
	})
}

// TraceDownstream is TraceUpstream over downstream edges: every column that
// derives from the given one.
func TraceDownstream(p *core.Project, modelID, column string, maxDepth int) []TraceStep {
	return trace(p, modelID, column, maxDepth, func(c *core.Column) []core.ColumnReference {
		return c.Downstream
	})
}

func trace(p *core.Project, modelID, column string, maxDepth int, next func(*core.Column) []core.ColumnReference) []TraceStep {
	start := core.ColumnReference{ModelUniqueID: modelID, ColumnName: column}
	if lookupColumn(p, start) == nil {
		return nil
	}

	seen := map[core.ColumnReference]bool{start: true}
	frontier := []core.ColumnReference{start}
	var steps []TraceStep
	for depth := 1; len(frontier) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
		var following []core.ColumnReference
		for _, from := range frontier {
			col := lookupColumn(p, from)
			if col == nil {
				continue
			}
			for _, ref := range next(col) {
				if seen[ref] {
					continue
				}
				seen[ref] = true
				steps = append(steps, TraceStep{Depth: depth, Ref: ref, From: from})
				following = append(following, ref)
			}
		}
		frontier = following
	}
	return steps
}

func lookupColumn(p *core.Project, ref core.ColumnReference) *core.Column {
	m, ok := p.GetModel(ref.ModelUniqueID)
	if !ok {
		return nil
	}
	return m.Columns[ref.ColumnName]
}
