package lineage

import "github.com/leapstack-labs/modaryn/pkg/core"

// AddColumnEdge records that targetColumn of the target model is derived from
// sourceColumn of the source model. The upstream reference and its
// downstream reciprocal are added together and only once. It reports whether
// an edge was added; unknown models or columns are ignored.
func AddColumnEdge(p *core.Project, targetID, targetColumn, sourceID, sourceColumn string) bool {
	target, ok := p.GetModel(targetID)
	if !ok {
		return false
	}
	source, ok := p.GetModel(sourceID)
	if !ok {
		return false
	}
	tcol, ok := target.Columns[targetColumn]
	if !ok {
		return false
	}
	scol, ok := source.Columns[sourceColumn]
	if !ok {
		return false
	}

	up := core.ColumnReference{ModelUniqueID: sourceID, ColumnName: sourceColumn}
	if tcol.HasUpstream(up) {
		return false
	}
	tcol.Upstream = append(tcol.Upstream, up)

	down := core.ColumnReference{ModelUniqueID: targetID, ColumnName: targetColumn}
	if !scol.HasDownstream(down) {
		scol.Downstream = append(scol.Downstream, down)
	}
	return true
}
