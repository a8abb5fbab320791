package lineage

import (
	"strings"

	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
)

// UnknownType is the type recorded for every catalog column.
const UnknownType = "UNKNOWN"

// BuildCatalog returns the schema the SQL resolver sees: lower-cased model
// name to lower-cased column name. Models without columns map to an empty
// table. When names clash the columns come from the model modelIndex picks.
func BuildCatalog(p *core.Project) sqllineage.Schema {
	index := modelIndex(p)
	schema := make(sqllineage.Schema, len(index))
	for name, id := range index {
		m := p.Models[id]
		table := make(map[string]string, len(m.Columns))
		for column := range m.Columns {
			table[strings.ToLower(column)] = UnknownType
		}
		schema[name] = table
	}
	return schema
}

// modelIndex maps lower-cased model names to unique ids. On name clashes the
// smallest id wins.
func modelIndex(p *core.Project) map[string]string {
	index := make(map[string]string, len(p.Models))
	for _, id := range p.ModelIDs() {
		key := strings.ToLower(p.Models[id].Name)
		if _, ok := index[key]; !ok {
			index[key] = id
		}
	}
	return index
}
