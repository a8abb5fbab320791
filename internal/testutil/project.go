package testutil

import "github.com/leapstack-labs/modaryn/pkg/core"

// ModelID returns the unique id NewModel assigns to name.
func ModelID(name string) string {
	return "model.test." + name
}

// NewModel returns a model named name with the given SQL and columns.
func NewModel(name, sql string, columns ...string) *core.Model {
	m := core.NewModel(ModelID(name), name)
	m.RawSQL = sql
	for _, c := range columns {
		m.AddColumn(c)
	}
	return m
}

// DependsOn sets the dependencies of m to the ids of the named models and
// returns m.
func DependsOn(m *core.Model, names ...string) *core.Model {
	for _, n := range names {
		m.Dependencies = append(m.Dependencies, ModelID(n))
	}
	return m
}

// NewProject builds a project named "test" from models.
func NewProject(models ...*core.Model) *core.Project {
	byID := make(map[string]*core.Model, len(models))
	for _, m := range models {
		byID[m.UniqueID] = m
	}
	return core.NewProject("test", byID)
}
