package core

import (
	"fmt"
	"sort"
)

// ColumnReference identifies a column of a model. It is the payload of a
// lineage edge; its direction depends on the list it sits in.
type ColumnReference struct {
	ModelUniqueID string `json:"model_unique_id"`
	ColumnName    string `json:"column_name"`
}

func (r ColumnReference) String() string {
	return fmt.Sprintf("%s.%s", r.ModelUniqueID, r.ColumnName)
}

// Column is a declared or observed output column of a model.
type Column struct {
	Name        string
	Description string
	DataType    string
	// TestCount is the number of data tests attached to the column.
	TestCount int
	// Upstream lists the columns this column was derived from, in discovery
	// order, without duplicates.
	Upstream []ColumnReference
	// Downstream lists the columns derived from this column.
	Downstream []ColumnReference
}

// HasUpstream reports whether ref is already recorded as an upstream edge.
func (c *Column) HasUpstream(ref ColumnReference) bool {
	for _, existing := range c.Upstream {
		if existing == ref {
			return true
		}
	}
	return false
}

// HasDownstream reports whether ref is already recorded as a downstream edge.
func (c *Column) HasDownstream(ref ColumnReference) bool {
	for _, existing := range c.Downstream {
		if existing == ref {
			return true
		}
	}
	return false
}

// SQLComplexity holds the static complexity metrics of a model's SQL.
type SQLComplexity struct {
	JoinCount        int `json:"join_count"`
	CTECount         int `json:"cte_count"`
	ConditionalCount int `json:"conditional_count"`
	WhereCount       int `json:"where_count"`
	SQLCharCount     int `json:"sql_char_count"`
}

// Model is a single SQL transformation unit of a project.
type Model struct {
	// UniqueID is the manifest node id, e.g. "model.shop.orders".
	UniqueID string
	// Name is the display name, matched case-insensitively against table
	// references in SQL.
	Name string
	// FilePath is the original path of the model relative to the project.
	FilePath string
	// RawSQL is the compiled SQL text; it may be empty.
	RawSQL string
	// Columns maps column name (as declared) to column.
	Columns map[string]*Column
	// Dependencies are the unique ids the model was compiled against.
	Dependencies []string
	// Parents and Children are derived from Dependencies by Project.BuildDAG.
	Parents  map[string]*Model
	Children map[string]*Model

	Description  string
	Materialized string
	Tags         []string
	// TestCount is the number of data tests attached to the model or any of
	// its columns.
	TestCount int

	Complexity   *SQLComplexity
	RawScore     float64
	Score        float64
	QualityScore float64
}

// NewModel returns a model with initialized maps.
func NewModel(uniqueID, name string) *Model {
	return &Model{
		UniqueID: uniqueID,
		Name:     name,
		Columns:  make(map[string]*Column),
		Parents:  make(map[string]*Model),
		Children: make(map[string]*Model),
	}
}

// AddColumn registers a column and returns it. An existing column with the
// same name is returned unchanged.
func (m *Model) AddColumn(name string) *Column {
	if m.Columns == nil {
		m.Columns = make(map[string]*Column)
	}
	if c, ok := m.Columns[name]; ok {
		return c
	}
	c := &Column{Name: name}
	m.Columns[name] = c
	return c
}

// ColumnNames returns the column names in sorted order.
func (m *Model) ColumnNames() []string {
	names := make([]string, 0, len(m.Columns))
	for name := range m.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnCount returns the number of columns.
func (m *Model) ColumnCount() int {
	return len(m.Columns)
}

// DownstreamModelCount returns the number of direct children.
func (m *Model) DownstreamModelCount() int {
	return len(m.Children)
}

// DownstreamColumnCount returns the number of downstream column edges summed
// over all columns.
func (m *Model) DownstreamColumnCount() int {
	n := 0
	for _, c := range m.Columns {
		n += len(c.Downstream)
	}
	return n
}

// UpstreamColumnCount returns the number of upstream column edges summed over
// all columns.
func (m *Model) UpstreamColumnCount() int {
	n := 0
	for _, c := range m.Columns {
		n += len(c.Upstream)
	}
	return n
}

// TestedColumnCount returns the number of columns with at least one test.
func (m *Model) TestedColumnCount() int {
	n := 0
	for _, c := range m.Columns {
		if c.TestCount > 0 {
			n++
		}
	}
	return n
}

// ColumnTestCoverage returns the percentage of tested columns, 0 for a model
// without columns.
func (m *Model) ColumnTestCoverage() float64 {
	if len(m.Columns) == 0 {
		return 0
	}
	return float64(m.TestedColumnCount()) / float64(len(m.Columns)) * 100
}

// ParentIDs returns the unique ids of the parents in sorted order.
func (m *Model) ParentIDs() []string {
	return sortedKeys(m.Parents)
}

// ChildIDs returns the unique ids of the children in sorted order.
func (m *Model) ChildIDs() []string {
	return sortedKeys(m.Children)
}

func sortedKeys(models map[string]*Model) []string {
	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
