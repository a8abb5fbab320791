package lineage

import (
	"sort"
	"strings"
)

// Schema maps table name -> column name -> type. Lookups are
// case-insensitive; keys are expected in lower case.
type Schema map[string]map[string]string

// Table returns the columns of a table.
func (s Schema) Table(name string) (map[string]string, bool) {
	if s == nil {
		return nil, false
	}
	if cols, ok := s[name]; ok {
		return cols, true
	}
	cols, ok := s[strings.ToLower(name)]
	return cols, ok
}

// HasColumn reports whether table has column, ignoring case.
func (s Schema) HasColumn(table, column string) bool {
	cols, ok := s.Table(table)
	if !ok {
		return false
	}
	if _, ok := cols[column]; ok {
		return true
	}
	_, ok = cols[strings.ToLower(column)]
	return ok
}

// Columns returns the sorted column names of a table.
func (s Schema) Columns(table string) []string {
	cols, _ := s.Table(table)
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
