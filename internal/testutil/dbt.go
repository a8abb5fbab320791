package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// FixtureModel describes a model written by WriteDbtProject.
type FixtureModel struct {
	Name      string
	SQL       string
	Columns   []string
	DependsOn []string
	// Tests maps a column name to the number of tests on it. The empty
	// column name counts model level tests.
	Tests map[string]int
	// Embed puts the SQL into the manifest instead of a compiled file.
	Embed bool
}

// WriteDbtProject writes dbt_project.yml, target/manifest.json and the
// compiled SQL of models to a new temporary directory and returns it.
func WriteDbtProject(t testing.TB, project string, models ...FixtureModel) string {
	t.Helper()
	dir := t.TempDir()

	pf, err := yaml.Marshal(map[string]any{
		"name":        project,
		"version":     "1.0.0",
		"target-path": "target",
	})
	if err != nil {
		t.Fatalf("marshal dbt_project.yml: %v", err)
	}
	writeFile(t, filepath.Join(dir, "dbt_project.yml"), pf)

	nodes := make(map[string]any)
	for _, m := range models {
		id := "model." + project + "." + m.Name
		path := m.Name + ".sql"

		columns := make(map[string]any, len(m.Columns))
		for _, c := range m.Columns {
			columns[c] = map[string]any{"name": c, "description": "", "data_type": nil}
		}
		deps := make([]string, 0, len(m.DependsOn))
		for _, d := range m.DependsOn {
			deps = append(deps, "model."+project+"."+d)
		}

		node := map[string]any{
			"unique_id":          id,
			"name":               m.Name,
			"resource_type":      "model",
			"package_name":       project,
			"path":               path,
			"original_file_path": "models/" + path,
			"config":             map[string]any{"materialized": "view"},
			"columns":            columns,
			"depends_on":         map[string]any{"nodes": deps},
			"raw_code":           "-- jinja source of " + m.Name,
		}
		if m.Embed {
			node["compiled_code"] = m.SQL
		} else {
			writeFile(t, filepath.Join(dir, "target", "compiled", project, "models", path), []byte(m.SQL))
		}
		nodes[id] = node

		i := 0
		for column, n := range m.Tests {
			for range n {
				i++
				testID := fmt.Sprintf("test.%s.%s_%s_%d", project, m.Name, column, i)
				test := map[string]any{
					"unique_id":     testID,
					"name":          testID,
					"resource_type": "test",
					"attached_node": id,
					"depends_on":    map[string]any{"nodes": []string{id}},
				}
				if column != "" {
					test["column_name"] = column
				}
				nodes[testID] = test
			}
		}
	}

	data, err := json.MarshalIndent(map[string]any{
		"metadata": map[string]any{"project_name": project, "dbt_version": "1.8.0"},
		"nodes":    nodes,
	}, "", "  ")
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	writeFile(t, filepath.Join(dir, "target", "manifest.json"), data)
	return dir
}

func writeFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
