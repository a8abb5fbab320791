// Package loader builds a Project from a compiled dbt project: the
// manifest.json under the target directory, dbt_project.yml and the
// compiled SQL files.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/leapstack-labs/modaryn/internal/complexity"
	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"golang.org/x/sync/errgroup"
)

// ManifestFileName is the manifest file inside the target directory.
const ManifestFileName = "manifest.json"

// Options configures a Loader.
type Options struct {
	// ProjectDir holds dbt_project.yml. Defaults to the working directory.
	ProjectDir string
	// ManifestPath overrides <target>/manifest.json. A directory is taken
	// as the target directory.
	ManifestPath string
	// Dialect parses model SQL for complexity and column inference.
	Dialect *sqllineage.Dialect
	Logger  *slog.Logger
	// Concurrency bounds the number of models read at once.
	Concurrency int
}

// Loader reads dbt projects.
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Loader.
func New(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Dialect == nil {
		opts.Dialect = sqllineage.BigQuery
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	return &Loader{opts: opts, logger: logger}
}

// ManifestPath returns the manifest file the loader reads.
func (l *Loader) ManifestPath() (string, error) {
	_, manifestPath, err := l.paths()
	return manifestPath, err
}

// paths resolves the target directory and the manifest file.
func (l *Loader) paths() (targetDir, manifestPath string, err error) {
	if p := l.opts.ManifestPath; p != "" {
		info, statErr := os.Stat(p)
		if statErr == nil && info.IsDir() {
			return p, filepath.Join(p, ManifestFileName), nil
		}
		return filepath.Dir(p), p, nil
	}
	pf, err := ReadProjectFile(l.opts.ProjectDir)
	if err != nil {
		return "", "", err
	}
	targetDir = pf.targetDir(l.opts.ProjectDir)
	return targetDir, filepath.Join(targetDir, ManifestFileName), nil
}

// Load reads the manifest and returns the project with its models,
// dependency links, columns, test counts and complexity metrics. Column
// lineage is not resolved.
func (l *Loader) Load(ctx context.Context) (*core.Project, error) {
	pf, err := ReadProjectFile(l.opts.ProjectDir)
	if err != nil {
		return nil, err
	}
	targetDir, manifestPath, err := l.paths()
	if err != nil {
		return nil, err
	}

	m, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	name := pf.Name
	if name == "" {
		name = m.Metadata.ProjectName
	}

	models := make(map[string]*core.Model)
	nodes := make(map[string]*manifestNode)
	for id := range m.Nodes {
		node := m.Nodes[id]
		if node.ResourceType != "model" {
			continue
		}
		if node.UniqueID == "" {
			node.UniqueID = id
		}
		models[id] = newModel(&node)
		nodes[id] = &node
	}

	if err := l.readSQL(ctx, targetDir, name, models, nodes); err != nil {
		return nil, err
	}
	applyTests(m, models)

	l.logger.Debug("loaded manifest", "path", manifestPath, "models", len(models), "dbt_version", m.Metadata.DbtVersion)
	return core.NewProject(name, models), nil
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{File: path, Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return &m, nil
}

func newModel(node *manifestNode) *core.Model {
	model := core.NewModel(node.UniqueID, node.Name)
	model.FilePath = node.OriginalFilePath
	if model.FilePath == "" {
		model.FilePath = node.Path
	}
	model.Description = node.Description
	model.Materialized = node.Config.Materialized
	model.Tags = node.Tags
	for _, dep := range node.DependsOn.Nodes {
		if isModelID(dep) {
			model.Dependencies = append(model.Dependencies, dep)
		}
	}
	for key, col := range node.Columns {
		name := col.Name
		if name == "" {
			name = key
		}
		c := model.AddColumn(name)
		c.Description = col.Description
		c.DataType = col.DataType
	}
	return model
}

func isModelID(id string) bool {
	return strings.HasPrefix(id, "model.")
}

// readSQL fills in SQL, inferred columns and complexity for every model.
func (l *Loader) readSQL(ctx context.Context, targetDir, project string, models map[string]*core.Model, nodes map[string]*manifestNode) error {
	ids := make([]string, 0, len(models))
	for id := range models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for _, id := range ids {
		model, node := models[id], nodes[id]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sql, err := compiledSQL(targetDir, project, node)
			if err != nil {
				return err
			}
			model.RawSQL = sql
			l.analyzeSQL(model)
			return nil
		})
	}
	return g.Wait()
}

// compiledSQL returns the SQL of a model node: the compiled file when
// present, otherwise the SQL embedded in the manifest.
func compiledSQL(targetDir, project string, node *manifestNode) (string, error) {
	pkg := node.PackageName
	if pkg == "" {
		pkg = project
	}
	var candidates []string
	if node.OriginalFilePath != "" {
		candidates = append(candidates, filepath.Join(targetDir, "compiled", pkg, filepath.FromSlash(node.OriginalFilePath)))
	}
	if node.Path != "" {
		candidates = append(candidates, filepath.Join(targetDir, "compiled", pkg, "models", filepath.FromSlash(node.Path)))
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path) //nolint:gosec // path is derived from the manifest
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to read compiled SQL for %s: %w", node.UniqueID, err)
		}
	}
	return node.compiled(), nil
}

// analyzeSQL computes complexity and infers columns when none are declared.
func (l *Loader) analyzeSQL(model *core.Model) {
	if strings.TrimSpace(model.RawSQL) == "" {
		model.Complexity = &core.SQLComplexity{}
		return
	}
	c, stmt, err := complexity.Analyze(model.RawSQL, l.opts.Dialect)
	model.Complexity = c
	if err != nil {
		l.logger.Debug("model SQL does not parse", "model", model.UniqueID, "error", err)
		return
	}
	if len(model.Columns) > 0 {
		return
	}
	for _, name := range sqllineage.OutputColumns(stmt) {
		if name == "" || strings.HasSuffix(name, "*") {
			continue
		}
		model.AddColumn(name)
	}
}

// applyTests counts test nodes against the models and columns they test.
func applyTests(m *manifest, models map[string]*core.Model) {
	for id := range m.Nodes {
		node := m.Nodes[id]
		if node.ResourceType != "test" {
			continue
		}
		modelID, column := node.testTarget()
		model, ok := models[modelID]
		if !ok {
			continue
		}
		model.TestCount++
		if column == "" {
			continue
		}
		if c, ok := model.Columns[column]; ok {
			c.TestCount++
			continue
		}
		for name, c := range model.Columns {
			if strings.EqualFold(name, column) {
				c.TestCount++
				break
			}
		}
	}
}
