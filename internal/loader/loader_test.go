package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/modaryn/internal/testutil"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopProject(t *testing.T) string {
	t.Helper()
	return testutil.WriteDbtProject(t, "shop",
		testutil.FixtureModel{
			Name:    "stg_orders",
			SQL:     "SELECT id, customer_id, amount FROM raw.orders WHERE amount > 0",
			Columns: []string{"id", "customer_id", "amount"},
			Tests:   map[string]int{"id": 2, "": 1},
		},
		testutil.FixtureModel{
			Name:      "orders",
			SQL:       "WITH o AS (SELECT * FROM stg_orders) SELECT o.id, o.amount * 2 AS doubled, CASE WHEN amount > 10 THEN 1 END AS big FROM o",
			DependsOn: []string{"stg_orders"},
		},
		testutil.FixtureModel{
			Name:      "embedded",
			SQL:       "SELECT id FROM stg_orders",
			Columns:   []string{"id"},
			DependsOn: []string{"stg_orders", "missing"},
			Embed:     true,
		},
	)
}

func TestLoad(t *testing.T) {
	dir := shopProject(t)

	p, err := New(Options{ProjectDir: dir, Logger: testutil.NewTestLogger(t)}).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shop", p.Name)
	assert.Equal(t, []string{"model.shop.embedded", "model.shop.orders", "model.shop.stg_orders"}, p.ModelIDs())

	stg := p.Models["model.shop.stg_orders"]
	assert.Equal(t, "models/stg_orders.sql", stg.FilePath)
	assert.Equal(t, "view", stg.Materialized)
	assert.Contains(t, stg.RawSQL, "FROM raw.orders")
	assert.Equal(t, 3, stg.TestCount)
	assert.Equal(t, 2, stg.Columns["id"].TestCount)
	assert.Equal(t, 1, stg.TestedColumnCount())
	assert.Equal(t, 1, stg.Complexity.WhereCount)
	assert.Equal(t, []string{"model.shop.embedded", "model.shop.orders"}, stg.ChildIDs())
}

func TestLoadInfersColumns(t *testing.T) {
	p, err := New(Options{ProjectDir: shopProject(t)}).Load(context.Background())
	require.NoError(t, err)

	orders := p.Models["model.shop.orders"]
	assert.Equal(t, []string{"big", "doubled", "id"}, orders.ColumnNames())
	assert.Equal(t, core.SQLComplexity{
		CTECount:         1,
		ConditionalCount: 2,
		SQLCharCount:     orders.Complexity.SQLCharCount,
	}, *orders.Complexity)
	assert.Positive(t, orders.Complexity.SQLCharCount)
}

func TestLoadEmbeddedSQLAndUnknownDependency(t *testing.T) {
	p, err := New(Options{ProjectDir: shopProject(t)}).Load(context.Background())
	require.NoError(t, err)

	embedded := p.Models["model.shop.embedded"]
	assert.Equal(t, "SELECT id FROM stg_orders", embedded.RawSQL)
	assert.Equal(t, []string{"model.shop.stg_orders", "model.shop.missing"}, embedded.Dependencies)
	assert.Equal(t, []string{"model.shop.stg_orders"}, embedded.ParentIDs())
}

func TestLoadManifestPath(t *testing.T) {
	dir := shopProject(t)
	manifest := filepath.Join(dir, "target", "manifest.json")

	for _, path := range []string{manifest, filepath.Join(dir, "target")} {
		l := New(Options{ManifestPath: path})
		got, err := l.ManifestPath()
		require.NoError(t, err)
		assert.Equal(t, manifest, got)

		p, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "shop", p.Name, "falls back to manifest metadata")
		assert.Contains(t, p.Models["model.shop.stg_orders"].RawSQL, "raw.orders")
	}
}

func TestLoadTargetPath(t *testing.T) {
	dir := shopProject(t)
	require.NoError(t, os.Rename(filepath.Join(dir, "target"), filepath.Join(dir, "build")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("name: shop\ntarget-path: build\n"), 0o600))

	p, err := New(Options{ProjectDir: dir}).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, p.Models, 3)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing manifest", func(t *testing.T) {
		_, err := New(Options{ProjectDir: t.TempDir()}).Load(context.Background())
		assert.ErrorIs(t, err, ErrManifestNotFound)
	})

	t.Run("invalid json", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "manifest.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

		_, err := New(Options{ManifestPath: path}).Load(context.Background())
		var merr *ManifestError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, path, merr.File)
	})

	t.Run("invalid project file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("name: [unterminated"), 0o600))

		_, err := New(Options{ProjectDir: dir}).Load(context.Background())
		var merr *ManifestError
		assert.ErrorAs(t, err, &merr)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(Options{ProjectDir: shopProject(t)}).Load(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTestTarget(t *testing.T) {
	node := manifestNode{ResourceType: "test"}
	node.DependsOn.Nodes = []string{"macro.dbt.test_unique", "model.p.a"}
	node.TestMetadata = &struct {
		Name   string         `json:"name"`
		Kwargs map[string]any `json:"kwargs"`
	}{Name: "unique", Kwargs: map[string]any{"column_name": "id"}}

	model, column := node.testTarget()
	assert.Equal(t, "model.p.a", model)
	assert.Equal(t, "id", column)
}
