package state

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/modaryn/internal/lineage"
	"github.com/leapstack-labs/modaryn/internal/scorer"
	"github.com/leapstack-labs/modaryn/internal/testutil"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "modaryn.db")
	s, err := Open(context.Background(), path, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func scoredProject(t *testing.T) *core.Project {
	t.Helper()
	p := testutil.NewProject(
		testutil.NewModel("orders", "SELECT id, amount FROM raw.orders", "id", "amount"),
		testutil.DependsOn(testutil.NewModel("revenue",
			"SELECT o.id, o.amount * 2 AS total FROM orders o LEFT JOIN raw.fx f ON f.id = o.id WHERE o.amount > 0",
			"id", "total"), "orders"),
	)
	lineage.New(lineage.Options{Logger: testutil.NewTestLogger(t)}).Analyze(p)
	p.Models[testutil.ModelID("revenue")].Complexity = &core.SQLComplexity{JoinCount: 1, WhereCount: 1}
	p.Statistics = scorer.New(scorer.Options{ApplyZScore: true}).ScoreProject(p)
	return p
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	version, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// reopening an existing database is a no-op migration
	require.NoError(t, s.Close())
	s2, err := Open(context.Background(), s.Path(), nil)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.SaveRun(context.Background(), scoredProject(t), "bigquery")
	require.NoError(t, err)
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLatestRun_Empty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := scoredProject(t)

	run, err := s.SaveRun(ctx, p, "bigquery")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "test", run.Project)
	assert.Equal(t, "bigquery", run.Dialect)
	assert.Equal(t, 2, run.ModelCount)
	assert.True(t, run.Statistics.ZScoreApplied)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.InDelta(t, p.Statistics.Mean, latest.Statistics.Mean, 1e-9)
	assert.True(t, run.CreatedAt.Equal(latest.CreatedAt))

	scores, err := s.RunScores(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	rev := scores[testutil.ModelID("revenue")]
	require.NotNil(t, rev)
	assert.Equal(t, "revenue", rev.Name)
	assert.Equal(t, 1, rev.Complexity.JoinCount)
	assert.Equal(t, 1, rev.Complexity.WhereCount)
	assert.InDelta(t, p.Models[testutil.ModelID("revenue")].RawScore, rev.RawScore, 1e-9)
	assert.InDelta(t, p.Models[testutil.ModelID("revenue")].Score, rev.Score, 1e-9)

	orders := scores[testutil.ModelID("orders")]
	require.NotNil(t, orders)
	assert.Equal(t, 1, orders.DownstreamModelCount)
	assert.Equal(t, 2, orders.DownstreamColumnCount)
}

func TestRunEdges(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	run, err := s.SaveRun(ctx, scoredProject(t), "bigquery")
	require.NoError(t, err)

	edges, err := s.RunEdges(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []Edge{
		{
			Source: core.ColumnReference{ModelUniqueID: testutil.ModelID("orders"), ColumnName: "id"},
			Target: core.ColumnReference{ModelUniqueID: testutil.ModelID("revenue"), ColumnName: "id"},
		},
		{
			Source: core.ColumnReference{ModelUniqueID: testutil.ModelID("orders"), ColumnName: "amount"},
			Target: core.ColumnReference{ModelUniqueID: testutil.ModelID("revenue"), ColumnName: "total"},
		},
	}, edges)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := scoredProject(t)

	first, err := s.SaveRun(ctx, p, "bigquery")
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, p, "snowflake")
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, second.ID, limited[0].ID)
}

func TestModelHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := scoredProject(t)

	_, err := s.SaveRun(ctx, p, "bigquery")
	require.NoError(t, err)
	p.Models[testutil.ModelID("revenue")].RawScore = 42
	second, err := s.SaveRun(ctx, p, "bigquery")
	require.NoError(t, err)

	byName, err := s.ModelHistory(ctx, "revenue", 0)
	require.NoError(t, err)
	require.Len(t, byName, 2)
	assert.Equal(t, second.ID, byName[0].RunID)
	assert.InDelta(t, 42.0, byName[0].RawScore, 1e-9)

	byID, err := s.ModelHistory(ctx, testutil.ModelID("revenue"), 1)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, second.ID, byID[0].RunID)

	none, err := s.ModelHistory(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetAndDeleteRun(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	run, err := s.SaveRun(ctx, scoredProject(t), "bigquery")
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	require.NoError(t, s.DeleteRun(ctx, run.ID))
	_, err = s.GetRun(ctx, run.ID)
	assert.Error(t, err)

	scores, err := s.RunScores(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)

	assert.Error(t, s.DeleteRun(ctx, run.ID))
}
