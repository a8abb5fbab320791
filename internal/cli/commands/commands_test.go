package commands

import (
	"testing"

	"github.com/leapstack-labs/modaryn/internal/cli/config"
	"github.com/leapstack-labs/modaryn/internal/dag"
	"github.com/leapstack-labs/modaryn/internal/state"
	"github.com/leapstack-labs/modaryn/internal/testutil"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewScanCommand(), "scan", []string{"output"}},
		{NewScoreCommand(), "score", []string{"output", "save"}},
		{NewLineageCommand(), "lineage <model> [column]", []string{"upstream", "downstream", "depth"}},
		{NewDAGCommand(), "dag [model]", []string{"output"}},
		{NewCheckCommand(), "check", []string{"max-score", "max-zscore", "max-regression"}},
		{NewHistoryCommand(), "history [model]", []string{"limit", "run", "delete"}},
		{NewServeCommand(), "serve", []string{"port", "watch"}},
		{NewWeightsCommand(), "weights", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestLineageArgs(t *testing.T) {
	cmd := NewLineageCommand()

	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"orders"}))
	assert.NoError(t, cmd.Args(cmd, []string{"orders", "id"}))
	assert.Error(t, cmd.Args(cmd, []string{"orders", "id", "extra"}))
}

func scored(raw map[string]float64, zscore map[string]float64) *core.Project {
	var models []*core.Model
	for name, score := range raw {
		m := testutil.NewModel(name, "")
		m.RawScore = score
		m.Score = score
		if z, ok := zscore[name]; ok {
			m.Score = z
		}
		models = append(models, m)
	}
	p := testutil.NewProject(models...)
	p.Statistics = &core.ScoreStatistics{ZScoreApplied: zscore != nil}
	return p
}

func TestEvaluate(t *testing.T) {
	p := scored(
		map[string]float64{"a": 50, "b": 10, "c": 30},
		map[string]float64{"a": 1.3, "b": -1.1, "c": -0.2},
	)

	t.Run("score", func(t *testing.T) {
		got := Evaluate(p, config.CheckConfig{MaxScore: 20}, nil)
		assert.Equal(t, []Violation{
			{Model: "a", Rule: "score", Value: 50, Threshold: 20},
			{Model: "c", Rule: "score", Value: 30, Threshold: 20},
		}, got)
	})

	t.Run("zscore", func(t *testing.T) {
		got := Evaluate(p, config.CheckConfig{MaxZScore: 1}, nil)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].Model)
		assert.Equal(t, "zscore", got[0].Rule)
	})

	t.Run("regression", func(t *testing.T) {
		baseline := map[string]*state.ModelScore{
			testutil.ModelID("a"): {RawScore: 40},
			testutil.ModelID("b"): {RawScore: 9},
		}
		got := Evaluate(p, config.CheckConfig{MaxRegression: 5}, baseline)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].Model)
		assert.Equal(t, "regression", got[0].Rule)
		assert.InDelta(t, 10.0, got[0].Value, 1e-9)
	})

	t.Run("ordered by model then rule", func(t *testing.T) {
		got := Evaluate(p, config.CheckConfig{MaxScore: 20, MaxZScore: 1}, nil)
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].Model)
		assert.Equal(t, "score", got[0].Rule)
		assert.Equal(t, "zscore", got[1].Rule)
		assert.Equal(t, "c", got[2].Model)
	})

	t.Run("within thresholds", func(t *testing.T) {
		assert.Empty(t, Evaluate(p, config.CheckConfig{MaxScore: 100, MaxZScore: 5}, nil))
	})
}

func TestEvaluate_ZScoreNeedsNormalization(t *testing.T) {
	p := scored(map[string]float64{"a": 50}, nil)

	assert.Empty(t, Evaluate(p, config.CheckConfig{MaxZScore: 1}, nil))
}

func TestGateError(t *testing.T) {
	err := &GateError{Violations: []Violation{
		{Model: "a", Rule: "score", Value: 50, Threshold: 20},
		{Model: "c", Rule: "regression", Value: 7.5, Threshold: 5},
	}}

	assert.Equal(t, "2 check violation(s):\n  a: score 50.00 exceeds 20.00\n  c: regression 7.50 exceeds 5.00", err.Error())
}

func TestLimitDepth(t *testing.T) {
	p := testutil.NewProject(
		testutil.NewModel("a", ""),
		testutil.DependsOn(testutil.NewModel("b", ""), "a"),
		testutil.DependsOn(testutil.NewModel("c", ""), "b"),
		testutil.DependsOn(testutil.NewModel("d", ""), "c", "a"),
	)
	g := dag.FromProject(p)
	id := testutil.ModelID

	assert.ElementsMatch(t, []string{id("b"), id("d")}, limitDepth(g, id("a"), 1, g.Children))
	assert.ElementsMatch(t, []string{id("b"), id("c"), id("d")}, limitDepth(g, id("a"), 0, g.Children))
	assert.ElementsMatch(t, []string{id("a"), id("c")}, limitDepth(g, id("d"), 1, g.Parents))
	assert.Empty(t, limitDepth(g, id("a"), 0, g.Parents))
}

func TestFocusProject(t *testing.T) {
	p := testutil.NewProject(
		testutil.NewModel("a", ""),
		testutil.DependsOn(testutil.NewModel("b", ""), "a"),
		testutil.NewModel("other", ""),
	)
	p.Statistics = &core.ScoreStatistics{Mean: 1}
	g := dag.FromProject(p).Neighborhood(testutil.ModelID("b"))

	focus := focusProject(p, g)

	assert.Equal(t, []string{testutil.ModelID("a"), testutil.ModelID("b")}, focus.ModelIDs())
	assert.Same(t, p.Statistics, focus.Statistics)
	assert.Len(t, p.Models[testutil.ModelID("a")].Children, 1)
	assert.Len(t, p.Models, 3)
}

func TestModelLineage(t *testing.T) {
	a := testutil.NewModel("a", "", "id")
	b := testutil.DependsOn(testutil.NewModel("b", "", "id"), "a")
	b.Columns["id"].Upstream = []core.ColumnReference{{ModelUniqueID: a.UniqueID, ColumnName: "id"}}
	p := testutil.NewProject(a, b)

	l := modelLineage(p, b, &LineageOptions{Upstream: true})

	assert.Equal(t, b.UniqueID, l.Model)
	assert.Equal(t, []string{a.UniqueID}, l.Upstream)
	assert.Empty(t, l.Downstream)
	assert.Equal(t, []core.ColumnReference{{ModelUniqueID: a.UniqueID, ColumnName: "id"}}, l.Columns["id"])
}
