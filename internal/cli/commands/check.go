package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/modaryn/internal/cli/config"
	"github.com/leapstack-labs/modaryn/internal/state"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/spf13/cobra"
)

// Violation is one model exceeding a check threshold.
type Violation struct {
	Model     string  `json:"model"`
	Rule      string  `json:"rule"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s %.2f exceeds %.2f", v.Model, v.Rule, v.Value, v.Threshold)
}

// GateError is returned by check when at least one model fails a threshold.
type GateError struct {
	Violations []Violation
}

func (e *GateError) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%d check violation(s):\n  %s", len(e.Violations), strings.Join(lines, "\n  "))
}

// errNoThresholds is returned when check runs without any threshold set.
var errNoThresholds = errors.New("no check thresholds configured (use --max-score, --max-zscore or --max-regression)")

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fail when model scores exceed thresholds",
		Long: `Score the project and fail when a model exceeds a threshold. Use it
as a CI gate.

  --max-score       raw score limit
  --max-zscore      z-score limit (requires z-score normalization)
  --max-regression  limit on the raw score increase since the latest saved run

Thresholds can also be set under check: in modaryn.yaml.`,
		Example: `  # Fail on any model with a raw score above 40
  modaryn check --max-score 40

  # Fail on score increases above 5 since the last "modaryn score --save"
  modaryn check --max-regression 5`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}

	cmd.Flags().Float64("max-score", 0, "Maximum raw score (0 = disabled)")
	cmd.Flags().Float64("max-zscore", 0, "Maximum z-score (0 = disabled)")
	cmd.Flags().Float64("max-regression", 0, "Maximum raw score increase since the latest saved run (0 = disabled)")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	limits := cc.Cfg.Check
	if limits.MaxScore == 0 && limits.MaxZScore == 0 && limits.MaxRegression == 0 {
		return errNoThresholds
	}

	p, err := cc.ScoreProject(ctx)
	if err != nil {
		return err
	}

	var baseline map[string]*state.ModelScore
	if limits.MaxRegression > 0 {
		store, err := cc.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		run, err := store.LatestRun(ctx)
		switch {
		case errors.Is(err, state.ErrNoRuns):
			cc.Renderer.Warning("no saved run to compare against, skipping regression check")
		case err != nil:
			return err
		default:
			if baseline, err = store.RunScores(ctx, run.ID); err != nil {
				return err
			}
		}
	}

	violations := Evaluate(p, limits, baseline)
	if len(violations) == 0 {
		cc.Renderer.Success(fmt.Sprintf("%d models within thresholds", len(p.Models)))
		return nil
	}

	rows := make([][]any, len(violations))
	for i, v := range violations {
		rows[i] = []any{v.Model, v.Rule, fmt.Sprintf("%.2f", v.Value), fmt.Sprintf("%.2f", v.Threshold)}
	}
	if err := cc.Renderer.Table([]string{"Model", "Rule", "Value", "Threshold"}, rows); err != nil {
		return err
	}
	return &GateError{Violations: violations}
}

// Evaluate returns the threshold violations of a scored project, ordered by
// model name then rule. baseline maps model ids to their scores in an
// earlier run; models missing from it are not checked for regression.
func Evaluate(p *core.Project, limits config.CheckConfig, baseline map[string]*state.ModelScore) []Violation {
	var out []Violation
	for _, m := range p.SortedByScore() {
		if limits.MaxScore > 0 && m.RawScore > limits.MaxScore {
			out = append(out, Violation{Model: m.Name, Rule: "score", Value: m.RawScore, Threshold: limits.MaxScore})
		}
		if limits.MaxZScore > 0 && p.Statistics != nil && p.Statistics.ZScoreApplied && m.Score > limits.MaxZScore {
			out = append(out, Violation{Model: m.Name, Rule: "zscore", Value: m.Score, Threshold: limits.MaxZScore})
		}
		if prev, ok := baseline[m.UniqueID]; ok && limits.MaxRegression > 0 {
			if delta := m.RawScore - prev.RawScore; delta > limits.MaxRegression {
				out = append(out, Violation{Model: m.Name, Rule: "regression", Value: delta, Threshold: limits.MaxRegression})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}
