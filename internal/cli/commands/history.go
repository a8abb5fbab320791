package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/leapstack-labs/modaryn/internal/state"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit  int
	Run    string
	Delete string
}

// RunDetail is the history --run JSON output.
type RunDetail struct {
	Run   *state.Run   `json:"run"`
	Edges []state.Edge `json:"edges"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [model]",
		Short: "Show saved runs or the score history of a model",
		Long: `Without arguments, list the runs saved with "modaryn score --save",
newest first. With a model name or unique id, list that model's scores
across the saved runs. --run shows one saved run with its column edges and
--delete removes a run.`,
		Example: `  # Saved runs
  modaryn history

  # Score history of one model
  modaryn history fct_orders --limit 10

  # Column edges recorded by a run
  modaryn history --run 3f2c9a4e-...

  # Remove a run
  modaryn history --delete 3f2c9a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of entries (0 = all)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "Show a saved run and its column edges")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "Delete a saved run")
	cmd.MarkFlagsMutuallyExclusive("run", "delete")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	if (opts.Run != "" || opts.Delete != "") && len(args) > 0 {
		return errors.New("a model cannot be combined with --run or --delete")
	}

	ctx := cmd.Context()
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	store, err := cc.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	r := cc.Renderer
	switch {
	case opts.Delete != "":
		if err := store.DeleteRun(ctx, opts.Delete); err != nil {
			return err
		}
		r.Success("Deleted run " + opts.Delete)
		return nil

	case opts.Run != "":
		run, err := store.GetRun(ctx, opts.Run)
		if err != nil {
			return err
		}
		edges, err := store.RunEdges(ctx, run.ID)
		if err != nil {
			return err
		}
		if r.Mode() == output.ModeJSON {
			if edges == nil {
				edges = []state.Edge{}
			}
			return r.JSON(RunDetail{Run: run, Edges: edges})
		}
		r.Header("run " + run.ID)
		r.Printf("%s  %s  %s  %d models  mean %.2f\n\n", run.CreatedAt.Local().Format(timeFormat),
			run.Project, run.Dialect, run.ModelCount, run.Statistics.Mean)
		rows := make([][]any, len(edges))
		for i, e := range edges {
			rows[i] = []any{e.Target.String(), e.Source.String()}
		}
		return r.Table([]string{"Column", "Upstream"}, rows)

	case len(args) == 0:
		runs, err := store.ListRuns(ctx, opts.Limit)
		if err != nil {
			return err
		}
		if r.Mode() == output.ModeJSON {
			return r.JSON(runs)
		}
		rows := make([][]any, len(runs))
		for i, run := range runs {
			rows[i] = []any{run.ID, run.CreatedAt.Local().Format(timeFormat), run.Project, run.Dialect,
				run.ModelCount, fmt.Sprintf("%.2f", run.Statistics.Mean)}
		}
		return r.Table([]string{"Run", "Date", "Project", "Dialect", "Models", "Mean"}, rows)
	}

	history, err := store.ModelHistory(ctx, args[0], opts.Limit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no saved scores for model: %s", args[0])
	}
	if r.Mode() == output.ModeJSON {
		return r.JSON(history)
	}
	rows := make([][]any, len(history))
	for i, h := range history {
		rows[i] = []any{h.RunAt.Local().Format(timeFormat), fmt.Sprintf("%.2f", h.RawScore), fmt.Sprintf("%.2f", h.Score),
			fmt.Sprintf("%.2f", h.QualityScore), h.Complexity.JoinCount, h.Complexity.CTECount, h.DownstreamModelCount}
	}
	r.Header("history of " + history[0].Name)
	return r.Table([]string{"Date", "Raw Score", "Score", "Quality", "JOINs", "CTEs", "Downstream Models"}, rows)
}
