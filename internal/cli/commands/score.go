package commands

import (
	"fmt"

	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/spf13/cobra"
)

// ScoreOptions holds options for the score command.
type ScoreOptions struct {
	Output string
	Save   bool
}

// NewScoreCommand creates the score command.
func NewScoreCommand() *cobra.Command {
	opts := &ScoreOptions{}

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank models by complexity, importance and test quality",
		Long: `Score every model as a weighted sum of its SQL complexity and
downstream importance minus its test quality, then rank the models.

Scores are normalized to z-scores unless --zscore=false. Weights come from
the built-in defaults overlaid by the file given with --weights.`,
		Example: `  # Rank models
  modaryn score

  # Raw scores with custom weights
  modaryn score --zscore=false --weights weights.yml

  # Write an HTML report (default file modaryn_report.html)
  modaryn score --format html

  # Save the run for history and regression checks
  modaryn score --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScore(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the report to a file")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the run to the state database")
	return cmd
}

func runScore(cmd *cobra.Command, opts *ScoreOptions) error {
	ctx := cmd.Context()
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	p, err := cc.ScoreProject(ctx)
	if err != nil {
		return err
	}

	if opts.Save {
		store, err := cc.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		run, err := store.SaveRun(ctx, p, cc.Dialect.Name)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		cc.Logger.Info("saved run", "id", run.ID, "path", store.Path())
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", run.ID)
	}

	done, err := cc.redirect(cmd, opts.Output, output.DefaultHTMLFile)
	if err != nil {
		return err
	}
	if err := cc.Renderer.Score(p); err != nil {
		_ = done()
		return err
	}
	return done()
}
