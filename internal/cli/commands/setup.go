// Package commands implements the modaryn subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/modaryn/internal/cli/config"
	"github.com/leapstack-labs/modaryn/internal/lineage"
	"github.com/leapstack-labs/modaryn/internal/loader"
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/leapstack-labs/modaryn/internal/scorer"
	"github.com/leapstack-labs/modaryn/internal/state"
	"github.com/leapstack-labs/modaryn/pkg/core"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/spf13/cobra"
)

// CommandContext holds what every command needs.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Dialect  *sqllineage.Dialect
}

// NewCommandContext builds the context of cmd from the loaded config.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	mode, err := output.ParseMode(cfg.Format)
	if err != nil {
		return nil, err
	}
	d, err := sqllineage.LookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
		Dialect:  d,
	}, nil
}

// Loader returns the manifest loader for the configured project.
func (cc *CommandContext) Loader() *loader.Loader {
	return loader.New(loader.Options{
		ProjectDir:   cc.Cfg.ProjectDir,
		ManifestPath: cc.Cfg.ManifestPath,
		Dialect:      cc.Dialect,
		Logger:       cc.Logger,
		Concurrency:  cc.Cfg.Concurrency,
	})
}

// LoadProject loads the project and resolves column lineage.
func (cc *CommandContext) LoadProject(ctx context.Context) (*core.Project, error) {
	p, err := cc.Loader().Load(ctx)
	if err != nil {
		return nil, err
	}
	summary := lineage.New(lineage.Options{Dialect: cc.Dialect, Logger: cc.Logger}).Analyze(p)
	cc.Logger.Info("column lineage resolved", "summary", summary)
	return p, nil
}

// ScoreProject loads, resolves and scores the project.
func (cc *CommandContext) ScoreProject(ctx context.Context) (*core.Project, error) {
	p, err := cc.LoadProject(ctx)
	if err != nil {
		return nil, err
	}
	s, err := cc.Scorer()
	if err != nil {
		return nil, err
	}
	p.Statistics = s.ScoreProject(p)
	return p, nil
}

// Scorer returns a scorer with the configured weights.
func (cc *CommandContext) Scorer() (*scorer.Scorer, error) {
	w := scorer.DefaultWeights()
	if cc.Cfg.Weights != "" {
		var err error
		if w, err = scorer.LoadWeights(cc.Cfg.Weights); err != nil {
			return nil, err
		}
	}
	return scorer.New(scorer.Options{Weights: w, ApplyZScore: cc.Cfg.ApplyZScore, Logger: cc.Logger}), nil
}

// OpenStore opens the state database.
func (cc *CommandContext) OpenStore(ctx context.Context) (*state.SQLiteStore, error) {
	return state.Open(ctx, cc.Cfg.StatePath, cc.Logger)
}

// redirect points the renderer at path, or at defaultPath in HTML mode when
// path is empty. The returned function closes the file.
func (cc *CommandContext) redirect(cmd *cobra.Command, path, defaultPath string) (func() error, error) {
	if path == "" && cc.Renderer.Mode() == output.ModeHTML {
		path = defaultPath
	}
	if path == "" {
		return func() error { return nil }, nil
	}
	f, err := os.Create(path) //nolint:gosec // user-chosen output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	mode := cc.Renderer.Mode()
	cc.Renderer = output.NewRendererWithTTY(f, cmd.ErrOrStderr(), mode, false)
	return func() error {
		if err := f.Close(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
		return nil
	}, nil
}

