// Package cli provides the command-line interface for modaryn.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/modaryn/internal/cli/commands"
	"github.com/leapstack-labs/modaryn/internal/cli/config"
	"github.com/leapstack-labs/modaryn/internal/output"
	sqllineage "github.com/leapstack-labs/modaryn/pkg/lineage"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "modaryn",
		Short: "modaryn - column-level lineage and model scoring for dbt",
		Long: `modaryn reads a compiled dbt project, resolves column-level lineage
from each model's SQL and scores models by complexity, importance and test
quality so that the riskiest models surface first.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if f := config.GetConfigFileUsed(); f != "" {
				logger.Debug("using config file", "path", f)
			}

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (%s, %s)\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: modaryn.yaml, searched upward)")
	pf.String("project-dir", "", "dbt project directory containing dbt_project.yml")
	pf.StringP("manifest-path", "m", "", "Path to manifest.json or the target directory")
	pf.StringP("dialect", "d", config.DefaultDialect, "SQL dialect ("+strings.Join(sqllineage.DialectNames(), "|")+")")
	pf.StringP("weights", "w", "", "Weights YAML overlaid on the built-in weights")
	pf.StringP("format", "f", config.DefaultFormat, "Output format (auto|text|markdown|json|html)")
	pf.Bool("zscore", config.DefaultApplyZScore, "Normalize scores to z-scores")
	pf.String("state", "", "Path to the state database (default: .modaryn/state.db)")
	pf.Int("concurrency", 0, "Models read in parallel (0 = number of CPUs)")
	pf.BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return sqllineage.DialectNames(), cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewScoreCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewDAGCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewWeightsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for modaryn.

To load completions:

Bash:
  $ source <(modaryn completion bash)

Zsh:
  $ modaryn completion zsh > "${fpath[1]}/_modaryn"

Fish:
  $ modaryn completion fish | source

PowerShell:
  PS> modaryn completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
