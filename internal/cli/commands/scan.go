package commands

import (
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/spf13/cobra"
)

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report SQL complexity and downstream usage of every model",
		Long: `Load the dbt manifest, resolve column lineage and report the SQL
complexity (JOINs, CTEs, conditionals, WHERE clauses, characters) and
downstream usage of each model, most depended-on first.`,
		Example: `  # Scan the dbt project in the current directory
  modaryn scan

  # Use a manifest from another location
  modaryn scan --manifest-path path/to/target/manifest.json

  # Markdown for a pull request comment
  modaryn scan --format markdown > scan.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			p, err := cc.LoadProject(cmd.Context())
			if err != nil {
				return err
			}
			done, err := cc.redirect(cmd, outFile, output.DefaultHTMLFile)
			if err != nil {
				return err
			}
			if err := cc.Renderer.Scan(p); err != nil {
				_ = done()
				return err
			}
			return done()
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the report to a file")
	return cmd
}
