package commands

import (
	"github.com/leapstack-labs/modaryn/internal/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewWeightsCommand creates the weights command.
func NewWeightsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "weights",
		Short: "Show the effective scoring weights",
		Long: `Print the weights used by score and check: the built-in defaults
overlaid by the file given with --weights. The YAML output is a valid
weights file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			s, err := cc.Scorer()
			if err != nil {
				return err
			}
			if cc.Renderer.Mode() == output.ModeJSON {
				return cc.Renderer.JSON(s.Weights())
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(s.Weights()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
