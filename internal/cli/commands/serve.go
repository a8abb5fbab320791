package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/modaryn/internal/server"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the score report, model graph and JSON API",
		Long: `Start an HTTP server with the score report at /, the model graph at
/graph and a JSON API under /api. With --watch the project is analyzed again
whenever the manifest changes.`,
		Example: `  # Serve on the default port
  modaryn serve

  # Re-analyze after every "dbt compile"
  modaryn serve --watch --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			manifest, err := cc.Loader().ManifestPath()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				Load: func(ctx context.Context) (*core.Project, error) {
					return cc.ScoreProject(ctx)
				},
				Port:       cc.Cfg.Serve.Port,
				Watch:      cc.Cfg.Serve.Watch,
				WatchFiles: []string{manifest},
				Logger:     cc.Logger,
			})
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().Int("port", server.DefaultPort, "Port to listen on")
	cmd.Flags().Bool("watch", false, "Re-analyze when the manifest changes")
	return cmd
}
