package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/bootstrap"
	"github.com/sydialogue/dashboard/pkg/config"
	"github.com/sydialogue/dashboard/pkg/logger"
)

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Inspect and maintain the Syria dialogue dashboard backend",
		Long: `dashctl talks to the same analysis service and snapshot cache as the API
server, using the same config.yaml and DASHBOARD_* environment variables.

Examples:
  dashctl normalize sentiment response.json
  dashctl relationships --refresh
  dashctl cache show
  dashctl cache clear --config /etc/dashboard/config.yaml`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newNormalizeCmd(),
		newRelationshipsCmd(flags),
		newCacheCmd(flags),
		newEntitiesCmd(flags),
		newReindexCmd(flags),
	)
	return cmd
}

// loadComponents reads configuration and connects the configured backends.
// Graph export is left off: the CLI exits before an export would finish.
func loadComponents(ctx context.Context, flags *rootFlags) (*bootstrap.Components, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.verbose {
		if err := logger.Init(logger.Options{
			Level:      cfg.Logging.Level,
			Format:     "console",
			OutputPath: "stderr",
		}); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	cfg.Neo4j.Enabled = false
	return bootstrap.New(ctx, cfg)
}

func withComponents(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, c *bootstrap.Components) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	c, err := loadComponents(ctx, flags)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	return fn(ctx, c)
}
