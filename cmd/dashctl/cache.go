package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/bootstrap"
)

func newCacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the relationship snapshot cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Describe the cached snapshot without calling the analysis service",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withComponents(cmd, flags, func(ctx context.Context, c *bootstrap.Components) error {
					out := cmd.OutOrStdout()
					view, ok := c.Service.CachedRelationships(ctx)
					if !ok {
						fmt.Fprintln(out, "Cache is empty.")
						return nil
					}
					fmt.Fprintf(out, "Snapshot %s: %d relationships, %d entities\n",
						snapshotAge(view.Timestamp, time.Now()),
						len(view.Relationships),
						len(view.Nodes),
					)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the cached snapshot",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withComponents(cmd, flags, func(ctx context.Context, c *bootstrap.Components) error {
					if err := c.Service.ClearCache(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
					return nil
				})
			},
		},
	)
	return cmd
}
