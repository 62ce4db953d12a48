package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/bootstrap"
)

func newReindexCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Ask the analysis service to rebuild its article index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, flags, func(ctx context.Context, c *bootstrap.Components) error {
				count, err := c.Service.Reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s articles.\n", humanize.Comma(int64(count)))
				return nil
			})
		},
	}
}
