package main

import (
	"context"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/bootstrap"
)

func newEntitiesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the entity catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, flags, func(_ context.Context, c *bootstrap.Components) error {
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.SetHeader([]string{"ID", "Name", "Type", "Aliases"})
				table.SetAutoWrapText(false)
				for _, e := range c.Catalog.All() {
					table.Append([]string{e.ID, e.NameEN, e.Type, strings.Join(e.Aliases, ", ")})
				}
				table.Render()
				return nil
			})
		},
	}
}
