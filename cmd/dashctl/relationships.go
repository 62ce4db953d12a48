package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/bootstrap"
	"github.com/sydialogue/dashboard/internal/dashboard"
)

func newRelationshipsCmd(flags *rootFlags) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "relationships",
		Short: "Show the relationship map, building it if nothing is cached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withComponents(cmd, flags, func(ctx context.Context, c *bootstrap.Components) error {
				view, err := c.Service.Relationships(ctx, refresh)
				if err != nil {
					return err
				}
				renderRelationships(cmd.OutOrStdout(), view, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "rebuild the map even when a snapshot is cached")
	return cmd
}

func renderRelationships(w io.Writer, view dashboard.RelationshipView, now time.Time) {
	if view.NoData {
		fmt.Fprintln(w, "No relationship data.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Entity 1", "Entity 2", "Type", "Score", "Strength", "Articles", "Evolution"})
	table.SetAutoWrapText(false)
	for _, e := range view.Relationships {
		table.Append([]string{
			displayName(e.Entity1EN, e.Entity1),
			displayName(e.Entity2EN, e.Entity2),
			e.RelationshipType,
			fmt.Sprintf("%+.1f", e.Score),
			fmt.Sprintf("%.2f", e.Strength),
			humanize.Comma(int64(e.ArticleCount)),
			e.Evolution,
		})
	}
	table.Render()

	fmt.Fprintf(w, "%d relationships, %d entities, %s articles analysed (%s, %s)\n",
		len(view.Relationships),
		len(view.Nodes),
		humanize.Comma(int64(view.Stats.TotalArticles)),
		view.Source,
		snapshotAge(view.Timestamp, now),
	)
}

func displayName(en, id string) string {
	if en != "" && en != id {
		return en + " (" + id + ")"
	}
	return id
}

func snapshotAge(timestamp int64, now time.Time) string {
	if timestamp == 0 {
		return "never built"
	}
	return "built " + humanize.RelTime(time.UnixMilli(timestamp), now, "ago", "from now")
}
