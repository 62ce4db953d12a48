package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sydialogue/dashboard/internal/entities"
	"github.com/sydialogue/dashboard/internal/normalize"
)

func newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the canonical form of a saved analysis response",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "sentiment FILE",
			Short: "Normalize a sentiment response (use - for stdin)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				report, err := normalize.ParseSentimentPayload(raw)
				if err != nil {
					return err
				}
				entities.EnrichSentiment(report)
				return printJSON(cmd.OutOrStdout(), report)
			},
		},
		&cobra.Command{
			Use:   "relationships FILE",
			Short: "Normalize a relationship response (use - for stdin)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				raw, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				report, err := normalize.NormalizeRelationshipReport(raw)
				if err != nil {
					return err
				}
				entities.Default().Enrich(report)
				return printJSON(cmd.OutOrStdout(), report)
			},
		},
	)
	return cmd
}

func readInput(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return json.RawMessage(data), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
