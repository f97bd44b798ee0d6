package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/source"
)

func newPreviewCmd() *cobra.Command {
	var mappings []string

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the columns and first row of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := core.ParseMappingPairs(mappings)
			if err != nil {
				return withCode(exitUsage, err)
			}

			src, err := source.Open(args[0])
			if err != nil {
				return err
			}

			sess := core.Session{Source: src, Mapping: mapping}
			preview, err := sess.PreviewRow()
			if err != nil {
				return err
			}

			fields := make(map[string]string, len(mapping))
			for _, fm := range mapping {
				fields[strings.ToLower(fm.Column)] = fm.Field
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tFIELD\tPREVIEW")
			for i, col := range sess.Columns() {
				cell := ""
				if i < len(preview) {
					cell = preview[i]
				}
				field := col
				if len(mapping) > 0 {
					field = fields[strings.ToLower(strings.TrimSpace(col))]
					if field == "" {
						field = "-"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", col, field, cell)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d rows\n", src.RowCount())
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&mappings, "map", nil, "Column=field mapping, repeatable")
	return cmd
}
