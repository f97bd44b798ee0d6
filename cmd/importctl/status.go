package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/stepimport/internal/core"
)

func batchArg(args []string) (string, error) {
	if _, err := uuid.Parse(args[0]); err != nil {
		return "", withCode(exitUsage, fmt.Errorf("invalid batch id %q: %w", args[0], err))
	}
	return args[0], nil
}

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status BATCH",
		Short: "Show the progress of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := batchArg(args)
			if err != nil {
				return err
			}

			d, err := openDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			p, err := core.NewExecutor(d.store, nil).Progress(cmd.Context(), batchID)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %s, %d/%d rows (%.1f%%)\n",
				p.BatchID, p.State, p.Current, p.Total, p.Percent)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the progress as JSON")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge BATCH",
		Short: "Delete the progress counters of a batch without finishing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := batchArg(args)
			if err != nil {
				return err
			}

			d, err := openDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer d.Close()

			if err := core.NewExecutor(d.store, nil).Purge(cmd.Context(), batchID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s: purged\n", batchID)
			return nil
		},
	}
}

func newImportersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "importers",
		Short: "List the entities that can be imported",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, def := range core.All() {
				fields := append([]string(nil), def.Info.Fields...)
				sort.Strings(fields)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					def.Info.Key, def.Info.Label, strings.Join(fields, ","))
			}
			return nil
		},
	}
}
