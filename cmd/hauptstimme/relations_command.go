package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hauptstimme/internal/partrelations"
)

// newRelationsCommand recomputes a part-relationship summary from
// previously derived lightweight and annotation artifacts.
func newRelationsCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:         "relations <lightweight.csv> <annotations.csv>",
		Short:       "Summarize part relationships at each annotation block",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := partrelations.SummaryFromFiles(args[0], args[1])
			if err != nil {
				return err
			}

			target := outPath
			if target == "" {
				base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
				base = strings.TrimSuffix(base, "_lightweight")
				target = base + "_part_relations.csv"
			}
			if err := partrelations.WriteCSV(table, target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d relation rows to %s\n", len(table.Rows), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output CSV path")
	return cmd
}
