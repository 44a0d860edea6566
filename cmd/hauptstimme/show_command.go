package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"hauptstimme/internal/corpus"
)

// newShowCommand prints the full record for one corpus item, looked up
// by numeric ID or by corpus-relative score path.
func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|score-path>",
		Short: "Show one corpus item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *corpus.Store) error {
				var item *corpus.Item
				var err error
				if id, convErr := strconv.ParseInt(args[0], 10, 64); convErr == nil {
					item, err = store.GetByID(cmd.Context(), id)
				} else {
					item, err = store.GetByPath(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("no corpus item matches %q", args[0])
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", item.ID)
				fmt.Fprintf(out, "Score:       %s\n", item.ScorePath)
				fmt.Fprintf(out, "Title:       %s\n", item.Title)
				fmt.Fprintf(out, "Status:      %s\n", item.Status)
				fmt.Fprintf(out, "Fingerprint: %s\n", item.Fingerprint)
				fmt.Fprintf(out, "Created:     %s\n", item.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "Updated:     %s\n", item.UpdatedAt.Format(time.RFC3339))
				if item.ProgressStage != "" {
					fmt.Fprintf(out, "Progress:    %s (%.0f%%) %s\n", item.ProgressStage, item.ProgressPercent, item.ProgressMessage)
				}
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:       %s\n", item.ErrorMessage)
				}

				artifacts := [][2]string{
					{"Measure map", item.MeasureMapFile},
					{"Annotations", item.AnnotationsFile},
					{"Melody", item.MelodyFile},
					{"Lightweight", item.LightweightFile},
					{"Relations", item.RelationsFile},
				}
				for _, a := range artifacts {
					if a[1] != "" {
						fmt.Fprintf(out, "%-12s %s\n", a[0]+":", a[1])
					}
				}
				return nil
			})
		},
	}
}
