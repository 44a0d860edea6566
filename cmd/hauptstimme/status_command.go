package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hauptstimme/internal/corpus"
	"hauptstimme/internal/pipeline"
)

// newStatusCommand summarizes corpus health and stage readiness.
func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show corpus health and stage readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *corpus.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Corpus: %s\n", cfg.Paths.CorpusDir)
				fmt.Fprintf(out, "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)

				runner := pipeline.NewRunner(cfg, store, nil)
				rows := make([][]string, 0, 8)
				for _, h := range runner.HealthCheck(cmd.Context()) {
					state := "ready"
					if !h.Ready {
						state = "not ready"
					}
					rows = append(rows, []string{h.Name, state, h.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Stage", "State", "Detail"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
}
