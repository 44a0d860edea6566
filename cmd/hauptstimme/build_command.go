package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hauptstimme/internal/corpus"
	"hauptstimme/internal/pipeline"
)

// newBuildCommand runs a full corpus build: discover new or changed
// scores, then drain everything pending through the stage sequence.
func newBuildCommand(ctx *commandContext) *cobra.Command {
	var discoverOnly bool
	var workers int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Discover scores and process the pending corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Workflow.Workers = workers
			}

			return ctx.withStore(func(store *corpus.Store) error {
				runner := pipeline.NewRunner(cfg, store, ctx.logger())

				added, err := runner.Discover(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Discovered %d new or changed scores\n", added)
				if discoverOnly {
					return nil
				}

				if err := runner.Run(cmd.Context()); err != nil {
					return err
				}

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Build finished: %d completed, %d failed, %d awaiting review\n",
					health.Completed, health.Failed, health.Review)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&discoverOnly, "discover-only", false, "Scan the corpus tree without processing")
	cmd.Flags().IntVar(&workers, "workers", 0, "Override the configured worker count")
	return cmd
}
