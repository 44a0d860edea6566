package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hauptstimme/internal/alignment"
	"hauptstimme/internal/annotations"
	"hauptstimme/internal/measuremap"
	"hauptstimme/internal/musicxml"
	"hauptstimme/internal/score"
)

// newAlignCommand aligns a score against one or more audio recordings
// and writes the alignment table, optionally merged with annotations.
func newAlignCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var annotationsPath string
	var measuresFor string

	cmd := &cobra.Command{
		Use:         "align <score> <audio-list.tsv>",
		Short:       "Align score onsets to audio recording timestamps",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scorePath, listPath := args[0], args[1]

			doc, err := musicxml.ParseFile(scorePath)
			if err != nil {
				return fmt.Errorf("parse %s: %w", scorePath, err)
			}
			built, err := score.Build(doc)
			if err != nil {
				return fmt.Errorf("build score: %w", err)
			}
			playback, err := measuremap.FromScore(built).PlaybackOrder()
			if err != nil {
				return fmt.Errorf("playback order: %w", err)
			}
			events, err := built.Expand(playback)
			if err != nil {
				return fmt.Errorf("expand repeats: %w", err)
			}

			recs, err := alignment.ReadRecordings(listPath)
			if err != nil {
				return err
			}

			acfg := alignment.DefaultConfig()
			if cfg, cfgErr := ctx.ensureConfig(); cfgErr == nil && cfg != nil {
				acfg.SampleRate = cfg.Alignment.SampleRate
				acfg.FeatureRate = cfg.Alignment.FeatureRate
				acfg.LeadIn = cfg.Alignment.LeadIn
				acfg.BandRadius = cfg.Alignment.BandRadius
			}

			aligner := alignment.New(acfg, ctx.logger())
			table, err := aligner.Align(events, recs)
			if err != nil {
				return err
			}

			target := outPath
			if target == "" {
				target = strings.TrimSuffix(scorePath, filepath.Ext(scorePath)) + "_alignment.csv"
			}
			if err := table.WriteCSV(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Aligned %d recordings over %d onsets: %s\n", len(recs), len(table.Rows), target)

			if annotationsPath != "" {
				anns, err := annotations.ReadCSV(annotationsPath)
				if err != nil {
					return err
				}
				merged := strings.TrimSuffix(target, filepath.Ext(target)) + "_annotations.csv"
				if err := alignment.MergeAnnotations(table, anns, merged); err != nil {
					return err
				}
				fmt.Fprintf(out, "Merged annotation timestamps: %s\n", merged)
			}

			if measuresFor != "" {
				measures := strings.TrimSuffix(target, filepath.Ext(target)) + "_" + measuresFor + "_measures.csv"
				if err := alignment.MeasureTimestamps(table, measuresFor, measures); err != nil {
					return err
				}
				fmt.Fprintf(out, "Measure timestamps for %s: %s\n", measuresFor, measures)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Alignment table CSV path")
	cmd.Flags().StringVar(&annotationsPath, "annotations", "", "Annotation CSV to merge with aligned timestamps")
	cmd.Flags().StringVar(&measuresFor, "measures", "", "Audio ID to derive per-measure timestamps for")
	return cmd
}
