package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"hauptstimme/internal/alignment"
	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
	"hauptstimme/internal/segmentation"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	segmentCmd := &cobra.Command{
		Use:   "segment",
		Short: "Derive and evaluate segmentation points",
	}

	segmentCmd.AddCommand(newSegmentPointsCommand(ctx))
	segmentCmd.AddCommand(newSegmentEvalCommand(ctx))
	segmentCmd.AddCommand(newSegmentNoveltyCommand(ctx))

	return segmentCmd
}

func newSegmentPointsCommand(ctx *commandContext) *cobra.Command {
	var inSeconds bool

	cmd := &cobra.Command{
		Use:         "points <lightweight.csv> <annotations.csv>",
		Short:       "List the segmentation points implied by annotations",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			light, err := score.ReadLightweightCSV(args[0])
			if err != nil {
				return err
			}
			anns, err := annotations.ReadCSV(args[1])
			if err != nil {
				return err
			}
			points, err := segmentation.Points(light, anns, inSeconds)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, pt := range points {
				fmt.Fprintf(out, "%g\n", pt)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&inSeconds, "seconds", false, "Report points in seconds instead of quarter notes")
	return cmd
}

func newSegmentEvalCommand(ctx *commandContext) *cobra.Command {
	var inSeconds bool
	var resolution float64
	var tau int

	cmd := &cobra.Command{
		Use:         "eval <lightweight.csv> <reference.csv> <estimate.csv>",
		Short:       "Score estimated annotation points against a reference set",
		Args:        cobra.ExactArgs(3),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			light, err := score.ReadLightweightCSV(args[0])
			if err != nil {
				return err
			}
			refAnns, err := annotations.ReadCSV(args[1])
			if err != nil {
				return err
			}
			estAnns, err := annotations.ReadCSV(args[2])
			if err != nil {
				return err
			}

			refPts, err := segmentation.Points(light, refAnns, inSeconds)
			if err != nil {
				return fmt.Errorf("reference: %w", err)
			}
			estPts, err := segmentation.Points(light, estAnns, inSeconds)
			if err != nil {
				return fmt.Errorf("estimate: %w", err)
			}
			if len(refPts) == 0 || len(estPts) == 0 {
				return fmt.Errorf("both annotation sets must contain at least one point")
			}

			maxT := refPts[len(refPts)-1]
			if last := estPts[len(estPts)-1]; last > maxT {
				maxT = last
			}
			ref := segmentation.Vector(refPts, resolution, maxT)
			est := segmentation.Vector(estPts, resolution, maxT)

			result, err := segmentation.Evaluate(ref, est, tau)
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Precision", fmt.Sprintf("%.4f", result.Precision)},
				{"Recall", fmt.Sprintf("%.4f", result.Recall)},
				{"F-measure", fmt.Sprintf("%.4f", result.F)},
				{"True positives", fmt.Sprintf("%d", result.TP)},
				{"False negatives", fmt.Sprintf("%d", result.FN)},
				{"False positives", fmt.Sprintf("%d", result.FP)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&inSeconds, "seconds", false, "Evaluate in seconds instead of quarter notes")
	cmd.Flags().Float64Var(&resolution, "resolution", 1.0, "Grid resolution for the comparison vectors")
	cmd.Flags().IntVar(&tau, "tau", 2, "Tolerance window in grid indices")
	return cmd
}

func newSegmentNoveltyCommand(ctx *commandContext) *cobra.Command {
	var sampleRate int

	cmd := &cobra.Command{
		Use:         "novelty <audio>",
		Short:       "Estimate segmentation points from audio novelty",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := alignment.Recording{ID: filepath.Base(args[0]), Path: args[0]}
			samples, err := alignment.LoadAudio(rec, sampleRate)
			if err != nil {
				return err
			}
			points := segmentation.NoveltyPoints(samples, sampleRate)
			out := cmd.OutOrStdout()
			for _, pt := range points {
				fmt.Fprintf(out, "%.3f\n", pt)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&sampleRate, "sample-rate", alignment.DefaultSampleRate, "Analysis sample rate")
	return cmd
}
