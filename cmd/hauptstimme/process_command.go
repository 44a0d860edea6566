package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/measuremap"
	"hauptstimme/internal/musicxml"
	"hauptstimme/internal/partrelations"
	"hauptstimme/internal/score"
)

// newProcessCommand processes a single score file outside the corpus
// database: parse, derive the measure map, extract annotations, assemble
// the melody score, and summarize part relationships.
func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	var useText bool
	var restrict string

	cmd := &cobra.Command{
		Use:         "process <score>",
		Short:       "Derive all artifacts for one score file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scorePath := args[0]
			doc, err := musicxml.ParseFile(scorePath)
			if err != nil {
				return fmt.Errorf("parse %s: %w", scorePath, err)
			}
			built, err := score.Build(doc)
			if err != nil {
				return fmt.Errorf("build score: %w", err)
			}

			dir := outDir
			if dir == "" {
				dir = filepath.Dir(scorePath)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			stem := strings.TrimSuffix(filepath.Base(scorePath), filepath.Ext(scorePath))
			artifact := func(suffix string) string {
				return filepath.Join(dir, stem+suffix)
			}

			mm := measuremap.FromScore(built)
			playback, err := mm.PlaybackOrder()
			if err != nil {
				return fmt.Errorf("playback order: %w", err)
			}
			if err := mm.Compress().WriteFile(artifact("_measure_map.json")); err != nil {
				return err
			}

			opts := annotations.Options{Source: annotations.SourceLyrics}
			if useText {
				opts.Source = annotations.SourceText
			}
			if restrict != "" {
				restrictions, err := annotations.CompileRestrictions(restrict)
				if err != nil {
					return fmt.Errorf("compile restrictions: %w", err)
				}
				opts.Restrictions = restrictions
			}
			anns, err := annotations.Extract(built, opts)
			if err != nil {
				return fmt.Errorf("extract annotations: %w", err)
			}
			if len(anns) == 0 {
				return fmt.Errorf("no annotations found in %s", scorePath)
			}
			if err := annotations.WriteCSV(anns, artifact("_annotations.csv")); err != nil {
				return err
			}

			melody, err := annotations.MelodyScore(built, anns, annotations.DefaultMelodyOptions())
			if err != nil {
				return fmt.Errorf("melody score: %w", err)
			}
			if err := annotations.WriteMusicXML(melody, artifact("_melody.musicxml")); err != nil {
				return err
			}

			events, err := built.Expand(playback)
			if err != nil {
				return fmt.Errorf("expand repeats: %w", err)
			}
			light, err := score.Lightweight(built, events)
			if err != nil {
				return fmt.Errorf("lightweight table: %w", err)
			}
			if err := score.WriteLightweightCSV(light, artifact("_lightweight.csv")); err != nil {
				return err
			}

			relations, err := partrelations.Summary(light, anns)
			if err != nil {
				return fmt.Errorf("part relations: %w", err)
			}
			if err := partrelations.WriteCSV(relations, artifact("_part_relations.csv")); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %s: %d annotations across %d parts\n", scorePath, len(anns), len(built.Parts))
			fmt.Fprintf(out, "Artifacts written to %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to the score's directory)")
	cmd.Flags().BoolVar(&useText, "text", false, "Read annotations from text expressions instead of lyrics")
	cmd.Flags().StringVar(&restrict, "restrict", "", "Regular expression or comma list limiting accepted annotation labels")
	return cmd
}
