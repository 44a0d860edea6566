package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hauptstimme/internal/metadata"
)

func newMetadataCommand(ctx *commandContext) *cobra.Command {
	metadataCmd := &cobra.Command{
		Use:   "metadata",
		Short: "Maintain the corpus metadata tables",
	}

	metadataCmd.AddCommand(newMetadataInitCommand(ctx))
	metadataCmd.AddCommand(newMetadataMatchCommand(ctx))
	metadataCmd.AddCommand(newMetadataYAMLCommand(ctx))
	metadataCmd.AddCommand(newMetadataContentsCommand(ctx))

	return metadataCmd
}

// newMetadataInitCommand rebuilds scores.tsv from the score files found
// under the corpus tree, keyed to the sets table.
func newMetadataInitCommand(ctx *commandContext) *cobra.Command {
	var corpusDir string
	var tableDir string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Rebuild the scores table from the corpus tree",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, tables, err := resolveMetadataDirs(ctx, corpusDir, tableDir)
			if err != nil {
				return err
			}
			sets, err := metadata.ReadSets(filepath.Join(tables, metadata.SetsFile))
			if err != nil {
				return fmt.Errorf("read sets table: %w", err)
			}
			scores, err := metadata.InitScores(os.DirFS(dir), sets)
			if err != nil {
				return err
			}
			if err := metadata.WriteScores(filepath.Join(tables, metadata.ScoresFile), scores); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d scores across %d sets\n", len(scores), len(sets))
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusDir, "corpus", "", "Corpus tree to scan (defaults to the configured corpus_dir)")
	cmd.Flags().StringVar(&tableDir, "tables", "", "Directory holding the metadata TSV tables")
	return cmd
}

// newMetadataMatchCommand pairs audio recordings with scores where a
// set's recording count lines up with its score count.
func newMetadataMatchCommand(ctx *commandContext) *cobra.Command {
	var tableDir string

	cmd := &cobra.Command{
		Use:         "match",
		Short:       "Match audio recordings to scores by ordinal",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tables, err := resolveMetadataDirs(ctx, "", tableDir)
			if err != nil {
				return err
			}
			scores, err := metadata.ReadScores(filepath.Join(tables, metadata.ScoresFile))
			if err != nil {
				return fmt.Errorf("read scores table: %w", err)
			}
			audios, err := metadata.ReadAudios(filepath.Join(tables, metadata.AudiosFile))
			if err != nil {
				return fmt.Errorf("read audios table: %w", err)
			}

			matched := metadata.MatchAudiosToScores(scores, audios)
			if err := metadata.WriteScores(filepath.Join(tables, metadata.ScoresFile), scores); err != nil {
				return err
			}
			if err := metadata.WriteAudios(filepath.Join(tables, metadata.AudiosFile), audios); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Matched %d of %d recordings\n", matched, len(audios))
			return nil
		},
	}

	cmd.Flags().StringVar(&tableDir, "tables", "", "Directory holding the metadata TSV tables")
	return cmd
}

func newMetadataYAMLCommand(ctx *commandContext) *cobra.Command {
	var tableDir string

	cmd := &cobra.Command{
		Use:         "yaml",
		Short:       "Export the TSV tables as YAML",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tables, err := resolveMetadataDirs(ctx, "", tableDir)
			if err != nil {
				return err
			}
			if err := metadata.ExportYAML(tables); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported YAML tables to %s\n", tables)
			return nil
		},
	}

	cmd.Flags().StringVar(&tableDir, "tables", "", "Directory holding the metadata TSV tables")
	return cmd
}

// newMetadataContentsCommand regenerates the README contents table with
// direct download links for every score and its melody.
func newMetadataContentsCommand(ctx *commandContext) *cobra.Command {
	var tableDir string
	var readmePath string
	var baseURL string

	cmd := &cobra.Command{
		Use:         "contents",
		Short:       "Write the corpus contents table to a README",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tables, err := resolveMetadataDirs(ctx, "", tableDir)
			if err != nil {
				return err
			}
			scores, err := metadata.ReadScores(filepath.Join(tables, metadata.ScoresFile))
			if err != nil {
				return fmt.Errorf("read scores table: %w", err)
			}

			url := baseURL
			if url == "" {
				if cfg, cfgErr := ctx.ensureConfig(); cfgErr == nil && cfg != nil {
					url = cfg.Metadata.RawBaseURL
				}
			}
			if url == "" {
				return fmt.Errorf("no base URL: pass --base-url or set metadata.raw_base_url")
			}

			target := readmePath
			if target == "" {
				target = filepath.Join(tables, "README.md")
			}
			if err := metadata.WriteContents(target, url, scores); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote contents table for %d scores to %s\n", len(scores), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&tableDir, "tables", "", "Directory holding the metadata TSV tables")
	cmd.Flags().StringVar(&readmePath, "readme", "", "README path (defaults to <tables>/README.md)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Raw download URL prefix for score links")
	return cmd
}

// resolveMetadataDirs settles the corpus tree and table directory from
// flags, falling back to the loaded configuration.
func resolveMetadataDirs(ctx *commandContext, corpusDir, tableDir string) (string, string, error) {
	dir := corpusDir
	if dir == "" {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return "", "", err
		}
		dir = cfg.Paths.CorpusDir
	}
	tables := tableDir
	if tables == "" {
		tables = dir
	}
	return dir, tables, nil
}
