package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportYAML writes a .yaml twin for each metadata TSV in dir: a list of
// records, one mapping per row, keys in the TSV column order.
func ExportYAML(dir string) error {
	for _, name := range []string{ComposersFile, SetsFile, ScoresFile, AudiosFile} {
		tsvPath := filepath.Join(dir, name)
		if _, err := os.Stat(tsvPath); os.IsNotExist(err) {
			continue
		}
		if err := tsvToYAML(tsvPath); err != nil {
			return err
		}
	}
	return nil
}

func tsvToYAML(tsvPath string) error {
	header, rows, err := readTSV(tsvPath)
	if err != nil {
		return err
	}

	// Built as yaml.Nodes so the columns keep their TSV order; a plain
	// map would come out alphabetised.
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range rows {
		rec := &yaml.Node{Kind: yaml.MappingNode}
		for i, key := range header {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec.Content = append(rec.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				&yaml.Node{Kind: yaml.ScalarNode, Value: val},
			)
		}
		doc.Content = append(doc.Content, rec)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", tsvPath, err)
	}
	yamlPath := strings.TrimSuffix(tsvPath, filepath.Ext(tsvPath)) + ".yaml"
	if err := os.WriteFile(yamlPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", yamlPath, err)
	}
	return nil
}
