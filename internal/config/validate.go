package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAnnotations(); err != nil {
		return err
	}
	if err := c.validateAlignment(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CorpusDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/hauptstimme/config.toml"
		}
		return fmt.Errorf("paths.corpus_dir is required. Edit %s (create with 'hauptstimme config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateAnnotations() error {
	switch c.Annotations.Source {
	case "lyrics", "text":
	default:
		return fmt.Errorf("annotations.source must be \"lyrics\" or \"text\", got %q", c.Annotations.Source)
	}
	if c.Annotations.Source == "text" && c.Annotations.Restrict == "" {
		return errors.New("annotations.restrict must be set when annotations.source is \"text\"")
	}
	if c.Annotations.Restrict != "" && strings.ContainsAny(c.Annotations.Restrict, `\^$.|?*+()[]{}`) {
		if _, err := regexp.Compile(c.Annotations.Restrict); err != nil {
			return fmt.Errorf("annotations.restrict: %w", err)
		}
	}
	return nil
}

func (c *Config) validateAlignment() error {
	if c.Alignment.SampleRate%c.Alignment.FeatureRate != 0 {
		return errors.New("alignment.sample_rate must be divisible by alignment.feature_rate")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":       c.Workflow.Workers,
		"workflow.stuck_timeout": c.Workflow.StuckTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
