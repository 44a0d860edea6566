package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnnotations()
	c.normalizeAlignment()
	c.normalizeSegmentation()
	c.normalizeMetadata()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.CorpusDir, err = expandPath(c.Paths.CorpusDir); err != nil {
		return fmt.Errorf("paths.corpus_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnnotations() {
	c.Annotations.Source = strings.ToLower(strings.TrimSpace(c.Annotations.Source))
	if c.Annotations.Source == "" {
		c.Annotations.Source = defaultAnnotationSource
	}
	c.Annotations.Restrict = strings.TrimSpace(c.Annotations.Restrict)
}

func (c *Config) normalizeAlignment() {
	if c.Alignment.SampleRate <= 0 {
		c.Alignment.SampleRate = defaultSampleRate
	}
	if c.Alignment.FeatureRate <= 0 {
		c.Alignment.FeatureRate = defaultFeatureRate
	}
	if c.Alignment.LeadIn < 0 {
		c.Alignment.LeadIn = defaultLeadIn
	}
	if c.Alignment.BandRadius <= 0 {
		c.Alignment.BandRadius = defaultBandRadius
	}
}

func (c *Config) normalizeSegmentation() {
	if c.Segmentation.Resolution <= 0 {
		c.Segmentation.Resolution = defaultSegResolution
	}
	if c.Segmentation.Tolerance < 0 {
		c.Segmentation.Tolerance = defaultSegTolerance
	}
}

func (c *Config) normalizeMetadata() {
	c.Metadata.RawBaseURL = strings.TrimSuffix(strings.TrimSpace(c.Metadata.RawBaseURL), "/")
	if c.Metadata.RawBaseURL == "" {
		c.Metadata.RawBaseURL = defaultRawBaseURL
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.StuckTimeout <= 0 {
		c.Workflow.StuckTimeout = defaultStuckTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
