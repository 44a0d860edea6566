package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CorpusDir string `toml:"corpus_dir"`
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
}

// Annotations contains configuration for annotation extraction.
type Annotations struct {
	// Source selects where annotations come from: "lyrics" or "text".
	Source string `toml:"source"`
	// Restrict limits which labels count as annotations: a comma list of
	// allowed labels, or a regular expression.
	Restrict string `toml:"restrict"`
	// InstrumentLabels adds instrument names above melody-score entries.
	InstrumentLabels bool `toml:"instrument_labels"`
	// LabelText adds the annotation labels below the melody staff.
	LabelText bool `toml:"label_text"`
	// Dynamics transfers dynamic marks into the melody score.
	Dynamics bool `toml:"dynamics"`
}

// Alignment contains configuration for score-to-audio alignment.
type Alignment struct {
	SampleRate  int     `toml:"sample_rate"`
	FeatureRate int     `toml:"feature_rate"`
	LeadIn      float64 `toml:"lead_in"`
	BandRadius  int     `toml:"band_radius"`
}

// Segmentation contains configuration for segmentation comparison.
type Segmentation struct {
	// Resolution is the vector grid step in seconds.
	Resolution float64 `toml:"resolution"`
	// Tolerance is the evaluation tolerance in grid indices.
	Tolerance int `toml:"tolerance"`
}

// Metadata contains configuration for corpus metadata generation.
type Metadata struct {
	// RawBaseURL prefixes corpus-relative paths in the contents table.
	RawBaseURL string `toml:"raw_base_url"`
}

// Workflow contains configuration for corpus build runs.
type Workflow struct {
	// Workers bounds the number of scores processed concurrently.
	Workers int `toml:"workers"`
	// StuckTimeout is the age in minutes after which an in-progress item
	// is considered abandoned and reset.
	StuckTimeout int `toml:"stuck_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the corpus toolkit.
//
// Configuration sections by subsystem:
//   - Paths: corpus tree, derived-artifact output, and log directories
//   - Annotations: annotation source and label restrictions
//   - Alignment: audio feature extraction and warping parameters
//   - Segmentation: comparison grid and tolerance
//   - Metadata: corpus metadata generation
//   - Workflow: build concurrency and stuck-item recovery
//   - Logging: log format, level, and retention
type Config struct {
	Paths        Paths        `toml:"paths"`
	Annotations  Annotations  `toml:"annotations"`
	Alignment    Alignment    `toml:"alignment"`
	Segmentation Segmentation `toml:"segmentation"`
	Metadata     Metadata     `toml:"metadata"`
	Workflow     Workflow     `toml:"workflow"`
	Logging      Logging      `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/hauptstimme/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hauptstimme.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for corpus builds.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the corpus processing database.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, "corpus.db")
}

// LockPath returns the location of the corpus build lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "build.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
