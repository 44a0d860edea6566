package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"hauptstimme/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCorpus := filepath.Join(tempHome, "hauptstimme", "corpus")
	if cfg.Paths.CorpusDir != wantCorpus {
		t.Fatalf("unexpected corpus dir: got %q want %q", cfg.Paths.CorpusDir, wantCorpus)
	}
	wantData := filepath.Join(tempHome, ".local", "share", "hauptstimme")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Annotations.Source != "lyrics" {
		t.Fatalf("expected lyric annotations by default, got %q", cfg.Annotations.Source)
	}
	if !cfg.Annotations.InstrumentLabels || !cfg.Annotations.Dynamics {
		t.Fatal("expected instrument labels and dynamics enabled by default")
	}
	if cfg.Alignment.SampleRate != 22050 || cfg.Alignment.FeatureRate != 50 {
		t.Fatalf("unexpected alignment defaults: %+v", cfg.Alignment)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.StorePath() != filepath.Join(cfg.Paths.DataDir, "corpus.db") {
		t.Fatalf("unexpected store path: %q", cfg.StorePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hauptstimme.toml")

	type payload struct {
		Paths struct {
			CorpusDir string `toml:"corpus_dir"`
		} `toml:"paths"`
		Annotations struct {
			Source   string `toml:"source"`
			Restrict string `toml:"restrict"`
		} `toml:"annotations"`
		Alignment struct {
			BandRadius int `toml:"band_radius"`
		} `toml:"alignment"`
	}
	custom := payload{}
	custom.Paths.CorpusDir = filepath.Join(tempDir, "corpus")
	custom.Annotations.Source = "text"
	custom.Annotations.Restrict = "a,b,tr"
	custom.Alignment.BandRadius = 500
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Annotations.Source != "text" || cfg.Annotations.Restrict != "a,b,tr" {
		t.Fatalf("annotation overrides lost: %+v", cfg.Annotations)
	}
	if cfg.Alignment.BandRadius != 500 {
		t.Fatalf("expected band radius 500, got %d", cfg.Alignment.BandRadius)
	}
	// Unset sections keep their defaults.
	if cfg.Workflow.Workers != config.Default().Workflow.Workers {
		t.Fatalf("unexpected workers: %d", cfg.Workflow.Workers)
	}
}

func TestValidateRejectsTextWithoutRestrictions(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hauptstimme.toml")
	content := "[paths]\ncorpus_dir = \"" + filepath.Join(tempDir, "corpus") + "\"\n" +
		"[annotations]\nsource = \"text\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "annotations.restrict") {
		t.Fatalf("expected restriction error, got %v", err)
	}
}

func TestValidateRejectsBadFeatureRate(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "hauptstimme.toml")
	content := "[paths]\ncorpus_dir = \"" + filepath.Join(tempDir, "corpus") + "\"\n" +
		"[alignment]\nsample_rate = 22050\nfeature_rate = 44\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "sample_rate") {
		t.Fatalf("expected sample rate error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[alignment]") {
		t.Fatalf("sample config missing alignment section")
	}
}
