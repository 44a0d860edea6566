package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"hauptstimme/internal/config"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScore places a score file under the config's corpus directory at
// the given corpus-relative slash path and returns its absolute path.
func WriteScore(t testing.TB, cfg *config.Config, rel string, content []byte) string {
	t.Helper()

	path := filepath.Join(cfg.Paths.CorpusDir, filepath.FromSlash(rel))
	WriteFile(t, path, content)
	return path
}

// MinimalScoreXML is a one-part, one-measure MusicXML document with a
// single annotated note, enough to drive the full artifact pipeline.
const MinimalScoreXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <work><work-title>Fixture</work-title></work>
  <part-list>
    <score-part id="P1"><part-name>Flute</part-name></score-part>
  </part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <note>
        <pitch><step>C</step><octave>5</octave></pitch><duration>4</duration><voice>1</voice>
        <lyric><text>a</text></lyric>
      </note>
    </measure>
  </part>
</score-partwise>
`
