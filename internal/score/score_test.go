package score_test

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"hauptstimme/internal/musicxml"
	"hauptstimme/internal/score"
)

const singlePartXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <work><work-title>Test Piece</work-title></work>
  <identification><creator type="composer">Anon.</creator></identification>
  <part-list>
    <score-part id="P1"><part-name>Flute</part-name><part-abbreviation>Fl.</part-abbreviation></score-part>
  </part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>2</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <direction placement="above">
        <direction-type><metronome><beat-unit>quarter</beat-unit><per-minute>60</per-minute></metronome></direction-type>
      </direction>
      <direction placement="below">
        <direction-type><dynamics><p/></dynamics></direction-type>
      </direction>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>2</duration><voice>1</voice></note>
      <note><chord/><pitch><step>E</step><octave>4</octave></pitch><duration>2</duration><voice>1</voice></note>
      <note><pitch><step>G</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
      <note><rest/><duration>2</duration><voice>1</voice></note>
    </measure>
    <measure number="2">
      <note><pitch><step>A</step><octave>4</octave></pitch><duration>8</duration><voice>1</voice></note>
      <barline location="right"><repeat direction="backward"/></barline>
    </measure>
  </part>
</score-partwise>`

const twoPartXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <part-list>
    <score-part id="P1"><part-name>Flute</part-name></score-part>
    <score-part id="P2"><part-name>Clarinet in Bb</part-name></score-part>
  </part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>2</beats><beat-type>4</beat-type></time>
      </attributes>
      <note><pitch><step>C</step><octave>5</octave></pitch><duration>1</duration><voice>1</voice></note>
      <note><pitch><step>D</step><octave>5</octave></pitch><duration>1</duration><voice>1</voice></note>
    </measure>
  </part>
  <part id="P2">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>2</beats><beat-type>4</beat-type></time>
        <transpose><diatonic>-1</diatonic><chromatic>-2</chromatic></transpose>
      </attributes>
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>2</duration><voice>1</voice></note>
    </measure>
  </part>
</score-partwise>`

func buildScore(t *testing.T, src string) *score.Score {
	t.Helper()
	doc, err := musicxml.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("musicxml.Parse: %v", err)
	}
	s, err := score.Build(doc)
	if err != nil {
		t.Fatalf("score.Build: %v", err)
	}
	return s
}

func TestBuildSinglePart(t *testing.T) {
	s := buildScore(t, singlePartXML)

	if s.Title != "Test Piece" {
		t.Errorf("title = %q, want %q", s.Title, "Test Piece")
	}
	if s.Composer != "Anon." {
		t.Errorf("composer = %q, want %q", s.Composer, "Anon.")
	}

	if len(s.Measures) != 2 {
		t.Fatalf("got %d measures, want 2", len(s.Measures))
	}
	m1, m2 := s.Measures[0], s.Measures[1]
	if m1.Offset != 0 || m1.Length != 4 {
		t.Errorf("measure 1 offset/length = %v/%v, want 0/4", m1.Offset, m1.Length)
	}
	if m2.Offset != 4 || m2.Length != 4 {
		t.Errorf("measure 2 offset/length = %v/%v, want 4/4", m2.Offset, m2.Length)
	}
	if !m2.EndRepeat {
		t.Error("measure 2 should carry an end repeat")
	}
	if s.FinalQstamp() != 8 {
		t.Errorf("FinalQstamp = %v, want 8", s.FinalQstamp())
	}

	if len(s.Parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(s.Parts))
	}
	p := s.Parts[0]
	if p.Name != "Flute" || p.Abbreviation != "Fl." {
		t.Errorf("part name/abbrev = %q/%q", p.Name, p.Abbreviation)
	}

	if len(p.Notes) != 4 {
		t.Fatalf("got %d notes, want 4", len(p.Notes))
	}
	checkNote := func(i int, name string, qstamp, beat float64, chord, top bool) {
		t.Helper()
		n := p.Notes[i]
		if n.Pitch.Name() != name {
			t.Errorf("note %d pitch = %q, want %q", i, n.Pitch.Name(), name)
		}
		if n.Qstamp != qstamp || n.Beat != beat {
			t.Errorf("note %d qstamp/beat = %v/%v, want %v/%v", i, n.Qstamp, n.Beat, qstamp, beat)
		}
		if n.Chord != chord || n.TopOfChord != top {
			t.Errorf("note %d chord/top = %v/%v, want %v/%v", i, n.Chord, n.TopOfChord, chord, top)
		}
	}
	checkNote(0, "C4", 0, 1, false, false)
	checkNote(1, "E4", 0, 1, true, true)
	checkNote(2, "G4", 1, 2, false, true)
	checkNote(3, "A4", 4, 1, false, true)

	wantVel := 62.0 / 127.0
	if diff := math.Abs(p.Notes[0].Velocity - wantVel); diff > 1e-4 {
		t.Errorf("velocity after p = %v, want %v", p.Notes[0].Velocity, wantVel)
	}

	if len(p.Rests) != 1 || p.Rests[0].Qstamp != 3 {
		t.Errorf("rests = %+v, want one rest at qstamp 3", p.Rests)
	}

	if bpm := s.Tempos[1]; bpm != 60 {
		t.Errorf("tempo at measure 1 = %v, want 60", bpm)
	}
	resolved := s.TempoAtMeasure()
	if resolved[2] != 60 {
		t.Errorf("tempo should fill forward to measure 2, got %v", resolved[2])
	}
}

func TestBuildTransposedPart(t *testing.T) {
	s := buildScore(t, twoPartXML)
	if len(s.Parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(s.Parts))
	}
	clar := s.Parts[1]
	if len(clar.Notes) != 1 {
		t.Fatalf("clarinet has %d notes, want 1", len(clar.Notes))
	}
	if got := clar.Notes[0].Pitch.Name(); got != "D4" {
		t.Errorf("written E4 on a Bb clarinet sounds %q, want D4", got)
	}
}

func TestExpandRepeats(t *testing.T) {
	s := buildScore(t, singlePartXML)

	table, err := s.Expand([]int{1, 2, 2})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// 3 notes in measure 1, then measure 2's single note twice.
	if len(table.Events) != 5 {
		t.Fatalf("got %d events, want 5", len(table.Events))
	}

	// At quarter = 60 one quarter lasts one second.
	wantQ := []float64{0, 0, 1, 4, 8}
	for i, e := range table.Events {
		if e.Qstamp != wantQ[i] {
			t.Errorf("event %d qstamp = %v, want %v", i, e.Qstamp, wantQ[i])
		}
		if e.Tstamp != e.Qstamp {
			t.Errorf("event %d tstamp = %v, want %v at 60 BPM", i, e.Tstamp, e.Qstamp)
		}
	}

	first, second := table.Events[3], table.Events[4]
	if first.ScoreQstamp != second.ScoreQstamp {
		t.Errorf("repeat passes should share ScoreQstamp: %v vs %v", first.ScoreQstamp, second.ScoreQstamp)
	}
	if second.Qstamp == first.Qstamp {
		t.Error("repeat passes must advance the expanded qstamp")
	}
	if got := table.MaxQstamp(); got != 8 {
		t.Errorf("MaxQstamp = %v, want 8", got)
	}

	if _, err := s.Expand([]int{1, 3}); err == nil {
		t.Error("expected error for playback order past the last measure")
	}
}

func TestLightweightForwardFill(t *testing.T) {
	s := buildScore(t, twoPartXML)
	table, err := s.Expand(s.SequentialPlayback())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	light, err := score.Lightweight(s, table)
	if err != nil {
		t.Fatalf("Lightweight: %v", err)
	}

	if len(light.Parts) != 2 || light.Parts[1] != "Clarinet in Bb" {
		t.Fatalf("parts = %v", light.Parts)
	}
	if len(light.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(light.Rows))
	}

	r0, r1 := light.Rows[0], light.Rows[1]
	if r0.Pitches[0] != "C5" || r0.Pitches[1] != "D4" {
		t.Errorf("row 0 = %v, want [C5 D4]", r0.Pitches)
	}
	// The clarinet's half note is still sounding at the flute's second onset.
	if r1.Pitches[0] != "D5" || r1.Pitches[1] != "D4" {
		t.Errorf("row 1 = %v, want [D5 D4]", r1.Pitches)
	}
	if r1.Beat != 2 {
		t.Errorf("row 1 beat = %v, want 2", r1.Beat)
	}
}

func TestLightweightCSVRoundTrip(t *testing.T) {
	s := buildScore(t, twoPartXML)
	table, err := s.Expand(s.SequentialPlayback())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	light, err := score.Lightweight(s, table)
	if err != nil {
		t.Fatalf("Lightweight: %v", err)
	}

	path := filepath.Join(t.TempDir(), "melody.csv")
	if err := score.WriteLightweightCSV(light, path); err != nil {
		t.Fatalf("WriteLightweightCSV: %v", err)
	}
	loaded, err := score.ReadLightweightCSV(path)
	if err != nil {
		t.Fatalf("ReadLightweightCSV: %v", err)
	}

	if len(loaded.Parts) != len(light.Parts) || len(loaded.Rows) != len(light.Rows) {
		t.Fatalf("round trip changed shape: %d/%d parts, %d/%d rows",
			len(loaded.Parts), len(light.Parts), len(loaded.Rows), len(light.Rows))
	}
	for i, row := range loaded.Rows {
		want := light.Rows[i]
		if row.Qstamp != want.Qstamp || row.Measure != want.Measure || row.Beat != want.Beat {
			t.Errorf("row %d position = %+v, want %+v", i, row, want)
		}
		for j, p := range row.Pitches {
			if p != want.Pitches[j] {
				t.Errorf("row %d cell %d = %q, want %q", i, j, p, want.Pitches[j])
			}
		}
	}
}

func TestSpelledPitchNames(t *testing.T) {
	cases := []struct {
		pitch score.SpelledPitch
		name  string
		midi  int
	}{
		{score.SpelledPitch{Step: "C", Octave: 4}, "C4", 60},
		{score.SpelledPitch{Step: "B", Alter: -1, Octave: 4}, "B-4", 70},
		{score.SpelledPitch{Step: "F", Alter: 2, Octave: 3}, "F##3", 55},
		{score.SpelledPitch{Step: "A", Alter: 1, Octave: 0}, "A#0", 22},
	}
	for _, tc := range cases {
		if got := tc.pitch.Name(); got != tc.name {
			t.Errorf("Name() = %q, want %q", got, tc.name)
		}
		if got := tc.pitch.MIDI(); got != tc.midi {
			t.Errorf("%s MIDI() = %d, want %d", tc.name, got, tc.midi)
		}
		if got := tc.pitch.PitchClass(); got != tc.name[:len(tc.name)-1] {
			t.Errorf("PitchClass() = %q, want %q", got, tc.name[:len(tc.name)-1])
		}
	}
}
