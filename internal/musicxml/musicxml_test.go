package musicxml_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hauptstimme/internal/musicxml"
)

const minimalXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <movement-title>Minuet</movement-title>
  <identification><creator type="composer">J. S. Bach</creator></identification>
  <part-list>
    <score-part id="P1"><part-name>Violin I</part-name><part-abbreviation>Vln. I</part-abbreviation></score-part>
  </part-list>
  <part id="P1">
    <measure number="0" implicit="yes">
      <attributes>
        <divisions>4</divisions>
        <time><beats>3</beats><beat-type>4</beat-type></time>
      </attributes>
      <note>
        <pitch><step>B</step><alter>-1</alter><octave>4</octave></pitch>
        <duration>4</duration><voice>1</voice>
        <tie type="start"/>
        <lyric><text>a</text></lyric>
      </note>
      <note>
        <pitch><step>B</step><alter>-1</alter><octave>4</octave></pitch>
        <duration>4</duration><voice>1</voice>
        <tie type="stop"/><tie type="start"/>
      </note>
      <backup><duration>8</duration></backup>
      <note><rest/><duration>8</duration><voice>2</voice></note>
    </measure>
  </part>
</score-partwise>`

func TestParsePreservesEventOrder(t *testing.T) {
	doc, err := musicxml.Parse(strings.NewReader(minimalXML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Title() != "Minuet" {
		t.Errorf("Title() = %q, want %q", doc.Title(), "Minuet")
	}
	if doc.Identification.Composer() != "J. S. Bach" {
		t.Errorf("Composer() = %q", doc.Identification.Composer())
	}
	if doc.PartName("P1") != "Violin I" || doc.PartAbbreviation("P1") != "Vln. I" {
		t.Errorf("part names = %q/%q", doc.PartName("P1"), doc.PartAbbreviation("P1"))
	}

	m := doc.Parts[0].Measures[0]
	if m.Number != 0 || !m.Implicit {
		t.Errorf("pickup measure number/implicit = %d/%v", m.Number, m.Implicit)
	}

	var kinds []string
	for _, ev := range m.Events {
		switch ev.(type) {
		case *musicxml.Attributes:
			kinds = append(kinds, "attributes")
		case *musicxml.Note:
			kinds = append(kinds, "note")
		case *musicxml.Backup:
			kinds = append(kinds, "backup")
		default:
			kinds = append(kinds, "other")
		}
	}
	want := "attributes note note backup note"
	if got := strings.Join(kinds, " "); got != want {
		t.Errorf("event order = %q, want %q", got, want)
	}

	first := m.Events[1].(*musicxml.Note)
	if first.Pitch.MIDI() != 70 {
		t.Errorf("B-4 MIDI = %d, want 70", first.Pitch.MIDI())
	}
	if first.TieType() != "start" || first.Lyric() != "a" {
		t.Errorf("tie/lyric = %q/%q", first.TieType(), first.Lyric())
	}
	second := m.Events[2].(*musicxml.Note)
	if second.TieType() != "continue" {
		t.Errorf("stop+start tie = %q, want continue", second.TieType())
	}
	last := m.Events[4].(*musicxml.Note)
	if !last.IsRest() || last.Voice != 2 {
		t.Errorf("expected a voice-2 rest, got %+v", last)
	}
}

func TestTimeSigLengths(t *testing.T) {
	cases := []struct {
		beats, beatType int
		quarter, beat   float64
	}{
		{4, 4, 4, 1},
		{3, 4, 3, 1},
		{6, 8, 3, 1.5},
		{12, 8, 6, 1.5},
		{2, 2, 4, 2},
	}
	for _, tc := range cases {
		ts := musicxml.TimeSig{Beats: tc.beats, BeatType: tc.beatType}
		if got := ts.QuarterLength(); got != tc.quarter {
			t.Errorf("%d/%d QuarterLength = %v, want %v", tc.beats, tc.beatType, got, tc.quarter)
		}
		if got := ts.BeatQuarterLength(); got != tc.beat {
			t.Errorf("%d/%d BeatQuarterLength = %v, want %v", tc.beats, tc.beatType, got, tc.beat)
		}
	}
}

func TestMetronomeQuarterBPM(t *testing.T) {
	dotted := musicxml.Metronome{BeatUnit: "quarter", BeatUnitDot: []struct{}{{}}, PerMinute: "40"}
	if got := dotted.QuarterBPM(); got != 60 {
		t.Errorf("dotted quarter = 40 gives %v quarter BPM, want 60", got)
	}
	half := musicxml.Metronome{BeatUnit: "half", PerMinute: "60"}
	if got := half.QuarterBPM(); got != 120 {
		t.Errorf("half = 60 gives %v quarter BPM, want 120", got)
	}
	vague := musicxml.Metronome{BeatUnit: "quarter", PerMinute: "ca. 60"}
	if got := vague.QuarterBPM(); got != 0 {
		t.Errorf("non-numeric per-minute gives %v, want 0", got)
	}
}

func TestParseFileMXL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "score.mxl")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	meta, err := zw.Create("META-INF/container.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	const container = `<?xml version="1.0"?>
<container><rootfiles><rootfile full-path="score.xml"/></rootfiles></container>`
	if _, err := meta.Write([]byte(container)); err != nil {
		t.Fatalf("write container: %v", err)
	}
	root, err := zw.Create("score.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := root.Write([]byte(minimalXML)); err != nil {
		t.Fatalf("write rootfile: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}

	doc, err := musicxml.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if doc.Title() != "Minuet" {
		t.Errorf("Title() = %q, want %q", doc.Title(), "Minuet")
	}

	if _, err := musicxml.ParseFile(filepath.Join(dir, "score.pdf")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
