package measuremap_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"hauptstimme/internal/measuremap"
	"hauptstimme/internal/musicxml"
	"hauptstimme/internal/score"
)

const repeatedXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <part-list>
    <score-part id="P1"><part-name>Violin</part-name></score-part>
  </part-list>
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
      </attributes>
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
    </measure>
    <measure number="2">
      <barline location="left"><repeat direction="forward"/></barline>
      <note><pitch><step>D</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
    </measure>
    <measure number="3">
      <note><pitch><step>E</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
      <barline location="right"><repeat direction="backward"/></barline>
    </measure>
    <measure number="4">
      <note><pitch><step>F</step><octave>4</octave></pitch><duration>4</duration><voice>1</voice></note>
    </measure>
  </part>
</score-partwise>`

func buildMap(t *testing.T) (*score.Score, *measuremap.Map) {
	t.Helper()
	doc, err := musicxml.Parse(strings.NewReader(repeatedXML))
	if err != nil {
		t.Fatalf("musicxml.Parse: %v", err)
	}
	s, err := score.Build(doc)
	if err != nil {
		t.Fatalf("score.Build: %v", err)
	}
	return s, measuremap.FromScore(s)
}

func TestFromScore(t *testing.T) {
	_, m := buildMap(t)
	if len(m.Entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(m.Entries))
	}

	e2 := m.Entries[1]
	if !e2.StartRepeat || e2.Qstamp != 4 || e2.TimeSignature != "4/4" {
		t.Errorf("entry 2 = %+v", e2)
	}
	e3 := m.Entries[2]
	if !e3.EndRepeat {
		t.Errorf("entry 3 should end a repeat: %+v", e3)
	}
	if !reflect.DeepEqual(e3.Next, []int{2, 4}) {
		t.Errorf("entry 3 next = %v, want [2 4]", e3.Next)
	}
	e4 := m.Entries[3]
	if !reflect.DeepEqual(e4.Next, []int{-1}) {
		t.Errorf("final next = %v, want [-1]", e4.Next)
	}
	if e4.NominalLength != 4 || e4.ActualLength != 4 {
		t.Errorf("final lengths = %v/%v", e4.NominalLength, e4.ActualLength)
	}
}

func TestPlaybackOrder(t *testing.T) {
	_, m := buildMap(t)
	order, err := m.PlaybackOrder()
	if err != nil {
		t.Fatalf("PlaybackOrder: %v", err)
	}
	want := []int{1, 2, 3, 2, 3, 4}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestPlaybackOrderDrivesExpansion(t *testing.T) {
	s, m := buildMap(t)
	order, err := m.PlaybackOrder()
	if err != nil {
		t.Fatalf("PlaybackOrder: %v", err)
	}
	table, err := s.Expand(order)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// One note per measure, six measures in playback order.
	if len(table.Events) != 6 {
		t.Fatalf("got %d events, want 6", len(table.Events))
	}
	if got := table.MaxQstamp(); got != 20 {
		t.Errorf("MaxQstamp = %v, want 20", got)
	}
	// The repeated passage keeps its score position across passes.
	if table.Events[1].ScoreQstamp != table.Events[3].ScoreQstamp {
		t.Errorf("passes differ in ScoreQstamp: %v vs %v",
			table.Events[1].ScoreQstamp, table.Events[3].ScoreQstamp)
	}
}

func TestCompressExpandRoundTrip(t *testing.T) {
	// A long default stretch between deviating entries.
	m := &measuremap.Map{}
	for i := 0; i < 10; i++ {
		m.Entries = append(m.Entries, measuremap.Entry{
			ID: i + 1, Count: i + 1, Qstamp: float64(4 * i),
			Number: i + 1, Name: "", TimeSignature: "4/4",
			NominalLength: 4, ActualLength: 4,
			Next: []int{i + 2},
		})
	}
	for i := range m.Entries {
		m.Entries[i].Name = strconv.Itoa(m.Entries[i].Number)
	}
	m.Entries[9].Next = []int{-1}
	m.Entries[4].EndRepeat = true
	m.Entries[4].Next = []int{1, 6}

	compressed := m.Compress()
	if len(compressed.Entries) != 3 {
		t.Fatalf("compressed to %d entries, want 3 (first, repeat, last)", len(compressed.Entries))
	}

	expanded, err := compressed.Expand()
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(expanded.Entries) != len(m.Entries) {
		t.Fatalf("expanded to %d entries, want %d", len(expanded.Entries), len(m.Entries))
	}
	for i, e := range expanded.Entries {
		want := m.Entries[i]
		if e.Count != want.Count || e.Qstamp != want.Qstamp || e.Number != want.Number ||
			e.TimeSignature != want.TimeSignature || e.ActualLength != want.ActualLength ||
			!reflect.DeepEqual(e.Next, want.Next) {
			t.Errorf("entry %d = %+v, want %+v", i, e, want)
		}
	}
}

func TestJSONRoundTripAndCSV(t *testing.T) {
	_, m := buildMap(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "score.mm.json")
	if err := m.WriteFile(jsonPath); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := measuremap.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !reflect.DeepEqual(loaded.Entries, m.Entries) {
		t.Errorf("JSON round trip changed entries")
	}

	csvPath := filepath.Join(dir, "score.mm.csv")
	csvData := "count,qstamp,number,time_signature,nominal_length,actual_length,start_repeat,end_repeat,next\n" +
		"1,0.0,1,4/4,4.0,4.0,False,False,[2]\n" +
		"2,4.0,2,4/4,4.0,4.0,True,False,[3]\n" +
		"3,8.0,3,4/4,4.0,4.0,False,True,\"[2, 4]\"\n" +
		"4,12.0,4,4/4,4.0,4.0,False,False,[-1]\n"
	if err := os.WriteFile(csvPath, []byte(csvData), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	fromCSV, err := measuremap.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("ReadFile(csv): %v", err)
	}
	if len(fromCSV.Entries) != 4 {
		t.Fatalf("csv entries = %d, want 4", len(fromCSV.Entries))
	}
	if !reflect.DeepEqual(fromCSV.Entries[2].Next, []int{2, 4}) {
		t.Errorf("csv next = %v, want [2 4]", fromCSV.Entries[2].Next)
	}
	if !fromCSV.Entries[1].StartRepeat {
		t.Error("csv start_repeat not parsed")
	}

	order, err := fromCSV.PlaybackOrder()
	if err != nil {
		t.Fatalf("PlaybackOrder: %v", err)
	}
	if !reflect.DeepEqual(order, []int{1, 2, 3, 2, 3, 4}) {
		t.Errorf("order = %v", order)
	}
}
