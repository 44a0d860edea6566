package alignment_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"hauptstimme/internal/alignment"
	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
)

// writeSineWAV writes a mono 16-bit WAV: `silence` seconds of silence
// followed by `dur` seconds of a sine at the given frequency.
func writeSineWAV(t *testing.T, path string, sampleRate int, silence, dur, freq float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	total := int((silence + dur) * float64(sampleRate))
	silent := int(silence * float64(sampleRate))
	data := make([]int, total)
	for i := silent; i < total; i++ {
		phase := 2 * math.Pi * freq * float64(i-silent) / float64(sampleRate)
		data[i] = int(0.6 * math.Sin(phase) * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func TestAlignSineRecording(t *testing.T) {
	if testing.Short() {
		t.Skip("feature extraction is slow")
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "rec.wav")
	// One second of silence, then two seconds of A440 — mirroring the
	// synthesized score features and their lead-in.
	writeSineWAV(t, wavPath, alignment.DefaultSampleRate, 1.0, 2.0, 440)

	events := &score.EventTable{Events: []score.Event{
		{
			ScoreQstamp: 0, Qstamp: 0, Tstamp: 0,
			Measure: 1, Beat: 1, Instrument: "Flute",
			DurationQ: 4, Duration: 2,
			Pitch:    score.SpelledPitch{Step: "A", Octave: 4},
			Velocity: 0.7,
		},
	}}

	cfg := alignment.DefaultConfig()
	cfg.BandRadius = 200
	al := alignment.New(cfg, nil)

	table, err := al.Align(events, []alignment.Recording{{ID: "test", Path: wavPath}})
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if len(table.AudioIDs) != 1 || table.AudioIDs[0] != "test" {
		t.Fatalf("audio ids = %v", table.AudioIDs)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(table.Rows))
	}

	// The note starts one second into the recording; the warped onset
	// should land nearby.
	got := table.Rows[0].Tstamps[0]
	if got < 0.5 || got > 1.6 {
		t.Errorf("aligned onset = %v, want near 1.0", got)
	}
}

func makeTable() *alignment.Table {
	return &alignment.Table{
		AudioIDs: []string{"uk", "us"},
		Rows: []alignment.Row{
			{ScoreQstamp: 0, Qstamp: 0, Measure: 1, Beat: 1, Tstamps: []float64{1.0, 2.5}},
			{ScoreQstamp: 1, Qstamp: 1, Measure: 1, Beat: 2, Tstamps: []float64{1.5, 3.1}},
			{ScoreQstamp: 4, Qstamp: 4, Measure: 2, Beat: 1, Tstamps: []float64{3.0, 4.9}},
			{ScoreQstamp: 4, Qstamp: 12, Measure: 2, Beat: 1, Tstamps: []float64{7.2, 9.4}},
		},
	}
}

func TestTableCSVRoundTrip(t *testing.T) {
	table := makeTable()
	path := filepath.Join(t.TempDir(), "alignment.csv")
	if err := table.WriteCSV(path); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	loaded, err := alignment.ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(loaded.AudioIDs) != 2 || loaded.AudioIDs[1] != "us" {
		t.Errorf("audio ids = %v", loaded.AudioIDs)
	}
	if len(loaded.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(loaded.Rows))
	}
	if loaded.Rows[2].Tstamps[1] != 4.9 {
		t.Errorf("row 2 us tstamp = %v, want 4.9", loaded.Rows[2].Tstamps[1])
	}
}

func TestMergeAnnotations(t *testing.T) {
	table := makeTable()
	anns := []annotations.Annotation{
		{Qstamp: 0, Measure: 1, Beat: 1, Label: "a", Part: "Fl.", PartNum: 0, Instrument: "Fl."},
		{Qstamp: 4, Measure: 2, Beat: 1, Label: "b", Part: "Vln. 1", PartNum: 1, Instrument: "Vln."},
	}

	path := filepath.Join(t.TempDir(), "aligned.csv")
	if err := alignment.MergeAnnotations(table, anns, path); err != nil {
		t.Fatalf("MergeAnnotations: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "score_qstamp,qstamp,measure,beat,uk_tstamp,us_tstamp,measure_fraction,label,part,part_num,instrument" {
		t.Errorf("header = %q", lines[0])
	}
	// Annotation "b" matches both repeat passes of measure 2.
	if len(lines) != 4 {
		t.Fatalf("got %d data lines, want 3: %v", len(lines)-1, lines)
	}
	if !strings.Contains(lines[2], "b") || !strings.Contains(lines[3], "7.2") {
		t.Errorf("merged rows = %v", lines[2:])
	}
}

func TestMeasureTimestamps(t *testing.T) {
	table := makeTable()
	path := filepath.Join(t.TempDir(), "measures.csv")
	if err := alignment.MeasureTimestamps(table, "uk", path); err != nil {
		t.Fatalf("MeasureTimestamps: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"measure_number,time", "1,1", "2,3", "2,7.2"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v", lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}

	if err := alignment.MeasureTimestamps(table, "nope", path); err == nil {
		t.Error("expected error for unknown audio id")
	}
}

func TestReadRecordings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audios.tsv")
	content := "# id\tpath\tstart\tend\n" +
		"UK\tldn.mp3\t00:00:07\t00:05:50\n" +
		"US\tptsbrg.wav\n" +
		"GER\tbrln.mp3\t12:23\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	recs, err := alignment.ReadRecordings(path)
	if err != nil {
		t.Fatalf("ReadRecordings: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d recordings, want 3", len(recs))
	}
	if recs[0].Start != 7 || recs[0].End != 350 {
		t.Errorf("UK range = %v..%v, want 7..350", recs[0].Start, recs[0].End)
	}
	if recs[1].Start != 0 || recs[1].End != 0 {
		t.Errorf("US range = %v..%v, want open", recs[1].Start, recs[1].End)
	}
	if recs[2].Start != 743 {
		t.Errorf("GER start = %v, want 743", recs[2].Start)
	}
}
