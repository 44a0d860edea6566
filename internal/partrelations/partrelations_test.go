package partrelations_test

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/partrelations"
	"hauptstimme/internal/score"
)

func lightTable(parts []string, rows [][]any) *score.LightweightTable {
	t := &score.LightweightTable{Parts: parts}
	for _, r := range rows {
		t.Rows = append(t.Rows, score.LightRow{
			Qstamp:  r[0].(float64),
			Measure: r[1].(int),
			Beat:    r[2].(float64),
			Pitches: r[3].([]string),
		})
	}
	return t
}

func TestSummaryRelations(t *testing.T) {
	light := lightTable(
		[]string{"Flute", "Oboe", "Viola"},
		[][]any{
			{0.0, 1, 1.0, []string{"C5", "C4", "E4"}},
			{1.0, 1, 2.0, []string{"D5", "D4", "F4"}},
			{2.0, 1, 3.0, []string{"E5", "E4", "G4"}},
			{3.0, 1, 4.0, []string{"D5", "D4", "F4"}},
			{4.0, 2, 1.0, []string{"C5", "C4", "E4"}},
			{5.0, 2, 2.0, []string{"E5", "E4", "G4"}},
		},
	)
	anns := []annotations.Annotation{
		{Qstamp: 0, Measure: 1, Beat: 1, PartNum: 0, EndQstamp: 4},
		{Qstamp: 4, Measure: 2, Beat: 1, PartNum: 2, EndQstamp: math.Inf(1)},
	}

	table, err := partrelations.Summary(light, anns)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}

	b1 := table.Rows[0]
	if b1.QstampStart != 0 || b1.QstampEnd != 4 {
		t.Errorf("block 1 range = %v..%v, want 0..4", b1.QstampStart, b1.QstampEnd)
	}
	if b1.Cells[0] != "Main Part" {
		t.Errorf("block 1 flute = %q, want Main Part", b1.Cells[0])
	}
	if b1.Cells[1] != "P8(Main)&P2(Viola)" {
		t.Errorf("block 1 oboe = %q", b1.Cells[1])
	}
	if b1.Cells[2] != "P2(Main)&P2(Oboe)" {
		t.Errorf("block 1 viola = %q", b1.Cells[2])
	}

	b2 := table.Rows[1]
	if b2.QstampStart != 4 || b2.QstampEnd != 5 {
		t.Errorf("block 2 range = %v..%v, want 4..5", b2.QstampStart, b2.QstampEnd)
	}
	if b2.Cells[2] != "Main Part" {
		t.Errorf("block 2 viola = %q, want Main Part", b2.Cells[2])
	}
	if b2.Cells[0] != "P8(Oboe)&P2(Main)" {
		t.Errorf("block 2 flute = %q", b2.Cells[0])
	}
}

func TestUnisonAndRests(t *testing.T) {
	light := lightTable(
		[]string{"Violin 1", "Violin 2", "Basses"},
		[][]any{
			{0.0, 1, 1.0, []string{"C4", "C4", "r"}},
			{1.0, 1, 2.0, []string{"r", "r", "r"}},
			{2.0, 1, 3.0, []string{"D4", "D4", "r"}},
		},
	)
	anns := []annotations.Annotation{
		{Qstamp: 0, Measure: 1, Beat: 1, PartNum: 0, EndQstamp: math.Inf(1)},
	}

	table, err := partrelations.Summary(light, anns)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	row := table.Rows[0]
	// Coinciding rests do not break a unison.
	if row.Cells[1] != "U(Main)" {
		t.Errorf("violin 2 = %q, want U(Main)", row.Cells[1])
	}
	// A part that only rests relates to nothing.
	if row.Cells[2] != "" {
		t.Errorf("basses = %q, want empty", row.Cells[2])
	}
}

func TestSummaryFromFiles(t *testing.T) {
	dir := t.TempDir()

	lightCSV := filepath.Join(dir, "lw.csv")
	lightData := "qstamp,tstamp,measure,beat,Flute,Oboe\n" +
		"0,0,1,1,C5,C4\n" +
		"1,0.5,1,2,D5,D4\n"
	if err := os.WriteFile(lightCSV, []byte(lightData), 0o644); err != nil {
		t.Fatalf("write lightweight csv: %v", err)
	}

	annCSV := filepath.Join(dir, "ann.csv")
	annData := "qstamp,measure,beat,measure_fraction,label,part,part_num,instrument\n" +
		"0,1,1,0,a,Fl.,0,Fl.\n"
	if err := os.WriteFile(annCSV, []byte(annData), 0o644); err != nil {
		t.Fatalf("write annotations csv: %v", err)
	}

	table, err := partrelations.SummaryFromFiles(lightCSV, annCSV)
	if err != nil {
		t.Fatalf("SummaryFromFiles: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0].Cells[1] != "P8(Main)" {
		t.Errorf("rows = %+v", table.Rows)
	}

	out := filepath.Join(dir, "relations.csv")
	if err := partrelations.WriteCSV(table, out); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "qstamp_start,qstamp_end,Flute,Oboe" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Main Part") || !strings.Contains(lines[1], "P8(Main)") {
		t.Errorf("row = %q", lines[1])
	}
}
