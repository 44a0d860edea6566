package alignment

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
)

const tstampSuffix = "_tstamp"

// WriteCSV writes the alignment table with one `{audioID}_tstamp` column
// per recording.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create alignment csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"score_qstamp", "qstamp", "measure", "beat"}
	for _, id := range t.AudioIDs {
		header = append(header, id+tstampSuffix)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write alignment header: %w", err)
	}
	for _, row := range t.Rows {
		record := []string{
			formatFloat(row.ScoreQstamp),
			formatFloat(row.Qstamp),
			strconv.Itoa(row.Measure),
			formatFloat(row.Beat),
		}
		for _, ts := range row.Tstamps {
			record = append(record, formatFloat(ts))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write alignment row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads an alignment table written by WriteCSV.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignment csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read alignment csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("alignment csv %q has no rows", path)
	}
	header := records[0]
	if len(header) < 5 {
		return nil, fmt.Errorf("alignment csv %q has no audio columns", path)
	}

	table := &Table{}
	for _, name := range header[4:] {
		table.AudioIDs = append(table.AudioIDs, strings.TrimSuffix(name, tstampSuffix))
	}
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("alignment csv row %d has %d fields, want %d",
				i+2, len(record), len(header))
		}
		var row Row
		if row.ScoreQstamp, err = strconv.ParseFloat(record[0], 64); err != nil {
			return nil, fmt.Errorf("alignment csv row %d: score_qstamp: %w", i+2, err)
		}
		if row.Qstamp, err = strconv.ParseFloat(record[1], 64); err != nil {
			return nil, fmt.Errorf("alignment csv row %d: qstamp: %w", i+2, err)
		}
		if row.Measure, err = strconv.Atoi(record[2]); err != nil {
			return nil, fmt.Errorf("alignment csv row %d: measure: %w", i+2, err)
		}
		if row.Beat, err = strconv.ParseFloat(record[3], 64); err != nil {
			return nil, fmt.Errorf("alignment csv row %d: beat: %w", i+2, err)
		}
		for col, v := range record[4:] {
			ts, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("alignment csv row %d: %s: %w", i+2, header[4+col], err)
			}
			row.Tstamps = append(row.Tstamps, ts)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// AudioColumn returns the timestamp column index for an audio ID, or -1.
func (t *Table) AudioColumn(id string) int {
	for i, a := range t.AudioIDs {
		if a == id {
			return i
		}
	}
	return -1
}

// MergeAnnotations joins an annotations table against the alignment table
// on the score qstamp, producing the aligned-annotations artifact: every
// annotation with one timestamp per recording.
func MergeAnnotations(table *Table, anns []annotations.Annotation, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create aligned annotations csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"score_qstamp", "qstamp", "measure", "beat"}
	for _, id := range table.AudioIDs {
		header = append(header, id+tstampSuffix)
	}
	header = append(header, "measure_fraction", "label", "part", "part_num", "instrument")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write aligned annotations header: %w", err)
	}

	matched := 0
	for _, a := range anns {
		for _, row := range table.Rows {
			if math.Abs(row.ScoreQstamp-a.Qstamp) > 1e-4 {
				continue
			}
			record := []string{
				formatFloat(row.ScoreQstamp),
				formatFloat(row.Qstamp),
				strconv.Itoa(row.Measure),
				formatFloat(row.Beat),
			}
			for _, ts := range row.Tstamps {
				record = append(record, formatFloat(ts))
			}
			record = append(record,
				formatFloat(a.MeasureFraction),
				a.Label,
				a.Part,
				strconv.Itoa(a.PartNum),
				a.Instrument,
			)
			if err := w.Write(record); err != nil {
				return fmt.Errorf("write aligned annotation row: %w", err)
			}
			matched++
		}
	}
	if matched == 0 {
		return fmt.Errorf("no annotations matched the alignment table")
	}
	w.Flush()
	return w.Error()
}

// MeasureTimestamps reduces the alignment table to beat-1 rows for one
// recording, renamed for beat-timeline import (measure_number, time).
func MeasureTimestamps(table *Table, audioID, path string) error {
	col := table.AudioColumn(audioID)
	if col < 0 {
		return fmt.Errorf("audio id %q not in alignment table", audioID)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create measure timestamps csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"measure_number", "time"}); err != nil {
		return fmt.Errorf("write measure timestamps header: %w", err)
	}
	for _, row := range table.Rows {
		if row.Beat != 1 {
			continue
		}
		record := []string{
			strconv.Itoa(row.Measure),
			formatFloat(row.Tstamps[col]),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write measure timestamps row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(score.Round(v), 'f', -1, 64)
}
