package score

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(Round(v), 'f', -1, 64)
}

// WriteEventsCSV writes the full expanded event table (the `.full.csv`
// artifact) with one row per note occurrence.
func WriteEventsCSV(table *EventTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create events csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"score_qstamp", "qstamp", "tstamp", "measure", "beat",
		"instrument", "duration_quarter", "duration", "pitch", "velocity",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write events header: %w", err)
	}
	for _, e := range table.Events {
		record := []string{
			formatFloat(e.ScoreQstamp),
			formatFloat(e.Qstamp),
			formatFloat(e.Tstamp),
			strconv.Itoa(e.Measure),
			formatFloat(e.Beat),
			e.Instrument,
			formatFloat(e.DurationQ),
			formatFloat(e.Duration),
			strconv.Itoa(e.Pitch.MIDI()),
			formatFloat(e.Velocity),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write event row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteLightweightCSV writes the lightweight pitch-summary table.
func WriteLightweightCSV(table *LightweightTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create lightweight csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"qstamp", "tstamp", "measure", "beat"}, table.Parts...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write lightweight header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, 0, 4+len(row.Pitches))
		record = append(record,
			formatFloat(row.Qstamp),
			formatFloat(row.Tstamp),
			strconv.Itoa(row.Measure),
			formatFloat(row.Beat),
		)
		record = append(record, row.Pitches...)
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write lightweight row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadLightweightCSV loads a lightweight table written by
// WriteLightweightCSV.
func ReadLightweightCSV(path string) (*LightweightTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lightweight csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read lightweight csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("lightweight csv %q is empty", path)
	}
	header := records[0]
	if len(header) < 5 {
		return nil, fmt.Errorf("lightweight csv %q has no part columns", path)
	}

	table := &LightweightTable{Parts: header[4:]}
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("lightweight csv row %d has %d fields, want %d", i+2, len(record), len(header))
		}
		qstamp, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("lightweight csv row %d: qstamp: %w", i+2, err)
		}
		tstamp, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("lightweight csv row %d: tstamp: %w", i+2, err)
		}
		measure, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("lightweight csv row %d: measure: %w", i+2, err)
		}
		beat, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			return nil, fmt.Errorf("lightweight csv row %d: beat: %w", i+2, err)
		}
		pitches := make([]string, len(record)-4)
		copy(pitches, record[4:])
		table.Rows = append(table.Rows, LightRow{
			Qstamp:  qstamp,
			Tstamp:  tstamp,
			Measure: measure,
			Beat:    beat,
			Pitches: pitches,
		})
	}
	return table, nil
}
