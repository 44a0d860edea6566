package measuremap

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WriteFile serializes the map as a JSON entry list (the `.mm.json`
// artifact).
func (m *Map) WriteFile(path string) error {
	data, err := json.MarshalIndent(m.Entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal measure map: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write measure map: %w", err)
	}
	return nil
}

// ReadFile loads a measure map, dispatching on the extension: `.json` for
// the native format, `.csv` for tabular exports.
func ReadFile(path string) (*Map, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return readCSV(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read measure map: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode measure map %q: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("measure map %q is empty", path)
	}
	return &Map{Entries: entries}, nil
}

// readCSV accepts the tabular export, which renders `next` as a bracketed
// list ("[2]", "[1, 3]") and booleans in either Go or Python casing.
func readCSV(path string) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open measure map csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read measure map csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("measure map csv %q has no rows", path)
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	m := &Map{}
	for rowNum, record := range records[1:] {
		var e Entry
		var err error
		if e.Count, err = strconv.Atoi(field(record, "count")); err != nil {
			return nil, fmt.Errorf("measure map csv row %d: count: %w", rowNum+2, err)
		}
		e.ID = e.Count
		if v := field(record, "id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				e.ID = id
			}
		}
		if e.Qstamp, err = strconv.ParseFloat(field(record, "qstamp"), 64); err != nil {
			return nil, fmt.Errorf("measure map csv row %d: qstamp: %w", rowNum+2, err)
		}
		if v := field(record, "number"); v != "" {
			if e.Number, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("measure map csv row %d: number: %w", rowNum+2, err)
			}
		}
		e.Name = field(record, "name")
		if e.Name == "" {
			e.Name = strconv.Itoa(e.Number)
		}
		e.TimeSignature = field(record, "time_signature")
		if v := field(record, "nominal_length"); v != "" {
			if e.NominalLength, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("measure map csv row %d: nominal_length: %w", rowNum+2, err)
			}
		}
		if v := field(record, "actual_length"); v != "" {
			if e.ActualLength, err = strconv.ParseFloat(v, 64); err != nil {
				return nil, fmt.Errorf("measure map csv row %d: actual_length: %w", rowNum+2, err)
			}
		}
		e.StartRepeat = parseBool(field(record, "start_repeat"))
		e.EndRepeat = parseBool(field(record, "end_repeat"))
		if e.Next, err = parseNextList(field(record, "next")); err != nil {
			return nil, fmt.Errorf("measure map csv row %d: next: %w", rowNum+2, err)
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

func parseBool(s string) bool {
	return strings.EqualFold(s, "true") || s == "1"
}

func parseNextList(s string) ([]int, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
