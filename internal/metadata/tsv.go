package metadata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Standard corpus metadata file names.
const (
	ComposersFile = "composers.tsv"
	SetsFile      = "sets.tsv"
	ScoresFile    = "scores.tsv"
	AudiosFile    = "audios.tsv"
)

func readTSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	return records[0], records[1:], nil
}

func writeTSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s rows: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func atoiField(path string, row int, name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s row %d: %s: %w", path, row, name, err)
	}
	return n, nil
}

// optInt renders an optional integer field: -1 (and, for years, 0)
// becomes the empty cell.
func optInt(v, empty int) string {
	if v == empty {
		return ""
	}
	return strconv.Itoa(v)
}

func parseOptInt(v string, empty int) (int, error) {
	if v == "" {
		return empty, nil
	}
	return strconv.Atoi(v)
}

// ReadComposers loads composers.tsv.
func ReadComposers(path string) ([]Composer, error) {
	_, rows, err := readTSV(path)
	if err != nil {
		return nil, err
	}
	var out []Composer
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s row %d: want 2 fields, got %d", path, i+2, len(row))
		}
		var c Composer
		if c.ID, err = atoiField(path, i+2, "id", row[0]); err != nil {
			return nil, err
		}
		c.Name = row[1]
		out = append(out, c)
	}
	return out, nil
}

// WriteComposers writes composers.tsv.
func WriteComposers(path string, composers []Composer) error {
	rows := make([][]string, len(composers))
	for i, c := range composers {
		rows[i] = []string{strconv.Itoa(c.ID), c.Name}
	}
	return writeTSV(path, []string{"id", "name"}, rows)
}

// ReadSets loads sets.tsv.
func ReadSets(path string) ([]Set, error) {
	_, rows, err := readTSV(path)
	if err != nil {
		return nil, err
	}
	var out []Set
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%s row %d: want 5 fields, got %d", path, i+2, len(row))
		}
		var s Set
		if s.ID, err = atoiField(path, i+2, "id", row[0]); err != nil {
			return nil, err
		}
		s.Path = row[1]
		s.Name = row[2]
		if s.ComposerID, err = atoiField(path, i+2, "composer_id", row[3]); err != nil {
			return nil, err
		}
		s.IMSLPLink = row[4]
		out = append(out, s)
	}
	return out, nil
}

// WriteSets writes sets.tsv.
func WriteSets(path string, sets []Set) error {
	rows := make([][]string, len(sets))
	for i, s := range sets {
		rows[i] = []string{
			strconv.Itoa(s.ID), s.Path, s.Name,
			strconv.Itoa(s.ComposerID), s.IMSLPLink,
		}
	}
	return writeTSV(path, []string{"id", "path", "name", "composer_id", "imslp_link"}, rows)
}

// ReadScores loads scores.tsv.
func ReadScores(path string) ([]Score, error) {
	_, rows, err := readTSV(path)
	if err != nil {
		return nil, err
	}
	var out []Score
	for i, row := range rows {
		if len(row) < 4 {
			return nil, fmt.Errorf("%s row %d: want 4 fields, got %d", path, i+2, len(row))
		}
		var s Score
		if s.ID, err = atoiField(path, i+2, "id", row[0]); err != nil {
			return nil, err
		}
		s.Path = row[1]
		s.Name = row[2]
		if s.SetID, err = atoiField(path, i+2, "set_id", row[3]); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteScores writes scores.tsv.
func WriteScores(path string, scores []Score) error {
	rows := make([][]string, len(scores))
	for i, s := range scores {
		rows[i] = []string{strconv.Itoa(s.ID), s.Path, s.Name, strconv.Itoa(s.SetID)}
	}
	return writeTSV(path, []string{"id", "path", "name", "set_id"}, rows)
}

// ReadAudios loads audios.tsv. Unmatched recordings have ScoreID -1.
func ReadAudios(path string) ([]Audio, error) {
	_, rows, err := readTSV(path)
	if err != nil {
		return nil, err
	}
	var out []Audio
	for i, row := range rows {
		if len(row) < 8 {
			return nil, fmt.Errorf("%s row %d: want 8 fields, got %d", path, i+2, len(row))
		}
		var a Audio
		if a.ID, err = atoiField(path, i+2, "id", row[0]); err != nil {
			return nil, err
		}
		a.Name = row[1]
		a.Performers = row[2]
		a.Publisher = row[3]
		if a.Year, err = parseOptInt(row[4], 0); err != nil {
			return nil, fmt.Errorf("%s row %d: year: %w", path, i+2, err)
		}
		if a.SetID, err = atoiField(path, i+2, "set_id", row[5]); err != nil {
			return nil, err
		}
		a.Path = row[6]
		if a.ScoreID, err = parseOptInt(row[7], -1); err != nil {
			return nil, fmt.Errorf("%s row %d: score_id: %w", path, i+2, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// WriteAudios writes audios.tsv.
func WriteAudios(path string, audios []Audio) error {
	rows := make([][]string, len(audios))
	for i, a := range audios {
		rows[i] = []string{
			strconv.Itoa(a.ID), a.Name, a.Performers, a.Publisher,
			optInt(a.Year, 0), strconv.Itoa(a.SetID), a.Path,
			optInt(a.ScoreID, -1),
		}
	}
	return writeTSV(path, []string{
		"id", "name", "performers", "publisher", "year", "set_id", "path", "score_id",
	}, rows)
}
