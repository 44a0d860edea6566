// Package partrelations summarises how each part relates to the annotated
// main melody (and to every other part) within each Hauptstimme annotation
// block: unison, parallel octave, or a constant letter-name interval.
package partrelations

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"hauptstimme/internal/annotations"
	"hauptstimme/internal/score"
)

var letterIndex = map[byte]int{
	'C': 0, 'D': 1, 'E': 2, 'F': 3, 'G': 4, 'A': 5, 'B': 6,
}

// Row summarises one annotation block. Cells align with Table.Parts; the
// annotated part reads "Main Part", other cells carry "&"-joined tags like
// "U(Main)" or "P8(Viola)", or stay empty when no relation holds.
type Row struct {
	QstampStart float64
	QstampEnd   float64
	Cells       []string
}

// Table is the part-relations summary for a whole score.
type Table struct {
	Parts []string
	Rows  []Row
}

type block struct {
	start, end float64
	mainPart   int
}

// Summary builds the relations table from a lightweight table and the
// score's annotations. Annotation qstamps are score positions; they are
// mapped onto the expanded timeline through the (measure, beat) pair, so
// repeats resolve to their first pass.
func Summary(light *score.LightweightTable, anns []annotations.Annotation) (*Table, error) {
	if len(light.Rows) == 0 {
		return nil, fmt.Errorf("lightweight table is empty")
	}
	if len(anns) == 0 {
		return nil, fmt.Errorf("no annotations")
	}

	maxQ := light.Rows[len(light.Rows)-1].Qstamp

	type point struct {
		qstamp float64
		part   int
	}
	points := make([]point, 0, len(anns))
	for _, a := range anns {
		q, ok := expandedQstamp(light, a.Measure, a.Beat)
		if !ok {
			return nil, fmt.Errorf("annotation at measure %d beat %v has no lightweight row",
				a.Measure, a.Beat)
		}
		points = append(points, point{qstamp: q, part: a.PartNum})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].qstamp < points[j].qstamp })

	blocks := make([]block, len(points))
	for i, p := range points {
		end := maxQ
		if i < len(points)-1 {
			end = points[i+1].qstamp
		}
		blocks[i] = block{start: p.qstamp, end: end, mainPart: p.part}
	}

	table := &Table{Parts: light.Parts}
	for _, blk := range blocks {
		row, err := summariseBlock(light, blk)
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// SummaryFromFiles builds the table from the on-disk artifacts.
func SummaryFromFiles(lightweightCSV, annotationsCSV string) (*Table, error) {
	light, err := score.ReadLightweightCSV(lightweightCSV)
	if err != nil {
		return nil, err
	}
	anns, err := annotations.ReadCSV(annotationsCSV)
	if err != nil {
		return nil, err
	}
	return Summary(light, anns)
}

func expandedQstamp(light *score.LightweightTable, measure int, beat float64) (float64, bool) {
	for _, row := range light.Rows {
		if row.Measure == measure && math.Abs(row.Beat-beat) < 1e-6 {
			return row.Qstamp, true
		}
	}
	return 0, false
}

// summariseBlock compares every part pair over the block's rows (start and
// end inclusive).
func summariseBlock(light *score.LightweightTable, blk block) (Row, error) {
	var rows []score.LightRow
	for _, r := range light.Rows {
		if r.Qstamp >= blk.start && r.Qstamp <= blk.end {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return Row{}, fmt.Errorf("no lightweight rows between qstamps %v and %v", blk.start, blk.end)
	}
	if blk.mainPart < 0 || blk.mainPart >= len(light.Parts) {
		return Row{}, fmt.Errorf("annotation references part %d of %d", blk.mainPart, len(light.Parts))
	}

	out := Row{
		QstampStart: blk.start,
		QstampEnd:   blk.end,
		Cells:       make([]string, len(light.Parts)),
	}
	for i := range light.Parts {
		if i == blk.mainPart {
			out.Cells[i] = "Main Part"
			continue
		}
		var tags []string
		for j := range light.Parts {
			if j == i {
				continue
			}
			ref := light.Parts[j]
			if j == blk.mainPart {
				ref = "Main"
			}
			if tag := relate(rows, i, j); tag != "" {
				tags = append(tags, fmt.Sprintf("%s(%s)", tag, ref))
			}
		}
		out.Cells[i] = strings.Join(tags, "&")
	}
	return out, nil
}

// relate returns the strongest relation of part a to part b over the rows:
// "U" for unison, "P8" for parallel octaves, "P1".."P6" for a constant
// letter-name distance, or "" when none holds.
func relate(rows []score.LightRow, a, b int) string {
	if isUnison(rows, a, b) {
		return "U"
	}
	if isParallelOctave(rows, a, b) {
		return "P8"
	}
	for interval := 1; interval < 7; interval++ {
		if isParallelInterval(rows, a, b, interval) {
			return fmt.Sprintf("P%d", interval)
		}
	}
	return ""
}

func allRests(rows []score.LightRow, part int) bool {
	for _, r := range rows {
		if r.Pitches[part] != score.RestCell {
			return false
		}
	}
	return true
}

func isUnison(rows []score.LightRow, a, b int) bool {
	for _, r := range rows {
		if r.Pitches[a] != r.Pitches[b] {
			return false
		}
	}
	return !allRests(rows, a)
}

// pitchClass strips the octave digit, so "B-4" and "B-5" compare equal.
func pitchClass(s string) string {
	if s == score.RestCell || s == "" {
		return s
	}
	return s[:len(s)-1]
}

func isParallelOctave(rows []score.LightRow, a, b int) bool {
	for _, r := range rows {
		if pitchClass(r.Pitches[a]) != pitchClass(r.Pitches[b]) {
			return false
		}
	}
	return !allRests(rows, a)
}

// isParallelInterval checks for a constant letter-name distance. Spelling
// is deliberately enharmonic-insensitive: G, G#, and Gb all count as G, so
// a diatonic third stays a third through accidentals. Rests must coincide.
func isParallelInterval(rows []score.LightRow, a, b, interval int) bool {
	if allRests(rows, a) {
		return false
	}
	for _, r := range rows {
		pa, pb := r.Pitches[a], r.Pitches[b]
		if pa == score.RestCell || pb == score.RestCell {
			if pa != pb {
				return false
			}
			continue
		}
		la, oka := letterIndex[pa[0]]
		lb, okb := letterIndex[pb[0]]
		if !oka || !okb {
			return false
		}
		lo, hi := la, lb
		if lo > hi {
			lo, hi = hi, lo
		}
		if hi-lo != interval {
			return false
		}
	}
	return true
}

// WriteCSV writes the summary table.
func WriteCSV(table *Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create part relations csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"qstamp_start", "qstamp_end"}, table.Parts...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write part relations header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, 0, 2+len(row.Cells))
		record = append(record,
			strconv.FormatFloat(score.Round(row.QstampStart), 'f', -1, 64),
			strconv.FormatFloat(score.Round(row.QstampEnd), 'f', -1, 64),
		)
		record = append(record, row.Cells...)
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write part relations row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
