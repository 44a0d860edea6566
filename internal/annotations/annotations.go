// Package annotations extracts Hauptstimme annotations (labels marking the
// most prominent melodic line) from a score, writes the annotations table,
// and assembles the single-part melody score.
package annotations

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"hauptstimme/internal/logging"
	"hauptstimme/internal/score"
)

// DefaultLabelPattern accepts the conventional single-character labels plus
// an optional prime (a, b', x, 1 ...).
const DefaultLabelPattern = `(\w|\w')`

// Source selects where annotation labels live in the score.
type Source string

const (
	// SourceLyrics reads labels from lyrics attached to note starts.
	SourceLyrics Source = "lyrics"
	// SourceText reads labels from text expressions. Restrictions are
	// mandatory in this mode, otherwise tempo and character indications
	// would be swept in as labels.
	SourceText Source = "text"
)

// Restrictions limits which labels count as annotations: either an
// allowed-value list or a full-match regex. A zero Restrictions accepts
// everything.
type Restrictions struct {
	Allowed []string
	Pattern *regexp.Regexp
}

// CompileRestrictions builds Restrictions from a CLI-style expression: a
// comma-separated value list ("a,b,c,tr") or a regex.
func CompileRestrictions(expr string) (Restrictions, error) {
	if expr == "" {
		return Restrictions{}, nil
	}
	if !strings.ContainsAny(expr, `\[](){}|?*+^$.`) && strings.Contains(expr, ",") {
		return Restrictions{Allowed: strings.Split(expr, ",")}, nil
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return Restrictions{}, fmt.Errorf("compile label restrictions: %w", err)
	}
	return Restrictions{Pattern: re}, nil
}

// Empty reports whether the restrictions accept every label.
func (r Restrictions) Empty() bool {
	return len(r.Allowed) == 0 && r.Pattern == nil
}

// Match reports whether a label passes the restrictions.
func (r Restrictions) Match(label string) bool {
	if len(r.Allowed) > 0 {
		for _, v := range r.Allowed {
			if label == v {
				return true
			}
		}
		return false
	}
	if r.Pattern != nil {
		return r.Pattern.MatchString(label)
	}
	return true
}

// Options configures extraction.
type Options struct {
	Source       Source
	Restrictions Restrictions
	Logger       *slog.Logger
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.NewNop()
}

// Annotation is one Hauptstimme label anchored to a note start. EndQstamp
// is the start of the next annotation; the last annotation is open-ended
// (EndQstamp is +Inf).
type Annotation struct {
	Qstamp          float64
	Measure         int
	Beat            float64
	MeasureFraction float64
	MeasureOffset   float64
	Label           string
	Part            string
	PartNum         int
	Instrument      string
	EndQstamp       float64
	EndMeasure      int
}

// Extract collects the annotations from every part, sorted by qstamp, with
// ends resolved against the following annotation.
func Extract(s *score.Score, opts Options) ([]Annotation, error) {
	if opts.Source == "" {
		opts.Source = SourceLyrics
	}
	if opts.Source == SourceText && opts.Restrictions.Empty() {
		return nil, fmt.Errorf("text-expression annotations require label restrictions")
	}
	log := opts.logger()

	var anns []Annotation
	for _, part := range s.Parts {
		base := Annotation{
			Part:       part.Abbreviation,
			PartNum:    part.Index,
			Instrument: instrumentAbbreviation(part.Abbreviation),
		}
		switch opts.Source {
		case SourceLyrics:
			anns = append(anns, fromLyrics(part, base, opts, log)...)
		case SourceText:
			anns = append(anns, fromText(part, base, opts, log)...)
		default:
			return nil, fmt.Errorf("unknown annotation source %q", opts.Source)
		}
	}
	if len(anns) == 0 {
		return nil, fmt.Errorf("score has no annotations")
	}

	sort.SliceStable(anns, func(a, b int) bool { return anns[a].Qstamp < anns[b].Qstamp })
	for i := range anns[:len(anns)-1] {
		anns[i].EndQstamp = anns[i+1].Qstamp
		anns[i].EndMeasure = anns[i+1].Measure
	}
	last := &anns[len(anns)-1]
	last.EndQstamp = math.Inf(1)
	last.EndMeasure = s.FinalMeasure()

	log.Info("retrieved annotations", "count", len(anns))
	return anns, nil
}

func fromLyrics(part *score.Part, base Annotation, opts Options, log *slog.Logger) []Annotation {
	var anns []Annotation
	for _, r := range part.Rests {
		if r.Lyric != "" {
			log.Warn("ignoring lyric attached to a rest",
				"part", part.Name, "measure", r.Measure, "lyric", r.Lyric)
		}
	}
	for _, n := range part.Notes {
		if n.Lyric == "" {
			continue
		}
		if !opts.Restrictions.Match(n.Lyric) {
			log.Warn("ignoring annotation that fails the label restrictions",
				"part", part.Name, "measure", n.Measure, "label", n.Lyric)
			continue
		}
		a := base
		a.Qstamp = n.Qstamp
		a.Measure = n.Measure
		a.Beat = n.Beat
		a.MeasureFraction = n.MeasureFraction
		a.MeasureOffset = n.MeasureOffset
		a.Label = strings.ReplaceAll(n.Lyric, ",", "")
		anns = append(anns, a)
	}
	return anns
}

func fromText(part *score.Part, base Annotation, opts Options, log *slog.Logger) []Annotation {
	var anns []Annotation
	for _, t := range part.Texts {
		if !opts.Restrictions.Match(t.Text) {
			log.Warn("excluding invalid annotation",
				"part", part.Name, "measure", t.Measure, "label", t.Text)
			continue
		}
		a := base
		a.Qstamp = t.Qstamp
		a.Measure = t.Measure
		a.Beat = t.Beat
		a.MeasureFraction = t.MeasureFraction
		a.MeasureOffset = t.MeasureOffset
		a.Label = strings.ReplaceAll(t.Text, ",", "")
		anns = append(anns, a)
	}
	return anns
}

// instrumentAbbreviation strips the desk number from a part abbreviation:
// "Vln. 1" and "Hn. II" both reduce to the bare instrument.
func instrumentAbbreviation(partAbbrev string) string {
	fields := strings.Fields(partAbbrev)
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		if isDeskNumber(last) {
			fields = fields[:len(fields)-1]
			continue
		}
		break
	}
	return strings.Join(fields, " ")
}

func isDeskNumber(s string) bool {
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	for _, r := range s {
		if r != 'I' && r != 'V' && r != 'X' {
			return false
		}
	}
	return s != ""
}

// Columns is the annotations table header.
var Columns = []string{
	"qstamp", "measure", "beat", "measure_fraction",
	"label", "part", "part_num", "instrument",
}

// WriteCSV writes the annotations table.
func WriteCSV(anns []Annotation, path string) error {
	if len(anns) == 0 {
		return fmt.Errorf("no annotations to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create annotations csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write annotations header: %w", err)
	}
	for _, a := range anns {
		record := []string{
			formatFloat(a.Qstamp),
			strconv.Itoa(a.Measure),
			formatFloat(a.Beat),
			formatFloat(a.MeasureFraction),
			a.Label,
			a.Part,
			strconv.Itoa(a.PartNum),
			a.Instrument,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write annotation row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV loads an annotations table written by WriteCSV. Ends are
// re-derived from the following annotation.
func ReadCSV(path string) ([]Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read annotations csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("annotations csv %q has no rows", path)
	}

	var anns []Annotation
	for i, record := range records[1:] {
		if len(record) < len(Columns) {
			return nil, fmt.Errorf("annotations csv row %d has %d fields, want %d",
				i+2, len(record), len(Columns))
		}
		var a Annotation
		if a.Qstamp, err = strconv.ParseFloat(record[0], 64); err != nil {
			return nil, fmt.Errorf("annotations csv row %d: qstamp: %w", i+2, err)
		}
		if a.Measure, err = strconv.Atoi(record[1]); err != nil {
			return nil, fmt.Errorf("annotations csv row %d: measure: %w", i+2, err)
		}
		if a.Beat, err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, fmt.Errorf("annotations csv row %d: beat: %w", i+2, err)
		}
		if a.MeasureFraction, err = strconv.ParseFloat(record[3], 64); err != nil {
			return nil, fmt.Errorf("annotations csv row %d: measure_fraction: %w", i+2, err)
		}
		a.Label = record[4]
		a.Part = record[5]
		if a.PartNum, err = strconv.Atoi(record[6]); err != nil {
			return nil, fmt.Errorf("annotations csv row %d: part_num: %w", i+2, err)
		}
		a.Instrument = record[7]
		anns = append(anns, a)
	}
	for i := range anns[:len(anns)-1] {
		anns[i].EndQstamp = anns[i+1].Qstamp
		anns[i].EndMeasure = anns[i+1].Measure
	}
	anns[len(anns)-1].EndQstamp = math.Inf(1)
	return anns, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(score.Round(v), 'f', -1, 64)
}
