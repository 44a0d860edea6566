package annotations

import (
	"fmt"
	"math"
	"sort"

	"hauptstimme/internal/score"
)

// MelodyOptions configures melody-score assembly.
type MelodyOptions struct {
	// InstrumentLabels adds the source part's abbreviation above the
	// first note of each annotation block.
	InstrumentLabels bool
	// LabelText adds the annotation label below the first note of each
	// block (used when annotations come from text expressions, which
	// would otherwise be lost).
	LabelText bool
	// Dynamics carries printed dynamics from the source parts.
	Dynamics bool
}

// DefaultMelodyOptions matches the corpus build settings.
func DefaultMelodyOptions() MelodyOptions {
	return MelodyOptions{InstrumentLabels: true, Dynamics: true}
}

// MelodyNote is one note of the assembled melody line.
type MelodyNote struct {
	Qstamp        float64
	Measure       int
	MeasureOffset float64
	DurationQ     float64
	Pitch         score.SpelledPitch
	Tie           string
	Lyric         string
}

// MelodyLabel is a text expression in the melody score.
type MelodyLabel struct {
	Measure       int
	MeasureOffset float64
	Text          string
	Placement     string
}

// Melody is the single-part melody score: for each annotation block, the
// first-voice notes of the annotated part, chords reduced to their top
// note.
type Melody struct {
	Title    string
	Composer string
	Measures []score.MeasureInfo
	Tempos   map[int]float64
	Notes    []MelodyNote
	Labels   []MelodyLabel
	Dynamics []score.DynamicMark
}

// MelodyScore assembles the melody from the annotated blocks. Notes
// overhanging a block end are shortened, and ties left dangling at block
// boundaries are closed or dropped.
func MelodyScore(s *score.Score, anns []Annotation, opts MelodyOptions) (*Melody, error) {
	if len(anns) == 0 {
		return nil, fmt.Errorf("no annotations to assemble a melody from")
	}

	m := &Melody{
		Title:    s.Title,
		Composer: s.Composer,
		Measures: s.Measures,
		Tempos:   s.Tempos,
	}

	for _, a := range anns {
		if a.PartNum < 0 || a.PartNum >= len(s.Parts) {
			return nil, fmt.Errorf("annotation at qstamp %v references part %d of %d",
				a.Qstamp, a.PartNum, len(s.Parts))
		}
		part := s.Parts[a.PartNum]
		transferBlock(m, part, a)

		if opts.InstrumentLabels {
			m.Labels = append(m.Labels, MelodyLabel{
				Measure:       a.Measure,
				MeasureOffset: a.MeasureOffset,
				Text:          part.Abbreviation,
				Placement:     "above",
			})
		}
		if opts.LabelText {
			m.Labels = append(m.Labels, MelodyLabel{
				Measure:       a.Measure,
				MeasureOffset: a.MeasureOffset,
				Text:          a.Label,
				Placement:     "below",
			})
		}
		if opts.Dynamics {
			for _, d := range part.Dynamics {
				if d.Qstamp >= a.Qstamp && d.Qstamp < a.EndQstamp {
					m.Dynamics = append(m.Dynamics, d)
				}
			}
		}
	}

	sort.SliceStable(m.Notes, func(i, j int) bool { return m.Notes[i].Qstamp < m.Notes[j].Qstamp })
	closeDanglingTies(m.Notes)
	sort.SliceStable(m.Dynamics, func(i, j int) bool { return m.Dynamics[i].Qstamp < m.Dynamics[j].Qstamp })
	return m, nil
}

// transferBlock copies the annotated part's notes inside [start, end) into
// the melody: first voice only, top chord notes only, overhang shortened.
func transferBlock(m *Melody, part *score.Part, a Annotation) {
	voice := firstVoice(part, a)
	for _, n := range part.Notes {
		if n.Qstamp < a.Qstamp || n.Qstamp >= a.EndQstamp {
			continue
		}
		if n.Voice != voice || !n.TopOfChord {
			continue
		}
		durQ := n.DurationQ
		if end := a.EndQstamp; !math.IsInf(end, 1) && n.Qstamp+durQ > end {
			durQ = end - n.Qstamp
		}
		m.Notes = append(m.Notes, MelodyNote{
			Qstamp:        n.Qstamp,
			Measure:       n.Measure,
			MeasureOffset: n.MeasureOffset,
			DurationQ:     durQ,
			Pitch:         n.Pitch,
			Tie:           n.Tie,
			Lyric:         n.Lyric,
		})
	}
}

// firstVoice picks the lowest voice number the part uses inside the block.
func firstVoice(part *score.Part, a Annotation) int {
	voice := 0
	for _, n := range part.Notes {
		if n.Qstamp < a.Qstamp || n.Qstamp >= a.EndQstamp {
			continue
		}
		if voice == 0 || n.Voice < voice {
			voice = n.Voice
		}
	}
	return voice
}

// closeDanglingTies repairs ties broken by block boundaries: an open tie
// with a continuation turns its last note into a stop; an open tie with no
// continuation is removed. Stops with no opening are dropped too.
func closeDanglingTies(notes []MelodyNote) {
	open := make(map[int][]int)
	for i := range notes {
		midi := notes[i].Pitch.MIDI()
		switch notes[i].Tie {
		case "start":
			open[midi] = []int{i}
		case "continue":
			if chain, ok := open[midi]; ok {
				open[midi] = append(chain, i)
			} else {
				notes[i].Tie = "start"
				open[midi] = []int{i}
			}
		case "stop":
			if _, ok := open[midi]; ok {
				delete(open, midi)
			} else {
				notes[i].Tie = ""
			}
		}
	}
	for _, chain := range open {
		last := chain[len(chain)-1]
		if len(chain) > 1 {
			notes[last].Tie = "stop"
		} else {
			notes[last].Tie = ""
		}
	}
}
