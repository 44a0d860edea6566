package score

import (
	"fmt"
	"math"
	"strings"

	"hauptstimme/internal/musicxml"
)

// Rounding is the decimal precision applied to every float column in the
// derived tables.
const Rounding = 4

// Round applies the shared table precision.
func Round(v float64) float64 {
	scale := math.Pow10(Rounding)
	return math.Round(v*scale) / scale
}

// defaultVelocity matches the conventional MIDI forte-piano midpoint
// (90/127) used when no dynamic has been seen yet.
const defaultVelocity = 90.0 / 127.0

// dynamicVelocities maps printed dynamics to MIDI velocities (MuseScore's
// export values, normalized to [0, 1]).
var dynamicVelocities = map[string]float64{
	"pppp": 20.0 / 127.0,
	"ppp":  36.0 / 127.0,
	"pp":   49.0 / 127.0,
	"p":    62.0 / 127.0,
	"mp":   75.0 / 127.0,
	"mf":   88.0 / 127.0,
	"f":    101.0 / 127.0,
	"ff":   114.0 / 127.0,
	"fff":  126.0 / 127.0,
	"sf":   101.0 / 127.0,
	"sfz":  101.0 / 127.0,
	"fp":   101.0 / 127.0,
}

// tempoWords maps tempo text (lowercased) to beats per minute, used when a
// score opens with "Adagio" instead of a metronome mark.
var tempoWords = map[string]float64{
	"grave":       40,
	"largo":       46,
	"larghetto":   54,
	"adagio":      52,
	"adagietto":   66,
	"andante":     72,
	"andantino":   80,
	"moderato":    90,
	"allegretto":  108,
	"allegro":     110,
	"vivace":      136,
	"presto":      168,
	"prestissimo": 200,
}

// Note is one sounding note event in score order (repeats not expanded).
type Note struct {
	Qstamp          float64
	Measure         int
	Beat            float64
	MeasureOffset   float64
	MeasureFraction float64
	DurationQ       float64
	Voice           int
	Pitch           SpelledPitch
	Chord           bool
	TopOfChord      bool
	Lyric           string
	Tie             string
	Velocity        float64
}

// Rest marks a timed rest (needed for melody-score assembly).
type Rest struct {
	Qstamp        float64
	Measure       int
	MeasureOffset float64
	DurationQ     float64
	Voice         int
	Lyric         string
}

// TextMark is a direction words element anchored to a score position.
type TextMark struct {
	Qstamp          float64
	Measure         int
	Beat            float64
	MeasureOffset   float64
	MeasureFraction float64
	Text            string
	Placement       string
}

// DynamicMark is a printed dynamic anchored to a score position.
type DynamicMark struct {
	Qstamp        float64
	Measure       int
	MeasureOffset float64
	Value         string
}

// Part is one instrumental part with its sounding note stream.
type Part struct {
	Index        int
	ID           string
	Name         string
	Abbreviation string
	Notes        []Note
	Rests        []Rest
	Texts        []TextMark
	Dynamics     []DynamicMark
}

// MeasureInfo describes one measure's position and repeat structure,
// derived from the first part.
type MeasureInfo struct {
	Number      int
	Offset      float64
	Length      float64
	Time        musicxml.TimeSig
	TimeChanged bool
	StartRepeat bool
	EndRepeat   bool
}

// Score is the timed model of a full orchestral score.
type Score struct {
	Title    string
	Composer string
	Parts    []*Part
	Measures []MeasureInfo
	// Tempos maps measure number to quarter BPM at tempo changes only.
	Tempos map[int]float64
}

// FinalMeasure returns the last measure number.
func (s *Score) FinalMeasure() int {
	if len(s.Measures) == 0 {
		return 0
	}
	return s.Measures[len(s.Measures)-1].Number
}

// FinalQstamp returns the qstamp at the end of the last measure.
func (s *Score) FinalQstamp() float64 {
	if len(s.Measures) == 0 {
		return 0
	}
	last := s.Measures[len(s.Measures)-1]
	return Round(last.Offset + last.Length)
}

// MeasureAt returns the measure info for a measure number.
func (s *Score) MeasureAt(number int) (MeasureInfo, bool) {
	for _, m := range s.Measures {
		if m.Number == number {
			return m, true
		}
	}
	return MeasureInfo{}, false
}

// Build constructs the timed score model from a parsed document.
func Build(doc *musicxml.Document) (*Score, error) {
	s := &Score{
		Title:    doc.Title(),
		Composer: doc.Identification.Composer(),
		Tempos:   make(map[int]float64),
	}

	layout, err := measureLayout(&doc.Parts[0])
	if err != nil {
		return nil, err
	}
	s.Measures = layout

	for i := range doc.Parts {
		part, tempos, err := buildPart(doc, i, layout)
		if err != nil {
			return nil, fmt.Errorf("part %q: %w", doc.Parts[i].ID, err)
		}
		s.Parts = append(s.Parts, part)
		if i == 0 {
			s.Tempos = tempos
		}
	}
	return s, nil
}

// measureLayout walks the first part to fix each measure's offset, content
// length, effective time signature, and repeat flags. Content length (the
// furthest cursor position) is used instead of the nominal meter length so
// pickup and truncated final measures line up across parts.
func measureLayout(p *musicxml.Part) ([]MeasureInfo, error) {
	var (
		layout    []MeasureInfo
		offset    float64
		divisions = 1
		timeSig   = musicxml.TimeSig{Beats: 4, BeatType: 4}
	)

	for mi := range p.Measures {
		m := &p.Measures[mi]
		info := MeasureInfo{Number: m.Number, Offset: offset, Time: timeSig}

		var cursor, maxPos float64
		for _, ev := range m.Events {
			switch e := ev.(type) {
			case *musicxml.Attributes:
				if e.Divisions > 0 {
					divisions = e.Divisions
				}
				if e.Time != nil {
					timeSig = *e.Time
					info.Time = timeSig
					info.TimeChanged = true
				}
			case *musicxml.Note:
				if e.IsGrace() {
					continue
				}
				if !e.IsChordMember() {
					cursor += float64(e.Duration) / float64(divisions)
				}
			case *musicxml.Backup:
				cursor -= float64(e.Duration) / float64(divisions)
			case *musicxml.Forward:
				cursor += float64(e.Duration) / float64(divisions)
			case *musicxml.Barline:
				if e.Repeat == nil {
					continue
				}
				switch e.Repeat.Direction {
				case "forward":
					info.StartRepeat = true
				case "backward":
					info.EndRepeat = true
				}
			}
			if cursor > maxPos {
				maxPos = cursor
			}
		}

		if maxPos <= 0 {
			maxPos = timeSig.QuarterLength()
		}
		info.Length = maxPos
		layout = append(layout, info)
		offset += maxPos
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("first part has no measures")
	}
	return layout, nil
}

func buildPart(doc *musicxml.Document, index int, layout []MeasureInfo) (*Part, map[int]float64, error) {
	src := &doc.Parts[index]
	if len(src.Measures) != len(layout) {
		return nil, nil, fmt.Errorf("measure count %d does not match first part (%d)",
			len(src.Measures), len(layout))
	}

	part := &Part{
		Index:        index,
		ID:           src.ID,
		Name:         doc.PartName(src.ID),
		Abbreviation: doc.PartAbbreviation(src.ID),
	}

	tempos := make(map[int]float64)
	var (
		divisions = 1
		trans     *musicxml.Transpose
		timeSig   = musicxml.TimeSig{Beats: 4, BeatType: 4}
		velocity  = defaultVelocity
	)

	for mi := range src.Measures {
		m := &src.Measures[mi]
		info := layout[mi]
		if info.TimeChanged {
			timeSig = info.Time
		}

		var cursor float64
		var prevOnset float64

		for _, ev := range m.Events {
			switch e := ev.(type) {
			case *musicxml.Attributes:
				if e.Divisions > 0 {
					divisions = e.Divisions
				}
				if e.Transpose != nil {
					trans = e.Transpose
				}
			case *musicxml.Sound:
				if e.Tempo > 0 {
					tempos[m.Number] = e.Tempo
				}
			case *musicxml.Direction:
				pos := cursor + float64(e.Offset)/float64(divisions)
				if pos < 0 {
					pos = 0
				}
				if e.Sound != nil && e.Sound.Tempo > 0 {
					tempos[m.Number] = e.Sound.Tempo
				}
				if e.Metronome != nil {
					if bpm := e.Metronome.QuarterBPM(); bpm > 0 {
						tempos[m.Number] = bpm
					}
				}
				if e.Dynamics != nil {
					if v, ok := dynamicVelocities[e.Dynamics.Value]; ok {
						velocity = v
					}
					part.Dynamics = append(part.Dynamics, DynamicMark{
						Qstamp:        Round(info.Offset + pos),
						Measure:       m.Number,
						MeasureOffset: pos,
						Value:         e.Dynamics.Value,
					})
				}
				if text := e.Text(); text != "" {
					if bpm, ok := tempoWords[strings.ToLower(text)]; ok {
						if _, seen := tempos[m.Number]; !seen {
							tempos[m.Number] = bpm * timeSig.BeatQuarterLength()
						}
					}
					part.Texts = append(part.Texts, TextMark{
						Qstamp:          Round(info.Offset + pos),
						Measure:         m.Number,
						Beat:            beatOf(pos, timeSig),
						MeasureOffset:   pos,
						MeasureFraction: fractionOf(pos, info.Length),
						Text:            text,
						Placement:       e.Placement,
					})
				}
			case *musicxml.Note:
				if e.IsGrace() {
					continue
				}
				durQ := float64(e.Duration) / float64(divisions)
				onset := cursor
				if e.IsChordMember() {
					onset = prevOnset
				}

				if e.IsRest() {
					part.Rests = append(part.Rests, Rest{
						Qstamp:        Round(info.Offset + onset),
						Measure:       m.Number,
						MeasureOffset: onset,
						DurationQ:     durQ,
						Voice:         e.Voice,
						Lyric:         e.Lyric(),
					})
				} else {
					sounding := soundingPitch(e.Pitch, trans)
					note := Note{
						Qstamp:          Round(info.Offset + onset),
						Measure:         m.Number,
						Beat:            beatOf(onset, timeSig),
						MeasureOffset:   onset,
						MeasureFraction: fractionOf(onset, info.Length),
						DurationQ:       durQ,
						Voice:           e.Voice,
						Pitch:           sounding,
						Chord:           e.IsChordMember(),
						Lyric:           e.Lyric(),
						Tie:             e.TieType(),
						Velocity:        velocity,
					}
					part.Notes = append(part.Notes, note)
				}

				if !e.IsChordMember() {
					prevOnset = onset
					cursor += durQ
				}
			case *musicxml.Backup:
				cursor -= float64(e.Duration) / float64(divisions)
				if cursor < 0 {
					cursor = 0
				}
			case *musicxml.Forward:
				cursor += float64(e.Duration) / float64(divisions)
			}
		}
	}

	markChordTops(part.Notes)
	return part, tempos, nil
}

// markChordTops flags, within every chord group, the note with the highest
// sounding pitch. Standalone notes are their own top.
func markChordTops(notes []Note) {
	for i := 0; i < len(notes); {
		j := i + 1
		for j < len(notes) && notes[j].Chord {
			j++
		}
		top := i
		for k := i + 1; k < j; k++ {
			if notes[k].Pitch.MIDI() > notes[top].Pitch.MIDI() {
				top = k
			}
		}
		notes[top].TopOfChord = true
		i = j
	}
}

func soundingPitch(p *musicxml.Pitch, trans *musicxml.Transpose) SpelledPitch {
	if p == nil {
		return SpelledPitch{}
	}
	written := SpelledPitch{Step: p.Step, Alter: int(p.Alter), Octave: p.Octave}
	if trans == nil {
		return written
	}
	return transpose(written, trans.Diatonic, trans.Chromatic, trans.OctaveChange)
}

func beatOf(measureOffset float64, ts musicxml.TimeSig) float64 {
	return Round(1 + measureOffset/ts.BeatQuarterLength())
}

func fractionOf(measureOffset, length float64) float64 {
	if length <= 0 {
		return 0
	}
	return Round(measureOffset / length)
}
