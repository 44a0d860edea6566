package musicxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// Document is a partwise MusicXML score.
type Document struct {
	XMLName        xml.Name    `xml:"score-partwise"`
	Work           Work        `xml:"work"`
	MovementTitle  string      `xml:"movement-title"`
	Identification Ident       `xml:"identification"`
	PartList       []ScorePart `xml:"part-list>score-part"`
	Parts          []Part      `xml:"part"`
}

// Work carries the work-level title.
type Work struct {
	Title string `xml:"work-title"`
}

// Ident holds creator and encoding information.
type Ident struct {
	Creators []Creator `xml:"creator"`
	Rights   string    `xml:"rights"`
	Source   string    `xml:"source"`
}

// Creator is a typed creator entry (composer, arranger, ...).
type Creator struct {
	Type string `xml:"type,attr"`
	Name string `xml:",chardata"`
}

// Composer returns the first composer creator, or an empty string.
func (id Ident) Composer() string {
	for _, c := range id.Creators {
		if c.Type == "composer" || c.Type == "" {
			return strings.TrimSpace(c.Name)
		}
	}
	return ""
}

// ScorePart is a part-list entry carrying display names for a part.
type ScorePart struct {
	ID           string `xml:"id,attr"`
	Name         string `xml:"part-name"`
	Abbreviation string `xml:"part-abbreviation"`
}

// Part holds the measures of one instrumental part.
type Part struct {
	ID       string    `xml:"id,attr"`
	Measures []Measure `xml:"measure"`
}

// Measure preserves the ordered event stream of one measure.
//
// Events contains *Note, *Attributes, *Direction, *Backup, *Forward,
// *Barline, and *Sound values in document order.
type Measure struct {
	Number   int
	Implicit bool
	Events   []any
}

// UnmarshalXML decodes a measure while preserving element order, which is
// required to track the in-measure cursor across voices.
func (m *Measure) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "number":
			// Pickup measures are conventionally numbered "0"; some
			// exporters use "X1" style numbers for inserted measures.
			if n, err := strconv.Atoi(attr.Value); err == nil {
				m.Number = n
			}
		case "implicit":
			m.Implicit = attr.Value == "yes"
		}
	}

	for {
		token, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.StartElement:
			var ev any
			switch t.Name.Local {
			case "note":
				ev = new(Note)
			case "attributes":
				ev = new(Attributes)
			case "direction":
				ev = new(Direction)
			case "backup":
				ev = new(Backup)
			case "forward":
				ev = new(Forward)
			case "barline":
				ev = new(Barline)
			case "sound":
				ev = new(Sound)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := d.DecodeElement(ev, &t); err != nil {
				return fmt.Errorf("measure %d: decode %s: %w", m.Number, t.Name.Local, err)
			}
			m.Events = append(m.Events, ev)
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
	return nil
}

// Attributes carries divisions, meter, clef, and transposition changes.
type Attributes struct {
	Divisions int        `xml:"divisions"`
	Key       *Key       `xml:"key"`
	Time      *TimeSig   `xml:"time"`
	Clefs     []Clef     `xml:"clef"`
	Transpose *Transpose `xml:"transpose"`
}

// Key is a key signature change.
type Key struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode"`
}

// TimeSig is a time signature change.
type TimeSig struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

// QuarterLength returns the nominal measure length in quarter notes.
func (t TimeSig) QuarterLength() float64 {
	if t.BeatType == 0 {
		return 4
	}
	return float64(t.Beats) * 4 / float64(t.BeatType)
}

// BeatQuarterLength returns the length of one beat in quarter notes.
// Compound meters (6/8, 9/8, 12/8, ...) group three subdivisions per beat.
func (t TimeSig) BeatQuarterLength() float64 {
	if t.BeatType == 0 {
		return 1
	}
	unit := 4 / float64(t.BeatType)
	if t.Beats > 3 && t.Beats%3 == 0 {
		return unit * 3
	}
	return unit
}

// Clef is a clef change.
type Clef struct {
	Sign         string `xml:"sign"`
	Line         int    `xml:"line"`
	OctaveChange int    `xml:"clef-octave-change"`
}

// Transpose describes the written-to-sounding interval for a part.
type Transpose struct {
	Diatonic     int `xml:"diatonic"`
	Chromatic    int `xml:"chromatic"`
	OctaveChange int `xml:"octave-change"`
}

// Note is a single note, rest, or chord member.
type Note struct {
	Pitch    *Pitch  `xml:"pitch"`
	Duration int     `xml:"duration"`
	Voice    int     `xml:"voice"`
	Type     string  `xml:"type"`
	Staff    int     `xml:"staff"`
	Ties     []Tie   `xml:"tie"`
	Lyrics   []Lyric `xml:"lyric"`
	RestTag  *struct{} `xml:"rest"`
	ChordTag *struct{} `xml:"chord"`
	GraceTag *struct{} `xml:"grace"`
	Dot      []struct{} `xml:"dot"`
}

// IsRest reports whether the note is a rest.
func (n *Note) IsRest() bool { return n.RestTag != nil }

// IsChordMember reports whether the note shares its onset with the
// preceding note.
func (n *Note) IsChordMember() bool { return n.ChordTag != nil }

// IsGrace reports whether the note is a grace note (no duration).
func (n *Note) IsGrace() bool { return n.GraceTag != nil }

// Lyric returns the first lyric text attached to the note, if any.
func (n *Note) Lyric() string {
	if len(n.Lyrics) == 0 {
		return ""
	}
	return strings.TrimSpace(n.Lyrics[0].Text)
}

// TieType returns "start", "stop", or "" for untied notes. A note that both
// stops and starts a tie reports "continue".
func (n *Note) TieType() string {
	var start, stop bool
	for _, t := range n.Ties {
		switch t.Type {
		case "start":
			start = true
		case "stop":
			stop = true
		}
	}
	switch {
	case start && stop:
		return "continue"
	case start:
		return "start"
	case stop:
		return "stop"
	}
	return ""
}

// Tie marks tie starts and stops.
type Tie struct {
	Type string `xml:"type,attr"`
}

// Lyric is a syllable attached to a note start.
type Lyric struct {
	Number   string `xml:"number,attr"`
	Syllabic string `xml:"syllabic"`
	Text     string `xml:"text"`
}

// Pitch is a written pitch.
type Pitch struct {
	Step   string  `xml:"step"`
	Alter  float64 `xml:"alter"`
	Octave int     `xml:"octave"`
}

var stepSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// MIDI returns the MIDI note number of the written pitch.
func (p Pitch) MIDI() int {
	return stepSemitones[p.Step] + (p.Octave+1)*12 + int(p.Alter)
}

// Direction wraps words, metronome marks, dynamics, and wedges.
type Direction struct {
	Placement string     `xml:"placement,attr"`
	Words     []string   `xml:"direction-type>words"`
	Metronome *Metronome `xml:"direction-type>metronome"`
	Dynamics  *Dynamics  `xml:"direction-type>dynamics"`
	Wedge     *Wedge     `xml:"direction-type>wedge"`
	Sound     *Sound     `xml:"sound"`
	Offset    int        `xml:"offset"`
}

// Text returns the joined, trimmed direction words.
func (d *Direction) Text() string {
	parts := make([]string, 0, len(d.Words))
	for _, w := range d.Words {
		if s := strings.TrimSpace(w); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Metronome is a printed metronome mark.
type Metronome struct {
	BeatUnit    string `xml:"beat-unit"`
	BeatUnitDot []struct{} `xml:"beat-unit-dot"`
	PerMinute   string `xml:"per-minute"`
}

// QuarterBPM converts the mark to quarter notes per minute. Returns 0 when
// the per-minute field is not numeric (e.g. "ca. 60").
func (m *Metronome) QuarterBPM() float64 {
	bpm, err := strconv.ParseFloat(strings.TrimSpace(m.PerMinute), 64)
	if err != nil || bpm <= 0 {
		return 0
	}
	unit := map[string]float64{
		"whole": 4, "half": 2, "quarter": 1, "eighth": 0.5, "16th": 0.25,
	}[m.BeatUnit]
	if unit == 0 {
		unit = 1
	}
	if len(m.BeatUnitDot) > 0 {
		unit *= 1.5
	}
	return bpm * unit
}

// Dynamics captures a dynamic marking as its element name (p, f, mf, ...).
type Dynamics struct {
	Value string
}

// UnmarshalXML records the first child element name as the dynamic value.
func (dy *Dynamics) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if dy.Value == "" {
				dy.Value = t.Name.Local
			}
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

// Wedge is a crescendo/diminuendo hairpin boundary.
type Wedge struct {
	Type string `xml:"type,attr"`
}

// Sound carries playback hints (tempo in quarter BPM, dynamics percent).
type Sound struct {
	Tempo    float64 `xml:"tempo,attr"`
	Dynamics float64 `xml:"dynamics,attr"`
}

// Backup moves the in-measure cursor backward by duration divisions.
type Backup struct {
	Duration int `xml:"duration"`
}

// Forward moves the in-measure cursor forward by duration divisions.
type Forward struct {
	Duration int `xml:"duration"`
}

// Barline marks repeat boundaries.
type Barline struct {
	Location string  `xml:"location,attr"`
	Repeat   *Repeat `xml:"repeat"`
}

// Repeat is a forward or backward repeat sign.
type Repeat struct {
	Direction string `xml:"direction,attr"`
	Times     int    `xml:"times,attr"`
}

// Parse decodes a partwise MusicXML document from r.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode musicxml: %w", err)
	}
	if len(doc.Parts) == 0 {
		return nil, fmt.Errorf("decode musicxml: document has no parts")
	}
	return &doc, nil
}

// PartName returns the part-list display name for a part ID.
func (doc *Document) PartName(id string) string {
	for _, sp := range doc.PartList {
		if sp.ID == id {
			return strings.TrimSpace(sp.Name)
		}
	}
	return id
}

// PartAbbreviation returns the part-list abbreviation for a part ID,
// falling back to the full name.
func (doc *Document) PartAbbreviation(id string) string {
	for _, sp := range doc.PartList {
		if sp.ID == id {
			if abbrev := strings.TrimSpace(sp.Abbreviation); abbrev != "" {
				return abbrev
			}
			return strings.TrimSpace(sp.Name)
		}
	}
	return id
}

// Title returns the movement title, falling back to the work title.
func (doc *Document) Title() string {
	if t := strings.TrimSpace(doc.MovementTitle); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Work.Title)
}
