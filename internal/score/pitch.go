package score

import (
	"fmt"
	"strings"
)

var letterOrder = []string{"C", "D", "E", "F", "G", "A", "B"}

var letterSemitones = map[string]int{
	"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11,
}

// SpelledPitch is a concert-pitch spelling with its MIDI number.
type SpelledPitch struct {
	Step   string
	Alter  int
	Octave int
}

// MIDI returns the MIDI note number for the spelling.
func (p SpelledPitch) MIDI() int {
	return letterSemitones[p.Step] + (p.Octave+1)*12 + p.Alter
}

// Name renders the pitch in Scientific Pitch Notation with music21-style
// accidentals: '#' for sharps and '-' for flats, e.g. "B-4", "F##3".
func (p SpelledPitch) Name() string {
	var acc string
	switch {
	case p.Alter > 0:
		acc = strings.Repeat("#", p.Alter)
	case p.Alter < 0:
		acc = strings.Repeat("-", -p.Alter)
	}
	return fmt.Sprintf("%s%s%d", p.Step, acc, p.Octave)
}

// PitchClass returns the spelling without the octave ("B-", "F##").
func (p SpelledPitch) PitchClass() string {
	name := p.Name()
	return name[:len(name)-1]
}

// Letter returns the bare letter name, the enharmonic-insensitive class
// used for parallel-interval detection.
func (p SpelledPitch) Letter() string { return p.Step }

// transpose shifts a written pitch by the part's transposition interval.
// The diatonic step count fixes the new letter; the alteration is whatever
// is needed for the chromatic distance to come out right, so spellings stay
// faithful to the written part (a Bb clarinet's written D becomes C, not
// B#).
func transpose(p SpelledPitch, diatonic, chromatic, octaveChange int) SpelledPitch {
	if diatonic == 0 && chromatic == 0 && octaveChange == 0 {
		return p
	}

	oldIdx := letterIndex(p.Step)
	newIdx := oldIdx + diatonic
	octave := p.Octave + octaveChange
	for newIdx < 0 {
		newIdx += 7
		octave--
	}
	for newIdx >= 7 {
		newIdx -= 7
		octave++
	}
	step := letterOrder[newIdx]

	target := p.MIDI() + chromatic + 12*octaveChange
	natural := letterSemitones[step] + (octave+1)*12
	alter := target - natural

	// Extreme alterations mean the diatonic hint was bogus; respell from
	// the chromatic target with sharps.
	if alter < -2 || alter > 2 {
		return spellMIDI(target)
	}
	return SpelledPitch{Step: step, Alter: alter, Octave: octave}
}

func letterIndex(step string) int {
	for i, l := range letterOrder {
		if l == step {
			return i
		}
	}
	return 0
}

var sharpSpelling = []struct {
	step  string
	alter int
}{
	{"C", 0}, {"C", 1}, {"D", 0}, {"E", -1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"A", -1}, {"A", 0}, {"B", -1}, {"B", 0},
}

func spellMIDI(midi int) SpelledPitch {
	pc := ((midi % 12) + 12) % 12
	s := sharpSpelling[pc]
	return SpelledPitch{Step: s.step, Alter: s.alter, Octave: midi/12 - 1}
}
