package annotations

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"hauptstimme/internal/score"
)

// melodyDivisions is the duration quantum per quarter note in the written
// melody score. 480 divides every common tuplet cleanly.
const melodyDivisions = 480

// WriteMusicXML renders the melody as a single-part partwise score.
func WriteMusicXML(m *Melody, path string) error {
	var b strings.Builder
	b.WriteString(xml.Header)
	b.WriteString(`<score-partwise version="4.0">` + "\n")

	title := m.Title
	if title == "" {
		title = "Melody Score"
	} else {
		title += " - Melody Score"
	}
	fmt.Fprintf(&b, "  <movement-title>%s</movement-title>\n", escape(title))
	if m.Composer != "" {
		b.WriteString("  <identification>\n")
		fmt.Fprintf(&b, "    <creator type=\"composer\">%s</creator>\n", escape(m.Composer))
		b.WriteString("  </identification>\n")
	}
	b.WriteString("  <part-list>\n")
	b.WriteString("    <score-part id=\"P1\"><part-name>Melody Score</part-name></score-part>\n")
	b.WriteString("  </part-list>\n")
	b.WriteString("  <part id=\"P1\">\n")

	for i, info := range m.Measures {
		writeMeasure(&b, m, info, i == 0)
	}

	b.WriteString("  </part>\n")
	b.WriteString("</score-partwise>\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write melody score: %w", err)
	}
	return nil
}

func writeMeasure(b *strings.Builder, m *Melody, info score.MeasureInfo, first bool) {
	fmt.Fprintf(b, "    <measure number=\"%d\">\n", info.Number)

	if first || info.TimeChanged {
		b.WriteString("      <attributes>\n")
		if first {
			fmt.Fprintf(b, "        <divisions>%d</divisions>\n", melodyDivisions)
		}
		fmt.Fprintf(b, "        <time><beats>%d</beats><beat-type>%d</beat-type></time>\n",
			info.Time.Beats, info.Time.BeatType)
		b.WriteString("      </attributes>\n")
	}

	if bpm, ok := m.Tempos[info.Number]; ok && bpm > 0 {
		b.WriteString("      <direction placement=\"above\">\n")
		fmt.Fprintf(b, "        <direction-type><metronome><beat-unit>quarter</beat-unit><per-minute>%g</per-minute></metronome></direction-type>\n", bpm)
		fmt.Fprintf(b, "        <sound tempo=\"%g\"/>\n", bpm)
		b.WriteString("      </direction>\n")
	}

	for _, label := range m.Labels {
		if label.Measure != info.Number {
			continue
		}
		fmt.Fprintf(b, "      <direction placement=%q>\n", label.Placement)
		fmt.Fprintf(b, "        <direction-type><words>%s</words></direction-type>\n", escape(label.Text))
		b.WriteString("      </direction>\n")
	}
	for _, d := range m.Dynamics {
		if d.Measure != info.Number {
			continue
		}
		b.WriteString("      <direction placement=\"below\">\n")
		fmt.Fprintf(b, "        <direction-type><dynamics><%s/></dynamics></direction-type>\n", d.Value)
		b.WriteString("      </direction>\n")
	}

	// Notes in this measure, with gaps and the trailing remainder filled
	// by rests.
	var notes []MelodyNote
	for _, n := range m.Notes {
		if n.Measure == info.Number {
			notes = append(notes, n)
		}
	}
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].MeasureOffset < notes[j].MeasureOffset })

	cursor := 0.0
	for _, n := range notes {
		if gap := n.MeasureOffset - cursor; gap > 1e-6 {
			writeRest(b, gap)
		}
		writeNote(b, n)
		if end := n.MeasureOffset + n.DurationQ; end > cursor {
			cursor = end
		}
	}
	if gap := info.Length - cursor; gap > 1e-6 {
		writeRest(b, gap)
	}

	b.WriteString("    </measure>\n")
}

func writeNote(b *strings.Builder, n MelodyNote) {
	b.WriteString("      <note>\n")
	fmt.Fprintf(b, "        <pitch><step>%s</step>", n.Pitch.Step)
	if n.Pitch.Alter != 0 {
		fmt.Fprintf(b, "<alter>%d</alter>", n.Pitch.Alter)
	}
	fmt.Fprintf(b, "<octave>%d</octave></pitch>\n", n.Pitch.Octave)
	fmt.Fprintf(b, "        <duration>%d</duration>\n", divisionsFor(n.DurationQ))
	switch n.Tie {
	case "start":
		b.WriteString("        <tie type=\"start\"/>\n")
	case "stop":
		b.WriteString("        <tie type=\"stop\"/>\n")
	case "continue":
		b.WriteString("        <tie type=\"stop\"/>\n        <tie type=\"start\"/>\n")
	}
	b.WriteString("        <voice>1</voice>\n")
	writeType(b, n.DurationQ)
	if n.Lyric != "" {
		fmt.Fprintf(b, "        <lyric><text>%s</text></lyric>\n", escape(n.Lyric))
	}
	b.WriteString("      </note>\n")
}

func writeRest(b *strings.Builder, durQ float64) {
	b.WriteString("      <note>\n")
	b.WriteString("        <rest/>\n")
	fmt.Fprintf(b, "        <duration>%d</duration>\n", divisionsFor(durQ))
	b.WriteString("        <voice>1</voice>\n")
	b.WriteString("      </note>\n")
}

func divisionsFor(durQ float64) int {
	d := int(math.Round(durQ * melodyDivisions))
	if d < 1 {
		d = 1
	}
	return d
}

var noteTypes = []struct {
	quarters float64
	name     string
	dot      bool
}{
	{6, "whole", true},
	{4, "whole", false},
	{3, "half", true},
	{2, "half", false},
	{1.5, "quarter", true},
	{1, "quarter", false},
	{0.75, "eighth", true},
	{0.5, "eighth", false},
	{0.375, "16th", true},
	{0.25, "16th", false},
	{0.125, "32nd", false},
}

// writeType emits the printed note type for common durations; irregular
// durations (shortened overhangs, tuplets) carry only their duration and
// are left to the renderer.
func writeType(b *strings.Builder, durQ float64) {
	for _, nt := range noteTypes {
		if math.Abs(durQ-nt.quarters) < 1e-6 {
			fmt.Fprintf(b, "        <type>%s</type>\n", nt.name)
			if nt.dot {
				b.WriteString("        <dot/>\n")
			}
			return
		}
	}
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
