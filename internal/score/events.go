package score

import (
	"fmt"
	"sort"
)

// DefaultQuarterBPM is assumed when a score carries no tempo indication.
const DefaultQuarterBPM = 120.0

// Event is one note occurrence in the repeats-expanded timeline. A note
// inside a repeated section yields one Event per pass, sharing its
// ScoreQstamp.
type Event struct {
	ScoreQstamp float64
	Qstamp      float64
	Tstamp      float64
	Measure     int
	Beat        float64
	Instrument  string
	PartIndex   int
	DurationQ   float64
	Duration    float64
	Pitch       SpelledPitch
	Velocity    float64
}

// EventTable is the full repeats-expanded note-event table, ordered by
// expanded qstamp.
type EventTable struct {
	Events []Event
}

// TempoAtMeasure resolves the quarter BPM in force at each measure: tempo
// marks fill forward, and a score with no marks runs at DefaultQuarterBPM.
func (s *Score) TempoAtMeasure() map[int]float64 {
	resolved := make(map[int]float64, len(s.Measures))
	current := DefaultQuarterBPM
	for _, m := range s.Measures {
		if bpm, ok := s.Tempos[m.Number]; ok && bpm > 0 {
			current = bpm
		}
		resolved[m.Number] = current
	}
	return resolved
}

// Expand produces the expanded event table following a playback order of
// 1-based measure counts (as produced by a measure map). Each pass through
// a measure advances the expanded qstamp by the measure's length and the
// timestamp by its length at the tempo then in force.
func (s *Score) Expand(playback []int) (*EventTable, error) {
	if len(playback) == 0 {
		return nil, fmt.Errorf("empty playback order")
	}

	type onsetGroup struct {
		rel    float64
		events []int
	}
	// Group note indices by (measure index, onset) across all parts.
	perMeasure := make([][]onsetGroup, len(s.Measures))
	measureIndex := make(map[int]int, len(s.Measures))
	for i, m := range s.Measures {
		measureIndex[m.Number] = i
	}

	type flatNote struct {
		note Note
		part *Part
	}
	var flat []flatNote
	for _, part := range s.Parts {
		for _, n := range part.Notes {
			flat = append(flat, flatNote{note: n, part: part})
		}
	}

	groupAt := make(map[int]map[float64]*onsetGroup)
	for idx, fn := range flat {
		mi, ok := measureIndex[fn.note.Measure]
		if !ok {
			continue
		}
		if groupAt[mi] == nil {
			groupAt[mi] = make(map[float64]*onsetGroup)
		}
		key := Round(fn.note.MeasureOffset)
		g, ok := groupAt[mi][key]
		if !ok {
			g = &onsetGroup{rel: key}
			groupAt[mi][key] = g
		}
		g.events = append(g.events, idx)
	}
	for mi, groups := range groupAt {
		ordered := make([]onsetGroup, 0, len(groups))
		for _, g := range groups {
			ordered = append(ordered, *g)
		}
		sort.Slice(ordered, func(a, b int) bool { return ordered[a].rel < ordered[b].rel })
		perMeasure[mi] = ordered
	}

	tempos := s.TempoAtMeasure()
	table := &EventTable{}

	var nextQ, nextT float64
	for _, count := range playback {
		mi := count - 1
		if mi < 0 || mi >= len(s.Measures) {
			return nil, fmt.Errorf("playback order references measure count %d of %d", count, len(s.Measures))
		}
		info := s.Measures[mi]
		quarterSecs := 60 / tempos[info.Number]

		for _, g := range perMeasure[mi] {
			for _, idx := range g.events {
				fn := flat[idx]
				table.Events = append(table.Events, Event{
					ScoreQstamp: fn.note.Qstamp,
					Qstamp:      Round(nextQ + g.rel),
					Tstamp:      Round(nextT + g.rel*quarterSecs),
					Measure:     info.Number,
					Beat:        fn.note.Beat,
					Instrument:  fn.part.Name,
					PartIndex:   fn.part.Index,
					DurationQ:   Round(fn.note.DurationQ),
					Duration:    Round(fn.note.DurationQ * quarterSecs),
					Pitch:       fn.note.Pitch,
					Velocity:    Round(fn.note.Velocity),
				})
			}
		}

		nextQ += info.Length
		nextT += info.Length * quarterSecs
	}

	sort.SliceStable(table.Events, func(a, b int) bool {
		ea, eb := table.Events[a], table.Events[b]
		if ea.Qstamp != eb.Qstamp {
			return ea.Qstamp < eb.Qstamp
		}
		if ea.PartIndex != eb.PartIndex {
			return ea.PartIndex < eb.PartIndex
		}
		return ea.Pitch.MIDI() < eb.Pitch.MIDI()
	})
	return table, nil
}

// SequentialPlayback returns the no-repeat playback order 1..N, used when
// a score has no measure map.
func (s *Score) SequentialPlayback() []int {
	order := make([]int, len(s.Measures))
	for i := range order {
		order[i] = i + 1
	}
	return order
}

// OnsetTimes returns the distinct expanded timestamps at which any note
// starts, in ascending order.
func (t *EventTable) OnsetTimes() []float64 {
	seen := make(map[float64]struct{})
	var times []float64
	for _, e := range t.Events {
		if _, ok := seen[e.Tstamp]; ok {
			continue
		}
		seen[e.Tstamp] = struct{}{}
		times = append(times, e.Tstamp)
	}
	sort.Float64s(times)
	return times
}

// MaxQstamp returns the largest expanded qstamp in the table.
func (t *EventTable) MaxQstamp() float64 {
	var max float64
	for _, e := range t.Events {
		if e.Qstamp > max {
			max = e.Qstamp
		}
	}
	return max
}
