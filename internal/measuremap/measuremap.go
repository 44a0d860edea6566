// Package measuremap implements the measure-map interchange format: a
// serialized description of measure boundaries, lengths, and repeat
// structure used to reconcile different encodings of the same piece.
package measuremap

import (
	"fmt"
	"strconv"

	"hauptstimme/internal/score"
)

// Entry describes one measure. Count is the 1-based position in encoded
// order; Number is the printed measure number (0 for a pickup). Next lists
// the counts that can follow in playback order, with -1 marking the end of
// the piece.
type Entry struct {
	ID            int     `json:"ID"`
	Count         int     `json:"count"`
	Qstamp        float64 `json:"qstamp"`
	Number        int     `json:"number"`
	Name          string  `json:"name"`
	TimeSignature string  `json:"time_signature"`
	NominalLength float64 `json:"nominal_length"`
	ActualLength  float64 `json:"actual_length"`
	StartRepeat   bool    `json:"start_repeat"`
	EndRepeat     bool    `json:"end_repeat"`
	Next          []int   `json:"next"`
}

// Map is an ordered measure map.
type Map struct {
	Entries []Entry
}

// FinalCount returns the count of the last measure.
func (m *Map) FinalCount() int {
	if len(m.Entries) == 0 {
		return 0
	}
	return m.Entries[len(m.Entries)-1].Count
}

// ByCount returns the entry with the given count, or nil.
func (m *Map) ByCount(count int) *Entry {
	for i := range m.Entries {
		if m.Entries[i].Count == count {
			return &m.Entries[i]
		}
	}
	return nil
}

// FromScore derives the full measure map. The `next` chain follows encoded
// order, with end repeats jumping back to the most recent start repeat (or
// the first measure) before continuing.
func FromScore(s *score.Score) *Map {
	m := &Map{}
	lastStart := 1
	for i, info := range s.Measures {
		count := i + 1
		if info.StartRepeat {
			lastStart = count
		}

		entry := Entry{
			ID:            count,
			Count:         count,
			Qstamp:        score.Round(info.Offset),
			Number:        info.Number,
			Name:          strconv.Itoa(info.Number),
			TimeSignature: fmt.Sprintf("%d/%d", info.Time.Beats, info.Time.BeatType),
			NominalLength: score.Round(info.Time.QuarterLength()),
			ActualLength:  score.Round(info.Length),
			StartRepeat:   info.StartRepeat,
			EndRepeat:     info.EndRepeat,
		}

		forward := count + 1
		if i == len(s.Measures)-1 {
			forward = -1
		}
		if info.EndRepeat {
			entry.Next = []int{lastStart, forward}
		} else {
			entry.Next = []int{forward}
		}
		m.Entries = append(m.Entries, entry)
	}
	return m
}

// PlaybackOrder resolves the measure sequence with repeats taken. Each
// visit to a measure consumes the first remaining element of its `next`
// list, so an end repeat jumps back on the first pass and falls through on
// the second.
func (m *Map) PlaybackOrder() ([]int, error) {
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("empty measure map")
	}

	pending := make(map[int][]int, len(m.Entries))
	for _, e := range m.Entries {
		pending[e.Count] = append([]int(nil), e.Next...)
	}

	var order []int
	limit := 4 * len(m.Entries) * len(m.Entries)
	current := m.Entries[0].Count
	for {
		if len(order) > limit {
			return nil, fmt.Errorf("playback order does not terminate (cycle without exit)")
		}
		order = append(order, current)

		next, ok := pending[current]
		if !ok {
			return nil, fmt.Errorf("measure count %d has no entry", current)
		}
		if len(next) == 0 {
			// All alternatives consumed; the piece ends here.
			return order, nil
		}
		target := next[0]
		if len(next) > 1 {
			pending[current] = next[1:]
		}
		if target == -1 {
			return order, nil
		}
		current = target
	}
}

// Compress drops every entry that follows the default progression: number
// and count advancing by one, an unchanged time signature, actual length
// equal to nominal, no repeats, and next pointing to the following measure.
// The first and last entries always survive, so Expand can reconstruct the
// full map.
func (m *Map) Compress() *Map {
	out := &Map{}
	for i, e := range m.Entries {
		if i == 0 || i == len(m.Entries)-1 || deviates(e, m.Entries[i-1]) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

func deviates(e, prev Entry) bool {
	if e.StartRepeat || e.EndRepeat {
		return true
	}
	if e.Number != prev.Number+1 || e.Name != strconv.Itoa(e.Number) {
		return true
	}
	if e.TimeSignature != prev.TimeSignature {
		return true
	}
	if e.ActualLength != e.NominalLength {
		return true
	}
	return len(e.Next) != 1 || e.Next[0] != e.Count+1
}

// Expand reconstructs the full map from a compressed one. Gaps between
// surviving entries are filled with the default progression.
func (m *Map) Expand() (*Map, error) {
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("empty measure map")
	}
	out := &Map{}
	prev := m.Entries[0]
	out.Entries = append(out.Entries, prev)
	for _, e := range m.Entries[1:] {
		if e.Count <= prev.Count {
			return nil, fmt.Errorf("compressed map counts not increasing at %d", e.Count)
		}
		for count := prev.Count + 1; count < e.Count; count++ {
			filler := Entry{
				ID:            count,
				Count:         count,
				Qstamp:        score.Round(prev.Qstamp + prev.ActualLength),
				Number:        prev.Number + 1,
				TimeSignature: prev.TimeSignature,
				NominalLength: prev.NominalLength,
				ActualLength:  prev.NominalLength,
				Next:          []int{count + 1},
			}
			filler.Name = strconv.Itoa(filler.Number)
			out.Entries = append(out.Entries, filler)
			prev = filler
		}
		out.Entries = append(out.Entries, e)
		prev = e
	}
	return out, nil
}
