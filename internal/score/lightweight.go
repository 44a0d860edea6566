package score

import (
	"fmt"
	"sort"
)

// RestCell marks a part at rest in the lightweight table.
const RestCell = "r"

// LightRow is one qstamp of the lightweight summary: the position columns
// followed by one pitch cell per part.
type LightRow struct {
	Qstamp  float64
	Tstamp  float64
	Measure int
	Beat    float64
	Pitches []string
}

// LightweightTable summarises which pitch every part sounds at each
// expanded qstamp. Cells hold the highest sounding pitch in Scientific
// Pitch Notation, or "r" when the part rests.
type LightweightTable struct {
	Parts []string
	Rows  []LightRow
}

// PartColumn returns the column index for a part name, or -1.
func (t *LightweightTable) PartColumn(name string) int {
	for i, p := range t.Parts {
		if p == name {
			return i
		}
	}
	return -1
}

// Lightweight reduces an expanded event table to the per-part summary.
// Held notes fill forward through later qstamps until their end, so a bare
// "r" always means silence rather than "no new onset".
func Lightweight(s *Score, table *EventTable) (*LightweightTable, error) {
	parts := make([]string, len(s.Parts))
	colByName := make(map[string]int, len(s.Parts))
	for i, p := range s.Parts {
		parts[i] = p.Name
		colByName[p.Name] = i
	}

	type cell struct {
		pitch SpelledPitch
		durQ  float64
		set   bool
	}
	type rowState struct {
		row   LightRow
		cells []cell
	}

	byQstamp := make(map[float64]*rowState)
	for _, e := range table.Events {
		rs, ok := byQstamp[e.Qstamp]
		if !ok {
			rs = &rowState{
				row: LightRow{
					Qstamp:  e.Qstamp,
					Tstamp:  e.Tstamp,
					Measure: e.Measure,
					Beat:    e.Beat,
				},
				cells: make([]cell, len(parts)),
			}
			byQstamp[e.Qstamp] = rs
		} else if rs.row.Measure != e.Measure || rs.row.Beat != e.Beat {
			// Every expanded qstamp must resolve to a single score
			// position, otherwise downstream joins on (measure, beat)
			// are ambiguous.
			return nil, fmt.Errorf(
				"qstamp %v maps to both measure %d beat %v and measure %d beat %v",
				e.Qstamp, rs.row.Measure, rs.row.Beat, e.Measure, e.Beat)
		}

		col, ok := colByName[e.Instrument]
		if !ok {
			continue
		}
		c := &rs.cells[col]
		if !c.set || e.Pitch.MIDI() > c.pitch.MIDI() {
			c.pitch = e.Pitch
			c.durQ = e.DurationQ
			c.set = true
		}
	}

	states := make([]*rowState, 0, len(byQstamp))
	for _, rs := range byQstamp {
		states = append(states, rs)
	}
	sort.Slice(states, func(a, b int) bool { return states[a].row.Qstamp < states[b].row.Qstamp })

	rows := make([]LightRow, len(states))
	for i, rs := range states {
		rs.row.Pitches = make([]string, len(parts))
		rows[i] = rs.row
	}

	// Per part: write onsets, then fill held notes forward until they end.
	for col := range parts {
		for i, rs := range states {
			c := rs.cells[col]
			if !c.set {
				if rows[i].Pitches[col] == "" {
					rows[i].Pitches[col] = RestCell
				}
				continue
			}
			name := c.pitch.Name()
			rows[i].Pitches[col] = name
			end := rs.row.Qstamp + c.durQ
			for j := i + 1; j < len(rows) && rows[j].Qstamp < end; j++ {
				if states[j].cells[col].set {
					break
				}
				rows[j].Pitches[col] = name
			}
		}
	}

	return &LightweightTable{Parts: parts, Rows: rows}, nil
}
