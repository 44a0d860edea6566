// Package score turns parsed MusicXML into a timed note-event model.
//
// Build walks every part's measure stream with a divisions cursor, applies
// written-to-sounding transposition, computes quarter-note offsets (qstamps),
// measure/beat positions, and dynamics-derived velocities, and collects the
// text directions and dynamics the annotation extractor needs.
//
// Expand applies a measure map's playback order to produce the
// repeats-expanded event table with wall-clock timestamps from the tempo
// map; Lightweight reduces that table to the per-part highest-pitch summary
// used for part-relation analysis.
package score
