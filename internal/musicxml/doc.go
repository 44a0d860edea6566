// Package musicxml decodes the subset of MusicXML the corpus uses.
//
// It reads partwise documents from plain .musicxml/.xml files and from .mxl
// zip containers, resolving the rootfile through META-INF/container.xml.
// Measures preserve element order (notes, backup/forward cursors, attribute
// changes, directions, barlines) so callers can reconstruct onset positions
// for every voice. Non-UTF-8 documents are handled through a charset reader.
//
// This is deliberately not a general MusicXML implementation: layout,
// formatting, and engraving details are skipped. Anything timing-, pitch-,
// lyric-, or direction-related that the annotation pipeline needs is kept.
package musicxml
