// Command hauptstimme manages an annotated orchestral score corpus: it
// derives measure maps, melody scores, and part-relationship summaries
// from annotated MusicXML, aligns scores to audio recordings, and
// maintains the corpus metadata tables.
package main
