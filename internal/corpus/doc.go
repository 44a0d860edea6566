// Package corpus persists per-score processing state in SQLite: which
// scores have been seen, which stage each is in, where the derived
// artifacts live, and content fingerprints for skipping unchanged files.
package corpus
