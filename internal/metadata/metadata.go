// Package metadata manages the corpus metadata tables: composers, sets,
// scores, and audio recordings, stored as TSV files at the corpus root.
package metadata

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Composer is one row of composers.tsv.
type Composer struct {
	ID   int
	Name string
}

// Set is one row of sets.tsv: a collection of scores (a symphony, a
// suite) under one corpus directory.
type Set struct {
	ID         int
	Path       string
	Name       string
	ComposerID int
	IMSLPLink  string
}

// Score is one row of scores.tsv.
type Score struct {
	ID    int
	Path  string
	Name  string
	SetID int
}

// Audio is one row of audios.tsv. ScoreID is -1 until the recording has
// been matched to a score.
type Audio struct {
	ID         int
	Name       string
	Performers string
	Publisher  string
	Year       int
	SetID      int
	Path       string
	ScoreID    int
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// DisplayName turns a corpus path component into a display name:
// underscores become spaces and each word is title-cased.
func DisplayName(component string) string {
	return titleCaser.String(strings.ReplaceAll(component, "_", " "))
}

// scoreExtensions are the file types InitScores picks up.
var scoreExtensions = map[string]bool{
	".mxl":      true,
	".musicxml": true,
	".xml":      true,
	".mscz":     true,
}

// InitScores walks the corpus tree and builds a scores table, attaching
// each score to the set whose path is its longest matching prefix.
// Melody-score derivatives are skipped.
func InitScores(fsys fs.FS, sets []Set) ([]Score, error) {
	byLen := make([]Set, len(sets))
	copy(byLen, sets)
	sort.Slice(byLen, func(a, b int) bool { return len(byLen[a].Path) > len(byLen[b].Path) })

	var scores []Score
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if !scoreExtensions[ext] {
			return nil
		}
		if strings.HasSuffix(strings.TrimSuffix(p, ext), "_melody") {
			return nil
		}
		setID := -1
		for _, s := range byLen {
			if s.Path != "" && (p == s.Path || strings.HasPrefix(p, s.Path+"/")) {
				setID = s.ID
				break
			}
		}
		if setID < 0 {
			return fmt.Errorf("score %q belongs to no set", p)
		}
		scores = append(scores, Score{
			ID:    len(scores),
			Path:  filepath.ToSlash(p),
			SetID: setID,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].Path < scores[b].Path })
	for i := range scores {
		scores[i].ID = i
	}
	return scores, nil
}

var romanValues = map[byte]int{
	'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000,
}

// RomanToInt converts a roman numeral (any case) to its value.
func RomanToInt(roman string) (int, error) {
	roman = strings.ToUpper(roman)
	total, prev := 0, 0
	for i := len(roman) - 1; i >= 0; i-- {
		v, ok := romanValues[roman[i]]
		if !ok {
			return 0, fmt.Errorf("invalid roman numeral %q", roman)
		}
		if v < prev {
			total -= v
		} else {
			total += v
		}
		prev = v
	}
	return total, nil
}

var ordinalPrefix = regexp.MustCompile(`^(\d+|[IVXLCDMivxlcdm]+)\.\s+`)

// parseOrdinal extracts a leading "1. " or "IV. " prefix from a
// recording name, returning the movement number and the remainder.
func parseOrdinal(name string) (int, string, bool) {
	m := ordinalPrefix.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	rest := strings.TrimPrefix(name, m[0])
	if n, err := strconv.Atoi(m[1]); err == nil {
		return n, rest, true
	}
	n, err := RomanToInt(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, rest, true
}

// MatchAudiosToScores matches recordings to scores by the ordinal prefix
// of the recording name ("1. Allegro", "IV. Finale"). Matching is only
// attempted within a set when it holds as many recordings as scores,
// since only then do the ordinals plausibly line up. Matched scores get
// their display name from the recording; matched audios get the score ID.
// Returns the number of matches made.
func MatchAudiosToScores(scores []Score, audios []Audio) int {
	scoresBySet := make(map[int][]int)
	for i, s := range scores {
		scoresBySet[s.SetID] = append(scoresBySet[s.SetID], i)
	}
	audiosBySet := make(map[int][]int)
	for i, a := range audios {
		audiosBySet[a.SetID] = append(audiosBySet[a.SetID], i)
	}

	matched := 0
	for setID, audioIdx := range audiosBySet {
		scoreIdx := scoresBySet[setID]
		if len(audioIdx) != len(scoreIdx) {
			continue
		}
		for _, ai := range audioIdx {
			num, rest, ok := parseOrdinal(audios[ai].Name)
			if !ok {
				continue
			}
			for _, si := range scoreIdx {
				base := path.Base(scores[si].Path)
				stem := strings.TrimSuffix(base, path.Ext(base))
				if stem != strconv.Itoa(num) {
					continue
				}
				scores[si].Name = rest
				audios[ai].ScoreID = scores[si].ID
				matched++
				break
			}
		}
	}
	return matched
}
