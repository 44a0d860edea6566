package metadata

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// WriteContents writes the corpus README: a table of every score with
// direct links to the source score, the MusicXML export, and the melody
// score. baseURL is prefixed to each corpus-relative path.
func WriteContents(readmePath, baseURL string, scores []Score) error {
	var b strings.Builder
	b.WriteString("## Corpus contents with direct download links\n")
	b.WriteString("|composer|collection|movement|score|-|melody|\n")
	b.WriteString("|---|---|---|---|---|---|\n")

	baseURL = strings.TrimSuffix(baseURL, "/")
	for _, s := range scores {
		parts := strings.Split(s.Path, "/")
		if len(parts) < 3 {
			return fmt.Errorf("score path %q too shallow for composer/collection/movement", s.Path)
		}
		composer := DisplayName(parts[len(parts)-3])
		collection := DisplayName(parts[len(parts)-2])
		movement := s.Name
		if movement == "" {
			base := parts[len(parts)-1]
			movement = DisplayName(strings.TrimSuffix(base, path.Ext(base)))
		}

		ext := path.Ext(s.Path)
		stem := strings.TrimSuffix(s.Path, ext)
		mxl := stem + ".mxl"
		melody := stem + "_melody.mxl"

		fmt.Fprintf(&b, "|%s|%s|%s|[%s](%s/%s)|[.mxl](%s/%s)|[melody.mxl](%s/%s)|\n",
			composer, collection, movement,
			ext, baseURL, s.Path,
			baseURL, mxl,
			baseURL, melody)
	}

	if err := os.WriteFile(readmePath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write contents: %w", err)
	}
	return nil
}
