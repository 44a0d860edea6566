package alignment

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadRecordings parses an audio list file: one tab-separated line per
// recording with an ID, a file path, and optional start and end
// timestamps in [hh:]mm:ss format. Blank lines and #-comments are
// skipped.
func ReadRecordings(path string) ([]Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio list: %w", err)
	}
	defer f.Close()

	var recs []Recording
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("audio list line %d: need at least an ID and a path", lineNum)
		}

		rec := Recording{ID: fields[0], Path: fields[1]}
		if len(fields) > 2 && fields[2] != "" {
			if rec.Start, err = parseTimestamp(fields[2]); err != nil {
				return nil, fmt.Errorf("audio list line %d: start: %w", lineNum, err)
			}
		}
		if len(fields) > 3 && fields[3] != "" {
			if rec.End, err = parseTimestamp(fields[3]); err != nil {
				return nil, fmt.Errorf("audio list line %d: end: %w", lineNum, err)
			}
		}
		if len(fields) > 4 {
			rec.Description = fields[4]
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audio list: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("audio list %q has no recordings", path)
	}
	return recs, nil
}

// parseTimestamp converts "ss", "mm:ss", or "hh:mm:ss" to seconds.
func parseTimestamp(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var secs float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		secs = secs*60 + v
	}
	return secs, nil
}
