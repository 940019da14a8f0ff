package main

import (
	"strconv"
	"strings"
)

// logMarker starts the server log noise the feed sometimes appends after the clues.
const logMarker = "org.apache"

// Positions of the header sections in a feed response.
const (
	sectionDate    = 1
	sectionTitle   = 2
	sectionAuthors = 3
	sectionRows    = 4
	sectionCols    = 5
	sectionGrid    = 8

	minSections = sectionGrid + 1
)

// ParseResponse parses a raw feed blob. It returns a complete RawPuzzle or an
// error wrapping ErrMalformedResponse, never a partially filled value.
func ParseResponse(blob string) (*RawPuzzle, error) {
	blob = strings.ReplaceAll(blob, "\r\n", "\n")

	sections := strings.Split(strings.TrimSpace(blob), "\n\n")
	if len(sections) < minSections {
		return nil, malformed("expected at least %d sections, got %d", minSections, len(sections))
	}

	date := strings.TrimSpace(sections[sectionDate])
	if _, err := ParseFeedDate(date); err != nil {
		return nil, malformed("date section: %v", err)
	}

	rows, err := parseDimension(sections[sectionRows], "rows")
	if err != nil {
		return nil, err
	}
	cols, err := parseDimension(sections[sectionCols], "cols")
	if err != nil {
		return nil, err
	}

	grid := nonBlankLines(sections[sectionGrid])
	if len(grid) == 0 {
		return nil, malformed("empty grid block")
	}

	clues, err := parseClues(blob)
	if err != nil {
		return nil, err
	}

	return &RawPuzzle{
		Metadata: PuzzleMetadata{
			Date:    date,
			Title:   strings.TrimSpace(sections[sectionTitle]),
			Authors: splitAuthors(sections[sectionAuthors]),
			Size:    Size{Rows: rows, Cols: cols},
		},
		Rows:  grid,
		Clues: clues,
	}, nil
}

func parseDimension(section, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(section))
	if err != nil {
		return 0, malformed("%s: %q is not an integer", name, strings.TrimSpace(section))
	}
	if n <= 0 {
		return 0, malformed("%s: %d is not positive", name, n)
	}
	return n, nil
}

func splitAuthors(section string) []string {
	parts := strings.Split(section, "/")
	authors := make([]string, 0, len(parts))
	for _, p := range parts {
		if a := strings.TrimSpace(p); a != "" {
			authors = append(authors, a)
		}
	}
	return authors
}

// parseClues takes the last two blank-line separated chunks before the log
// marker as the Across and Down hint blocks.
func parseClues(blob string) (ClueLists, error) {
	text, _, _ := strings.Cut(blob, logMarker)
	chunks := strings.Split(strings.TrimSpace(text), "\n\n")
	if len(chunks) < 2 {
		return ClueLists{}, malformed("expected across and down clue blocks, got %d chunks", len(chunks))
	}
	return ClueLists{
		Across: nonBlankLines(chunks[len(chunks)-2]),
		Down:   nonBlankLines(chunks[len(chunks)-1]),
	}, nil
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
