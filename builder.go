package main

import "time"

// Build runs the grid pipeline over a parsed feed response:
// rebus compression, word-start location and entry extraction.
func Build(raw *RawPuzzle) (*Puzzle, error) {
	rows, rebus, err := CompressRebus(raw.Rows)
	if err != nil {
		return nil, err
	}
	g, err := NewGrid(rows)
	if err != nil {
		return nil, err
	}

	across, down := LocateStarts(g)
	entries, err := ExtractEntries(across, down, g, rebus, raw.Clues)
	if err != nil {
		return nil, err
	}

	return &Puzzle{
		ID:        raw.Metadata.Date,
		Source:    SourceFeed,
		Metadata:  raw.Metadata,
		Grid:      g.Strings(),
		Rebus:     rebus,
		Clues:     raw.Clues,
		Entries:   entries,
		CreatedAt: time.Now(),
	}, nil
}

// BuildFromResponse parses a raw feed blob and builds it.
func BuildFromResponse(blob string) (*Puzzle, error) {
	raw, err := ParseResponse(blob)
	if err != nil {
		return nil, err
	}
	return Build(raw)
}

// puzzleResponse is the JSON shape served for a built puzzle.
type puzzleResponse struct {
	ID       string         `json:"id"`
	Metadata PuzzleMetadata `json:"metadata"`
	Entries  []Slot         `json:"entries"`
}

func newPuzzleResponse(p *Puzzle) puzzleResponse {
	return puzzleResponse{ID: p.ID, Metadata: p.Metadata, Entries: p.Entries}
}
