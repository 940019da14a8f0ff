package main

import (
	"fmt"
	"time"
)

const (
	// BlackCell marks a non-playable square in a grid row.
	BlackCell = '#'
	// RebusCell stands in for a multi-letter cell after compression.
	RebusCell = '+'
)

// Direction of a word slot.
type Direction string

const (
	Across Direction = "across"
	Down   Direction = "down"
)

// Coord is a zero-indexed grid position: X is the column, Y the row.
type Coord struct {
	X int
	Y int
}

// Size holds the declared puzzle dimensions.
type Size struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// PuzzleMetadata is the header of a feed puzzle.
type PuzzleMetadata struct {
	Date    string   `json:"date"` // YYMMDD
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Size    Size     `json:"size"`
}

// ClueLists holds hints per direction. The i-th hint belongs to the i-th
// start of that direction in reading order.
type ClueLists struct {
	Across []string `json:"across"`
	Down   []string `json:"down"`
}

// RawPuzzle is a fully parsed feed response, before the grid is compressed.
type RawPuzzle struct {
	Metadata PuzzleMetadata
	Rows     []string
	Clues    ClueLists
}

// RebusMap maps a compressed-grid position to the letters of its rebus cell.
type RebusMap map[Coord]string

// Start is a numbered word-start cell.
type Start struct {
	Number int
	Coord
}

// Slot is one numbered directional word placement.
type Slot struct {
	Clue      string    `json:"clue"`
	Answer    string    `json:"answer"`
	Index     int       `json:"index"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Direction Direction `json:"direction"`
}

func (s Slot) String() string {
	return fmt.Sprintf("%d %s (%d,%d): %s", s.Index, s.Direction, s.X, s.Y, s.Clue)
}

// Source tells where a puzzle came from.
type Source string

const (
	SourceFeed   Source = "feed"
	SourceImport Source = "import"
)

// Puzzle is a built crossword: compressed grid plus numbered slots.
type Puzzle struct {
	ID        string         `json:"id"`
	Source    Source         `json:"source"`
	Metadata  PuzzleMetadata `json:"metadata"`
	Grid      []string       `json:"grid"`
	Rebus     RebusMap       `json:"-"`
	Clues     ClueLists      `json:"-"`
	Entries   []Slot         `json:"entries"`
	CreatedAt time.Time      `json:"created_at"`
}

// Grid is a compressed, rectangular crossword grid.
type Grid struct {
	cells [][]rune
}

// NewGrid validates compressed rows and wraps them as a Grid.
func NewGrid(rows []string) (Grid, error) {
	if len(rows) == 0 {
		return Grid{}, integrity("empty grid")
	}
	cells := make([][]rune, len(rows))
	for y, row := range rows {
		cells[y] = []rune(row)
		if len(cells[y]) == 0 {
			return Grid{}, integrity("row %d is empty", y)
		}
		if len(cells[y]) != len(cells[0]) {
			return Grid{}, integrity("row %d has %d cells, row 0 has %d", y, len(cells[y]), len(cells[0]))
		}
	}
	return Grid{cells: cells}, nil
}

func (g Grid) Rows() int { return len(g.cells) }

func (g Grid) Cols() int {
	if len(g.cells) == 0 {
		return 0
	}
	return len(g.cells[0])
}

func (g Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.Y < g.Rows() && c.X < g.Cols()
}

// At returns the cell at c; it panics when c is out of bounds.
func (g Grid) At(c Coord) rune { return g.cells[c.Y][c.X] }

// IsBlack reports whether c is a black cell. Positions outside the grid
// count as black.
func (g Grid) IsBlack(c Coord) bool {
	return !g.InBounds(c) || g.At(c) == BlackCell
}

// Strings returns the grid rows.
func (g Grid) Strings() []string {
	rows := make([]string, len(g.cells))
	for y, r := range g.cells {
		rows[y] = string(r)
	}
	return rows
}
