package main

import (
	"cmp"
	"slices"
)

// coordSet is a deduplicated set of grid positions.
type coordSet map[Coord]struct{}

// frame describes the grid surrounded by one synthetic black row/column on
// every side. Framed coordinates are true coordinates shifted by (+1,+1).
type frame struct {
	rows, cols int // framed dimensions
}

func frameOf(g Grid) frame {
	return frame{rows: g.Rows() + 2, cols: g.Cols() + 2}
}

func (f frame) onBorder(c Coord) bool {
	return c.X <= 0 || c.Y <= 0 || c.X >= f.cols-1 || c.Y >= f.rows-1
}

// blacks returns every black cell of the framed grid: the border plus the
// grid's own black cells.
func (f frame) blacks(g Grid) coordSet {
	set := make(coordSet)
	for y := 0; y < f.rows; y++ {
		for x := 0; x < f.cols; x++ {
			c := Coord{X: x, Y: y}
			if f.onBorder(c) || g.At(shift(c, -1)) == BlackCell {
				set[c] = struct{}{}
			}
		}
	}
	return set
}

func shift(c Coord, d int) Coord {
	return Coord{X: c.X + d, Y: c.Y + d}
}

// neighbours collects the right and below neighbour of every cell in set.
func neighbours(set coordSet) coordSet {
	out := make(coordSet, 2*len(set))
	for c := range set {
		out[Coord{X: c.X + 1, Y: c.Y}] = struct{}{}
		out[Coord{X: c.X, Y: c.Y + 1}] = struct{}{}
	}
	return out
}

func dropBorder(set coordSet, f frame) coordSet {
	out := make(coordSet, len(set))
	for c := range set {
		if !f.onBorder(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

func unframe(set coordSet) coordSet {
	out := make(coordSet, len(set))
	for c := range set {
		out[shift(c, -1)] = struct{}{}
	}
	return out
}

func playable(set coordSet, g Grid) []Coord {
	out := make([]Coord, 0, len(set))
	for c := range set {
		if !g.IsBlack(c) {
			out = append(out, c)
		}
	}
	return out
}

func readingOrder(a, b Coord) int {
	if n := cmp.Compare(a.Y, b.Y); n != 0 {
		return n
	}
	return cmp.Compare(a.X, b.X)
}

// LocateStarts infers the across and down word starts of g from black-cell
// adjacency alone. Starts share one numbering sequence in reading order; a
// cell starting both an across and a down word appears in both lists with
// the same number.
func LocateStarts(g Grid) (across, down []Start) {
	f := frameOf(g)
	candidates := playable(unframe(dropBorder(neighbours(f.blacks(g)), f)), g)
	slices.SortFunc(candidates, readingOrder)

	for i, c := range candidates {
		s := Start{Number: i + 1, Coord: c}
		if g.IsBlack(Coord{X: c.X - 1, Y: c.Y}) {
			across = append(across, s)
		}
		if g.IsBlack(Coord{X: c.X, Y: c.Y - 1}) {
			down = append(down, s)
		}
	}
	return across, down
}
