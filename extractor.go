package main

import "strings"

// ExtractEntries pairs the i-th start of each direction with the i-th hint of
// that direction and reads each slot's answer off the grid. Counts must match
// exactly; a mismatch is a *GridIntegrityError.
func ExtractEntries(across, down []Start, g Grid, rebus RebusMap, clues ClueLists) ([]Slot, error) {
	if len(across) != len(clues.Across) {
		return nil, &GridIntegrityError{Direction: Across, Starts: len(across), Hints: len(clues.Across)}
	}
	if len(down) != len(clues.Down) {
		return nil, &GridIntegrityError{Direction: Down, Starts: len(down), Hints: len(clues.Down)}
	}

	slots := make([]Slot, 0, len(across)+len(down))
	for i, s := range across {
		slots = append(slots, newSlot(s, Across, clues.Across[i], g, rebus))
	}
	for i, s := range down {
		slots = append(slots, newSlot(s, Down, clues.Down[i], g, rebus))
	}
	return slots, nil
}

func newSlot(s Start, dir Direction, clue string, g Grid, rebus RebusMap) Slot {
	return Slot{
		Clue:      clue,
		Answer:    readAnswer(s.Coord, dir, g, rebus),
		Index:     s.Number,
		X:         s.X,
		Y:         s.Y,
		Direction: dir,
	}
}

func readAnswer(from Coord, dir Direction, g Grid, rebus RebusMap) string {
	step := Coord{X: 1}
	if dir == Down {
		step = Coord{Y: 1}
	}

	var b strings.Builder
	for c := from; !g.IsBlack(c); c = (Coord{X: c.X + step.X, Y: c.Y + step.Y}) {
		ch := g.At(c)
		if ch == RebusCell {
			if payload, ok := rebus[c]; ok {
				b.WriteString(payload)
				continue
			}
		}
		b.WriteRune(ch)
	}
	return b.String()
}
