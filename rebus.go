package main

const rebusSeparator = ','

// rebusState is the decoder state for one row: idle, or inside a run whose
// letters are collected in payload.
type rebusState struct {
	inRun   bool
	payload []rune
}

// CompressRebus collapses comma-joined rebus runs ("A,B,C") into a single
// RebusCell per run and records each run's letters by output position.
// Rows without commas come back unchanged.
func CompressRebus(rows []string) ([]string, RebusMap, error) {
	out := make([]string, len(rows))
	rebus := make(RebusMap)

	for y, row := range rows {
		compressed, err := compressRow(row, y, rebus)
		if err != nil {
			return nil, nil, err
		}
		out[y] = compressed
	}
	return out, rebus, nil
}

func compressRow(row string, y int, rebus RebusMap) (string, error) {
	in := []rune(row)
	cells := make([]rune, 0, len(in))
	var st rebusState

	for i := 0; i < len(in); i++ {
		ch := in[i]
		if ch == rebusSeparator {
			return "", integrity("row %d: stray separator at column %d", y, i)
		}
		continued := i+1 < len(in) && in[i+1] == rebusSeparator
		if ch == BlackCell && (continued || st.inRun) {
			return "", integrity("row %d: black cell inside rebus run at column %d", y, i)
		}

		if !st.inRun {
			if !continued {
				cells = append(cells, ch)
				continue
			}
			st = rebusState{inRun: true, payload: []rune{ch}}
			i++ // consume the separator
			continue
		}

		st.payload = append(st.payload, ch)
		if continued {
			i++
			continue
		}
		rebus[Coord{X: len(cells), Y: y}] = string(st.payload)
		cells = append(cells, RebusCell)
		st = rebusState{}
	}

	if st.inRun {
		return "", integrity("row %d: unterminated rebus run %q", y, string(st.payload))
	}
	return string(cells), nil
}
