package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	raw, err := ParseResponse(feedBlob("240101", catGrid, catAcross, catDown))
	require.NoError(t, err)

	assert.Equal(t, PuzzleMetadata{
		Date:    "240101",
		Title:   "Test Title",
		Authors: []string{"Jane Doe", "John Roe"},
		Size:    Size{Rows: 3, Cols: 3},
	}, raw.Metadata)
	assert.Equal(t, catGrid, raw.Rows)
	assert.Equal(t, catAcross, raw.Clues.Across)
	assert.Equal(t, catDown, raw.Clues.Down)
}

func TestParseResponseIgnoresLogTail(t *testing.T) {
	blob := feedBlob("240101", catGrid, catAcross, catDown) +
		"\norg.apache.catalina.core.StandardWrapperValve invoke\n\nSEVERE: Servlet.service() threw exception\n\nat line 42\n"

	raw, err := ParseResponse(blob)
	require.NoError(t, err)
	assert.Equal(t, catAcross, raw.Clues.Across)
	assert.Equal(t, catDown, raw.Clues.Down)
}

func TestParseResponseCRLF(t *testing.T) {
	blob := strings.ReplaceAll(feedBlob("240101", catGrid, catAcross, catDown), "\n", "\r\n")

	raw, err := ParseResponse(blob)
	require.NoError(t, err)
	assert.Equal(t, catGrid, raw.Rows)
	assert.Equal(t, catDown, raw.Clues.Down)
}

func TestParseResponseTrimsAndSkipsBlankAuthors(t *testing.T) {
	blob := strings.Replace(feedBlob("240101", catGrid, catAcross, catDown),
		"Jane Doe / John Roe", "  Jane Doe //  ", 1)

	raw, err := ParseResponse(blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe"}, raw.Metadata.Authors)
}

func TestParseResponseMalformed(t *testing.T) {
	good := feedBlob("240101", catGrid, catAcross, catDown)
	sections := strings.Split(strings.TrimSpace(good), "\n\n")

	replace := func(i int, v string) string {
		s := append([]string(nil), sections...)
		s[i] = v
		return strings.Join(s, "\n\n")
	}

	tests := []struct {
		name string
		blob string
	}{
		{"empty", ""},
		{"too few sections", strings.Join(sections[:8], "\n\n")},
		{"rows not an integer", replace(sectionRows, "fifteen")},
		{"cols not an integer", replace(sectionCols, "15x")},
		{"zero rows", replace(sectionRows, "0")},
		{"eight digit date", replace(sectionDate, "20240101")},
		{"garbage date", replace(sectionDate, "Jan 1")},
		{"blank grid", replace(sectionGrid, "   ")},
		{"log marker before clues", "org.apache failure\n\n" + good},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseResponse(tt.blob)
			require.ErrorIs(t, err, ErrMalformedResponse)
			assert.Nil(t, raw)
		})
	}
}
