package main

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImport(t *testing.T) {
	raw, err := decodeImport(`{
		"title": " Sunday Special ",
		"authors": ["Jane Doe", " John Roe "],
		"grid": ["A,B,C#X", "DEFGH", "I#J#K"],
		"across": ["first", "", "second"],
		"down": ["d1"]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "Sunday Special", raw.Metadata.Title)
	assert.Equal(t, []string{"Jane Doe", "John Roe"}, raw.Metadata.Authors)
	assert.Equal(t, Size{Rows: 3, Cols: 5}, raw.Metadata.Size)
	assert.Equal(t, []string{"A,B,C#X", "DEFGH", "I#J#K"}, raw.Rows)
	assert.Equal(t, []string{"first", "second"}, raw.Clues.Across)
	assert.Equal(t, []string{"d1"}, raw.Clues.Down)
}

func TestDecodeImportErrors(t *testing.T) {
	_, err := decodeImport("Sure! Here is the grid:")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = decodeImport(`{"title":"x","grid":[]}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = decodeImport(`{"grid":["AB,"]}`)
	assert.ErrorIs(t, err, ErrGridIntegrity)
}

func TestNewGeminiClientRequiresProject(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{Region: "europe-west1"})
	assert.Error(t, err)
}

func TestImportImage(t *testing.T) {
	projectID := os.Getenv("GEMINI_PROJECT_ID")
	if projectID == "" {
		t.Skip("GEMINI_PROJECT_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewGeminiClient(ctx, GeminiConfig{
		ProjectID: projectID,
		Region:    "europe-west1",
		Model:     "gemini-2.5-flash",
	})
	require.NoError(t, err)

	imageData, err := os.ReadFile("testdata/crossword.png")
	if os.IsNotExist(err) {
		t.Skip("testdata/crossword.png not present")
	}
	require.NoError(t, err)

	raw, err := client.ImportImage(ctx, imageData, "image/png")
	require.NoError(t, err)
	t.Logf("transcribed %dx%d grid, %d across / %d down clues",
		raw.Metadata.Size.Rows, raw.Metadata.Size.Cols, len(raw.Clues.Across), len(raw.Clues.Down))

	p, err := Build(raw)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Entries)
}
