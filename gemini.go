package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const importPrompt = `Transcribe this photo of an American-style crossword puzzle.

Return JSON in exactly this shape:
{
  "title": "<puzzle title or empty string>",
  "authors": ["<author>", ...],
  "grid": ["<row 1>", "<row 2>", ...],
  "across": ["<across clue 1>", ...],
  "down": ["<down clue 1>", ...]
}

Rules:
- One string per grid row, one character per cell, top to bottom.
- Use "#" for black squares and the solution letter (uppercase) for white squares.
- A square holding several letters is written as those letters joined by commas, e.g. "H,E,A,R,T".
- List clues in printed order without their numbers.
- Answer ONLY with the JSON, no commentary or markdown.`

// ImportImage asks Gemini to transcribe a crossword photo into a RawPuzzle.
func (g *GeminiClient) ImportImage(ctx context.Context, imageData []byte, mimeType string) (*RawPuzzle, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: importPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	return decodeImport(text)
}

type importedPuzzle struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Grid    []string `json:"grid"`
	Across  []string `json:"across"`
	Down    []string `json:"down"`
}

// decodeImport turns the model's JSON transcription into a RawPuzzle.
// Size is the row count and the longest compressed row.
func decodeImport(text string) (*RawPuzzle, error) {
	var in importedPuzzle
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return nil, malformed("import JSON: %v", err)
	}

	rows := nonBlankLines(strings.Join(in.Grid, "\n"))
	if len(rows) == 0 {
		return nil, malformed("import has no grid rows")
	}
	compressed, _, err := CompressRebus(rows)
	if err != nil {
		return nil, err
	}
	cols := 0
	for _, r := range compressed {
		cols = max(cols, len([]rune(r)))
	}

	return &RawPuzzle{
		Metadata: PuzzleMetadata{
			Title:   strings.TrimSpace(in.Title),
			Authors: splitAuthors(strings.Join(in.Authors, "/")),
			Size:    Size{Rows: len(rows), Cols: cols},
		},
		Rows: rows,
		Clues: ClueLists{
			Across: nonBlankLines(strings.Join(in.Across, "\n")),
			Down:   nonBlankLines(strings.Join(in.Down, "\n")),
		},
	}, nil
}
