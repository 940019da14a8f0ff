package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Grids shared by the pipeline tests.
var (
	catGrid     = []string{"CAT", "ARE", "TEA"}
	catAcross   = []string{"Feline", "To be", "Hot drink"}
	catDown     = []string{"Vehicle", "Pirate", "Consume"}
	rebusGrid   = []string{"CAT#DOG", "A,B,C#EXXXX", "RED#SKY"}
	rebusAcross = []string{"Feline", "Canine", "Multiple letters", "Letter E", "Color", "Up above"}
	rebusDown   = []string{"CABCR", "A", "TED", "DXS", "OXK", "GXY", "X", "E"}
)

// feedBlob renders a feed response the way the syndication endpoint lays it out.
func feedBlob(date string, rows, across, down []string) string {
	sections := []string{
		"ARCHIVE",
		date,
		"Test Title",
		"Jane Doe / John Roe",
		strconv.Itoa(len(rows)),
		strconv.Itoa(len(rows[0])),
		"0",
		"0",
		strings.Join(rows, "\n"),
		strings.Join(across, "\n"),
		strings.Join(down, "\n"),
	}
	return strings.Join(sections, "\n\n") + "\n"
}

// fakeSource serves blobs from a map and counts calls per date.
type fakeSource struct {
	mu    sync.Mutex
	blobs map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		blobs: make(map[string]string),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeSource) Fetch(_ context.Context, date string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[date]++
	if err, ok := f.errs[date]; ok {
		return "", err
	}
	blob, ok := f.blobs[date]
	if !ok {
		return "", fmt.Errorf("%w: no blob for %s", ErrFetch, date)
	}
	return blob, nil
}

func (f *fakeSource) callCount(date string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[date]
}
