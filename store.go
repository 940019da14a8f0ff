package main

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxExportDays bounds a single export job.
const maxExportDays = 4000

// Store holds built puzzles and export jobs in memory.
type Store struct {
	mu      sync.RWMutex
	puzzles map[string]*Puzzle
	exports map[string]*ExportJob
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		puzzles: make(map[string]*Puzzle),
		exports: make(map[string]*ExportJob),
	}
}

// SavePuzzle stores p under its ID, assigning a fresh ID when it has none.
func (s *Store) SavePuzzle(p *Puzzle) *Puzzle {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.puzzles[p.ID] = p
	s.mu.Unlock()

	return p
}

// GetPuzzle returns a puzzle by ID, or nil if not found.
func (s *Store) GetPuzzle(id string) *Puzzle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puzzles[id]
}

// ListPuzzles returns all puzzles, most recent first.
func (s *Store) ListPuzzles() []*Puzzle {
	s.mu.RLock()
	list := make([]*Puzzle, 0, len(s.puzzles))
	for _, p := range s.puzzles {
		list = append(list, p)
	}
	s.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// CreateExport registers an export job covering from..to inclusive.
func (s *Store) CreateExport(from, to string) (*ExportJob, error) {
	start, err := ParseFeedDate(from)
	if err != nil {
		return nil, err
	}
	end, err := ParseFeedDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range %s..%s is reversed", ErrInvalidDate, from, to)
	}

	dates := DateRange(start, end)
	if len(dates) > maxExportDays {
		return nil, fmt.Errorf("%w: range covers %d days, limit is %d", ErrInvalidDate, len(dates), maxExportDays)
	}
	job := newExportJob(newID(), dates)

	s.mu.Lock()
	s.exports[job.ID] = job
	s.mu.Unlock()

	return job, nil
}

// GetExport returns an export job by ID.
func (s *Store) GetExport(id string) (*ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.exports[id]
	if !ok {
		return nil, fmt.Errorf("%w: export %s", ErrNotFound, id)
	}
	return job, nil
}

func newID() string {
	return uuid.NewString()
}
