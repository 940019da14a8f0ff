package main

import (
	"io"
	"sync"
	"time"
)

// ExportStatus is the lifecycle state of an export job.
type ExportStatus string

const (
	ExportPending ExportStatus = "pending"
	ExportRunning ExportStatus = "running"
	ExportDone    ExportStatus = "done"
)

// ExportFailure records a date that could not be exported.
type ExportFailure struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// ExportJob tracks a CSV export over a date range.
type ExportJob struct {
	ID        string
	Dates     []string
	CreatedAt time.Time

	mu         sync.Mutex
	status     ExportStatus
	done       int
	failures   []ExportFailure
	rows       [][]string // indexed like Dates; nil for failed dates
	finishedAt time.Time
}

// ExportSnapshot is a point-in-time copy of a job's progress.
type ExportSnapshot struct {
	ID         string          `json:"id"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Status     ExportStatus    `json:"status"`
	Total      int             `json:"total"`
	Done       int             `json:"done"`
	Exported   int             `json:"exported"`
	Failures   []ExportFailure `json:"failures"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func newExportJob(id string, dates []string) *ExportJob {
	return &ExportJob{
		ID:        id,
		Dates:     dates,
		CreatedAt: time.Now(),
		status:    ExportPending,
		rows:      make([][]string, len(dates)),
		failures:  []ExportFailure{},
	}
}

// start moves the job to running. It returns false if it already started.
func (j *ExportJob) start() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != ExportPending {
		return false
	}
	j.status = ExportRunning
	return true
}

// record stores the outcome for the i-th date.
func (j *ExportJob) record(i int, row []string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.done++
	if err != nil {
		j.failures = append(j.failures, ExportFailure{Date: j.Dates[i], Error: err.Error()})
		return
	}
	j.rows[i] = row
}

func (j *ExportJob) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.status = ExportDone
	j.finishedAt = time.Now()
}

// Snapshot returns a copy of the job's current progress.
func (j *ExportJob) Snapshot() ExportSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := ExportSnapshot{
		ID:        j.ID,
		Status:    j.status,
		Total:     len(j.Dates),
		Done:      j.done,
		Exported:  j.done - len(j.failures),
		Failures:  make([]ExportFailure, len(j.failures)),
		CreatedAt: j.CreatedAt,
	}
	copy(snap.Failures, j.failures)
	if len(j.Dates) > 0 {
		snap.From, snap.To = j.Dates[0], j.Dates[len(j.Dates)-1]
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		snap.FinishedAt = &t
	}
	return snap
}

// Finished reports whether the job has completed.
func (j *ExportJob) Finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == ExportDone
}

// WriteCSV writes the exported rows in date order, skipping failed dates.
func (j *ExportJob) WriteCSV(w io.Writer) error {
	j.mu.Lock()
	rows := make([][]string, 0, len(j.rows))
	for _, r := range j.rows {
		if r != nil {
			rows = append(rows, r)
		}
	}
	j.mu.Unlock()

	return writeCSV(w, rows)
}
