package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var csvHeader = []string{"Date", "Title", "Authors", "Size", "Across Clues", "Down Clues", "Grid"}

// csvRow flattens one parsed puzzle into an export row.
func csvRow(raw *RawPuzzle) []string {
	m := raw.Metadata
	return []string{
		m.Date,
		m.Title,
		strings.Join(m.Authors, ", "),
		fmt.Sprintf("%dx%d", m.Size.Rows, m.Size.Cols),
		strings.Join(raw.Clues.Across, "; "),
		strings.Join(raw.Clues.Down, "; "),
		strings.Join(raw.Rows, "; "),
	}
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// ExportEvent is a progress notification for an export job.
type ExportEvent struct {
	Type     string          `json:"type"` // export_progress or export_done
	Date     string          `json:"date,omitempty"`
	Error    string          `json:"error,omitempty"`
	Progress *ExportSnapshot `json:"progress"`
}

// Exporter fetches and parses every date of an export job.
type Exporter struct {
	source      BlobSource
	concurrency int
	logger      *zap.Logger
}

// NewExporter creates an exporter reading from source.
func NewExporter(source BlobSource, concurrency int, logger *zap.Logger) *Exporter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Exporter{source: source, concurrency: concurrency, logger: logger}
}

// Run processes job. A failed fetch or parse only drops that date; the
// returned error is non-nil only when ctx is cancelled. notify may be nil.
func (e *Exporter) Run(ctx context.Context, job *ExportJob, notify func(ExportEvent)) error {
	if !job.start() {
		return fmt.Errorf("export %s already started", job.ID)
	}
	if notify == nil {
		notify = func(ExportEvent) {}
	}
	log := e.logger.With(zap.String("export", job.ID))
	log.Info("export started", zap.Int("dates", len(job.Dates)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, date := range job.Dates {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			row, err := e.exportDate(gctx, date)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			job.record(i, row, err)

			evt := ExportEvent{Type: "export_progress", Date: date}
			if err != nil {
				log.Warn("export date failed", zap.String("date", date), zap.Error(err))
				evt.Error = err.Error()
			}
			snap := job.Snapshot()
			evt.Progress = &snap
			notify(evt)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	job.finish()

	snap := job.Snapshot()
	notify(ExportEvent{Type: "export_done", Progress: &snap})
	log.Info("export finished",
		zap.Int("exported", snap.Exported),
		zap.Int("failed", len(snap.Failures)),
	)
	return err
}

func (e *Exporter) exportDate(ctx context.Context, date string) ([]string, error) {
	blob, err := e.source.Fetch(ctx, date)
	if err != nil {
		return nil, err
	}
	raw, err := ParseResponse(blob)
	if err != nil {
		return nil, err
	}
	return csvRow(raw), nil
}
