// Package xlsx appends output tables to Excel workbooks, one workbook per table.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/cycle-hire-etl/internal/domain"
)

const sheet = "Sheet1"

// Sink writes <dir>/<table>.xlsx. An existing workbook is appended to below
// its last row; a new one starts with a header row of column names.
// It implements pipeline.Sink.
type Sink struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSink creates a Sink that writes under dir, creating it if needed.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

// Path returns the workbook path for table.
func (s *Sink) Path(table string) string {
	return filepath.Join(s.dir, table+".xlsx")
}

// AppendTrips appends trips to the table's workbook.
func (s *Sink) AppendTrips(ctx context.Context, table string, trips []domain.TripRecord) error {
	rows := make([][]any, len(trips))
	for i := range trips {
		rows[i] = tripRow(&trips[i])
	}
	return s.appendRows(ctx, table, domain.CanonicalColumns, rows)
}

// AppendDailyAggregates appends aggregates to the table's workbook.
func (s *Sink) AppendDailyAggregates(ctx context.Context, table string, aggs []domain.DailyStationAggregate) error {
	rows := make([][]any, len(aggs))
	for i := range aggs {
		rows[i] = dailyRow(&aggs[i])
	}
	return s.appendRows(ctx, table, domain.DailyColumns, rows)
}

// Close is a no-op; every append saves and closes its workbook.
func (s *Sink) Close() error { return nil }

func (s *Sink) appendRows(ctx context.Context, table string, header []string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.dir, err)
	}
	path := s.Path(table)

	f, next, err := openWorkbook(path, header)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", path, next, err)
		}
		next++
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	s.logger.Debug("workbook rows appended", "path", path, "rows", len(rows))
	return nil
}

// openWorkbook opens path or creates it with a header row, returning the
// workbook and the 1-based index of the first free row.
func openWorkbook(path string, header []string) (*excelize.File, int, error) {
	f, err := excelize.OpenFile(path)
	if errors.Is(err, os.ErrNotExist) {
		f = excelize.NewFile()
		row := make([]any, len(header))
		for i, h := range header {
			row[i] = h
		}
		if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
			_ = f.Close()
			return nil, 0, fmt.Errorf("write %s header: %w", path, err)
		}
		return f, 2, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}

	existing, err := f.GetRows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}
	return f, len(existing) + 1, nil
}

func tripRow(t *domain.TripRecord) []any {
	return []any{
		t.RentalID,
		intCell(t.Duration),
		t.BikeID,
		timeCell(t.StartDate, time.RFC3339),
		t.StartStationID,
		t.StartStationName,
		textCell(t.StartLocation),
		timeCell(t.EndDate, time.RFC3339),
		t.EndStationID,
		t.EndStationName,
		textCell(t.EndLocation),
	}
}

func dailyRow(a *domain.DailyStationAggregate) []any {
	return []any{
		timeCell(a.Date, domain.WeatherDateLayout),
		a.StartStationID,
		a.StartStationName,
		textCell(a.StartLocation),
		intCell(a.TotalDuration),
		a.HireCount,
		floatCell(a.Prcp),
		floatCell(a.Tavg),
	}
}

// Cells are written as text or numbers; nil leaves the cell empty.

func timeCell(t *time.Time, layout string) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(layout)
}

func textCell(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intCell(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatCell(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
