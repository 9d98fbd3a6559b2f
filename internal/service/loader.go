package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/oncall-dispatch/backend/internal/availability"
	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/metrics"
	"github.com/oncall-dispatch/backend/internal/refdata"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/session"
	"github.com/oncall-dispatch/backend/internal/spreadsheet"
)

const (
	CleanedSheetName    = "On Call Rotation (Cleaned)"
	CleanedDownloadName = "OnCall_FirstSheet_Cleaned_MarketsToZips.xlsx"
)

// RotationSummary describes a loaded rotation workbook.
type RotationSummary struct {
	Filename          string    `json:"filename"`
	Sheet             string    `json:"sheet"`
	Weeks             int       `json:"weeks"`
	Markets           int       `json:"markets"`
	AvailabilitySheet string    `json:"availability_sheet,omitempty"`
	AvailabilityDays  int       `json:"availability_days"`
	LoadedAt          time.Time `json:"loaded_at"`
}

type TechSummary struct {
	Filename string `json:"filename,omitempty"`
	Sheet    string `json:"sheet,omitempty"`
	Count    int    `json:"count"`
	Skipped  int    `json:"skipped"`
}

type RefdataSummary struct {
	ZipRows  int      `json:"zip_rows"`
	TechRows int      `json:"tech_rows"`
	Errors   []string `json:"errors,omitempty"`
}

// Loader parses uploads and reference tables and swaps them into the session.
// Nothing is swapped unless the whole parse succeeded.
type Loader struct {
	Session *session.Session
	Catalog *rotation.Catalog
	Refdata refdata.Provider
	Logger  zerolog.Logger
	now     func() time.Time
}

func (l *Loader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// LoadRotation reads a rotation workbook: the first sheet is the rotation
// grid, a sheet named like "Daily Tech Availability" feeds the
// non-availability records.
func (l *Loader) LoadRotation(r io.Reader, filename string) (RotationSummary, error) {
	start := time.Now()
	wb, err := spreadsheet.Read(r, filename)
	if err != nil {
		metrics.ParserErrorsTotal.WithLabelValues("rotation").Inc()
		return RotationSummary{}, &errs.StructureError{Reason: fmt.Sprintf("could not read %s: %v", filename, err)}
	}
	first, _ := wb.First()
	sched, err := rotation.Parse(first.Grid, l.Catalog)
	metrics.ParserDuration.WithLabelValues("rotation").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ParserErrorsTotal.WithLabelValues("rotation").Inc()
		l.Logger.Warn().Err(err).Str("file", filename).Str("sheet", first.Name).Msg("rotation parse failed")
		return RotationSummary{}, err
	}

	summary := RotationSummary{
		Filename: filename,
		Sheet:    first.Name,
		Weeks:    len(sched.Weeks),
		Markets:  len(sched.Markets),
		LoadedAt: l.clock(),
	}
	exceptions := availability.Exceptions{}
	if sheet, ok := wb.FindSheet("daily tech availability", "daily tech"); ok {
		start = time.Now()
		exceptions = availability.Parse(sheet.Grid, l.Logger)
		metrics.ParserDuration.WithLabelValues("availability").Observe(time.Since(start).Seconds())
		summary.AvailabilitySheet = sheet.Name
		summary.AvailabilityDays = len(exceptions)
	} else {
		l.Logger.Info().Str("file", filename).Msg("no daily tech availability sheet in workbook")
	}

	l.Session.SetRotation(&session.Rotation{
		Schedule:   sched,
		Exceptions: exceptions,
		Filename:   filename,
		LoadedAt:   summary.LoadedAt,
	})
	l.Logger.Info().
		Str("file", filename).
		Str("sheet", first.Name).
		Int("weeks", summary.Weeks).
		Int("markets", summary.Markets).
		Int("availability_days", summary.AvailabilityDays).
		Msg("rotation loaded")
	return summary, nil
}

// LoadTechWorkbook replaces the technician directory from an uploaded sheet.
func (l *Loader) LoadTechWorkbook(r io.Reader, filename string) (TechSummary, error) {
	start := time.Now()
	wb, err := spreadsheet.Read(r, filename)
	if err != nil {
		metrics.ParserErrorsTotal.WithLabelValues("techdb").Inc()
		return TechSummary{}, &errs.StructureError{Reason: fmt.Sprintf("could not read %s: %v", filename, err)}
	}
	first, _ := wb.First()
	rows, err := directory.RowsFromSheet(first.Grid)
	metrics.ParserDuration.WithLabelValues("techdb").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ParserErrorsTotal.WithLabelValues("techdb").Inc()
		return TechSummary{}, err
	}
	dir := directory.New(rows)
	if dir.Len() == 0 {
		metrics.ParserErrorsTotal.WithLabelValues("techdb").Inc()
		return TechSummary{}, &errs.StructureError{Reason: "no technicians found in " + filename}
	}
	l.Session.SetDirectory(dir)
	metrics.RefdataRows.WithLabelValues("technicians").Set(float64(dir.Len()))
	l.Logger.Info().Str("file", filename).Int("count", dir.Len()).Int("skipped", dir.Skipped()).Msg("tech db loaded from workbook")
	return TechSummary{Filename: filename, Sheet: first.Name, Count: dir.Len(), Skipped: dir.Skipped()}, nil
}

// ReloadRefData refetches both reference tables through the provider chain.
// Each table is swapped independently; a table that fails keeps its previous
// contents.
func (l *Loader) ReloadRefData(ctx context.Context) (RefdataSummary, error) {
	var (
		out  RefdataSummary
		errl []error
	)
	if l.Refdata == nil {
		return out, errors.New("no reference-table provider configured")
	}

	if rows, err := l.Refdata.ZipRows(ctx); err != nil {
		errl = append(errl, fmt.Errorf("zip table: %w", err))
	} else if idx := geocode.NewIndex(rows); idx.Len() == 0 {
		errl = append(errl, fmt.Errorf("zip table: %w", refdata.ErrEmptyTable))
	} else {
		l.Session.SetGeo(idx)
		out.ZipRows = idx.Len()
		metrics.RefdataRows.WithLabelValues("zips").Set(float64(idx.Len()))
		if idx.Skipped() > 0 {
			l.Logger.Warn().Int("skipped", idx.Skipped()).Msg("zip rows without usable coordinates skipped")
		}
	}

	if rows, err := l.Refdata.TechnicianRows(ctx); err != nil {
		errl = append(errl, fmt.Errorf("tech table: %w", err))
	} else if dir := directory.New(rows); dir.Len() == 0 {
		errl = append(errl, fmt.Errorf("tech table: %w", refdata.ErrEmptyTable))
	} else {
		l.Session.SetDirectory(dir)
		out.TechRows = dir.Len()
		metrics.RefdataRows.WithLabelValues("technicians").Set(float64(dir.Len()))
	}

	for _, err := range errl {
		out.Errors = append(out.Errors, err.Error())
	}
	return out, errors.Join(errl...)
}

// CleanedRotation re-encodes the loaded rotation grid, market names already
// replaced by their ZIPs, as a single-sheet workbook.
func (l *Loader) CleanedRotation() ([]byte, error) {
	snap := l.Session.Snapshot()
	if err := snap.Require(session.TableRotation); err != nil {
		return nil, err
	}
	return spreadsheet.WriteGrid(CleanedSheetName, snap.Rotation.Schedule.Grid)
}
