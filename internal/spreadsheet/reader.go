// Package spreadsheet turns uploaded workbooks into typed grids and writes
// grids back out as .xlsx.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/oncall-dispatch/backend/internal/grid"
)

var ErrNoSheets = errors.New("no worksheet found")

// xlsMaxRows bounds legacy workbooks; rotation and availability sheets are a
// few hundred rows at most.
const xlsMaxRows = 100000

type Sheet struct {
	Name string
	Grid grid.Grid
}

type Workbook struct {
	Sheets []Sheet
}

// First returns the first worksheet.
func (w Workbook) First() (Sheet, bool) {
	if len(w.Sheets) == 0 {
		return Sheet{}, false
	}
	return w.Sheets[0], true
}

// FindSheet returns the sheet whose trimmed, lowercased name equals one of
// exact, falling back to the first name containing contains.
func (w Workbook) FindSheet(exact, contains string) (Sheet, bool) {
	for _, s := range w.Sheets {
		if strings.ToLower(strings.TrimSpace(s.Name)) == exact {
			return s, true
		}
	}
	if contains == "" {
		return Sheet{}, false
	}
	for _, s := range w.Sheets {
		if strings.Contains(strings.ToLower(s.Name), contains) {
			return s, true
		}
	}
	return Sheet{}, false
}

// Read decodes a workbook. The format is picked from the filename extension;
// anything that is not .xls is treated as OOXML.
func Read(r io.Reader, filename string) (Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Workbook{}, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		return readXLS(data)
	default:
		return readXLSX(data)
	}
}

func readXLSX(data []byte) (Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Workbook{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return Workbook{}, ErrNoSheets
	}
	styles := newStyleCache(f)
	wb := Workbook{Sheets: make([]Sheet, 0, len(names))}
	for _, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return Workbook{}, fmt.Errorf("read sheet %q: %w", name, err)
		}
		g := make(grid.Grid, len(rows))
		for r, row := range rows {
			cells := make([]grid.Cell, len(row))
			for c, raw := range row {
				cells[c] = xlsxCell(f, styles, name, r, c, raw)
			}
			g[r] = cells
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Grid: g.Rectangular()})
	}
	return wb, nil
}

func xlsxCell(f *excelize.File, styles *styleCache, sheet string, r, c int, raw string) grid.Cell {
	if strings.TrimSpace(raw) == "" {
		return grid.Empty()
	}
	axis, err := excelize.CoordinatesToCellName(c+1, r+1)
	if err != nil {
		return grid.Classify(raw)
	}
	typ, _ := f.GetCellType(sheet, axis)
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return grid.Text(raw)
	case excelize.CellTypeDate:
		if t, ok := grid.ParseDateRaw(grid.Text(raw)); ok {
			return grid.Date(t)
		}
		return grid.Classify(raw)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return grid.Classify(raw)
	}
	if styles.isDate(sheet, axis) {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return grid.Date(t)
		}
	}
	return grid.Number(n)
}

type styleCache struct {
	f     *excelize.File
	dates map[int]bool
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, dates: map[int]bool{}}
}

func (s *styleCache) isDate(sheet, axis string) bool {
	idx, err := s.f.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := s.dates[idx]; ok {
		return v
	}
	style, err := s.f.GetStyle(idx)
	v := err == nil && style != nil && isDateFormat(style.NumFmt, style.CustomNumFmt)
	s.dates[idx] = v
	return v
}

// isDateFormat recognises the built-in date number formats and custom codes
// that carry a day or year token.
func isDateFormat(numFmt int, custom *string) bool {
	switch {
	case numFmt >= 14 && numFmt <= 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 45 && numFmt <= 47,
		numFmt >= 50 && numFmt <= 58:
		return true
	}
	if custom == nil {
		return false
	}
	code := stripLiterals(strings.ToLower(*custom))
	return strings.ContainsAny(code, "dy")
}

// stripLiterals drops quoted text and bracketed sections ([Red], [$-409]).
func stripLiterals(code string) string {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range code {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func readXLS(data []byte) (Workbook, error) {
	wbk, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return Workbook{}, fmt.Errorf("open xls: %w", err)
	}
	if wbk.NumSheets() == 0 {
		return Workbook{}, ErrNoSheets
	}
	wb := Workbook{}
	for i := 0; i < wbk.NumSheets(); i++ {
		sheet := wbk.GetSheet(i)
		if sheet == nil {
			continue
		}
		var g grid.Grid
		for r := 0; r <= int(sheet.MaxRow) && r < xlsMaxRows; r++ {
			row := sheet.Row(r)
			if row == nil {
				g = append(g, nil)
				continue
			}
			cells := make([]grid.Cell, row.LastCol())
			for c := range cells {
				cells[c] = grid.Classify(row.Col(c))
			}
			g = append(g, cells)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: sheet.Name, Grid: g.Rectangular()})
	}
	if len(wb.Sheets) == 0 {
		return Workbook{}, ErrNoSheets
	}
	return wb, nil
}
