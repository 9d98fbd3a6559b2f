package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/oncall-dispatch/backend/internal/grid"
)

const defaultSheet = "Sheet1"

// WriteGrid encodes g as a single-sheet .xlsx. Cell positions are preserved;
// dates are written as date-formatted serials so a re-read yields date cells.
func WriteGrid(sheetName string, g grid.Grid) ([]byte, error) {
	return WriteWorkbook(Sheet{Name: sheetName, Grid: g})
}

// WriteWorkbook encodes the sheets in order as one .xlsx.
func WriteWorkbook(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, fmt.Errorf("date style: %w", err)
	}
	for i, sh := range sheets {
		name := sh.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		switch {
		case i == 0 && name != defaultSheet:
			err = f.SetSheetName(defaultSheet, name)
		case i > 0:
			_, err = f.NewSheet(name)
		}
		if err != nil {
			return nil, fmt.Errorf("name sheet %q: %w", name, err)
		}
		if err := writeCells(f, name, sh.Grid, dateStyle); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCells(f *excelize.File, sheet string, g grid.Grid, dateStyle int) error {
	for r, row := range g {
		for c, cell := range row {
			if cell.Kind == grid.KindEmpty {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			switch cell.Kind {
			case grid.KindText:
				err = f.SetCellStr(sheet, axis, cell.Text)
			case grid.KindNumber:
				err = f.SetCellFloat(sheet, axis, cell.Number, -1, 64)
			case grid.KindDate:
				if err = f.SetCellValue(sheet, axis, cell.Time); err == nil {
					err = f.SetCellStyle(sheet, axis, axis, dateStyle)
				}
			}
			if err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, axis, err)
			}
		}
	}
	return nil
}
