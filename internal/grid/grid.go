// Package grid models a worksheet as a rectangular array of typed cells.
//
// Readers must default missing cells to Empty so column positions stay stable
// across rows of different length.
package grid

import (
	"math"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindText
	KindNumber
	KindDate
)

type Cell struct {
	Kind   Kind
	Text   string
	Number float64
	Time   time.Time
}

func Empty() Cell             { return Cell{} }
func Text(s string) Cell      { return Cell{Kind: KindText, Text: s} }
func Number(n float64) Cell   { return Cell{Kind: KindNumber, Number: n} }
func Date(t time.Time) Cell   { return Cell{Kind: KindDate, Time: t} }
func (c Cell) IsText() bool   { return c.Kind == KindText }
func (c Cell) IsNumber() bool { return c.Kind == KindNumber }
func (c Cell) IsDate() bool   { return c.Kind == KindDate }

// IsBlank reports an empty cell or a text cell holding only whitespace.
func (c Cell) IsBlank() bool {
	switch c.Kind {
	case KindEmpty:
		return true
	case KindText:
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// String renders the cell the way a spreadsheet would show its raw value.
func (c Cell) String() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case KindDate:
		return c.Time.Format(time.RFC3339)
	}
	return ""
}

type Grid [][]Cell

// At returns the cell at (r, c) or Empty when out of range.
func (g Grid) At(r, c int) Cell {
	if r < 0 || r >= len(g) || c < 0 || c >= len(g[r]) {
		return Empty()
	}
	return g[r][c]
}

func (g Grid) Row(r int) []Cell {
	if r < 0 || r >= len(g) {
		return nil
	}
	return g[r]
}

// Width is the length of the longest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Rectangular pads every row with Empty cells up to Width.
func (g Grid) Rectangular() Grid {
	w := g.Width()
	out := make(Grid, len(g))
	for r, row := range g {
		padded := make([]Cell, w)
		copy(padded, row)
		out[r] = padded
	}
	return out
}

// Map returns a copy of g with fn applied to every cell.
func (g Grid) Map(fn func(Cell) Cell) Grid {
	out := make(Grid, len(g))
	for r, row := range g {
		next := make([]Cell, len(row))
		for c, cell := range row {
			next[c] = fn(cell)
		}
		out[r] = next
	}
	return out
}

// FromStrings builds a grid from string rows, classifying each value the way
// a spreadsheet stores untyped input: numbers become Number, the rest Text.
func FromStrings(rows [][]string) Grid {
	out := make(Grid, len(rows))
	for r, row := range rows {
		cells := make([]Cell, len(row))
		for c, v := range row {
			cells[c] = Classify(v)
		}
		out[r] = cells
	}
	return out
}

func Classify(v string) Cell {
	if strings.TrimSpace(v) == "" {
		return Empty()
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return Number(n)
	}
	return Text(v)
}
