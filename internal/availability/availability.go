// Package availability reads the daily technician non-availability sheet.
//
// The sheet is a stack of weekly blocks. Each block starts with a header row
// of day numbers in the odd columns B..N (Sunday..Saturday); the rows below
// carry (state, technician name) pairs in the column pairs B:C .. N:O.
package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
)

// Header thresholds. These are tuned against the sheets in circulation.
const (
	MinDayCells       = 4
	MaxTechCells      = 1
	MaxStateCodeCells = 2
	MinAnchorYear     = 2020
)

var (
	// StateColumns hold the day number on header rows and the state code on
	// data rows; index i is day offset i from Sunday.
	StateColumns = []int{1, 3, 5, 7, 9, 11, 13}
	// NameColumns hold the technician name next to each state column.
	NameColumns = []int{2, 4, 6, 8, 10, 12, 14}

	stateCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)
	dayDigitsRe = regexp.MustCompile(`\d{1,2}`)
)

// HeaderSignals are the counts ClassifyHeader based its decision on.
type HeaderSignals struct {
	DayCells       int
	TechCells      int
	StateCodeCells int
}

// ClassifyHeader reports whether row idx starts a weekly block. Row 0 is the
// sheet title and never a header.
func ClassifyHeader(row []grid.Cell, idx int) (bool, HeaderSignals) {
	var sig HeaderSignals
	if idx == 0 {
		return false, sig
	}
	for _, c := range StateColumns {
		cell := at(row, c)
		if _, ok := dayOfMonth(cell); ok {
			sig.DayCells++
		}
		if stateCode(cell) != "" {
			sig.StateCodeCells++
		}
	}
	for _, c := range NameColumns {
		if !at(row, c).IsBlank() {
			sig.TechCells++
		}
	}
	ok := sig.DayCells >= MinDayCells && sig.TechCells <= MaxTechCells && sig.StateCodeCells <= MaxStateCodeCells
	return ok, sig
}

func dayOfMonth(c grid.Cell) (int, bool) {
	switch c.Kind {
	case grid.KindNumber:
		d := int(c.Number)
		return d, d >= 1 && d <= 31
	case grid.KindDate:
		return c.Time.Day(), true
	case grid.KindText:
		m := dayDigitsRe.FindString(c.Text)
		if m == "" {
			return 0, false
		}
		d, _ := strconv.Atoi(m)
		return d, d >= 1 && d <= 31
	}
	return 0, false
}

func stateCode(c grid.Cell) string {
	if !c.IsText() {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(c.Text))
	if stateCodeRe.MatchString(s) {
		return s
	}
	return ""
}

// anchorSunday finds a real calendar date on a header row and backs it off
// to the Sunday of that week.
func anchorSunday(row []grid.Cell) (time.Time, bool) {
	for offset, c := range StateColumns {
		if c >= len(row) {
			break
		}
		d, ok := grid.ParseDateRaw(row[c])
		if !ok || d.Year() < MinAnchorYear {
			continue
		}
		return grid.AddDays(d, -offset), true
	}
	return time.Time{}, false
}

// Exceptions maps a YYYY-MM-DD date to the technicians unavailable that day.
type Exceptions map[string][]models.NonAvailabilityRecord

// On returns the records for date, keeping only state when state is set.
func (e Exceptions) On(date time.Time, state string) []models.NonAvailabilityRecord {
	recs := e[grid.FormatYMD(date)]
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return recs
	}
	var out []models.NonAvailabilityRecord
	for _, r := range recs {
		if r.State == state {
			out = append(out, r)
		}
	}
	return out
}

// Parse reads the whole sheet. It never fails: a sheet it cannot make sense
// of yields an empty map and a warning in the log.
func Parse(g grid.Grid, logger zerolog.Logger) (out Exceptions) {
	out = Exceptions{}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("panic", fmt.Sprint(r)).Msg("availability sheet could not be parsed")
			out = Exceptions{}
		}
	}()

	seen := map[string]bool{}
	var sunday time.Time
	inBlock := false
	headers, skipped := 0, 0

	for r, row := range g {
		if isHeader, _ := ClassifyHeader(row, r); isHeader {
			headers++
			if anchor, ok := anchorSunday(row); ok {
				sunday, inBlock = anchor, true
			} else if !sunday.IsZero() {
				sunday, inBlock = grid.AddDays(sunday, 7), true
			} else {
				inBlock = false
				skipped++
			}
			continue
		}
		if !inBlock {
			continue
		}
		for offset, sc := range StateColumns {
			state := stateCode(at(row, sc))
			name := cleanName(at(row, NameColumns[offset]))
			if state == "" || name == "" {
				continue
			}
			date := grid.AddDays(sunday, offset)
			key := grid.FormatYMD(date)
			dedup := key + "|" + state + "|" + strings.ToLower(name)
			if seen[dedup] {
				continue
			}
			seen[dedup] = true
			out[key] = append(out[key], models.NonAvailabilityRecord{Date: date, Name: name, State: state})
		}
	}

	if headers == 0 && len(g) > 0 {
		logger.Warn().Int("rows", len(g)).Msg("availability sheet has no weekly header rows")
	}
	if skipped > 0 {
		logger.Warn().Int("headers", skipped).Msg("availability headers without a date anchor were skipped")
	}
	return out
}

func at(row []grid.Cell, c int) grid.Cell {
	if c < len(row) {
		return row[c]
	}
	return grid.Empty()
}

func cleanName(c grid.Cell) string {
	if !c.IsText() {
		return ""
	}
	return strings.Join(strings.Fields(c.Text), " ")
}
