package grid

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const ymdLayout = "2006-01-02"

var slashDateRe = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})$`)

// Layouts tried for free-form date strings after the M/D/YY form.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Mon Jan 2 2006",
	"Monday, January 2, 2006",
	"Mon, 02 Jan 2006",
}

// Day returns the calendar date y-m-d at UTC midnight. Out-of-range days
// normalise the way time.Date does (Feb 30 → Mar 2).
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of t, keeping t's own calendar fields.
func DateOnly(t time.Time) time.Time {
	return Day(t.Year(), t.Month(), t.Day())
}

func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func FormatYMD(t time.Time) string {
	return t.Format(ymdLayout)
}

// ParseYMD parses a strict YYYY-MM-DD calendar date.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ymdLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// ParseDate converts a rotation-grid cell into a calendar date and adds one
// day. The rotation workbooks in circulation are consistently one day early,
// so every Start/End value goes through this shift.
func ParseDate(c Cell) (time.Time, bool) {
	d, ok := ParseDateRaw(c)
	if !ok {
		return time.Time{}, false
	}
	return AddDays(d, 1), true
}

// ParseDateRaw converts a cell into a calendar date without any adjustment.
// Numbers are spreadsheet serials (1900 system), date cells keep their
// calendar fields, strings accept M/D/YY, M/D/YYYY and common layouts.
func ParseDateRaw(c Cell) (time.Time, bool) {
	switch c.Kind {
	case KindNumber:
		return serialToDate(c.Number)
	case KindDate:
		if c.Time.IsZero() {
			return time.Time{}, false
		}
		return DateOnly(c.Time), true
	case KindText:
		return parseDateString(c.Text)
	}
	return time.Time{}, false
}

func serialToDate(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(math.Floor(serial), false)
	if err != nil {
		return time.Time{}, false
	}
	return DateOnly(t), true
}

func parseDateString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		mm, _ := strconv.Atoi(m[1])
		dd, _ := strconv.Atoi(m[2])
		yy, _ := strconv.Atoi(m[3])
		if yy < 100 {
			yy += 2000
		}
		if mm >= 1 && mm <= 12 && dd >= 1 && dd <= 31 {
			return Day(yy, time.Month(mm), dd), true
		}
	}
	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), true
		}
	}
	return time.Time{}, false
}
