// Package schedule maps a ticket date to one rotation week.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
)

var ErrInvalidDate = errors.New("invalid date")

// Clock is the wall-clock source. Tests pin it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// ShiftMode controls the one-day forward shift applied to entered dates and
// today when the evaluating clock runs at UTC-5.
type ShiftMode string

const (
	ShiftAuto ShiftMode = "auto"
	ShiftOn   ShiftMode = "on"
	ShiftOff  ShiftMode = "off"
)

const utcMinus5 = -5 * 60 * 60

func ParseShiftMode(s string) (ShiftMode, error) {
	switch m := ShiftMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ShiftAuto, nil
	case ShiftAuto, ShiftOn, ShiftOff:
		return m, nil
	}
	return "", fmt.Errorf("unknown TZ shift mode %q (want auto, on or off)", s)
}

type Hint string

const (
	HintNone Hint = ""
	HintAM   Hint = "AM"
	HintPM   Hint = "PM"
)

func ParseHint(s string) Hint {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AM":
		return HintAM
	case "PM":
		return HintPM
	}
	return HintNone
}

// Resolver resolves dates against one parsed set of weeks.
type Resolver struct {
	Weeks []models.WeekInterval
	Clock Clock
	Mode  ShiftMode
}

func (r Resolver) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

// ShiftActive reports whether entered dates and today move forward a day.
func (r Resolver) ShiftActive() bool {
	switch r.Mode {
	case ShiftOn:
		return true
	case ShiftOff:
		return false
	}
	_, offset := r.now().Zone()
	return offset == utcMinus5
}

// EffectiveDate applies the timezone shift to a user-entered date.
func (r Resolver) EffectiveDate(d time.Time) time.Time {
	if r.ShiftActive() {
		return grid.AddDays(d, 1)
	}
	return d
}

// Today is the clock's local calendar date after the timezone shift.
func (r Resolver) Today() time.Time {
	return r.EffectiveDate(grid.DateOnly(r.now()))
}

// ParseEntered reads a user-entered date: YYYY-MM-DD, or any form the sheet
// parser understands (M/D/YY and friends).
func ParseEntered(s string) (time.Time, error) {
	if d, err := grid.ParseYMD(s); err == nil {
		return d, nil
	}
	if d, ok := grid.ParseDateRaw(grid.Text(s)); ok {
		return d, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ResolveWeek parses dateStr, applies the timezone shift and picks its week.
// It returns the week index and the effective date used.
func (r Resolver) ResolveWeek(dateStr string, hint Hint) (int, time.Time, error) {
	entered, err := ParseEntered(dateStr)
	if err != nil {
		return -1, time.Time{}, err
	}
	date := r.EffectiveDate(entered)
	idx, err := PickWeek(r.Weeks, date, hint)
	return idx, date, err
}

// PickWeek selects the week containing date. A date equal to the start of
// any week but the first is shared by two weeks: AM picks the earlier, PM
// the later, no hint is an AmbiguousDateError. The last week has no upper
// bound; only dates before the first Start are out of range.
func PickWeek(weeks []models.WeekInterval, date time.Time, hint Hint) (int, error) {
	if len(weeks) == 0 {
		return -1, &errs.OutOfRangeError{Date: grid.FormatYMD(date)}
	}
	for k := 1; k < len(weeks); k++ {
		if !weeks[k].Start.Equal(date) {
			continue
		}
		switch hint {
		case HintAM:
			return k - 1, nil
		case HintPM:
			return k, nil
		}
		return -1, &errs.AmbiguousDateError{
			Date:          grid.FormatYMD(date),
			PreviousWeek:  k - 1,
			BoundaryWeek:  k,
			PreviousRange: weeks[k-1].Range(),
			BoundaryRange: weeks[k].Range(),
		}
	}

	last := len(weeks) - 1
	for i, w := range weeks {
		if date.Before(w.Start) {
			break
		}
		if i < last && date.Before(weeks[i+1].Start) {
			return i, nil
		}
		if i == last {
			return i, nil
		}
	}
	return -1, &errs.OutOfRangeError{
		Date:  grid.FormatYMD(date),
		First: grid.FormatYMD(weeks[0].Start),
		Last:  grid.FormatYMD(weeks[last].End),
	}
}

// Boundary describes a date that sits on a week cutover.
type Boundary struct {
	Date          time.Time `json:"date"`
	IsBoundary    bool      `json:"is_boundary"`
	PreviousWeek  int       `json:"previous_week,omitempty"`
	BoundaryWeek  int       `json:"boundary_week,omitempty"`
	PreviousRange string    `json:"previous_range,omitempty"`
	BoundaryRange string    `json:"boundary_range,omitempty"`
}

// CheckBoundary tells a caller whether to ask for AM/PM before resolving.
func (r Resolver) CheckBoundary(dateStr string) (Boundary, error) {
	entered, err := ParseEntered(dateStr)
	if err != nil {
		return Boundary{}, err
	}
	date := r.EffectiveDate(entered)
	out := Boundary{Date: date}
	_, err = PickWeek(r.Weeks, date, HintNone)
	var amb *errs.AmbiguousDateError
	if errors.As(err, &amb) {
		out.IsBoundary = true
		out.PreviousWeek, out.BoundaryWeek = amb.PreviousWeek, amb.BoundaryWeek
		out.PreviousRange, out.BoundaryRange = amb.PreviousRange, amb.BoundaryRange
		return out, nil
	}
	return out, err
}
