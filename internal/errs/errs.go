// Package errs defines the lookup error taxonomy shared by the parsers, the
// date resolver, the resolution engine and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching. Every typed error below unwraps to one.
var (
	ErrStructure       = errors.New("grid structure mismatch")
	ErrAmbiguousDate   = errors.New("ambiguous boundary date")
	ErrOutOfRange      = errors.New("date out of range")
	ErrUnknownLocation = errors.New("unknown location")
	ErrNoCandidates    = errors.New("no candidates")
	ErrNotLoaded       = errors.New("table not loaded")
)

// StructureError reports a grid that does not match the expected layout.
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string { return e.Reason }
func (e *StructureError) Unwrap() error { return ErrStructure }
func (e *StructureError) Code() string  { return "STRUCTURE_ERROR" }

// AmbiguousDateError is returned when a date equals the start of a week other
// than the first and no AM/PM hint was supplied. It is an interaction step,
// the caller has to ask the user.
type AmbiguousDateError struct {
	Date          string
	PreviousWeek  int
	BoundaryWeek  int
	PreviousRange string
	BoundaryRange string
}

func (e *AmbiguousDateError) Error() string {
	return fmt.Sprintf("date %s is shared between two weeks (%s and %s); choose ticket time AM or PM", e.Date, e.PreviousRange, e.BoundaryRange)
}
func (e *AmbiguousDateError) Unwrap() error { return ErrAmbiguousDate }
func (e *AmbiguousDateError) Code() string  { return "AMBIGUOUS_DATE" }

// OutOfRangeError is returned when no week interval contains the date.
type OutOfRangeError struct {
	Date  string
	First string
	Last  string
}

func (e *OutOfRangeError) Error() string {
	if e.First == "" {
		return fmt.Sprintf("date %s is outside the rotation", e.Date)
	}
	return fmt.Sprintf("date %s is outside the rotation range %s → %s", e.Date, e.First, e.Last)
}
func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }
func (e *OutOfRangeError) Code() string  { return "OUT_OF_RANGE" }

// UnknownLocationError is returned when the ticket location cannot be mapped
// to coordinates.
type UnknownLocationError struct {
	PostalCode string
	City       string
	State      string
}

func (e *UnknownLocationError) Error() string {
	if e.PostalCode != "" {
		return fmt.Sprintf("postal/ZIP code %s not found in the ZIP database", e.PostalCode)
	}
	if e.City != "" {
		return fmt.Sprintf("could not convert %s, %s to a ZIP; enter a valid city+state or a ZIP", e.City, e.State)
	}
	return "enter a valid ZIP or city+state"
}
func (e *UnknownLocationError) Unwrap() error { return ErrUnknownLocation }
func (e *UnknownLocationError) Code() string  { return "UNKNOWN_LOCATION" }

// NoCandidatesError is returned only after every fallback tier came back empty.
type NoCandidatesError struct {
	State string
	Tiers []string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no on-call technician candidates found for state %s (tried: %s)", e.State, strings.Join(e.Tiers, "; "))
}
func (e *NoCandidatesError) Unwrap() error { return ErrNoCandidates }
func (e *NoCandidatesError) Code() string  { return "NO_CANDIDATES" }

// NotLoadedError is returned when a lookup needs a table nobody loaded yet.
type NotLoadedError struct {
	Table string
}

func (e *NotLoadedError) Error() string { return fmt.Sprintf("load %s first", e.Table) }
func (e *NotLoadedError) Unwrap() error { return ErrNotLoaded }
func (e *NotLoadedError) Code() string  { return "NOT_LOADED" }

// Coder is implemented by every error in this package.
type Coder interface {
	Code() string
}

// CodeOf returns the taxonomy code of err, or "" when err is not ours.
func CodeOf(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
