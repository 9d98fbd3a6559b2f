package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/metrics"
	"github.com/oncall-dispatch/backend/internal/models"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/schedule"
	"github.com/oncall-dispatch/backend/internal/session"
)

// DefaultNonAvailabilityShiftDays moves the entered date back one day before
// reading the daily availability sheet. The timezone shift is not applied.
const DefaultNonAvailabilityShiftDays = -1

var ErrInvalidRequest = errors.New("invalid lookup request")

type LookupRequest struct {
	Zip   string `json:"zip" validate:"omitempty,max=10"`
	City  string `json:"city" validate:"omitempty,max=80"`
	State string `json:"state" validate:"required,len=2,alpha"`
	Date  string `json:"date" validate:"required"`
	AMPM  string `json:"ampm" validate:"omitempty,oneof=AM PM am pm"`
}

type LookupResult struct {
	Resolution          models.Resolution              `json:"resolution"`
	InputZip            string                         `json:"input_zip"`
	EnteredDate         time.Time                      `json:"entered_date"`
	Hint                schedule.Hint                  `json:"ampm,omitempty"`
	NonAvailabilityDate time.Time                      `json:"non_availability_date"`
	NonAvailable        []models.NonAvailabilityRecord `json:"non_available"`
}

// LookupService answers lookups against whatever the session holds when the
// request arrives.
type LookupService struct {
	Session  *session.Session
	Catalog  *rotation.Catalog
	Clock    schedule.Clock
	Mode     schedule.ShiftMode
	Geocoder geocode.Geocoder
	// NonAvailabilityShiftDays is added to the entered date before reading
	// non-availability records.
	NonAvailabilityShiftDays int
	Logger                   zerolog.Logger
}

func (s *LookupService) resolver(snap session.Snapshot) schedule.Resolver {
	r := schedule.Resolver{Clock: s.Clock, Mode: s.Mode}
	if snap.Rotation != nil && snap.Rotation.Schedule != nil {
		r.Weeks = snap.Rotation.Schedule.Weeks
	}
	return r
}

func (s *LookupService) dataset(snap session.Snapshot) Dataset {
	return Dataset{
		Schedule:  snap.Rotation.Schedule,
		Directory: snap.Directory,
		Geo:       snap.Geo,
		Catalog:   s.Catalog,
	}
}

// Lookup resolves one ticket.
func (s *LookupService) Lookup(ctx context.Context, req LookupRequest) (LookupResult, error) {
	out, err := s.lookup(ctx, req, nil)
	s.record(out, err)
	return out, err
}

// Choose repeats the lookup and then re-derives the result for alternate
// choice, the index into the alternates of the original answer.
func (s *LookupService) Choose(ctx context.Context, req LookupRequest, choice int) (LookupResult, error) {
	out, err := s.lookup(ctx, req, &choice)
	s.record(out, err)
	return out, err
}

func (s *LookupService) lookup(ctx context.Context, req LookupRequest, choice *int) (LookupResult, error) {
	snap := s.Session.Snapshot()
	if err := snap.Require(session.TableRotation, session.TableTech, session.TableZip); err != nil {
		return LookupResult{}, err
	}
	state := strings.ToUpper(strings.TrimSpace(req.State))
	if len(state) != 2 {
		return LookupResult{}, fmt.Errorf("%w: state is required (2 letters like TX, CA)", ErrInvalidRequest)
	}

	loc, locWarnings, err := s.resolveLocation(ctx, snap.Geo, req.Zip, req.City, state)
	if err != nil {
		return LookupResult{}, err
	}

	resolver := s.resolver(snap)
	hint := schedule.ParseHint(req.AMPM)
	entered, err := schedule.ParseEntered(req.Date)
	if err != nil {
		return LookupResult{}, err
	}
	week, date, err := resolver.ResolveWeek(req.Date, hint)
	if err != nil {
		return LookupResult{}, err
	}
	today := resolver.Today()

	ds := s.dataset(snap)
	res, err := Resolve(ds, ResolveRequest{
		LocationCode: loc.Code,
		State:        state,
		WeekIndex:    week,
		Date:         date,
		Today:        today,
	})
	if err != nil {
		return LookupResult{}, err
	}
	res.Warnings = append(locWarnings, res.Warnings...)
	if choice != nil {
		if res, err = ResolveChoice(ds, res, *choice, today); err != nil {
			return LookupResult{}, err
		}
	}

	out := LookupResult{
		Resolution:          res,
		InputZip:            loc.Code,
		EnteredDate:         entered,
		Hint:                hint,
		NonAvailabilityDate: grid.AddDays(entered, s.NonAvailabilityShiftDays),
	}
	out.NonAvailable = s.nonAvailable(snap, out.NonAvailabilityDate, state)
	if t := res.Technician; t != nil {
		for _, na := range out.NonAvailable {
			if na.TechID == t.ID {
				out.Resolution.Warnings = append(out.Resolution.Warnings,
					fmt.Sprintf("%s is listed as non-available on %s.", t.FullName(), grid.FormatYMD(out.NonAvailabilityDate)))
				break
			}
		}
	}
	return out, nil
}

// resolveLocation maps a ZIP, or a city and state, to an indexed location.
// A city missing from the index is geocoded and snapped to the nearest ZIP
// when a geocoder is configured.
func (s *LookupService) resolveLocation(ctx context.Context, idx *geocode.Index, zip, city, state string) (models.GeoRecord, []string, error) {
	if code := grid.NormalizePostal(zip); code != "" {
		rec, ok := idx.Lookup(code)
		if !ok {
			return models.GeoRecord{}, nil, &errs.UnknownLocationError{PostalCode: code}
		}
		return rec, nil, nil
	}
	city = strings.TrimSpace(city)
	unknown := &errs.UnknownLocationError{City: city, State: state}
	if city == "" {
		return models.GeoRecord{}, nil, unknown
	}
	if code, ok := idx.FindByCityState(city, state); ok {
		rec, _ := idx.Lookup(code)
		return rec, nil, nil
	}
	if s.Geocoder == nil {
		return models.GeoRecord{}, nil, unknown
	}

	query := geocode.BuildGeocodeQuery(city, state, geocode.CountryFor(state))
	lat, lon, display, _, err := s.Geocoder.Geocode(ctx, query)
	if err != nil {
		s.Logger.Warn().Err(err).Str("query", query).Msg("geocode failed")
		return models.GeoRecord{}, nil, unknown
	}
	rec, ok := idx.Nearest(lat, lon)
	if !ok {
		return models.GeoRecord{}, nil, unknown
	}
	warning := fmt.Sprintf("%s, %s is not in the ZIP DB. Geocoded to %s and snapped to nearest ZIP %s (%s, %s).",
		city, state, display, rec.Code, strings.ToUpper(rec.City), rec.State)
	return rec, []string{warning}, nil
}

func (s *LookupService) nonAvailable(snap session.Snapshot, date time.Time, state string) []models.NonAvailabilityRecord {
	if snap.Rotation == nil {
		return nil
	}
	recs := snap.Rotation.Exceptions.On(date, state)
	out := make([]models.NonAvailabilityRecord, 0, len(recs))
	for _, r := range recs {
		if r.TechID == "" {
			if t, ok := snap.Directory.MatchByInitialAndLast(r.Name); ok {
				r.TechID = t.ID
			}
		}
		out = append(out, r)
	}
	return out
}

func (s *LookupService) record(out LookupResult, err error) {
	if err != nil {
		code := errs.CodeOf(err)
		if code == "" {
			code = "error"
		}
		metrics.LookupTotal.WithLabelValues(code).Inc()
		s.Logger.Info().Err(err).Str("code", code).Msg("lookup failed")
		return
	}
	res := out.Resolution
	metrics.LookupTotal.WithLabelValues("ok").Inc()
	metrics.LookupConfidenceTotal.WithLabelValues(string(res.Confidence)).Inc()
	if n := len(res.Tiers); n > 1 {
		metrics.LookupFallbackTotal.WithLabelValues(res.Tiers[n-1]).Inc()
	}
	s.Logger.Info().
		Str("zip", out.InputZip).
		Str("state", res.State).
		Str("market", res.Market.CenterZip).
		Str("confidence", string(res.Confidence)).
		Bool("user_selected", res.UserSelected).
		Int("warnings", len(res.Warnings)).
		Msg("lookup resolved")
}

// Weeks lists the loaded week intervals.
func (s *LookupService) Weeks() ([]models.WeekInterval, error) {
	snap := s.Session.Snapshot()
	if err := snap.Require(session.TableRotation); err != nil {
		return nil, err
	}
	return snap.Rotation.Schedule.Weeks, nil
}

// Boundary reports whether dateStr needs an AM/PM hint.
func (s *LookupService) Boundary(dateStr string) (schedule.Boundary, error) {
	snap := s.Session.Snapshot()
	if err := snap.Require(session.TableRotation); err != nil {
		return schedule.Boundary{}, err
	}
	return s.resolver(snap).CheckBoundary(dateStr)
}

// NonAvailability lists the exception records for an entered date, after the
// non-availability day shift.
func (s *LookupService) NonAvailability(dateStr, state string) (time.Time, []models.NonAvailabilityRecord, error) {
	snap := s.Session.Snapshot()
	if err := snap.Require(session.TableRotation); err != nil {
		return time.Time{}, nil, err
	}
	entered, err := schedule.ParseEntered(dateStr)
	if err != nil {
		return time.Time{}, nil, err
	}
	date := grid.AddDays(entered, s.NonAvailabilityShiftDays)
	return date, s.nonAvailable(snap, date, state), nil
}
