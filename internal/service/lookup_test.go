package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncall-dispatch/backend/internal/availability"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/models"
	"github.com/oncall-dispatch/backend/internal/schedule"
	"github.com/oncall-dispatch/backend/internal/session"
)

type fakeGeocoder struct {
	lat, lon float64
	err      error
	queries  []string
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) (float64, float64, string, float64, error) {
	f.queries = append(f.queries, query)
	return f.lat, f.lon, "Round Rock, Texas", 0.9, f.err
}

func loadedSession(t *testing.T) *session.Session {
	t.Helper()
	ds := testDataset(t)
	sess := session.New()
	sess.SetGeo(ds.Geo)
	sess.SetDirectory(ds.Directory)
	sess.SetRotation(&session.Rotation{
		Schedule: ds.Schedule,
		Exceptions: availability.Exceptions{
			"2025-01-06": {
				{Date: grid.Day(2025, 1, 6), Name: "A. Lovelace", State: "TX"},
				{Date: grid.Day(2025, 1, 6), Name: "C. Young", State: "WA"},
			},
		},
		Filename: "rotation.xlsx",
	})
	return sess
}

func newLookupService(sess *session.Session, now time.Time) *LookupService {
	return &LookupService{
		Session:                  sess,
		Clock:                    schedule.FixedClock{T: now},
		Mode:                     schedule.ShiftOff,
		NonAvailabilityShiftDays: DefaultNonAvailabilityShiftDays,
		Logger:                   zerolog.Nop(),
	}
}

func TestLookupRequiresLoadedTables(t *testing.T) {
	svc := newLookupService(session.New(), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	_, err := svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-07"})
	var nl *errs.NotLoadedError
	require.ErrorAs(t, err, &nl)
	assert.Equal(t, "load OnCall sheet first", err.Error())
}

func TestLookupByZip(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	out, err := svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "tx", Date: "2025-01-07"})
	require.NoError(t, err)

	assert.Equal(t, "78701", out.InputZip)
	assert.Equal(t, "77002", out.Resolution.Market.CenterZip)
	assert.Equal(t, models.ConfidenceLow, out.Resolution.Confidence)
	assert.Equal(t, "2025-01-06", grid.FormatYMD(out.NonAvailabilityDate))
	require.Len(t, out.NonAvailable, 1)
	assert.Equal(t, "4001", out.NonAvailable[0].TechID)
	assert.Contains(t, out.Resolution.Warnings, "Ada Lovelace is listed as non-available on 2025-01-06.")
}

func TestLookupByCityState(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	out, err := svc.Lookup(context.Background(), LookupRequest{City: " Austin ", State: "TX", Date: "2025-01-08"})
	require.NoError(t, err)
	assert.Equal(t, "78701", out.InputZip)
	assert.Empty(t, out.NonAvailable)

	_, err = svc.Lookup(context.Background(), LookupRequest{City: "Round Rock", State: "TX", Date: "2025-01-08"})
	assert.ErrorIs(t, err, errs.ErrUnknownLocation)

	_, err = svc.Lookup(context.Background(), LookupRequest{Zip: "73301", State: "TX", Date: "2025-01-08"})
	var ul *errs.UnknownLocationError
	require.ErrorAs(t, err, &ul)
	assert.Equal(t, "73301", ul.PostalCode)
}

func TestLookupGeocodesUnknownCity(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	geo := &fakeGeocoder{lat: 30.5083, lon: -97.6789}
	svc.Geocoder = geo

	out, err := svc.Lookup(context.Background(), LookupRequest{City: "Round Rock", State: "TX", Date: "2025-01-08"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Round Rock, TX, USA"}, geo.queries)
	assert.Equal(t, "78701", out.InputZip)
	assert.Contains(t, out.Resolution.Warnings[0], "snapped to nearest ZIP 78701")

	geo.err = geocode.ErrNotFound
	_, err = svc.Lookup(context.Background(), LookupRequest{City: "Nowhere", State: "TX", Date: "2025-01-08"})
	assert.ErrorIs(t, err, errs.ErrUnknownLocation)
}

func TestLookupBoundaryDate(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))

	_, err := svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-12"})
	var amb *errs.AmbiguousDateError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, 0, amb.PreviousWeek)
	assert.Equal(t, 1, amb.BoundaryWeek)

	out, err := svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-12", AMPM: "am"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Resolution.WeekIndex)
	assert.Equal(t, schedule.HintAM, out.Hint)

	out, err = svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-12", AMPM: "PM"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Resolution.WeekIndex)

	_, err = svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2024-12-01"})
	assert.ErrorIs(t, err, errs.ErrOutOfRange)

	_, err = svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "soon"})
	assert.ErrorIs(t, err, schedule.ErrInvalidDate)

	_, err = svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "T", Date: "2025-01-07"})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestLookupTimezoneShiftMovesDateAndToday(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 12, 23, 0, 0, 0, time.UTC))
	svc.Mode = schedule.ShiftOn

	// 2025-01-12 becomes 2025-01-13 and so does today: the reserved Dallas
	// cell in week 1 is eligible.
	out, err := svc.Lookup(context.Background(), LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-12"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Resolution.WeekIndex)
	assert.Equal(t, "2025-01-13", grid.FormatYMD(out.Resolution.Date))
	assert.Equal(t, 2, out.Resolution.CandidatesCount)
	assert.Equal(t, "2025-01-11", grid.FormatYMD(out.NonAvailabilityDate), "non-availability ignores the timezone shift")
}

func TestChooseAlternate(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))
	req := LookupRequest{Zip: "78701", State: "TX", Date: "2025-01-07"}

	out, err := svc.Choose(context.Background(), req, 1)
	require.NoError(t, err)
	assert.True(t, out.Resolution.UserSelected)
	assert.Equal(t, "75201", out.Resolution.Market.CenterZip)
	require.NotNil(t, out.Resolution.Technician)
	assert.Equal(t, "4002", out.Resolution.Technician.ID)
	assert.NotContains(t, out.Resolution.Warnings, "Bo Diddley is listed as non-available on 2025-01-06.")

	_, err = svc.Choose(context.Background(), req, 3)
	assert.ErrorIs(t, err, ErrInvalidChoice)
}

func TestWeeksBoundaryAndNonAvailability(t *testing.T) {
	svc := newLookupService(loadedSession(t), time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC))

	weeks, err := svc.Weeks()
	require.NoError(t, err)
	assert.Len(t, weeks, 3)

	b, err := svc.Boundary("2025-01-19")
	require.NoError(t, err)
	assert.True(t, b.IsBoundary)
	assert.Equal(t, 2, b.BoundaryWeek)

	b, err = svc.Boundary("2025-01-20")
	require.NoError(t, err)
	assert.False(t, b.IsBoundary)

	date, recs, err := svc.NonAvailability("2025-01-07", "wa")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-06", grid.FormatYMD(date))
	require.Len(t, recs, 1)
	assert.Equal(t, "4003", recs[0].TechID)

	_, err = newLookupService(session.New(), time.Now()).Weeks()
	assert.ErrorIs(t, err, errs.ErrNotLoaded)
}
