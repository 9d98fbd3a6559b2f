package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncall-dispatch/backend/internal/availability"
	"github.com/oncall-dispatch/backend/internal/errs"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/session"
	"github.com/oncall-dispatch/backend/internal/spreadsheet"
)

func availabilityGrid() grid.Grid {
	header := make([]grid.Cell, 15)
	header[availability.StateColumns[0]] = grid.Date(grid.Day(2025, 1, 5))
	for i := 1; i < 7; i++ {
		header[availability.StateColumns[i]] = grid.Number(float64(5 + i))
	}
	data := make([]grid.Cell, 15)
	data[availability.StateColumns[1]] = grid.Text("TX")
	data[availability.NameColumns[1]] = grid.Text("A. Lovelace")
	return grid.Grid{{grid.Text("Daily Tech Availability")}, header, data}
}

func newLoader(sess *session.Session) *Loader {
	return &Loader{
		Session: sess,
		Catalog: rotation.DefaultCatalog(),
		Logger:  zerolog.Nop(),
		now:     func() time.Time { return time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC) },
	}
}

func TestLoadRotationWorkbook(t *testing.T) {
	data, err := spreadsheet.WriteWorkbook(
		spreadsheet.Sheet{Name: "On Call", Grid: rotationGrid()},
		spreadsheet.Sheet{Name: "Daily Tech Availability", Grid: availabilityGrid()},
	)
	require.NoError(t, err)

	sess := session.New()
	l := newLoader(sess)
	summary, err := l.LoadRotation(bytes.NewReader(data), "oncall.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "On Call", summary.Sheet)
	assert.Equal(t, 3, summary.Weeks)
	assert.Equal(t, 4, summary.Markets)
	assert.Equal(t, "Daily Tech Availability", summary.AvailabilitySheet)
	assert.Equal(t, 1, summary.AvailabilityDays)

	rot := sess.Snapshot().Rotation
	require.NotNil(t, rot)
	assert.Equal(t, "oncall.xlsx", rot.Filename)
	recs := rot.Exceptions.On(grid.Day(2025, 1, 6), "TX")
	require.Len(t, recs, 1)
	assert.Equal(t, "A. Lovelace", recs[0].Name)

	cleaned, err := l.CleanedRotation()
	require.NoError(t, err)
	wb, err := spreadsheet.Read(bytes.NewReader(cleaned), CleanedDownloadName)
	require.NoError(t, err)
	first, _ := wb.First()
	assert.Equal(t, CleanedSheetName, first.Name)
	reparsed, err := rotation.Parse(first.Grid, rotation.DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, rot.Schedule.Weeks, reparsed.Weeks)
	assert.Equal(t, rot.Schedule.Markets, reparsed.Markets)
}

func TestLoadRotationFailureKeepsPrevious(t *testing.T) {
	sess := session.New()
	l := newLoader(sess)
	good, err := spreadsheet.WriteGrid("On Call", rotationGrid())
	require.NoError(t, err)
	_, err = l.LoadRotation(bytes.NewReader(good), "good.xlsx")
	require.NoError(t, err)

	bad, err := spreadsheet.WriteGrid("On Call", grid.Grid{{grid.Text("nothing here")}})
	require.NoError(t, err)
	_, err = l.LoadRotation(bytes.NewReader(bad), "bad.xlsx")
	assert.ErrorIs(t, err, errs.ErrStructure)

	_, err = l.LoadRotation(bytes.NewReader([]byte("junk")), "junk.xlsx")
	assert.ErrorIs(t, err, errs.ErrStructure)

	assert.Equal(t, "good.xlsx", sess.Snapshot().Rotation.Filename)
	assert.Empty(t, sess.Snapshot().Rotation.Exceptions)
}

func TestCleanedRotationNeedsRotation(t *testing.T) {
	_, err := newLoader(session.New()).CleanedRotation()
	assert.ErrorIs(t, err, errs.ErrNotLoaded)
}

func TestLoadTechWorkbook(t *testing.T) {
	tx := grid.Text
	g := grid.Grid{
		{tx("Tech ID"), tx("First Name"), tx("Last Name"), tx("Region"), tx("Zone"), tx("Type"), tx("City"), tx("State"), tx("Zip"), tx("Country")},
		{grid.Number(4001), tx("Ada"), tx("Lovelace"), tx("South"), tx("Z1"), tx("Field"), tx("Houston"), tx("tx"), grid.Number(77002), tx("US")},
		{grid.Number(5001), tx("Jean"), tx("Tremblay"), tx("East"), tx("Z9"), tx("Field"), tx("Montreal"), tx("QC"), tx("H2X 1Y4"), tx("CA")},
	}
	data, err := spreadsheet.WriteGrid("Techs", g)
	require.NoError(t, err)

	sess := session.New()
	summary, err := newLoader(sess).LoadTechWorkbook(bytes.NewReader(data), "techdb.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)
	assert.Equal(t, "Techs", summary.Sheet)

	tech, ok := sess.Snapshot().Directory.Lookup("4001")
	require.True(t, ok)
	assert.Equal(t, "TX", tech.State)
	assert.Equal(t, "77002", tech.Zip)

	empty, err := spreadsheet.WriteGrid("Techs", g[:1])
	require.NoError(t, err)
	_, err = newLoader(sess).LoadTechWorkbook(bytes.NewReader(empty), "empty.xlsx")
	assert.ErrorIs(t, err, errs.ErrStructure)
	assert.Equal(t, 1, sess.Snapshot().Directory.Len())
}

type stubProvider struct {
	zips, techs     [][]string
	zipErr, techErr error
}

func (s stubProvider) Name() string { return "stub" }
func (s stubProvider) ZipRows(ctx context.Context) ([][]string, error) {
	return s.zips, s.zipErr
}
func (s stubProvider) TechnicianRows(ctx context.Context) ([][]string, error) {
	return s.techs, s.techErr
}

func TestReloadRefData(t *testing.T) {
	sess := session.New()
	l := newLoader(sess)
	l.Refdata = stubProvider{zips: geoRows(), techs: techRows()}

	summary, err := l.ReloadRefData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RefdataSummary{ZipRows: 5, TechRows: 3}, summary)

	l.Refdata = stubProvider{zips: [][]string{{"bad"}}, techErr: errors.New("service down")}
	summary, err = l.ReloadRefData(context.Background())
	require.Error(t, err)
	assert.Len(t, summary.Errors, 2)
	assert.Equal(t, 5, sess.Snapshot().Geo.Len())
	assert.Equal(t, 3, sess.Snapshot().Directory.Len())
}
