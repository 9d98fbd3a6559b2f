package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/rotation"
)

// Weeks: 2025-01-05..11, 2025-01-12..18, 2025-01-19..25.
func rotationGrid() grid.Grid {
	d := func(day int) grid.Cell { return grid.Date(grid.Day(2025, 1, day)) }
	t := grid.Text
	e := grid.Empty()
	return grid.Grid{
		{t("Market"), t("Notes"), t("Start"), d(4), d(11), d(18)},
		{e, e, t("End"), d(10), d(17), d(24)},
		{t("Houston"), e, e, t("4001"), t("4001"), t("4001")},
		{t("Dallas"), e, e, t("4002"), t("4002 Reserve"), t("4002")},
		{t("Seattle"), e, e, t("4003"), e, t("4003")},
		{t("Denver"), e, e, t("TBD"), e, e},
	}
}

func geoRows() [][]string {
	return [][]string{
		{"78701", "30.2672", "-97.7431", "austin", "TX"},
		{"77002", "29.7604", "-95.3698", "houston", "TX"},
		{"75201", "32.7767", "-96.7970", "dallas", "TX"},
		{"98101", "47.6101", "-122.3344", "seattle", "WA"},
		{"80202", "39.7525", "-104.9995", "denver", "CO"},
	}
}

func techRows() [][]string {
	return [][]string{
		{"4001", "Ada", "Lovelace", "South", "Z1", "Field", "Houston", "TX", "77002"},
		{"4002", "Bo", "Diddley", "South", "Z2", "Field", "Dallas", "TX", "75201"},
		{"4003", "Cy", "Young", "West", "Z3", "Field", "Seattle", "WA", "98101"},
	}
}

func testDataset(t *testing.T) Dataset {
	t.Helper()
	cat := rotation.DefaultCatalog()
	sched, err := rotation.Parse(rotationGrid(), cat)
	require.NoError(t, err)
	require.Len(t, sched.Weeks, 3)
	require.Len(t, sched.Markets, 4)
	return Dataset{
		Schedule:  sched,
		Directory: directory.New(techRows()),
		Geo:       geocode.NewIndex(geoRows()),
		Catalog:   cat,
	}
}
